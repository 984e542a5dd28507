package match

import (
	"sync"

	"github.com/dnsge/diskplot/entry"
)

// GroupScan finds every KBC-group boundary in a sorted, bucket-local y
// array (spec.md §4.4). bucket is the owning bucket's index, used to
// reconstruct the full Y value each y needs to be divided by KBC under.
// The returned slice holds each group's start index in ascending order,
// with one extra trailing entry equal to len(y) so callers can read
// boundaries[i+1] for the end of the last group without a bounds check.
//
// The scan is split into `workers` ranges; each worker's assigned start
// is nudged forward to the next group boundary (groups never split
// across workers), then it walks its range recording boundaries.
// Workers write into disjoint slices, so the only sequential step is
// concatenating their results.
func GroupScan(y []uint32, bucket uint32, workers int) []uint32 {
	n := len(y)
	if n == 0 {
		return []uint32{0}
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	groupOf := func(i int) uint64 {
		return entry.GroupOf(entry.Y(bucket, y[i]))
	}

	starts := make([]int, workers)
	starts[0] = 0
	for w := 1; w < workers; w++ {
		tentative := w * n / workers
		for tentative < n && tentative > 0 && groupOf(tentative) == groupOf(tentative-1) {
			tentative++
		}
		if tentative > n {
			tentative = n
		}
		starts[w] = tentative
	}

	results := make([][]uint32, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		rangeStart := starts[w]
		rangeEnd := n
		if w+1 < workers {
			rangeEnd = starts[w+1]
		}
		wg.Add(1)
		go func(w, rangeStart, rangeEnd int) {
			defer wg.Done()
			var local []uint32
			if rangeStart < rangeEnd {
				local = append(local, uint32(rangeStart))
				for i := rangeStart + 1; i < rangeEnd; i++ {
					if groupOf(i) != groupOf(i-1) {
						local = append(local, uint32(i))
					}
				}
			}
			results[w] = local
		}(w, rangeStart, rangeEnd)
	}
	wg.Wait()

	var boundaries []uint32
	for _, r := range results {
		boundaries = append(boundaries, r...)
	}
	boundaries = append(boundaries, uint32(n))
	return boundaries
}
