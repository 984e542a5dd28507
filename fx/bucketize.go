package fx

import (
	"encoding/binary"
	"sync"

	"github.com/dnsge/diskplot/entry"
)

// entrySize returns the on-disk width of one bucketized output entry:
// a 4-byte y' followed by its metaA/metaB payload.
func entrySize(metaAWidth, metaBWidth int) int {
	return 4 + metaAWidth + metaBWidth
}

// Bucketize counting-sorts a chunk of Fx results into BucketCount
// contiguous runs using a parallel prefix sum (spec.md §4.7): each
// worker computes local per-bucket counts over its slice of results, a
// global exclusive prefix sum over (bucket) then (worker) fixes each
// worker's starting write offset per bucket, and every worker scatters
// its slice concurrently. It returns one contiguous buffer suitable for
// ioqueue.WriteBuckets plus the per-bucket byte sizes that call expects.
func Bucketize(results []Result, metaAWidth, metaBWidth int, workers int) (buf []byte, sizes []int) {
	size := entrySize(metaAWidth, metaBWidth)
	n := len(results)

	sizes = make([]int, entry.BucketCount)
	if n == 0 {
		return nil, sizes
	}

	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	localCounts := make([][entry.BucketCount]int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start, end := fxChunkBounds(w, chunk, n)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			var counts [entry.BucketCount]int
			for i := start; i < end; i++ {
				counts[results[i].Bucket]++
			}
			localCounts[w] = counts
		}(w, start, end)
	}
	wg.Wait()

	var globalStart [entry.BucketCount]int
	total := 0
	for b := 0; b < entry.BucketCount; b++ {
		globalStart[b] = total
		for w := 0; w < workers; w++ {
			total += localCounts[w][b]
		}
		sizes[b] = 0
		for w := 0; w < workers; w++ {
			sizes[b] += localCounts[w][b]
		}
		sizes[b] *= size
	}

	offsets := make([][entry.BucketCount]int, workers)
	running := globalStart
	for w := 0; w < workers; w++ {
		var o [entry.BucketCount]int
		for b := 0; b < entry.BucketCount; b++ {
			o[b] = running[b]
			running[b] += localCounts[w][b]
		}
		offsets[w] = o
	}

	buf = make([]byte, total*size)
	for w := 0; w < workers; w++ {
		start, end := fxChunkBounds(w, chunk, n)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			o := offsets[w]
			for i := start; i < end; i++ {
				r := results[i]
				pos := o[r.Bucket]
				o[r.Bucket]++
				writeEntry(buf[pos*size:(pos+1)*size], r, metaAWidth, metaBWidth)
			}
		}(w, start, end)
	}
	wg.Wait()

	return buf, sizes
}

func writeEntry(dst []byte, r Result, metaAWidth, metaBWidth int) {
	binary.BigEndian.PutUint32(dst[0:4], r.Y)
	copy(dst[4:4+metaAWidth], r.MetaA)
	copy(dst[4+metaAWidth:4+metaAWidth+metaBWidth], r.MetaB)
}

func fxChunkBounds(w, chunk, n int) (start, end int) {
	start = w * chunk
	end = start + chunk
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}
