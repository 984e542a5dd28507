// Package radixsort implements the bucket-local sort stage of the
// per-table driver: a parallel, LSB-first, byte-wise radix sort over
// 32-bit y keys that lifts a companion sort-key array along with it
// (spec.md §4.2). It is grounded on the same partitioned
// counting-sort-then-parallel-prefix-sum shape the Fx pipeline's
// bucketizer uses (§4.7), applied here to whole-bucket sorting instead
// of per-chunk scatter, and on the chunked, sectioned scratch-file
// lineage of github.com/lanrat/extsort (the external-sort library this
// was adapted from).
package radixsort

import (
	"sync"
)

const (
	radix  = 256
	passes = 4 // one byte at a time across a uint32 key
)

// SortKeys performs a stable ascending sort of keys, permuting sortKey
// (typically origin indices, e.g. the lookup index Fx's caller lifts
// alongside y) in lockstep. workers bounds the fan-out of each pass's
// histogram/scatter stage; it is not a thread pool borrowed from
// elsewhere because each pass needs its own short-lived barrier between
// the histogram and scatter phases.
//
// Stability comes from the byte-wise radix passes themselves: each pass
// is a stable counting sort, so elements with equal keys keep their
// input order, and sortKey records each element's true origin
// explicitly.
func SortKeys(keys []uint32, sortKey []uint32, workers int) {
	n := len(keys)
	if n == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	srcK, dstK := keys, make([]uint32, n)
	srcS, dstS := sortKey, make([]uint32, n)

	for pass := 0; pass < passes; pass++ {
		shift := uint(pass * 8)
		sortPass(srcK, srcS, dstK, dstS, shift, workers)
		srcK, dstK = dstK, srcK
		srcS, dstS = dstS, srcS
	}

	// passes is even, so srcK/srcS already point at the original
	// backing arrays after the last swap; copy only if they don't.
	if &srcK[0] != &keys[0] {
		copy(keys, srcK)
		copy(sortKey, srcS)
	}
}

// sortPass performs one counting-sort pass keyed by byte (key>>shift)&0xFF,
// partitioning [0,n) into `workers` contiguous chunks that each compute a
// local histogram, then scattering every chunk concurrently once a
// global prefix sum over (chunk, bin) fixes each chunk's starting offset
// per bin.
func sortPass(srcK, srcS, dstK, dstS []uint32, shift uint, workers int) {
	n := len(srcK)
	chunkSize := (n + workers - 1) / workers

	localCounts := make([][radix]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start, end := chunkBounds(w, chunkSize, n)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			var counts [radix]int
			for i := start; i < end; i++ {
				b := byte(srcK[i] >> shift)
				counts[b]++
			}
			localCounts[w] = counts
		}(w, start, end)
	}
	wg.Wait()

	// offsets[w][b] = position the w'th chunk's b'th bin starts writing at.
	var globalBinStart [radix]int
	total := 0
	for b := 0; b < radix; b++ {
		globalBinStart[b] = total
		for w := 0; w < workers; w++ {
			total += localCounts[w][b]
		}
	}

	offsets := make([][radix]int, workers)
	var running [radix]int
	running = globalBinStart
	for w := 0; w < workers; w++ {
		var o [radix]int
		for b := 0; b < radix; b++ {
			o[b] = running[b]
			running[b] += localCounts[w][b]
		}
		offsets[w] = o
	}

	for w := 0; w < workers; w++ {
		start, end := chunkBounds(w, chunkSize, n)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			o := offsets[w]
			for i := start; i < end; i++ {
				b := byte(srcK[i] >> shift)
				pos := o[b]
				o[b]++
				dstK[pos] = srcK[i]
				dstS[pos] = srcS[i]
			}
		}(w, start, end)
	}
	wg.Wait()
}

func chunkBounds(w, chunkSize, n int) (start, end int) {
	start = w * chunkSize
	end = start + chunkSize
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}

// Permute rearranges a buffer of fixed-width elements according to
// perm, where perm[i] is the index into src that output position i
// should take, matching the semantics of `Sort<T>(key, in, out)` in
// spec.md §4.2: metadata is re-keyed by a permutation already computed
// over y, not re-sorted from scratch.
func Permute(perm []uint32, elemSize int, src []byte) []byte {
	out := make([]byte, len(src))
	for i, srcIdx := range perm {
		copy(out[i*elemSize:(i+1)*elemSize], src[int(srcIdx)*elemSize:(int(srcIdx)+1)*elemSize])
	}
	return out
}
