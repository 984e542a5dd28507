// Package fx drives the Fx pipeline described in spec.md §4.7: for each
// matched pair it reconstructs the two absolute Y values, derives the
// next table's (y', metaA', metaB') via blake3x, and bucketizes the
// results into BucketCount sub-bins with a parallel prefix-sum
// counting sort before handing them to the I/O queue.
package fx

import (
	"sync"

	"github.com/dnsge/diskplot/blake3x"
	"github.com/dnsge/diskplot/entry"
)

// BucketInput is one table's sorted bucket contents, as read back from
// disk and already permuted by the bucket's sort key.
type BucketInput struct {
	Y     []uint32
	MetaA [][]byte
	MetaB [][]byte
}

// Result is one computed output entry plus the bucket it belongs to in
// the next table.
type Result struct {
	Bucket uint32
	Y      uint32 // y' truncated to the 32 bits BucketOf/Y expect
	MetaA  []byte
	MetaB  []byte
}

// Compute runs the Fx formula over every pair, reconstructing the left
// side's absolute Y from the owning bucketIdx and the bucket's sorted y
// array (spec.md §4.7: "Reconstruct YL = (bucket<<32) | y[l]"). Work is
// split across workers; the result slice preserves pairs' order so
// callers needing it (the back-pointer writers) can zip results back
// against pairs by index.
func Compute(t entry.TableID, k int, bucketIdx uint32, in BucketInput, pairs []entry.Pair, workers int) []Result {
	if len(pairs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	results := make([]Result, len(pairs))
	chunk := (len(pairs) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start > len(pairs) {
			start = len(pairs)
		}
		if end > len(pairs) {
			end = len(pairs)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				computeOne(t, k, bucketIdx, in, pairs[i], &results[i])
			}
		}(start, end)
	}
	wg.Wait()

	return results
}

func computeOne(t entry.TableID, k int, bucketIdx uint32, in BucketInput, p entry.Pair, out *Result) {
	l, r := p.Left, p.RightIndex()
	yl := entry.Y(bucketIdx, in.Y[l])

	res := blake3x.Compute(t, k, blake3x.Input{
		YL:     yl,
		MetaA:  in.MetaA[l],
		MetaB:  in.MetaB[l],
		MetaA2: in.MetaA[r],
		MetaB2: in.MetaB[r],
	})

	out.Bucket = entry.BucketOf(uint32(res.Y), k)
	out.Y = uint32(res.Y)
	out.MetaA = res.MetaA
	out.MetaB = res.MetaB
}

// ComputeCross is Compute for pairs whose two sides were read from
// different buckets (spec.md §4.6's cross-bucket stitch): leftIdx[i]
// indexes left (owned by leftBucket) and rightIdx[i] indexes right
// (owned by the bucket immediately following it). A shared BucketInput
// can't express this, since the left and right entries never share one
// bucket-local array.
func ComputeCross(t entry.TableID, k int, leftBucket uint32, left, right BucketInput, leftIdx, rightIdx []uint32, workers int) []Result {
	if len(leftIdx) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(leftIdx) {
		workers = len(leftIdx)
	}

	results := make([]Result, len(leftIdx))
	chunk := (len(leftIdx) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start, end := fxChunkBounds(w, chunk, len(leftIdx))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				computeOneCross(t, k, leftBucket, left, right, leftIdx[i], rightIdx[i], &results[i])
			}
		}(start, end)
	}
	wg.Wait()

	return results
}

func computeOneCross(t entry.TableID, k int, leftBucket uint32, left, right BucketInput, l, r uint32, out *Result) {
	yl := entry.Y(leftBucket, left.Y[l])

	res := blake3x.Compute(t, k, blake3x.Input{
		YL:     yl,
		MetaA:  left.MetaA[l],
		MetaB:  left.MetaB[l],
		MetaA2: right.MetaA[r],
		MetaB2: right.MetaB[r],
	})

	out.Bucket = entry.BucketOf(uint32(res.Y), k)
	out.Y = uint32(res.Y)
	out.MetaA = res.MetaA
	out.MetaB = res.MetaB
}
