// Package backptr implements the reverse-map and back-pointer writers of
// spec.md §4.8. The forward-map writer scatters (targetIdx, sourceIdx)
// pairs into BucketCount sub-bins by the bucket owning sourceIdx's
// absolute position, using the same parallel prefix-sum counting sort as
// fx.Bucketize. The back-pointer writer persists (left, right) pairs
// sequentially per bucket; pairs stitched across a bucket boundary are
// held and written into the following bucket's file ahead of that
// bucket's own pairs, so the on-disk stream stays monotone in left index.
package backptr

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/lanrat/extsort/tempfile"

	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
	"github.com/dnsge/diskplot/ioqueue"
)

// ForwardMapEntry associates a target-table index with the source index
// that produced it.
type ForwardMapEntry struct {
	SourceIdx uint32
	TargetIdx uint32
}

const forwardEntrySize = 8

// BucketBoundaries delimits the absolute index ranges owned by each
// bucket of a table: boundaries[b] is the first absolute index
// belonging to bucket b, and boundaries[BucketCount] is the table's
// total entry count. The driver derives these from the per-bucket sizes
// fx.Bucketize already computed for the preceding stage.
type BucketBoundaries [entry.BucketCount + 1]uint64

// Locate returns the bucket owning absolute index idx via binary search
// over the cumulative boundaries.
func (b BucketBoundaries) Locate(idx uint64) uint32 {
	lo, hi := 0, entry.BucketCount
	for lo < hi {
		mid := (lo + hi) / 2
		if b[mid+1] <= idx {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return uint32(lo)
}

// ForwardMapWriter scatters forward-map entries across a FileSet by the
// bucket owning each entry's SourceIdx.
type ForwardMapWriter struct {
	q       *ioqueue.Queue
	table   entry.TableID
	fileID  ioqueue.FileID
	bounds  BucketBoundaries
	workers int
}

// NewForwardMapWriter builds a writer that submits scatter writes to q
// against fileID, keyed by bounds.
func NewForwardMapWriter(q *ioqueue.Queue, table entry.TableID, fileID ioqueue.FileID, bounds BucketBoundaries, workers int) *ForwardMapWriter {
	if workers < 1 {
		workers = 1
	}
	return &ForwardMapWriter{q: q, table: table, fileID: fileID, bounds: bounds, workers: workers}
}

// WriteBatch bucketizes entries by the bucket owning each SourceIdx and
// submits one scatter write to the I/O queue.
func (w *ForwardMapWriter) WriteBatch(entries []ForwardMapEntry) error {
	if len(entries) == 0 {
		return nil
	}
	buf, sizes := bucketizeForward(entries, w.bounds, w.workers)
	tok, dst := w.q.GetBuffer(uint64(len(buf)), 1)
	copy(dst, buf)
	w.q.WriteBuckets(w.fileID, dst[:len(buf)], sizes, tok)
	return nil
}

// bucketizeForward counting-sorts entries into BucketCount contiguous
// runs with a parallel prefix sum, mirroring fx.Bucketize's shape: each
// worker tallies a local histogram over its slice, a global exclusive
// prefix sum fixes per-worker write offsets, then workers scatter
// concurrently into non-overlapping regions of one buffer.
func bucketizeForward(entries []ForwardMapEntry, bounds BucketBoundaries, workers int) (buf []byte, sizes []int) {
	n := len(entries)
	sizes = make([]int, entry.BucketCount)
	if n == 0 {
		return nil, sizes
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	bucketOf := make([]uint32, n)
	localCounts := make([][entry.BucketCount]int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start, end := chunkBounds(w, chunk, n)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			var counts [entry.BucketCount]int
			for i := start; i < end; i++ {
				b := bounds.Locate(uint64(entries[i].SourceIdx))
				bucketOf[i] = b
				counts[b]++
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
		for w := 0; w < workers; w++ {
			sizes[b] += localCounts[w][b]
		}
		sizes[b] *= forwardEntrySize
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

	buf = make([]byte, total*forwardEntrySize)
	for w := 0; w < workers; w++ {
		start, end := chunkBounds(w, chunk, n)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			o := offsets[w]
			for i := start; i < end; i++ {
				b := bucketOf[i]
				pos := o[b]
				o[b]++
				dst := buf[pos*forwardEntrySize : (pos+1)*forwardEntrySize]
				binary.BigEndian.PutUint32(dst[0:4], entries[i].TargetIdx)
				binary.BigEndian.PutUint32(dst[4:8], entries[i].SourceIdx)
			}
		}(w, start, end)
	}
	wg.Wait()

	return buf, sizes
}

func chunkBounds(w, chunk, n int) (start, end int) {
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

// CrossBucketLog records each bucket's held cross-bucket pair batch into
// a tempfile-backed section as BackPointerWriter produces it, then
// replays every section back at Verify to confirm the recorded counts
// match what was actually held. It is grounded on
// extsort/tempfile.FileWriter's section model: each Next() call seals
// one bucket's batch as a section, and Save() is called exactly once,
// at the end of the table, to get a TempReader back.
type CrossBucketLog struct {
	w      tempfile.TempWriter
	counts []int
}

// NewCrossBucketLog opens a tempfile-backed log rooted at dir.
func NewCrossBucketLog(dir string) (*CrossBucketLog, error) {
	w, err := tempfile.New(dir)
	if err != nil {
		return nil, fmt.Errorf("backptr: open cross-bucket log: %w", err)
	}
	return &CrossBucketLog{w: w}, nil
}

// Record appends pairs as the current section and seals it.
func (l *CrossBucketLog) Record(pairs []entry.Pair) error {
	for _, p := range pairs {
		var rec [6]byte
		binary.BigEndian.PutUint32(rec[0:4], p.Left)
		binary.BigEndian.PutUint16(rec[4:6], p.Right)
		if _, err := l.w.Write(rec[:]); err != nil {
			return fmt.Errorf("backptr: write cross-bucket log: %w", err)
		}
	}
	if _, err := l.w.Next(); err != nil {
		return fmt.Errorf("backptr: seal cross-bucket log section: %w", err)
	}
	l.counts = append(l.counts, len(pairs))
	return nil
}

// Verify saves the log, replays every section, and confirms each
// section's pair count matches what Record recorded for it.
func (l *CrossBucketLog) Verify() error {
	if l.w == nil {
		return nil
	}
	r, err := l.w.Save()
	if err != nil {
		return fmt.Errorf("backptr: save cross-bucket log: %w", err)
	}
	defer r.Close()

	if r.Size() != len(l.counts) {
		return fmt.Errorf("backptr: cross-bucket log has %d sections, want %d", r.Size(), len(l.counts))
	}
	for i, want := range l.counts {
		br := r.Read(i)
		got := 0
		for {
			var rec [6]byte
			if _, err := io.ReadFull(br, rec[:]); err != nil {
				break
			}
			got++
		}
		if got != want {
			return fmt.Errorf("backptr: cross-bucket log section %d holds %d pairs, recorded %d", i, got, want)
		}
	}
	return nil
}

// BackPointerWriter persists (left, right) pairs for one table's back
// pointers sequentially per bucket. Pairs stitched across a bucket
// boundary belong, on disk, at the head of the bucket that owns their
// right side; HoldCrossBucketPairs stashes them until the caller
// advances to that bucket so the stream stays monotone in left index.
type BackPointerWriter struct {
	q      *ioqueue.Queue
	table  entry.TableID
	fileID ioqueue.FileID
	log    *CrossBucketLog
	held   []entry.Pair
}

// NewBackPointerWriter builds a writer submitting to q against fileID.
// log may be nil to skip cross-bucket count verification.
func NewBackPointerWriter(q *ioqueue.Queue, table entry.TableID, fileID ioqueue.FileID, log *CrossBucketLog) *BackPointerWriter {
	return &BackPointerWriter{q: q, table: table, fileID: fileID, log: log}
}

// WriteBucket appends bucketPairs for bucketIdx, prefixed by any
// cross-bucket pairs held over from the previous bucket's stitching
// pass.
func (w *BackPointerWriter) WriteBucket(bucketIdx int, bucketPairs []entry.Pair) error {
	all := bucketPairs
	if len(w.held) > 0 {
		all = make([]entry.Pair, 0, len(w.held)+len(bucketPairs))
		all = append(all, w.held...)
		all = append(all, bucketPairs...)
		w.held = nil
	}
	if len(all) == 0 {
		return nil
	}

	buf := encodePairs(all)
	tok, dst := w.q.GetBuffer(uint64(len(buf)), 1)
	copy(dst, buf)
	w.q.WriteFile(w.fileID, bucketIdx, dst[:len(buf)], tok)
	return nil
}

// HoldCrossBucketPairs stashes pairs stitched across a bucket boundary
// so the next WriteBucket call writes them ahead of that bucket's own
// pairs, and records the batch in the cross-bucket log.
func (w *BackPointerWriter) HoldCrossBucketPairs(pairs []entry.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	w.held = append(w.held, pairs...)
	if w.log != nil {
		return w.log.Record(pairs)
	}
	return nil
}

// Close verifies no held pairs were left unflushed and, if a
// CrossBucketLog was supplied, that its recorded counts check out.
func (w *BackPointerWriter) Close() error {
	if len(w.held) > 0 {
		return errs.Fatal("BackPointerWriter.Close", w.table,
			fmt.Errorf("%d cross-bucket pairs were never flushed to a following bucket", len(w.held)))
	}
	if w.log != nil {
		if err := w.log.Verify(); err != nil {
			return errs.Fatal("BackPointerWriter.Close", w.table, err)
		}
	}
	return nil
}

func encodePairs(pairs []entry.Pair) []byte {
	buf := make([]byte, len(pairs)*6)
	for i, p := range pairs {
		binary.BigEndian.PutUint32(buf[i*6:i*6+4], p.Left)
		binary.BigEndian.PutUint16(buf[i*6+4:i*6+6], p.Right)
	}
	return buf
}
