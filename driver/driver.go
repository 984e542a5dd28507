// Package driver implements the per-table loop described in spec.md
// §4.9: for table 1, generate F1 directly from the ChaCha8 keystream;
// for every later table, load the previous table's sorted-by-bucket
// entries, radix-sort each bucket, scan it into KBC groups, match
// (stitching across the previous bucket boundary when one exists),
// derive the next table's entries via Fx, and persist entries,
// back-pointers and the reverse map through the I/O command queue. It
// is adapted from the teacher's core package, which drove a Job's
// Producer/Worker/object-listing loop across a bounded worker pool in
// much the same shape: a per-item loop with a load stage, a compute
// stage, and a persist stage. Each bucket is loaded with a blocking
// ioqueue ReadFile once the previous bucket is done; the next bucket is
// not prefetched, and no fences gate the stages.
package driver

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dnsge/diskplot/backptr"
	"github.com/dnsge/diskplot/chacha8"
	"github.com/dnsge/diskplot/config"
	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
	"github.com/dnsge/diskplot/fx"
	"github.com/dnsge/diskplot/ioqueue"
	"github.com/dnsge/diskplot/log"
	"github.com/dnsge/diskplot/match"
	"github.com/dnsge/diskplot/radixsort"
	"github.com/dnsge/diskplot/stats"
)

// f1Chunk bounds the number of F1 entries generated and bucketized
// together; it trades peak memory for fewer, larger I/O submissions.
const f1Chunk = 1 << 16

// Driver runs the whole-table pipeline against one config and records
// its progress into a shared Pipeline.
type Driver struct {
	cfg   config.Config
	stats *stats.Pipeline
}

// New builds a Driver for cfg, recording progress into pipeline.
func New(cfg config.Config, pipeline *stats.Pipeline) *Driver {
	return &Driver{cfg: cfg, stats: pipeline}
}

func entriesFileID(t entry.TableID) ioqueue.FileID {
	return ioqueue.FileID(fmt.Sprintf("entries%d", t))
}

func ptrFileID(t entry.TableID) ioqueue.FileID {
	return ioqueue.FileID(fmt.Sprintf("ptr%d", t))
}

func mapFileID(t entry.TableID) ioqueue.FileID {
	return ioqueue.FileID(fmt.Sprintf("map%d", t))
}

// entrySize returns the on-disk width of one table's combined Y/MetaA/
// MetaB record.
func entrySize(t entry.TableID) int {
	m := entry.MetaSizesFor(t)
	return 4 + m.MetaA + m.MetaB
}

// RunTable1 generates table 1 directly from the F1 keystream, bypassing
// the sort/match/Fx stages every later table goes through (spec.md
// §4.9's loop begins at t=2; table 1 is produced by the F1 generator
// described in §4.3).
func (d *Driver) RunTable1(q *ioqueue.Queue) error {
	start := time.Now()
	gen, err := chacha8.New(d.cfg.PlotID)
	if err != nil {
		return errs.Fatal("RunTable1", entry.Table1, err)
	}

	id := entriesFileID(entry.Table1)
	if err := q.InitFileSet(id, "entries1", d.fileSetOptions()); err != nil {
		return errs.Fatal("RunTable1", entry.Table1, err)
	}

	ts := d.stats.Table(entry.Table1)
	total := uint64(1) << uint(d.cfg.K)
	size := entrySize(entry.Table1)

	for base := uint64(0); base < total; base += f1Chunk {
		n := f1Chunk
		if base+uint64(n) > total {
			n = int(total - base)
		}

		ys := gen.F1Block(base, n, d.cfg.K, entry.KExtraBits)
		results := make([]fx.Result, n)
		for i, y := range ys {
			var metaA [4]byte
			binary.BigEndian.PutUint32(metaA[:], uint32(base)+uint32(i))
			results[i] = fx.Result{
				Bucket: entry.BucketOf(y, d.cfg.K),
				Y:      y,
				MetaA:  metaA[:],
			}
		}

		buf, sizes := fx.Bucketize(results, 4, 0, d.cfg.ThreadCount)
		tok, dst := q.GetBuffer(uint64(len(buf)), 1)
		copy(dst, buf)
		q.WriteBuckets(id, dst[:len(buf)], sizes, tok)

		for b, byteSize := range sizes {
			ts.AddEntries(b, uint64(byteSize/size))
		}
	}

	elapsed := time.Since(start)
	d.stats.RecordPhase(entry.Table1, "f1", elapsed)
	log.Info(log.PhaseMessage{Phase: "f1", Table: entry.Table1, Elapsed: elapsed, Entries: ts.EntryCount()})

	if ts.Sum() != total {
		return errs.Fatal("RunTable1", entry.Table1, fmt.Errorf("bucketCounts sum to %d, want %d", ts.Sum(), total))
	}
	return nil
}

func (d *Driver) fileSetOptions() ioqueue.FileSetOptions {
	if d.cfg.DirectIO {
		return ioqueue.DirectIO | ioqueue.BlockAlign
	}
	return ioqueue.None
}

// groupCarry holds one whole KBC-group's y values (and matching
// metadata) carried out of a bucket so a later bucket's head groups can
// be stitched against it.
type groupCarry struct {
	valid  bool
	y      []uint32 // the group's y values, in sorted order
	metaA  [][]byte
	metaB  [][]byte
	offset uint32 // bucket-local index of y[0] within the owning bucket
}

// bucketCarry holds the last two groups of a bucket's sorted y array so
// the next bucket's first two groups can each be stitched against the
// correct one once they are known (spec.md §4.6: the penultimate group
// of bucket b-1 is matched against the first group of bucket b, and the
// last group of bucket b-1 is matched against the second group of
// bucket b; §9: "carry a small plain record between loop iterations
// rather than mutating a shared struct").
type bucketCarry struct {
	bucket      uint32
	penultimate groupCarry
	last        groupCarry
}

// RunTable drives the load → sort → match → Fx → persist loop for table
// t (t must be >= 2), reading table t-1's entries and writing table t's
// entries, back-pointers and reverse map.
func (d *Driver) RunTable(q *ioqueue.Queue, t entry.TableID) error {
	if t < entry.Table2 {
		return errs.Fatal("RunTable", t, fmt.Errorf("RunTable requires t >= Table2, got %s", t))
	}
	start := time.Now()
	prev := t - 1
	prevMeta := entry.MetaSizesFor(prev)
	prevSize := entrySize(prev)
	outMeta := entry.OutMetaSizesFor(prev)

	prevStats := d.stats.Table(prev)
	bounds := cumulativeBounds(prevStats)

	prevID := entriesFileID(prev)
	outID := entriesFileID(t)
	ptrID := ptrFileID(t)
	mapID := mapFileID(t)

	if err := q.InitFileSet(outID, fmt.Sprintf("entries%d", t), d.fileSetOptions()); err != nil {
		return errs.Fatal("RunTable", t, err)
	}
	if err := q.InitFileSet(ptrID, fmt.Sprintf("ptr%d", t), ioqueue.None); err != nil {
		return errs.Fatal("RunTable", t, err)
	}
	if err := q.InitFileSet(mapID, fmt.Sprintf("map%d", t), ioqueue.None); err != nil {
		return errs.Fatal("RunTable", t, err)
	}

	crossLog, err := backptr.NewCrossBucketLog(d.cfg.TempDir)
	if err != nil {
		return errs.Fatal("RunTable", t, err)
	}
	ptrWriter := backptr.NewBackPointerWriter(q, t, ptrID, crossLog)
	mapWriter := backptr.NewForwardMapWriter(q, t, mapID, bounds, d.cfg.ThreadCount)

	ts := d.stats.Table(t)
	var nextIdx [entry.BucketCount]uint64
	var carry bucketCarry

	// Table t-1 was written by appending; rewind its files before reading.
	q.SeekBucket(prevID, 0, ioqueue.SeekStart)

	for b := 0; b < entry.BucketCount; b++ {
		n := int(prevStats.BucketCount(b))
		if n == 0 {
			carry = bucketCarry{}
			continue
		}

		raw := make([]byte, n*prevSize)
		if err := q.ReadFile(prevID, b, raw); err != nil {
			return errs.FatalBucket("RunTable.ReadFile", t, b, err)
		}

		y := make([]uint32, n)
		metaA := make([][]byte, n)
		metaB := make([][]byte, n)
		for i := 0; i < n; i++ {
			rec := raw[i*prevSize : (i+1)*prevSize]
			y[i] = binary.BigEndian.Uint32(rec[0:4])
			if prevMeta.MetaA > 0 {
				metaA[i] = append([]byte(nil), rec[4:4+prevMeta.MetaA]...)
			}
			if prevMeta.MetaB > 0 {
				metaB[i] = append([]byte(nil), rec[4+prevMeta.MetaA:4+prevMeta.MetaA+prevMeta.MetaB]...)
			}
		}

		sortKey := make([]uint32, n)
		for i := range sortKey {
			sortKey[i] = uint32(i)
		}
		radixsort.SortKeys(y, sortKey, d.cfg.ThreadCount)
		metaA = permuteMeta(metaA, sortKey)
		metaB = permuteMeta(metaB, sortKey)

		boundaries := match.GroupScan(y, uint32(b), d.cfg.ThreadCount)
		pairs, err := match.MatchBucket(t, b, y, uint32(b), boundaries, int(config.MaxEntries(d.cfg.K)))
		if err != nil {
			return err
		}

		if len(boundaries) >= 2 {
			firstGroup := y[boundaries[0]:boundaries[1]]
			if err := d.stitchCross(t, q, ptrWriter, mapWriter, &nextIdx, outMeta, bounds, ts, prev,
				carry.penultimate, carry.bucket,
				firstGroup, metaA[boundaries[0]:boundaries[1]], metaB[boundaries[0]:boundaries[1]], uint32(boundaries[0]), uint32(b),
				b); err != nil {
				return err
			}
		}
		if len(boundaries) >= 3 {
			secondGroup := y[boundaries[1]:boundaries[2]]
			if err := d.stitchCross(t, q, ptrWriter, mapWriter, &nextIdx, outMeta, bounds, ts, prev,
				carry.last, carry.bucket,
				secondGroup, metaA[boundaries[1]:boundaries[2]], metaB[boundaries[1]:boundaries[2]], uint32(boundaries[1]), uint32(b),
				b); err != nil {
				return err
			}
		}

		withinLefts := make([]uint64, len(pairs))
		for i, p := range pairs {
			withinLefts[i] = bounds[b] + uint64(p.Left)
		}
		globalPairs := make([]entry.Pair, len(pairs))
		for i, p := range pairs {
			globalRight := bounds[b] + uint64(p.RightIndex())
			gp, err := entry.NewPair(uint32(withinLefts[i]), uint32(globalRight))
			if err != nil {
				return errs.FatalBucket("RunTable.match", t, b, err)
			}
			globalPairs[i] = gp
		}

		results := fx.Compute(prev, d.cfg.K, uint32(b), fx.BucketInput{Y: y, MetaA: metaA, MetaB: metaB}, pairs, d.cfg.ThreadCount)
		if err := d.persist(t, q, ptrWriter, mapWriter, &nextIdx, outMeta, results, withinLefts, globalPairs, b, false); err != nil {
			return err
		}
		if len(pairs) == 0 {
			// persist() no-ops on an empty result set, but any held
			// cross-bucket pairs from this bucket's stitch still need to
			// reach disk before the next bucket starts.
			if err := ptrWriter.WriteBucket(b, nil); err != nil {
				return err
			}
		}

		ts.AddPairs(b, uint64(len(pairs)))

		carry = bucketCarry{bucket: uint32(b)}
		lastStart := int(boundaries[len(boundaries)-2])
		carry.last = groupCarry{
			valid:  true,
			y:      append([]uint32(nil), y[lastStart:]...),
			metaA:  append([][]byte(nil), metaA[lastStart:]...),
			metaB:  append([][]byte(nil), metaB[lastStart:]...),
			offset: uint32(lastStart),
		}
		if len(boundaries) >= 3 {
			penStart := int(boundaries[len(boundaries)-3])
			carry.penultimate = groupCarry{
				valid:  true,
				y:      append([]uint32(nil), y[penStart:lastStart]...),
				metaA:  append([][]byte(nil), metaA[penStart:lastStart]...),
				metaB:  append([][]byte(nil), metaB[penStart:lastStart]...),
				offset: uint32(penStart),
			}
		}
	}

	if err := ptrWriter.Close(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	d.stats.RecordPhase(t, "match+fx", elapsed)
	log.Info(log.PhaseMessage{Phase: "match+fx", Table: t, Elapsed: elapsed, Entries: ts.EntryCount()})
	return nil
}

// stitchCross runs Stitch between one whole group carried out of the
// previous bucket and one group at the head of the current bucket,
// computing Fx results over any matches and persisting the resulting
// pairs (spec.md §4.6). rightOffset is rightGroup's bucket-local start
// index: sp.Right is 0-based relative to rightGroup itself, so it only
// equals a bucket-local index directly when rightGroup is the bucket's
// first group (rightOffset == 0); the second group needs rightOffset
// added back in. left.valid is false when the previous bucket had no
// such group (an empty bucket, or fewer than the groups required), in
// which case this is a no-op: Stitch itself also returns no pairs for
// non-adjacent groups, so calling it unconditionally for both carried
// groups never produces spurious matches.
func (d *Driver) stitchCross(
	t entry.TableID,
	q *ioqueue.Queue,
	ptrWriter *backptr.BackPointerWriter,
	mapWriter *backptr.ForwardMapWriter,
	nextIdx *[entry.BucketCount]uint64,
	outMeta entry.MetaSizes,
	bounds backptr.BucketBoundaries,
	ts *stats.TableStats,
	prev entry.TableID,
	left groupCarry,
	leftBucket uint32,
	rightGroup []uint32,
	rightMetaA, rightMetaB [][]byte,
	rightOffset uint32,
	rightBucket uint32,
	bucketIdx int,
) error {
	if !left.valid || len(rightGroup) == 0 {
		return nil
	}

	stitched, err := match.Stitch(t, bucketIdx, left.y, rightGroup, leftBucket, rightBucket, int(config.MaxEntries(d.cfg.K)))
	if err != nil {
		return err
	}
	if len(stitched) == 0 {
		return nil
	}

	leftIdx := make([]uint32, len(stitched))
	rightIdx := make([]uint32, len(stitched))
	leftGlobal := make([]uint64, len(stitched))
	for i, sp := range stitched {
		leftIdx[i] = sp.Left
		rightIdx[i] = sp.Right
		leftGlobal[i] = bounds[leftBucket] + uint64(left.offset) + uint64(sp.Left)
	}

	results := fx.ComputeCross(prev, d.cfg.K, leftBucket,
		fx.BucketInput{Y: left.y, MetaA: left.metaA, MetaB: left.metaB},
		fx.BucketInput{Y: rightGroup, MetaA: rightMetaA, MetaB: rightMetaB},
		leftIdx, rightIdx, d.cfg.ThreadCount)

	crossPairs := make([]entry.Pair, len(stitched))
	for i, sp := range stitched {
		globalRight := bounds[rightBucket] + uint64(rightOffset) + uint64(sp.Right)
		gp, err := entry.NewPair(uint32(leftGlobal[i]), uint32(globalRight))
		if err != nil {
			return errs.FatalBucket("RunTable.stitch", t, bucketIdx, err)
		}
		crossPairs[i] = gp
	}

	if err := d.persist(t, q, ptrWriter, mapWriter, nextIdx, outMeta, results, leftGlobal, crossPairs, bucketIdx, true); err != nil {
		return err
	}
	ts.AddPairs(int(leftBucket), uint64(len(stitched)))
	return nil
}

// persist assigns each already-computed result a global target index in
// table t, forwards the (targetIdx, sourceIdx) entries to the reverse
// map, and submits the bucketized output write. When stitched is true,
// pairs are held against the back-pointer writer instead of being
// written for bucketIdx directly; a following WriteBucket(bucketIdx,
// nil) flushes them ahead of bucketIdx's own pairs.
func (d *Driver) persist(
	t entry.TableID,
	q *ioqueue.Queue,
	ptrWriter *backptr.BackPointerWriter,
	mapWriter *backptr.ForwardMapWriter,
	nextIdx *[entry.BucketCount]uint64,
	outMeta entry.MetaSizes,
	results []fx.Result,
	leftGlobalIdx []uint64,
	pairs []entry.Pair,
	bucketIdx int,
	stitched bool,
) error {
	if len(results) == 0 {
		return nil
	}

	fwd := make([]backptr.ForwardMapEntry, len(results))
	for i, r := range results {
		target := nextIdx[r.Bucket]
		nextIdx[r.Bucket]++
		fwd[i] = backptr.ForwardMapEntry{SourceIdx: uint32(leftGlobalIdx[i]), TargetIdx: uint32(target)}
	}
	if err := mapWriter.WriteBatch(fwd); err != nil {
		return errs.FatalBucket("RunTable.mapWriter", t, bucketIdx, err)
	}

	buf, sizes := fx.Bucketize(results, outMeta.MetaA, outMeta.MetaB, d.cfg.ThreadCount)
	tok, dst := q.GetBuffer(uint64(len(buf)), 1)
	copy(dst, buf)
	q.WriteBuckets(entriesFileID(t), dst[:len(buf)], sizes, tok)

	ts := d.stats.Table(t)
	for b, n := range sizes {
		ts.AddEntries(b, uint64(n/entrySize(t)))
	}

	if stitched {
		return ptrWriter.HoldCrossBucketPairs(pairs)
	}
	return ptrWriter.WriteBucket(bucketIdx, pairs)
}

// cumulativeBounds builds a backptr.BucketBoundaries from a table's
// already-recorded per-bucket entry counts.
func cumulativeBounds(ts *stats.TableStats) backptr.BucketBoundaries {
	var bounds backptr.BucketBoundaries
	var cum uint64
	for b := 0; b < entry.BucketCount; b++ {
		bounds[b] = cum
		cum += ts.BucketCount(b)
	}
	bounds[entry.BucketCount] = cum
	return bounds
}

func permuteMeta(meta [][]byte, sortKey []uint32) [][]byte {
	if len(meta) == 0 || meta[0] == nil {
		return meta
	}
	out := make([][]byte, len(meta))
	for i, srcIdx := range sortKey {
		out[i] = meta[srcIdx]
	}
	return out
}
