// Package entry defines the value types shared by every stage of the Phase 1
// pipeline: the per-table entry tuple, the bucket-local pair produced by
// matching, and the constants that govern bucketization and grouping.
package entry

import "fmt"

const (
	// MaxK is the largest plot size parameter supported by this
	// implementation.
	MaxK = 50

	// BucketCount is the number of on-disk slices per table.
	BucketCount = 64

	// bucketBits is log2(BucketCount), used to carve the owning bucket
	// index out of a 64-bit Y value.
	bucketBits = 6

	// KB and KC are the domain constants defining the group modulus kBC
	// (KB * KC) used by the group scan and matching rule. These mirror
	// the values used by the reference proof-of-space matching function.
	KB = 119
	KC = 127

	// KBC is the group modulus over Y: a group is a run of entries that
	// share the same value of Y / KBC.
	KBC = KB * KC

	// KExtraBits controls the fan-out of the per-entry match search:
	// each L entry probes KExtraBitsPow = 1<<KExtraBits candidate
	// targets in the R group.
	KExtraBits    = 6
	KExtraBitsPow = 1 << KExtraBits

	// MaxDelta is the largest representable right-delta in a Pair; see
	// invariant 5 in spec.md §3.
	MaxDelta = 0xFFFF

	// MaxGroupSize bounds the number of entries that may fall in a
	// single KBC-sized group. Pathological plot IDs that exceed this are
	// a fatal, not-well-formed-input condition.
	MaxGroupSize = 350
)

// TableID identifies one of the seven tables produced by Phase 1.
type TableID int

const (
	Table1 TableID = iota + 1
	Table2
	Table3
	Table4
	Table5
	Table6
	Table7
)

func (t TableID) String() string {
	if t < Table1 || t > Table7 {
		return fmt.Sprintf("T?(%d)", int(t))
	}
	return fmt.Sprintf("T%d", int(t))
}

// Next returns the table this table's pairs are derived into.
func (t TableID) Next() TableID { return t + 1 }

// BucketOf returns the bucket index that owns the given 32-bit y prefix
// for a plot size parameter k: the high bucketBits bits of y once y is
// shifted to occupy the full k-bit range.
func BucketOf(y uint32, k int) uint32 {
	shift := uint(k - bucketBits)
	return y >> shift
}

// Y reconstructs the full 64-bit value from the owning bucket index and
// the 32-bit in-bucket prefix, per spec.md §3: Y = (bucket << 32) | y.
func Y(bucket uint32, y uint32) uint64 {
	return (uint64(bucket) << 32) | uint64(y)
}

// GroupOf returns the KBC-group index that Y belongs to.
func GroupOf(y uint64) uint64 {
	return y / KBC
}

// Pair is a matched (left, right) pair of bucket-local entry positions.
// Right is stored as a delta so that it always fits in 16 bits per
// invariant 3/5 in spec.md §3.
type Pair struct {
	Left  uint32
	Right uint16
}

// RightIndex returns the absolute bucket-local index of the right entry.
func (p Pair) RightIndex() uint32 {
	return p.Left + uint32(p.Right)
}

// NewPair builds a Pair from absolute left/right indices, returning an
// error if the delta does not fit in the wire format (invariant 5).
func NewPair(left, right uint32) (Pair, error) {
	if right <= left {
		return Pair{}, fmt.Errorf("entry: right index %d must be greater than left index %d", right, left)
	}
	delta := right - left
	if delta > MaxDelta {
		return Pair{}, fmt.Errorf("entry: pair delta %d exceeds max %d (left=%d right=%d)", delta, MaxDelta, left, right)
	}
	return Pair{Left: left, Right: uint16(delta)}, nil
}

// MetaSizes describes the fixed-width metadata carried by a table's
// entries, in bytes. 0 means the table carries no metadata of that kind
// (e.g. T7 has no metaB).
type MetaSizes struct {
	MetaA int
	MetaB int
}

// metaSizesByTable mirrors the reference implementation's per-table
// metadata widths: T1 carries only X (folded into MetaA as 4 bytes),
// intermediate tables carry growing metadata until it collapses again
// approaching T7.
var metaSizesByTable = map[TableID]MetaSizes{
	Table1: {MetaA: 4, MetaB: 0},
	Table2: {MetaA: 8, MetaB: 8},
	Table3: {MetaA: 8, MetaB: 8},
	Table4: {MetaA: 8, MetaB: 8},
	Table5: {MetaA: 8, MetaB: 0},
	Table6: {MetaA: 8, MetaB: 0},
	Table7: {MetaA: 0, MetaB: 0},
}

// MetaSizesFor returns the metadata widths for entries belonging to t.
func MetaSizesFor(t TableID) MetaSizes {
	return metaSizesByTable[t]
}

// OutMetaSizesFor returns the metadata widths of the entries Fx produces
// for t's successor table, i.e. TableMetaOut<t> in spec.md §4.7.
func OutMetaSizesFor(t TableID) MetaSizes {
	return metaSizesByTable[t.Next()]
}
