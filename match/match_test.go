package match

import (
	"testing"

	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
)

func TestMatchEmptyRightGroupEmitsZero(t *testing.T) {
	// A single group with no adjacent successor: boundaries holds just
	// the sentinel, so groupCount collapses to zero (scenario 8a).
	y := []uint32{0, 1, 2}
	boundaries := []uint32{uint32(len(y))}

	pairs, err := Match(entry.Table1, 0, y, 0, 0, boundaries, 1000)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("len(pairs) = %d, want 0", len(pairs))
	}
}

func TestMatchNonAdjacentGroupsEmitZero(t *testing.T) {
	// groupL = 0, groupR = 2 (gR - gL == 2): must emit exactly zero
	// pairs (scenario 8c).
	bucket := uint32(0)
	y := []uint32{
		0,                  // group 0
		uint32(2 * entry.KBC), // group 2
	}
	boundaries := []uint32{1, 2}

	pairs, err := Match(entry.Table1, 0, y, bucket, 0, boundaries, 1000)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("len(pairs) = %d, want 0 for non-adjacent groups", len(pairs))
	}
}

// buildConstructedMatch returns a (left y, right y) pair in adjacent
// groups 0 and 1 guaranteed to satisfy the matching predicate at probe
// index m, by reading the answer directly out of the precomputed target
// table.
func buildConstructedMatch(localL uint16, m int) (leftY, rightY uint32) {
	parity := 0 // group 0 is even
	target := lTargets[parity][localL][m]
	return uint32(localL), uint32(entry.KBC) + uint32(target)
}

func TestMatchFindsConstructedPair(t *testing.T) {
	leftY, rightY := buildConstructedMatch(5, 0)
	y := []uint32{leftY, rightY}
	boundaries := []uint32{1, 2}

	pairs, err := Match(entry.Table1, 0, y, 0, 0, boundaries, 1000)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].Left != 0 || pairs[0].RightIndex() != 1 {
		t.Fatalf("pairs[0] = %+v, want Left=0 RightIndex=1", pairs[0])
	}
}

func TestMatchBoundedOverflowReturnsTypedError(t *testing.T) {
	leftY, rightY := buildConstructedMatch(5, 0)
	y := []uint32{leftY, rightY}
	boundaries := []uint32{1, 2}

	_, err := Match(entry.Table3, 7, y, 0, 0, boundaries, 0)
	if err == nil {
		t.Fatal("expected a BoundedOverflow error with maxPairs=0")
	}
	if !errs.IsBoundedOverflow(err) {
		t.Fatalf("err = %v, want errs.IsBoundedOverflow(err) == true", err)
	}
}

func TestMatchBucketConcatenatesGroupScanOutput(t *testing.T) {
	leftY, rightY := buildConstructedMatch(5, 0)
	y := []uint32{leftY, rightY}

	boundaries := GroupScan(y, 0, 1)
	pairs, err := MatchBucket(entry.Table1, 0, y, 0, boundaries, 1000)
	if err != nil {
		t.Fatalf("MatchBucket: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
}
