package match

import (
	"testing"

	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
)

func TestStitchAdjacentGroupsEmitMatches(t *testing.T) {
	// Two adjacent groups (g=0, g=1) within the same addressable bucket
	// space: exercises the same matching predicate the cross-bucket path
	// uses, with an explicit (leftGroup, rightGroup) split rather than a
	// single sorted y array (scenario 8b's matching half; bucket
	// indices differing only shifts which 32-bit range y is read from,
	// it does not change the predicate).
	leftY, rightY := buildConstructedMatch(5, 0)

	pairs, err := Stitch(entry.Table1, 5, []uint32{leftY}, []uint32{rightY}, 0, 0, 1000)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].Left != 0 || pairs[0].Right != 0 {
		t.Fatalf("pairs[0] = %+v, want {0, 0}", pairs[0])
	}
}

func TestStitchDifferentBucketsReconstructY(t *testing.T) {
	// leftBucket and rightBucket differ, so Y is reconstructed against
	// each group's own bucket index; here they land in non-adjacent
	// groups, so Stitch must emit zero pairs rather than erroring out
	// (scenario 8c applied across the bucket boundary).
	leftBucket, rightBucket := uint32(1), uint32(2)
	leftGroup := []uint32{0}
	rightGroup := []uint32{uint32(3 * entry.KBC)}

	pairs, err := Stitch(entry.Table1, 2, leftGroup, rightGroup, leftBucket, rightBucket, 1000)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("len(pairs) = %d, want 0 for non-adjacent cross-bucket groups", len(pairs))
	}
}

func TestStitchEmptyGroupEmitsZero(t *testing.T) {
	pairs, err := Stitch(entry.Table1, 0, nil, []uint32{0}, 0, 1, 1000)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if pairs != nil {
		t.Fatalf("pairs = %v, want nil for an empty input group", pairs)
	}
}

func TestStitchOverflowGroupSizeIsFatal(t *testing.T) {
	rightGroup := make([]uint32, entry.MaxGroupSize+1)
	for i := range rightGroup {
		rightGroup[i] = uint32(entry.KBC) + uint32(i)
	}
	leftGroup := []uint32{0}

	_, err := Stitch(entry.Table2, 9, leftGroup, rightGroup, 0, 0, 100000)
	if err == nil {
		t.Fatal("expected an error for a group exceeding MaxGroupSize")
	}
	if !errs.IsBoundedOverflow(err) {
		t.Fatalf("err = %v, want a BoundedOverflow", err)
	}
}
