package match

import (
	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
)

// StitchedPair is a cross-bucket match, carrying indices relative to
// the start of leftGroup (Left) and rightGroup (Right); the caller adds
// each group's offset within its bucket and applies the offset
// remapping described in spec.md §4.6.
type StitchedPair struct {
	Left  uint32 // index into leftGroup
	Right uint32 // index into rightGroup
}

// Stitch attempts the cross-bucket match between one group at the tail
// of bucket leftBucket (leftGroup) and one group at the head of bucket
// rightBucket (rightGroup), per spec.md §4.6. leftGroup and rightGroup
// must each already be known to be single, whole KBC-groups; Stitch
// only verifies they are adjacent (gR - gL == 1), not that either is
// internally homogeneous.
//
// This does not reuse Match's single-bucket loop: the two groups come
// from different buckets, so their absolute Y values must each be
// reconstructed against their own bucket index rather than a shared
// one, which is simpler to do directly than to contort a merged y array
// back into Match's single-bucket-parameter shape.
func Stitch(table entry.TableID, bucketIdx int, leftGroup, rightGroup []uint32, leftBucket, rightBucket uint32, maxPairs int) ([]StitchedPair, error) {
	if len(leftGroup) == 0 || len(rightGroup) == 0 {
		return nil, nil
	}

	groupL := entry.GroupOf(entry.Y(leftBucket, leftGroup[0]))
	groupR := entry.GroupOf(entry.Y(rightBucket, rightGroup[0]))
	if groupR-groupL != 1 {
		return nil, nil
	}
	if len(rightGroup) > entry.MaxGroupSize {
		return nil, errs.FatalBucket("match.Stitch", table, bucketIdx,
			&errs.BoundedOverflow{Table: table, Bucket: bucketIdx, MaxPairs: maxPairs, GroupSize: len(rightGroup)})
	}

	parity := int(groupL & 1)
	groupRRangeStart := groupR * entry.KBC
	groupLRangeStart := groupL * entry.KBC

	var rMapCounts [entry.KBC]uint16
	var rMapIndices [entry.KBC]uint16
	for iR, yr := range rightGroup {
		localRY := entry.Y(rightBucket, yr) - uint64(groupRRangeStart)
		if rMapCounts[localRY] == 0 {
			rMapIndices[localRY] = uint16(iR)
		}
		rMapCounts[localRY]++
	}

	var pairs []StitchedPair
	for iL, yl := range leftGroup {
		localL := entry.Y(leftBucket, yl) - groupLRangeStart

		for m := 0; m < entry.KExtraBitsPow; m++ {
			target := lTargets[parity][localL][m]
			count := rMapCounts[target]
			for j := uint16(0); j < count; j++ {
				iR := int(rMapIndices[target]) + int(j)
				pairs = append(pairs, StitchedPair{Left: uint32(iL), Right: uint32(iR)})
				if len(pairs) == maxPairs {
					return pairs, errs.FatalBucket("match.Stitch", table, bucketIdx,
						&errs.BoundedOverflow{Table: table, Bucket: bucketIdx, MaxPairs: maxPairs, GroupSize: len(rightGroup)})
				}
			}
		}
	}

	return pairs, nil
}
