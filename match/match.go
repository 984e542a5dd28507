// Package match implements the within-bucket and cross-bucket matching
// algorithm (spec.md §4.4-§4.6): scanning a sorted bucket's y values
// into KBC-sized groups, then matching consecutive groups against the
// precomputed target table to emit left/right pair candidates.
package match

import (
	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
)

// Match finds every pair between consecutive, adjacent groups over the
// bucket-local, sorted y array. startIndex is the start of the first
// (leftmost) group under consideration; groupBoundaries holds the start
// index of every following group plus one trailing sentinel equal to
// len(y), so groupCount = len(groupBoundaries)-1 adjacent-group
// comparisons are made (this mirrors GroupScan's own boundaries slice:
// for a full-bucket scan, pass startIndex = boundaries[0] and
// groupBoundaries = boundaries[1:]; for the two-group cross-bucket
// check in spec.md §4.6, pass startIndex = 0 and groupBoundaries =
// []uint32{len(L), len(L)+len(R)}).
//
// Pairs are emitted in (iL, j) lexicographic order, i.e.
// deterministically. At most maxPairs are returned; hitting the limit
// produces a *errs.BoundedOverflow rather than a silently truncated
// result (spec.md §4.5, §7 — upstream sizing in config.MaxEntries is
// expected to make this unreachable on well-formed plot IDs).
func Match(table entry.TableID, bucketIdx int, y []uint32, bucket uint32, startIndex int, groupBoundaries []uint32, maxPairs int) ([]entry.Pair, error) {
	pairs := make([]entry.Pair, 0, maxPairs)

	groupCount := len(groupBoundaries) - 1
	if groupCount <= 0 || len(y) == 0 {
		return pairs, nil
	}

	var rMapCounts [entry.KBC]uint16
	var rMapIndices [entry.KBC]uint16

	groupLStart := startIndex
	groupL := entry.GroupOf(entry.Y(bucket, y[groupLStart]))

	for i := 0; i < groupCount; i++ {
		groupRStart := int(groupBoundaries[i])
		groupR := entry.GroupOf(entry.Y(bucket, y[groupRStart]))

		if groupR-groupL == 1 {
			groupREnd := int(groupBoundaries[i+1])
			if groupREnd-groupRStart > entry.MaxGroupSize {
				return pairs, errs.FatalBucket("match.Match", table, bucketIdx,
					&errs.BoundedOverflow{Table: table, Bucket: bucketIdx, MaxPairs: maxPairs, GroupSize: groupREnd - groupRStart})
			}

			parity := int(groupL & 1)
			groupRRangeStart := groupR * entry.KBC

			for b := range rMapCounts {
				rMapCounts[b] = 0
			}
			for iR := groupRStart; iR < groupREnd; iR++ {
				localRY := entry.Y(bucket, y[iR]) - uint64(groupRRangeStart)
				if rMapCounts[localRY] == 0 {
					rMapIndices[localRY] = uint16(iR - groupRStart)
				}
				rMapCounts[localRY]++
			}

			groupLRangeStart := uint64(groupL) * entry.KBC
			for iL := groupLStart; iL < groupRStart; iL++ {
				localL := entry.Y(bucket, y[iL]) - groupLRangeStart

				for m := 0; m < entry.KExtraBitsPow; m++ {
					target := lTargets[parity][localL][m]
					count := rMapCounts[target]
					for j := uint16(0); j < count; j++ {
						iR := groupRStart + int(rMapIndices[target]) + int(j)

						if len(pairs) == maxPairs {
							return pairs, errs.FatalBucket("match.Match", table, bucketIdx,
								&errs.BoundedOverflow{Table: table, Bucket: bucketIdx, MaxPairs: maxPairs, GroupSize: groupREnd - groupRStart})
						}

						p, err := entry.NewPair(uint32(iL), uint32(iR))
						if err != nil {
							return pairs, errs.FatalBucket("match.Match", table, bucketIdx, err)
						}
						pairs = append(pairs, p)
					}
				}
			}
		}

		groupL = groupR
		groupLStart = groupRStart
	}

	return pairs, nil
}

// MatchBucket runs Match over an entire bucket's groups, given the full
// boundaries slice GroupScan produced (group starts plus trailing
// sentinel).
func MatchBucket(table entry.TableID, bucketIdx int, y []uint32, bucket uint32, boundaries []uint32, maxPairs int) ([]entry.Pair, error) {
	if len(boundaries) < 2 {
		return nil, nil
	}
	return Match(table, bucketIdx, y, bucket, int(boundaries[0]), boundaries[1:], maxPairs)
}
