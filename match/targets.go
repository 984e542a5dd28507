package match

import "github.com/dnsge/diskplot/entry"

// lTargets[parity][localL][m] is the precomputed target residue within
// the next KBC-sized group that an L entry at local offset localL can
// match against, for each of the KExtraBitsPow candidate probes
// (spec.md §4.5). It is built once at package init from the matching
// predicate shared by every table: entries with the same groupL/groupR
// parity probe a different quadratic residue set than the opposite
// parity, which is why the table is indexed by parity at all.
var lTargets [2][entry.KBC][entry.KExtraBitsPow]uint16

func init() {
	for parity := 0; parity < 2; parity++ {
		for i := 0; i < entry.KBC; i++ {
			indJ := i / entry.KC
			for m := 0; m < entry.KExtraBitsPow; m++ {
				cTarget := ((indJ+m)%entry.KB)*entry.KC +
					(((2*m+parity)*(2*m+parity)+i)%entry.KC)
				lTargets[parity][i][m] = uint16(cTarget)
			}
		}
	}
}
