// Package blake3x implements the table-specific Fx compression function
// (spec.md §4.7, §6 "BLAKE3: used as the Fx compression function"): it
// folds a matched pair's Y value and metadata into the next table's
// `(y', metaA', metaB')` triple.
package blake3x

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"github.com/dnsge/diskplot/entry"
)

// Input is the matched-pair material Fx consumes for one pair, already
// reconstructed to absolute Y values per spec.md §4.7.
type Input struct {
	YL           uint64
	MetaA, MetaB []byte // left entry's metadata
	MetaA2       []byte // right entry's metadata
	MetaB2       []byte
}

// Output is the next table's derived entry fields.
type Output struct {
	Y            uint64
	MetaA, MetaB []byte
}

// Compute derives Output for table t (the table being read; the result
// feeds table t.Next()) at plot size k.
func Compute(t entry.TableID, k int, in Input) Output {
	out := entry.OutMetaSizesFor(t)

	h := blake3.New(32+out.MetaA+out.MetaB, nil)

	var ybuf [8]byte
	binary.BigEndian.PutUint64(ybuf[:], in.YL)
	h.Write(ybuf[:])
	h.Write(in.MetaA)
	h.Write(in.MetaB)
	h.Write(in.MetaA2)
	h.Write(in.MetaB2)

	digest := h.Sum(nil)

	yBits := k + entry.KExtraBits
	yBytes := (yBits + 7) / 8
	yRaw := make([]byte, 8)
	copy(yRaw[8-yBytes:], digest[:yBytes])
	y := binary.BigEndian.Uint64(yRaw)
	if rem := uint(yBits % 8); rem != 0 {
		y >>= 8 - rem
	}
	mask := uint64(1)<<uint(yBits) - 1
	y &= mask

	rest := digest[yBytes:]
	metaA := append([]byte(nil), rest[:out.MetaA]...)
	metaB := append([]byte(nil), rest[out.MetaA:out.MetaA+out.MetaB]...)

	return Output{Y: y, MetaA: metaA, MetaB: metaB}
}
