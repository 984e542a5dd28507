package blake3x

import (
	"testing"

	"github.com/dnsge/diskplot/entry"
)

func TestComputeDeterministic(t *testing.T) {
	in := Input{
		YL:     12345,
		MetaA:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		MetaB:  []byte{8, 7, 6, 5, 4, 3, 2, 1},
		MetaA2: []byte{9, 9, 9, 9, 9, 9, 9, 9},
		MetaB2: []byte{0, 0, 0, 0, 0, 0, 0, 0},
	}

	a := Compute(entry.Table2, 18, in)
	b := Compute(entry.Table2, 18, in)

	if a.Y != b.Y {
		t.Fatalf("Y not deterministic: %d != %d", a.Y, b.Y)
	}
	if string(a.MetaA) != string(b.MetaA) || string(a.MetaB) != string(b.MetaB) {
		t.Fatal("metadata not deterministic")
	}
}

func TestComputeRespectsOutputWidths(t *testing.T) {
	in := Input{YL: 1, MetaA: make([]byte, 4)}
	out := Compute(entry.Table1, 20, in)

	want := entry.OutMetaSizesFor(entry.Table1)
	if len(out.MetaA) != want.MetaA || len(out.MetaB) != want.MetaB {
		t.Fatalf("MetaA/MetaB widths = %d/%d, want %d/%d", len(out.MetaA), len(out.MetaB), want.MetaA, want.MetaB)
	}
}

func TestComputeYFitsWithinBits(t *testing.T) {
	k := 20
	in := Input{YL: 999, MetaA: make([]byte, 8), MetaB: make([]byte, 8), MetaA2: make([]byte, 8), MetaB2: make([]byte, 8)}
	out := Compute(entry.Table2, k, in)

	maxY := uint64(1)<<uint(k+entry.KExtraBits) - 1
	if out.Y > maxY {
		t.Fatalf("Y = %d exceeds %d-bit range (max %d)", out.Y, k+entry.KExtraBits, maxY)
	}
}

func TestComputeDiffersByInput(t *testing.T) {
	base := Input{YL: 1, MetaA: make([]byte, 8), MetaB: make([]byte, 8), MetaA2: make([]byte, 8), MetaB2: make([]byte, 8)}
	variant := base
	variant.YL = 2

	a := Compute(entry.Table2, 20, base)
	b := Compute(entry.Table2, 20, variant)
	if a.Y == b.Y && string(a.MetaA) == string(b.MetaA) {
		t.Fatal("different YL inputs produced identical output")
	}
}
