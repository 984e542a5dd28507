package match

import (
	"math/rand"
	"testing"

	"github.com/dnsge/diskplot/entry"
)

func groupOfIdx(y []uint32, bucket uint32, i int) uint64 {
	return entry.GroupOf(entry.Y(bucket, y[i]))
}

func TestGroupScanFindsEveryBoundary(t *testing.T) {
	bucket := uint32(3)
	n := 5000
	y := make([]uint32, n)
	v := uint32(0)
	for i := range y {
		y[i] = v
		if rand.Intn(4) == 0 {
			v += uint32(entry.KBC)
		} else {
			v++
		}
	}

	for _, workers := range []int{1, 2, 7, 16} {
		boundaries := GroupScan(y, bucket, workers)

		if boundaries[len(boundaries)-1] != uint32(n) {
			t.Fatalf("workers=%d: sentinel = %d, want %d", workers, boundaries[len(boundaries)-1], n)
		}
		if boundaries[0] != 0 {
			t.Fatalf("workers=%d: first boundary = %d, want 0", workers, boundaries[0])
		}

		var want []uint32
		want = append(want, 0)
		for i := 1; i < n; i++ {
			if groupOfIdx(y, bucket, i) != groupOfIdx(y, bucket, i-1) {
				want = append(want, uint32(i))
			}
		}
		want = append(want, uint32(n))

		if len(boundaries) != len(want) {
			t.Fatalf("workers=%d: len(boundaries) = %d, want %d", workers, len(boundaries), len(want))
		}
		for i := range want {
			if boundaries[i] != want[i] {
				t.Fatalf("workers=%d: boundaries[%d] = %d, want %d", workers, i, boundaries[i], want[i])
			}
		}
	}
}

func TestGroupScanEmptyInput(t *testing.T) {
	b := GroupScan(nil, 0, 4)
	if len(b) != 1 || b[0] != 0 {
		t.Fatalf("GroupScan(nil) = %v, want [0]", b)
	}
}
