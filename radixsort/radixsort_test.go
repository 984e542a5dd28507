package radixsort

import (
	"math/rand"
	"sort"
	"testing"
)

func TestSortKeysOrdersAscending(t *testing.T) {
	n := 10000
	keys := make([]uint32, n)
	sortKey := make([]uint32, n)
	for i := range keys {
		keys[i] = uint32(rand.Intn(1 << 24))
		sortKey[i] = uint32(i)
	}

	want := append([]uint32(nil), keys...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	SortKeys(keys, sortKey, 8)

	for i := 1; i < n; i++ {
		if keys[i] < keys[i-1] {
			t.Fatalf("not sorted at %d: %d < %d", i, keys[i], keys[i-1])
		}
	}
	for i := range keys {
		if keys[i] != want[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, keys[i], want[i])
		}
	}
}

func TestSortKeysLiftsCompanionArray(t *testing.T) {
	keys := []uint32{5, 1, 4, 2, 3}
	sortKey := []uint32{0, 1, 2, 3, 4}

	SortKeys(keys, sortKey, 2)

	for i := 1; i < len(keys); i++ {
		if keys[i] < keys[i-1] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}

	orig := []uint32{5, 1, 4, 2, 3}
	for i, origIdx := range sortKey {
		if orig[origIdx] != keys[i] {
			t.Fatalf("sortKey[%d]=%d does not point at the entry that landed there: orig=%d keys=%d", i, origIdx, orig[origIdx], keys[i])
		}
	}
}

func TestSortKeysSingleWorker(t *testing.T) {
	keys := []uint32{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	sortKey := make([]uint32, len(keys))
	for i := range sortKey {
		sortKey[i] = uint32(i)
	}
	SortKeys(keys, sortKey, 1)
	for i := 1; i < len(keys); i++ {
		if keys[i] < keys[i-1] {
			t.Fatalf("not sorted with a single worker: %v", keys)
		}
	}
}

func TestSortKeysEmpty(t *testing.T) {
	var keys, sortKey []uint32
	SortKeys(keys, sortKey, 4) // must not panic
}

func TestPermuteReordersFixedWidthElements(t *testing.T) {
	src := []byte{
		'a', 'a', // element 0
		'b', 'b', // element 1
		'c', 'c', // element 2
	}
	perm := []uint32{2, 0, 1}

	out := Permute(perm, 2, src)
	want := []byte{'c', 'c', 'a', 'a', 'b', 'b'}
	if string(out) != string(want) {
		t.Fatalf("Permute() = %v, want %v", out, want)
	}
}
