package ioqueue

import (
	"sync"
	"testing"
	"time"
)

func TestHeapGetReleaseRoundTrip(t *testing.T) {
	h := NewHeap(1024)

	tok, buf := h.GetBuffer(256, 8)
	if len(buf) != 256 {
		t.Fatalf("len(buf) = %d, want 256", len(buf))
	}
	if got := h.Free(); got != 1024-256 {
		t.Fatalf("Free() = %d, want %d", got, 1024-256)
	}

	h.ReleaseBuffer(tok)
	if got := h.Free(); got != 1024 {
		t.Fatalf("Free() after release = %d, want 1024", got)
	}
}

func TestHeapOutOfOrderRelease(t *testing.T) {
	h := NewHeap(300)

	a, _ := h.GetBuffer(100, 1)
	b, _ := h.GetBuffer(100, 1)
	c, _ := h.GetBuffer(100, 1)

	// release the middle and last allocation first; space must not be
	// reclaimed until the oldest (a) is released too.
	h.ReleaseBuffer(b)
	h.ReleaseBuffer(c)
	if got := h.Free(); got != 0 {
		t.Fatalf("Free() = %d, want 0 before oldest allocation is released", got)
	}

	h.ReleaseBuffer(a)
	if got := h.Free(); got != 300 {
		t.Fatalf("Free() = %d, want 300 once the whole FIFO has drained", got)
	}
}

func TestHeapGetBufferBlocksUntilSpace(t *testing.T) {
	h := NewHeap(100)

	tok, _ := h.GetBuffer(100, 1)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.GetBuffer(50, 1)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("GetBuffer returned before space was freed")
	case <-time.After(20 * time.Millisecond):
	}

	h.ReleaseBuffer(tok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("GetBuffer never returned after space was freed")
	}
	wg.Wait()
}

func TestHeapGetBufferLargerThanCapacityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected GetBuffer to panic for an oversized request")
		}
	}()
	h := NewHeap(64)
	h.GetBuffer(128, 1)
}
