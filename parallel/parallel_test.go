package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"
)

func TestPoolRunEach(t *testing.T) {
	p := New(4)
	var counter int64
	errs := p.RunEach(100, func(i int) error {
		atomic.AddInt64(&counter, 1)
		if i == 42 {
			return fmt.Errorf("boom at %d", i)
		}
		return nil
	})

	if counter != 100 {
		t.Fatalf("expected 100 tasks to run, got %d", counter)
	}
	for i, err := range errs {
		if i == 42 {
			if err == nil {
				t.Fatalf("expected error at index 42")
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
}

func TestPoolUnbounded(t *testing.T) {
	p := New(0)
	errs := p.RunEach(16, func(i int) error { return nil })
	for _, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
