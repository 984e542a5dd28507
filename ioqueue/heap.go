package ioqueue

import "sync"

// allocation is one live (or recently-released) region of the heap.
// bufferToken is the opaque handle producers hold between GetBuffer and
// ReleaseBuffer; spec.md §3 invariant 6 requires that the region it
// names is not reused until ReleaseBuffer has been executed for it in
// command order.
type allocation struct {
	phys     uint64
	size     uint64
	released bool
}

type bufferToken = *allocation

// Heap is the bounded byte arena backing every command buffer in the
// queue (spec.md §4.1, "Heap"). GetBuffer blocks the caller when there
// is no room, which is the system's primary back-pressure mechanism;
// ReleaseBuffer returns a region to the free pool only once it is safe
// to reuse. Internally it is a ring buffer: the live region is
// [tailPhys, tailPhys+used) modulo capacity, and allocations are
// retired strictly from the oldest end, even if ReleaseBuffer calls
// arrive out of allocation order (the front of the FIFO is popped once
// it is marked released).
type Heap struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	buf      []byte
	capacity uint64

	tailPhys uint64 // physical offset of the oldest live byte
	used     uint64 // number of live bytes, including wasted wrap padding

	outstanding []*allocation

	closed bool
}

// NewHeap allocates a Heap backed by a capacity-byte arena.
func NewHeap(capacity uint64) *Heap {
	h := &Heap{
		buf:      make([]byte, capacity),
		capacity: capacity,
	}
	h.notFull = sync.NewCond(&h.mu)
	return h
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	if rem := v % align; rem != 0 {
		return v + (align - rem)
	}
	return v
}

// GetBuffer returns a size-byte region aligned to align bytes, blocking
// until enough contiguous space is available. It returns a token that
// must be passed to ReleaseBuffer exactly once.
func (h *Heap) GetBuffer(size, align uint64) (bufferToken, []byte) {
	if size > h.capacity {
		panic("ioqueue: requested buffer larger than heap capacity")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if h.closed {
			return nil, nil
		}

		headPhys := (h.tailPhys + h.used) % h.capacity
		aligned := alignUp(headPhys, align)
		padding := aligned - headPhys

		if aligned+size > h.capacity {
			// Would overrun the end of the physical arena: waste the
			// remainder of this lap and retry from offset 0.
			wasted := h.capacity - headPhys
			if h.used+wasted+size <= h.capacity {
				aligned = 0
				padding = wasted
			} else {
				h.notFull.Wait()
				continue
			}
		}

		if h.used+padding+size <= h.capacity {
			h.used += padding + size
			// The allocation owns its leading padding (or wasted wrap
			// bytes) so ReleaseBuffer reclaims them along with it.
			a := &allocation{phys: aligned, size: padding + size}
			h.outstanding = append(h.outstanding, a)
			return a, h.buf[aligned : aligned+size]
		}

		h.notFull.Wait()
	}
}

// ReleaseBuffer marks tok's region free. Space is only actually
// reclaimed once every older outstanding allocation has also been
// released, preserving submission-order semantics even if releases
// arrive out of allocation order.
func (h *Heap) ReleaseBuffer(tok bufferToken) {
	if tok == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	tok.released = true
	for len(h.outstanding) > 0 && h.outstanding[0].released {
		freed := h.outstanding[0]
		h.outstanding = h.outstanding[1:]
		h.tailPhys = (h.tailPhys + freed.size) % h.capacity
		h.used -= freed.size
	}
	h.notFull.Broadcast()
}

// Close unblocks any GetBuffer waiters with a nil result; used during
// shutdown after a fatal error.
func (h *Heap) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.notFull.Broadcast()
}

// Free returns the number of bytes currently available without
// blocking, for observability/metrics.
func (h *Heap) Free() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.capacity - h.used
}
