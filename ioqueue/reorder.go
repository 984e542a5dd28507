package ioqueue

import (
	"container/list"
	"sync"
)

// reorderChunk is one pending out-of-order write.
type reorderChunk struct {
	offset int64
	value  []byte
}

// reorderBuffer reassembles concurrently-produced, offset-tagged byte
// ranges into the in-order stream a single bucket file expects. It is
// adapted from the teacher's orderedwriter package (there: reassembling
// out-of-order HTTP range-download chunks into a non-seekable writer).
// Here it releases concurrently produced chunks of one bucket's output
// in chunk order, so that the byte stream handed on is exactly the
// concatenation of its chunks (invariant 8 in spec.md §8, generalized
// from pair order to byte order). Only its own test constructs one: the
// driver bucketizes and writes each bucket's Fx output in one piece.
type reorderBuffer struct {
	mu      sync.Mutex
	list    *list.List
	flush   func([]byte)
	written int64
}

func newReorderBuffer(flush func([]byte)) *reorderBuffer {
	return &reorderBuffer{list: list.New(), flush: flush}
}

// WriteAt enqueues p at the given logical offset, flushing p (and any
// now-contiguous buffered chunks) through r.flush once offset equals the
// next expected byte.
func (r *reorderBuffer) WriteAt(p []byte, offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.list.Front() == nil && r.written == offset {
		r.flush(p)
		r.written += int64(len(p))
		return
	}

	b := make([]byte, len(p))
	copy(b, p)
	inserted := false
	for e := r.list.Front(); e != nil; e = e.Next() {
		v := e.Value.(*reorderChunk)
		if offset < v.offset {
			r.list.InsertBefore(&reorderChunk{offset: offset, value: b}, e)
			inserted = true
			break
		}
	}
	if !inserted {
		r.list.PushBack(&reorderChunk{offset: offset, value: b})
	}

	var drained []*list.Element
	for e := r.list.Front(); e != nil; e = e.Next() {
		v := e.Value.(*reorderChunk)
		if v.offset != r.written {
			break
		}
		r.flush(v.value)
		r.written += int64(len(v.value))
		drained = append(drained, e)
	}
	for _, e := range drained {
		r.list.Remove(e)
	}
}
