package ioqueue

// overflowBuffer accumulates a bucket's pending tail bytes until there is
// a full block-size multiple to hand to the underlying file, satisfying
// the direct-I/O alignment rule in spec.md §3 invariant 5 / §8 invariant
// 9 ("every write to a bucket file except the final one is a multiple of
// the block size"). It tracks three conceptual states informally named
// in spec.md §9's design note: Empty (no pending bytes), Partial(n) (n <
// blockSize pending bytes), and Full is never actually held here since a
// full block is always handed off immediately.
type overflowBuffer struct {
	blockSize int
	pending   []byte
}

func newOverflowBuffer(blockSize int) *overflowBuffer {
	return &overflowBuffer{blockSize: blockSize}
}

// accept appends p to any pending tail and splits the result into a
// block-aligned prefix ready for a direct write, and a new (possibly
// empty) pending tail shorter than blockSize.
func (o *overflowBuffer) accept(p []byte) (full []byte, tail []byte) {
	combined := p
	if len(o.pending) > 0 {
		combined = make([]byte, 0, len(o.pending)+len(p))
		combined = append(combined, o.pending...)
		combined = append(combined, p...)
	}

	n := len(combined)
	alignedLen := (n / o.blockSize) * o.blockSize

	full = combined[:alignedLen]
	rest := combined[alignedLen:]
	o.pending = append(o.pending[:0], rest...)
	return full, o.pending
}

// flushFinal returns and clears whatever tail remains; called once at
// end-of-table when no further bytes are coming for this bucket, at
// which point a short final write is allowed.
func (o *overflowBuffer) flushFinal() []byte {
	tail := o.pending
	o.pending = nil
	return tail
}
