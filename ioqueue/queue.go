// Package ioqueue implements the disk-backed I/O command queue: a
// single producer (the table driver) hands off write/read/seek/delete
// work as opaque commands, a dedicated I/O thread executes them in
// submission order against a bounded heap of reusable buffers, and a
// separate deleter thread retires files that are no longer needed
// without blocking the main command stream (spec.md §4.1).
package ioqueue

import (
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/errs"
)

// Queue is the single-producer/single-consumer command queue described
// in spec.md §4.1. Commands are dispatched strictly in submission order
// by one goroutine; a second goroutine retires deleted files so a slow
// unlink never stalls the write path.
type Queue struct {
	dir       string
	dir2      string
	blockSize int
	table     entry.TableID

	heap *Heap

	mu       sync.Mutex
	fileSets map[FileID]*FileSet

	cmds    chan *command
	deletes chan *command

	wg      sync.WaitGroup
	errMu   sync.Mutex
	errs    *multierror.Error
	closed  chan struct{}
	closeMu sync.Once
}

// NewQueue builds a Queue rooted at dir (and the overflow directory
// dir2, used when a file set requests UseTemp2) with a heapSize-byte
// buffer arena and blockSize-byte alignment for direct I/O file sets.
func NewQueue(table entry.TableID, dir, dir2 string, heapSize uint64, blockSize int) *Queue {
	if dir2 == "" {
		dir2 = dir
	}
	return &Queue{
		dir:       dir,
		dir2:      dir2,
		blockSize: blockSize,
		table:     table,
		heap:      NewHeap(heapSize),
		fileSets:  make(map[FileID]*FileSet),
		cmds:      make(chan *command, 4096),
		deletes:   make(chan *command, 256),
		closed:    make(chan struct{}),
	}
}

// Start launches the I/O thread and the deleter thread. Commands
// submitted before Start are buffered on the channel and processed once
// it runs.
func (q *Queue) Start() {
	q.wg.Add(2)
	go q.runIO()
	go q.runDeleter()
}

// Finish signals that no more commands will be submitted, waits for the
// queue to drain, closes every open file set, and returns any errors
// recorded while executing commands.
func (q *Queue) Finish() error {
	close(q.cmds)
	close(q.deletes)
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, fs := range q.fileSets {
		if err := fs.Close(); err != nil {
			q.recordErr(errs.Fatal("FileSet.Close", q.table, err))
		}
	}
	q.heap.Close()

	q.errMu.Lock()
	defer q.errMu.Unlock()
	if q.errs == nil {
		return nil
	}
	return q.errs.ErrorOrNil()
}

func (q *Queue) recordErr(err error) {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	q.errs = multierror.Append(q.errs, err)
}

// GetBuffer requests a size-byte, align-aligned region from the shared
// heap, blocking until one is free.
func (q *Queue) GetBuffer(size, align uint64) (bufferToken, []byte) {
	return q.heap.GetBuffer(size, align)
}

// InitFileSet opens the BucketCount backing files for id under the
// queue's temp directory (or its secondary temp directory, if opts has
// UseTemp2 set) and registers it for subsequent Write/Read/Delete
// commands. It executes synchronously: nothing may reference id until
// this returns.
func (q *Queue) InitFileSet(id FileID, name string, opts FileSetOptions) error {
	dir := q.dir
	if opts.Has(UseTemp2) {
		dir = q.dir2
	}
	fs, err := openFileSet(dir, id, name, opts, q.blockSize)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.fileSets[id] = fs
	q.mu.Unlock()
	return nil
}

func (q *Queue) fileSet(id FileID) *FileSet {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fileSets[id]
}

// WriteBuckets submits a scatter write: buf holds sizes[b] bytes for
// each bucket b back to back, and each slice is appended to its own
// bucket file. tok, if non-nil, is released once the write completes.
func (q *Queue) WriteBuckets(id FileID, buf []byte, sizes []int, tok bufferToken) {
	q.cmds <- &command{op: OpWriteBuckets, fileID: id, buf: buf, sizes: sizes, releaseTok: tok}
}

// WriteBucketElements is WriteBuckets for a buffer holding a fixed
// elem-byte element stride rather than raw byte ranges (spec.md §4.1).
func (q *Queue) WriteBucketElements(id FileID, buf []byte, elem int, sizes []int, tok bufferToken) {
	q.cmds <- &command{op: OpWriteBucketElements, fileID: id, buf: buf, elem: elem, sizes: sizes, releaseTok: tok}
}

// WriteFile submits a single-bucket append write.
func (q *Queue) WriteFile(id FileID, bucket int, buf []byte, tok bufferToken) {
	q.cmds <- &command{op: OpWriteFile, fileID: id, bucket: bucket, buf: buf, releaseTok: tok}
}

// ReadFile submits a synchronous read into buf and blocks until the I/O
// thread has executed it, returning any error encountered.
func (q *Queue) ReadFile(id FileID, bucket int, buf []byte) error {
	done := make(chan error, 1)
	q.cmds <- &command{op: OpReadFile, fileID: id, bucket: bucket, buf: buf, done: done}
	return <-done
}

// SeekFile repositions the read/write offset of a single bucket file.
func (q *Queue) SeekFile(id FileID, bucket int, offset int64, origin SeekOrigin) {
	q.cmds <- &command{op: OpSeekFile, fileID: id, bucket: bucket, offset: offset, origin: origin}
}

// SeekBucket is SeekFile for every bucket of id at once.
func (q *Queue) SeekBucket(id FileID, offset int64, origin SeekOrigin) {
	q.cmds <- &command{op: OpSeekBucket, fileID: id, offset: offset, origin: origin}
}

// TruncateBucket truncates a single bucket file to offset bytes.
func (q *Queue) TruncateBucket(id FileID, bucket int, offset int64) {
	q.cmds <- &command{op: OpTruncateBucket, fileID: id, bucket: bucket, offset: offset}
}

// DeleteFile and DeleteBucket are routed to the deleter thread so a slow
// unlink never blocks the write path behind it.
func (q *Queue) DeleteFile(id FileID) {
	q.deletes <- &command{op: OpDeleteFile, fileID: id}
}

func (q *Queue) DeleteBucket(id FileID, bucket int) {
	q.deletes <- &command{op: OpDeleteBucket, fileID: id, bucket: bucket}
}

// SignalFence submits a fence signal: the fence reaches value once
// every command submitted before it has been executed.
func (q *Queue) SignalFence(f *Fence, value int64) {
	q.cmds <- &command{op: OpSignalFence, fence: f, value: value}
}

// WaitForFence blocks the calling (producer) goroutine until f reaches
// value. Unlike the other operations this is not itself queued: the
// producer is waiting for the I/O thread to catch up to a point in the
// stream it already submitted, not asking the I/O thread to wait on
// something.
func (q *Queue) WaitForFence(f *Fence, value int64) {
	f.Wait(value)
}

// ReleaseBuffer explicitly returns tok to the heap outside of a write
// command's automatic release (for buffers that were only ever read
// into, for instance).
func (q *Queue) ReleaseBuffer(tok bufferToken) {
	q.cmds <- &command{op: OpReleaseBuffer, releaseTok: tok}
}

func (q *Queue) runIO() {
	defer q.wg.Done()
	for cmd := range q.cmds {
		q.execute(cmd)
	}
}

func (q *Queue) execute(cmd *command) {
	var err error
	switch cmd.op {
	case OpWriteBuckets:
		err = q.doWriteBuckets(cmd)
	case OpWriteBucketElements:
		err = q.doWriteBuckets(cmd)
	case OpWriteFile:
		fs := q.fileSet(cmd.fileID)
		err = fs.writeBucket(cmd.bucket, cmd.buf)
	case OpReadFile:
		fs := q.fileSet(cmd.fileID)
		_, err = io.ReadFull(fs.files[cmd.bucket], cmd.buf)
	case OpSeekFile:
		fs := q.fileSet(cmd.fileID)
		_, err = fs.files[cmd.bucket].Seek(cmd.offset, int(cmd.origin))
	case OpSeekBucket:
		fs := q.fileSet(cmd.fileID)
		for b := 0; b < len(fs.files); b++ {
			if _, e := fs.files[b].Seek(cmd.offset, int(cmd.origin)); e != nil && err == nil {
				err = e
			}
		}
	case OpTruncateBucket:
		fs := q.fileSet(cmd.fileID)
		err = fs.files[cmd.bucket].Truncate(cmd.offset)
	case OpReleaseBuffer:
		// handled below, after the switch, uniformly with write releases
	case OpSignalFence:
		cmd.fence.Signal(cmd.value)
	default:
		err = fmt.Errorf("ioqueue: unhandled opcode %s", cmd.op)
	}

	if cmd.releaseTok != nil {
		q.heap.ReleaseBuffer(cmd.releaseTok)
	}

	if err != nil {
		q.recordErr(errs.FatalBucket(cmd.op.String(), q.table, cmd.bucket, err))
	}
	if cmd.done != nil {
		cmd.done <- err
	}
}

// doWriteBuckets scatters cmd.buf across each bucket file of cmd.fileID
// according to cmd.sizes, in bucket order.
func (q *Queue) doWriteBuckets(cmd *command) error {
	fs := q.fileSet(cmd.fileID)
	off := 0
	for b, n := range cmd.sizes {
		if cmd.op == OpWriteBucketElements {
			n *= cmd.elem
		}
		if n == 0 {
			continue
		}
		if err := fs.writeBucket(b, cmd.buf[off:off+n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

func (q *Queue) runDeleter() {
	defer q.wg.Done()
	for cmd := range q.deletes {
		fs := q.fileSet(cmd.fileID)
		if fs == nil {
			continue
		}
		switch cmd.op {
		case OpDeleteBucket:
			if err := fs.removeBucket(cmd.bucket); err != nil {
				q.recordErr(errs.FatalBucket("DeleteBucket", q.table, cmd.bucket, err))
			}
		case OpDeleteFile:
			q.mu.Lock()
			delete(q.fileSets, cmd.fileID)
			q.mu.Unlock()
			if err := fs.Remove(); err != nil {
				q.recordErr(errs.Fatal("DeleteFile", q.table, err))
			}
		}
	}
}
