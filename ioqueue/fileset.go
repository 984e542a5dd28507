package ioqueue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dnsge/diskplot/entry"
)

// FileID names a logical file set: BucketCount physical files sharing a
// purpose (spec.md §4.1, "File sets"), e.g. the Y values of table 3, or
// table 5's reverse map.
type FileID string

// FileSetOptions are the per-file-set behavior flags from spec.md §4.1
// and the original plotter's FileSetOptions (DiskBufferQueue.h). Only
// DirectIO/BlockAlign change Phase 1 write behavior; Cachable/UseTemp2/
// Interleaved are carried so a later phase's file sets can opt into them
// without widening this type (see SPEC_FULL.md §5).
type FileSetOptions int

const (
	None FileSetOptions = 0

	// DirectIO requests unbuffered file I/O.
	DirectIO FileSetOptions = 1 << iota
	// BlockAlign requires every write but the last to be a multiple of
	// the device block size; must be used with DirectIO.
	BlockAlign
	// Cachable allows the file set to keep an in-memory cache.
	Cachable
	// UseTemp2 opens the file set in the secondary, high-frequency temp
	// directory instead of the primary one.
	UseTemp2
	// Interleaved alternates bucket slices between an interleaved and a
	// non-interleaved layout; reserved for later phases.
	Interleaved
)

func (o FileSetOptions) Has(flag FileSetOptions) bool { return o&flag != 0 }

// FileSet is BucketCount physical files sharing a logical purpose, plus
// the per-bucket block-alignment overflow state described in spec.md §3
// invariant 5 and §4.1 "Block alignment".
type FileSet struct {
	ID      FileID
	Name    string
	Options FileSetOptions

	files     [entry.BucketCount]*os.File
	paths     [entry.BucketCount]string
	overflow  [entry.BucketCount]*overflowBuffer
	blockSize int
}

// openFileSet creates (or truncates) the BucketCount files for id under
// dir, named name.00.tmp .. name.63.tmp.
func openFileSet(dir string, id FileID, name string, opts FileSetOptions, blockSize int) (*FileSet, error) {
	fs := &FileSet{ID: id, Name: name, Options: opts, blockSize: blockSize}
	for b := 0; b < entry.BucketCount; b++ {
		path := filepath.Join(dir, fmt.Sprintf("%s.%02d.tmp", name, b))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			fs.closeOpened(b)
			return nil, fmt.Errorf("ioqueue: open file set %s bucket %d: %w", name, b, err)
		}
		fs.files[b] = f
		fs.paths[b] = path
		if opts.Has(BlockAlign) {
			fs.overflow[b] = newOverflowBuffer(blockSize)
		}
	}
	return fs, nil
}

func (fs *FileSet) closeOpened(upTo int) {
	for b := 0; b < upTo; b++ {
		if fs.files[b] != nil {
			fs.files[b].Close()
		}
	}
}

// Close closes every bucket file in the set, flushing any pending
// overflow tail first (the "final flush at end-of-table" in spec.md §3
// invariant 5).
func (fs *FileSet) Close() error {
	var firstErr error
	for b := 0; b < entry.BucketCount; b++ {
		if fs.overflow[b] != nil {
			if tail := fs.overflow[b].flushFinal(); len(tail) > 0 {
				if _, err := fs.files[b].Write(tail); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		if fs.files[b] != nil {
			if err := fs.files[b].Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Remove closes and unlinks every bucket file in the set, discarding any
// pending overflow tail. Used by the deleter thread for DeleteFile.
func (fs *FileSet) Remove() error {
	var firstErr error
	for b := 0; b < entry.BucketCount; b++ {
		if fs.files[b] != nil {
			if err := fs.files[b].Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if fs.paths[b] != "" {
			if err := os.Remove(fs.paths[b]); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// removeBucket truncates a single bucket file to zero length and rewinds
// it, without unlinking it, so subsequent writes can still target the
// same bucket index
// (DeleteBucket in spec.md §4.1 frees a bucket's disk space without
// retiring the whole file set).
func (fs *FileSet) removeBucket(b int) error {
	if fs.overflow[b] != nil {
		fs.overflow[b].flushFinal()
	}
	if err := fs.files[b].Truncate(0); err != nil {
		return err
	}
	_, err := fs.files[b].Seek(0, 0)
	return err
}

// writeBucket writes p to bucket b, routing through the block-alignment
// overflow accumulator when BlockAlign is set (spec.md §3 invariant 5 /
// §8 invariant 9: all but the final write to any file are block-size
// multiples).
func (fs *FileSet) writeBucket(b int, p []byte) error {
	f := fs.files[b]
	if !fs.Options.Has(BlockAlign) {
		_, err := f.Write(p)
		return err
	}

	full, tail := fs.overflow[b].accept(p)
	if len(full) > 0 {
		if _, err := f.Write(full); err != nil {
			return err
		}
	}
	_ = tail // retained inside the overflow buffer until next accept/flushFinal
	return nil
}
