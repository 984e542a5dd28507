// Package errs classifies pipeline failures from spec.md §7 as Fatal
// (*Error) or expected-bounded (*BoundedOverflow); observable events are
// not errors and are reported as log messages instead. It is adapted from
// the teacher's error package, which wrapped operation failures with
// source/destination context and used hashicorp/go-multierror to unwrap
// aggregated cancellations; here the context is a table/bucket pair
// instead of a pair of object URLs.
package errs

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dnsge/diskplot/entry"
)

// Error wraps a fatal pipeline failure with the table/bucket/operation it
// occurred in, mirroring the teacher's Error{Op, Src, Dst, Original}.
type Error struct {
	Op       string
	Table    entry.TableID
	Bucket   int
	Original error
}

func (e *Error) Error() string {
	if e.Bucket >= 0 {
		return fmt.Sprintf("%s: %s bucket %d: %v", e.Op, e.Table, e.Bucket, e.Original)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Table, e.Original)
}

func (e *Error) Unwrap() error { return e.Original }

// Fatal builds a *Error for table-scoped failures (no single bucket, e.g.
// "failed to allocate heap").
func Fatal(op string, table entry.TableID, original error) error {
	return &Error{Op: op, Table: table, Bucket: -1, Original: original}
}

// FatalBucket builds a *Error for a failure scoped to one bucket.
func FatalBucket(op string, table entry.TableID, bucket int, original error) error {
	return &Error{Op: op, Table: table, Bucket: bucket, Original: original}
}

// BoundedOverflow is returned by the matcher when a worker's pair output
// hits maxPairs. Per spec.md §7 this is "expected bounded": the upstream
// sizing in config.MaxEntries guarantees it never happens on well-formed
// inputs, but the check is retained as a safety floor, and callers can
// distinguish it from a true Fatal with errors.As.
type BoundedOverflow struct {
	Table     entry.TableID
	Bucket    int
	MaxPairs  int
	GroupSize int
}

func (e *BoundedOverflow) Error() string {
	return fmt.Sprintf("%s bucket %d: matcher hit maxPairs=%d (group size %d)", e.Table, e.Bucket, e.MaxPairs, e.GroupSize)
}

// IsBoundedOverflow reports whether err (possibly wrapped, possibly
// aggregated via multierror) is a BoundedOverflow.
func IsBoundedOverflow(err error) bool {
	var b *BoundedOverflow
	return errors.As(err, &b)
}

// IsFatal reports whether err (possibly wrapped, possibly aggregated via
// multierror) contains a Fatal *Error and is not merely a BoundedOverflow.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if merr, ok := err.(*multierror.Error); ok {
		for _, e := range merr.Errors {
			if IsFatal(e) {
				return true
			}
		}
		return false
	}
	var e *Error
	return errors.As(err, &e)
}

// Append appends err onto agg (which may be nil) using multierror,
// exactly like the teacher's use of *multierror.Error for collecting
// concurrent worker failures.
func Append(agg error, err error) error {
	if err == nil {
		return agg
	}
	return multierror.Append(agg, err)
}
