package log

import (
	"fmt"
	"time"

	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/strutil"
)

// Message is the interface every structured log entry implements,
// mirroring the teacher's log.Message (fmt.Stringer + JSON()).
type Message interface {
	fmt.Stringer
	JSON() string
}

// PhaseMessage reports the completion of a whole-table phase (load,
// sort, match, Fx, persist) as described in spec.md §2.
type PhaseMessage struct {
	Phase   string        `json:"phase"`
	Table   entry.TableID `json:"table"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Entries uint64        `json:"entries,omitempty"`
}

func (m PhaseMessage) String() string {
	return fmt.Sprintf("%s %s done in %v (%d entries)", m.Table, m.Phase, m.Elapsed, m.Entries)
}

func (m PhaseMessage) JSON() string { return strutil.JSON(m) }

// BucketMessage reports per-bucket timing and counts within a phase.
type BucketMessage struct {
	Phase   string        `json:"phase"`
	Table   entry.TableID `json:"table"`
	Bucket  int           `json:"bucket"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Entries uint64        `json:"entries,omitempty"`
	Pairs   uint64        `json:"pairs,omitempty"`
}

func (m BucketMessage) String() string {
	return fmt.Sprintf("%s bucket %02d %s done in %v (entries=%d pairs=%d)", m.Table, m.Bucket, m.Phase, m.Elapsed, m.Entries, m.Pairs)
}

func (m BucketMessage) JSON() string { return strutil.JSON(m) }

// ErrorMessage wraps a classified pipeline error for display.
type ErrorMessage struct {
	Op    string `json:"operation,omitempty"`
	Table string `json:"table,omitempty"`
	Err   string `json:"error"`
}

func (m ErrorMessage) String() string {
	if m.Table == "" {
		return m.Err
	}
	return fmt.Sprintf("%s %s: %v", m.Table, m.Op, m.Err)
}

func (m ErrorMessage) JSON() string { return strutil.JSON(m) }
