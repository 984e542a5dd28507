// Package stats provides atomic counters for the pipeline's per-table
// and per-bucket progress, plus a phase-timing summary. It is adapted
// from the teacher's stats package (atomic counters indexed by a small
// enum) and its log/stat subpackage (a tabwriter-based summary table
// printed at the end of a run), generalized from "operations succeeded/
// failed" to "entries and pairs produced per table/bucket".
package stats

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/dnsge/diskplot/entry"
)

// TableStats holds the counters spec.md §3/§8 requires to be tracked per
// table: bucketCounts, the aggregate entryCount, and
// ptrTableBucketCounts (the number of pairs whose left side lives in
// each bucket).
type TableStats struct {
	bucketCounts    [entry.BucketCount]uint64
	ptrBucketCounts [entry.BucketCount]uint64
	entryCount      uint64
}

// AddEntries atomically adds n to bucket b's entry count.
func (t *TableStats) AddEntries(b int, n uint64) {
	atomic.AddUint64(&t.bucketCounts[b], n)
	atomic.AddUint64(&t.entryCount, n)
}

// AddPairs atomically adds n to bucket b's pair (back-pointer) count.
func (t *TableStats) AddPairs(b int, n uint64) {
	atomic.AddUint64(&t.ptrBucketCounts[b], n)
}

// BucketCount returns the number of entries written to bucket b.
func (t *TableStats) BucketCount(b int) uint64 {
	return atomic.LoadUint64(&t.bucketCounts[b])
}

// PtrBucketCount returns the number of pairs whose left side lives in
// bucket b.
func (t *TableStats) PtrBucketCount(b int) uint64 {
	return atomic.LoadUint64(&t.ptrBucketCounts[b])
}

// EntryCount returns the aggregate entry count across all buckets.
func (t *TableStats) EntryCount() uint64 {
	return atomic.LoadUint64(&t.entryCount)
}

// Sum returns Σ bucketCounts[b], used to check invariant 4 in spec.md §3
// (Σ_b bucketCounts[t][b] == entryCount[t]).
func (t *TableStats) Sum() uint64 {
	var sum uint64
	for b := range t.bucketCounts {
		sum += t.BucketCount(b)
	}
	return sum
}

// Pipeline aggregates TableStats for every table plus phase timings.
type Pipeline struct {
	mu     sync.Mutex
	tables map[entry.TableID]*TableStats
	timing []phaseTiming
}

type phaseTiming struct {
	Table   entry.TableID
	Phase   string
	Elapsed time.Duration
}

// New creates an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{tables: make(map[entry.TableID]*TableStats)}
}

// Table returns (creating if necessary) the TableStats for t.
func (p *Pipeline) Table(t entry.TableID) *TableStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.tables[t]
	if !ok {
		ts = &TableStats{}
		p.tables[t] = ts
	}
	return ts
}

// RecordPhase records how long a named phase took for table t, for the
// final --stat summary.
func (p *Pipeline) RecordPhase(t entry.TableID, phase string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timing = append(p.timing, phaseTiming{Table: t, Phase: phase, Elapsed: elapsed})
}

// Summary renders the recorded phase timings as a tab-aligned table,
// mirroring the teacher's stat.Stats.String().
func (p *Pipeline) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b bytes.Buffer
	w := tabwriter.NewWriter(&b, 5, 0, 5, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\n%s\t%s\t%s\t\n", "Table", "Phase", "Elapsed")
	for _, e := range p.timing {
		fmt.Fprintf(w, "%s\t%s\t%v\t\n", e.Table, e.Phase, e.Elapsed)
	}
	w.Flush()
	return b.String()
}
