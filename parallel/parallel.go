// Package parallel implements the compute worker pool described in
// spec.md §5: a configurable-size thread pool that runs compute jobs to
// completion within a barrier. It is adapted from the teacher's parallel
// package, which ran a bounded number of concurrent fire-and-forget
// tasks behind a semaphore; here Run is a true barrier (LockThreads /
// WaitForRelease in the reference plotter's terms): it returns only once
// every worker in the batch has returned. The cli sizes the pool with
// Init; radix sort, group scan and Fx start their own goroutines and do
// not run through Run or RunEach.
package parallel

import (
	"sync"

	"github.com/dnsge/diskplot/parallel/fdlimit"
)

// Task is a unit of compute work.
type Task func() error

// Pool runs Tasks across a bounded number of goroutines and exposes a
// barrier: Run blocks until every submitted Task in the batch has
// returned.
type Pool struct {
	// Size is the number of workers this pool fans out to. A Size <= 0
	// means "unbounded": every task in a batch runs in its own
	// goroutine.
	Size int
}

// New creates a Pool with the given worker fan-out.
func New(workerCount int) *Pool {
	return &Pool{Size: workerCount}
}

// Run executes every task in tasks, fanned out across at most p.Size
// goroutines at a time, and returns once all of them have completed.
// Errors are collected in task order; a nil result at index i means
// task i succeeded.
func (p *Pool) Run(tasks []Task) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	workers := p.Size
	if workers <= 0 || workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = tasks[i]()
			}
		}()
	}

	for i := range tasks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return errs
}

// RunEach is a convenience wrapper for the common case of running the
// same function over [0, n) indices (e.g. one task per bucket).
func (p *Pool) RunEach(n int, fn func(i int) error) []error {
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		i := i
		tasks[i] = func() error { return fn(i) }
	}
	return p.Run(tasks)
}

var global *Pool

// Init raises the process's open-file limit (every table keeps several
// BucketCount-sized file sets open concurrently) and creates the global
// compute Pool used by package-level Run/RunEach.
func Init(workerCount int) {
	_ = fdlimit.Raise()
	global = New(workerCount)
}

// Run executes tasks on the global Pool.
func Run(tasks []Task) []error { return global.Run(tasks) }

// RunEach executes fn over [0, n) on the global Pool.
func RunEach(n int, fn func(i int) error) []error { return global.RunEach(n, fn) }

// Size returns the global Pool's worker fan-out.
func Size() int { return global.Size }
