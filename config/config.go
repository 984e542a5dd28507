// Package config defines the plotting configuration surface: the inputs
// enumerated in spec.md §6 (plot ID, directories, thread counts, per-table
// write intervals and the direct-I/O toggle). It plays the role the
// teacher's flags/opt packages played for s5cmd's transfer options.
package config

import (
	"fmt"
	"runtime"

	"github.com/dnsge/diskplot/entry"
)

const (
	defaultThreadCount   = 0 // 0 means runtime.NumCPU()
	defaultIOThreadCount = 1
	defaultK             = 32

	// minBlockSize is the device block size direct-I/O writes are
	// aligned to when no more specific value is known for the target
	// filesystem.
	minBlockSize = 4096

	defaultWriteInterval = 256 << 20 // 256 MiB, matches the reference plotter's default
)

// Config is the full set of inputs a plot run needs.
type Config struct {
	PlotID   [32]byte
	PlotMemo []byte

	K int

	TempDir  string
	TempDir2 string // high-frequency file sets (sort key, reverse map); falls back to TempDir
	OutDir   string

	ThreadCount   int
	IOThreadCount int

	// WriteIntervals[t] is a per-table write interval in bytes. Validate
	// checks it (positive, and a block-size multiple under direct-io);
	// the driver does not read it and bucketizes and writes each
	// bucket's Fx output in one piece.
	WriteIntervals [entry.Table7 + 1]int

	DirectIO  bool
	BlockSize int
}

// Default returns a Config with the reference defaults for every field
// except PlotID, which the caller must fill in.
func Default() Config {
	c := Config{
		K:             defaultK,
		ThreadCount:   defaultThreadCount,
		IOThreadCount: defaultIOThreadCount,
		BlockSize:     minBlockSize,
	}
	for t := entry.Table1; t <= entry.Table7; t++ {
		c.WriteIntervals[t] = defaultWriteInterval
	}
	return c
}

// Validate checks the configuration for internally-inconsistent values
// and resolves defaults that depend on the runtime environment (mirrors
// flags.Validate in the teacher).
func (c *Config) Validate() error {
	if c.K <= 0 || c.K > entry.MaxK {
		return fmt.Errorf("config: k must be in (0, %d], got %d", entry.MaxK, c.K)
	}
	if c.TempDir == "" {
		return fmt.Errorf("config: temp-dir is required")
	}
	if c.TempDir2 == "" {
		c.TempDir2 = c.TempDir
	}
	if c.OutDir == "" {
		return fmt.Errorf("config: output-dir is required")
	}

	if c.ThreadCount < 0 {
		return fmt.Errorf("config: thread-count must not be negative")
	}
	if c.ThreadCount == 0 {
		c.ThreadCount = runtime.NumCPU()
	}
	if c.IOThreadCount <= 0 {
		return fmt.Errorf("config: io-thread-count must be positive")
	}

	for t := entry.Table1; t <= entry.Table7; t++ {
		if c.WriteIntervals[t] <= 0 {
			return fmt.Errorf("config: write-interval for %s must be positive", t)
		}
		if c.DirectIO && c.WriteIntervals[t]%c.BlockSize != 0 {
			return fmt.Errorf("config: write-interval for %s (%d) must be a multiple of block size %d under direct-io", t, c.WriteIntervals[t], c.BlockSize)
		}
	}

	if c.DirectIO && c.BlockSize <= 0 {
		return fmt.Errorf("config: block-size must be positive under direct-io")
	}

	return nil
}

// MaxEntries returns the compile-time safe upper bound on the number of
// entries in a single bucket for this k, with headroom for distributional
// skew (spec.md §3, "BucketMaxEntries").
func MaxEntries(k int) uint64 {
	total := uint64(1) << uint(k)
	perBucket := total / entry.BucketCount
	// About 17% (one sixth) headroom: buckets are not perfectly balanced because y is only
	// pseudo-random, not uniform by construction.
	return perBucket + perBucket/6 + 1024
}
