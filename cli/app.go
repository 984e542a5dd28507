// Package cli wires the plotting pipeline to the command line. It is
// adapted from the teacher's command package: one urfave/cli.App with a
// flat flag set validated in Before, a single Action running the whole
// pipeline, and an After hook that tears down the logger and prints the
// --stat summary, generalized from s5cmd's many S3 subcommands down to
// this tool's single "plot" operation.
package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dnsge/diskplot/config"
	"github.com/dnsge/diskplot/driver"
	"github.com/dnsge/diskplot/entry"
	"github.com/dnsge/diskplot/ioqueue"
	"github.com/dnsge/diskplot/log"
	"github.com/dnsge/diskplot/parallel"
	"github.com/dnsge/diskplot/plotdir"
	"github.com/dnsge/diskplot/stats"
	"github.com/dnsge/diskplot/version"
)

const appName = "diskplot"

// queueHeapSize bounds the I/O queue's reusable buffer arena. It is
// sized generously against the default write interval rather than
// tied to k, since GetBuffer requests are batch-sized, not table-sized.
const queueHeapSize = 256 << 20

func newQueue(cfg config.Config) *ioqueue.Queue {
	return ioqueue.NewQueue(entry.Table1, cfg.TempDir, cfg.TempDir2, queueHeapSize, cfg.BlockSize)
}

// EnumValue is a cli.Generic flag value restricted to a fixed set of
// strings, copied from the teacher's command.EnumValue.
type EnumValue struct {
	Enum    []string
	Default string
	chosen  string
}

func (e *EnumValue) Set(value string) error {
	for _, allowed := range e.Enum {
		if allowed == value {
			e.chosen = value
			return nil
		}
	}
	return fmt.Errorf("allowed values: [%s]", strings.Join(e.Enum, ", "))
}

func (e EnumValue) String() string {
	if e.chosen == "" {
		return e.Default
	}
	return e.chosen
}

func (e EnumValue) Get() interface{} { return e }

func buildConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	cfg.K = c.Int("k")
	cfg.TempDir = c.String("temp-dir")
	cfg.TempDir2 = c.String("temp-dir2")
	cfg.OutDir = c.String("out-dir")
	cfg.ThreadCount = c.Int("threads")
	cfg.IOThreadCount = c.Int("io-threads")
	cfg.DirectIO = c.Bool("direct-io")
	if bs := c.Int("block-size"); bs > 0 {
		cfg.BlockSize = bs
	}

	idHex := c.String("plot-id")
	raw, err := hex.DecodeString(idHex)
	if err != nil {
		return cfg, fmt.Errorf("plot-id: invalid hex: %w", err)
	}
	if len(raw) != len(cfg.PlotID) {
		return cfg, fmt.Errorf("plot-id: want %d bytes, got %d", len(cfg.PlotID), len(raw))
	}
	copy(cfg.PlotID[:], raw)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runPlot drives every table from 1 through Table7 in order, the loop
// spec.md §4.9 describes as the whole of Phase 1.
func runPlot(cfg config.Config, pipeline *stats.Pipeline) error {
	layout := plotdir.NewLayout(cfg.TempDir, cfg.TempDir2, cfg.OutDir)
	if err := layout.EnsureDirs(); err != nil {
		return err
	}
	if err := layout.CleanTemp(); err != nil {
		return err
	}

	q := newQueue(cfg)
	q.Start()

	d := driver.New(cfg, pipeline)
	if err := d.RunTable1(q); err != nil {
		return finishAndReturn(q, err)
	}
	for t := entry.Table2; t <= entry.Table7; t++ {
		if err := d.RunTable(q, t); err != nil {
			return finishAndReturn(q, err)
		}
	}
	if err := q.Finish(); err != nil {
		return err
	}

	return finalizeOutputs(layout)
}

func finishAndReturn(q *ioqueue.Queue, runErr error) error {
	if err := q.Finish(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// finalizeOutputs moves every file Phase 1 produced in the temp
// directories into the output directory, stripping the ".tmp" suffix
// ioqueue.FileSet writes its bucket files under (spec.md §4.1). It
// applies plotdir's FinalizePlot to every leftover file rather than to
// a single named artifact, since Phase 1's deliverable is
// the whole set of table/back-pointer/reverse-map files, not one
// packed plot file.
func finalizeOutputs(layout plotdir.Layout) error {
	files, err := layout.ListTempFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		name := strings.TrimSuffix(trimDir(path), ".tmp")
		if _, err := layout.FinalizePlot(path, name); err != nil {
			return err
		}
	}
	return nil
}

func trimDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// App builds the urfave/cli.App for the plotter.
func App() *cli.App {
	var pipeline *stats.Pipeline

	return &cli.App{
		Name:  appName,
		Usage: "disk-backed proof-of-space Phase 1 plotter",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plot-id", Required: true, Usage: "32-byte plot identifier, as hex"},
			&cli.IntFlag{Name: "k", Value: 32, Usage: "plot size parameter k"},
			&cli.StringFlag{Name: "temp-dir", Required: true, Usage: "scratch directory for intermediate table files"},
			&cli.StringFlag{Name: "temp-dir2", Usage: "secondary scratch directory for high-frequency file sets"},
			&cli.StringFlag{Name: "out-dir", Required: true, Usage: "directory completed Phase 1 files are moved into"},
			&cli.IntFlag{Name: "threads", Value: 0, Usage: "compute worker count (0 = runtime.NumCPU)"},
			&cli.IntFlag{Name: "io-threads", Value: 1, Usage: "I/O thread count (must be positive; the command queue always runs one I/O goroutine)"},
			&cli.BoolFlag{Name: "direct-io", Usage: "open table file sets with direct, block-aligned I/O"},
			&cli.IntFlag{Name: "block-size", Usage: "device block size for direct I/O alignment (default 4096)"},
			&cli.BoolFlag{Name: "json", Usage: "emit JSON formatted log output"},
			&cli.BoolFlag{Name: "stat", Usage: "print a phase-timing summary at the end of the run"},
			&cli.GenericFlag{
				Name:  "log",
				Value: &EnumValue{Enum: []string{"debug", "info", "warning", "error"}, Default: "info"},
				Usage: "log level: (debug, info, warning, error)",
			},
		},
		Before: func(c *cli.Context) error {
			log.Init(c.String("log"), c.Bool("json"))
			parallel.Init(c.Int("threads"))
			pipeline = stats.New()
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg, err := buildConfig(c)
			if err != nil {
				log.Error(log.ErrorMessage{Op: "config", Err: err.Error()})
				return cli.Exit(err, 1)
			}
			if err := runPlot(cfg, pipeline); err != nil {
				log.Error(log.ErrorMessage{Op: "plot", Err: err.Error()})
				return cli.Exit(err, 1)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if c.Bool("stat") && pipeline != nil {
				fmt.Fprint(os.Stdout, pipeline.Summary())
			}
			log.Close()
			return nil
		},
		Version: fmt.Sprintf("%s (%s)", version.GitSummary, version.GitBranch),
	}
}

// Main runs the app and returns the process exit code, resolving a
// cli.ExitCoder from the Action (e.g. cli.Exit(err, 1)) down to its
// numeric code rather than leaving that to the caller.
func Main(ctx context.Context, args []string) int {
	err := App().RunContext(ctx, args)
	if err == nil {
		return 0
	}
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
