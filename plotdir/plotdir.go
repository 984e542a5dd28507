// Package plotdir manages the temp-directory layout a plot run writes
// into and the final handoff of completed table files to the output
// directory (spec.md §4.1's FileSet directories, and the overall
// pipeline's end state once table 7 back-pointers are written).
package plotdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/termie/go-shutil"
)

// Layout names the directories a run touches: the primary scratch
// directory every FileSet is created in by default, the optional
// secondary scratch directory a FileSet can opt into with
// ioqueue.UseTemp2 (spec.md §5, carried over from the original
// plotter's two-temp-directory support), and the final output
// directory completed plot files are moved into.
type Layout struct {
	TempDir  string
	TempDir2 string
	OutDir   string
}

// NewLayout resolves a Layout, defaulting TempDir2 to TempDir when it is
// not set separately.
func NewLayout(tempDir, tempDir2, outDir string) Layout {
	if tempDir2 == "" {
		tempDir2 = tempDir
	}
	return Layout{TempDir: tempDir, TempDir2: tempDir2, OutDir: outDir}
}

// EnsureDirs creates every directory in the layout that does not already
// exist.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.TempDir, l.TempDir2, l.OutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("plotdir: create %s: %w", dir, err)
		}
	}
	return nil
}

// ListTempFiles returns every regular file under both temp directories,
// for pre-flight space checks or leftover-cleanup reporting. It uses
// godirwalk rather than filepath.Walk to avoid a lstat per entry on
// platforms that return file type information directly from the
// directory read.
func (l Layout) ListTempFiles() ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range []string{l.TempDir, l.TempDir2} {
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := godirwalk.Walk(dir, &godirwalk.Options{
			Unsorted: true,
			Callback: func(path string, de *godirwalk.Dirent) error {
				if de.IsRegular() {
					files = append(files, path)
				}
				return nil
			},
		})
		if err != nil {
			return nil, fmt.Errorf("plotdir: walk %s: %w", dir, err)
		}
	}
	return files, nil
}

// CleanTemp removes every *.tmp file left in either temp directory, e.g.
// after a run aborts partway through a table. It does not descend into
// subdirectories: file sets write flat into the temp roots.
func (l Layout) CleanTemp() error {
	for _, dir := range []string{l.TempDir, l.TempDir2} {
		names, err := godirwalk.ReadDirnames(dir, nil)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("plotdir: list %s: %w", dir, err)
		}
		for _, name := range names {
			if filepath.Ext(name) != ".tmp" {
				continue
			}
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("plotdir: remove %s: %w", name, err)
			}
		}
	}
	return nil
}

// FinalizePlot moves the completed plot file at tempPath into the
// layout's output directory under finalName. It first tries a same-
// filesystem rename; if the output directory is on a different device
// (the common case: temp on NVMe scratch, output on a large spinning
// array) it falls back to a copy-then-remove so the move still succeeds
// across filesystems.
func (l Layout) FinalizePlot(tempPath, finalName string) (string, error) {
	dst := filepath.Join(l.OutDir, finalName)

	if err := os.Rename(tempPath, dst); err == nil {
		return dst, nil
	} else if !isCrossDevice(err) {
		return "", fmt.Errorf("plotdir: rename %s: %w", tempPath, err)
	}

	if err := shutil.CopyFile(tempPath, dst, false); err != nil {
		return "", fmt.Errorf("plotdir: copy %s to %s: %w", tempPath, dst, err)
	}
	if err := os.Remove(tempPath); err != nil {
		return "", fmt.Errorf("plotdir: remove source %s after copy: %w", tempPath, err)
	}
	return dst, nil
}

func isCrossDevice(err error) bool {
	le, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return le.Err.Error() == "invalid cross-device link"
}
