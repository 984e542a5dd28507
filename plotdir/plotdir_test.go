package plotdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanTempRemovesOnlyTmpFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewLayout(dir, "", dir)

	mustWrite(t, filepath.Join(dir, "y.00.tmp"), "a")
	mustWrite(t, filepath.Join(dir, "keep.txt"), "b")

	if err := l.CleanTemp(); err != nil {
		t.Fatalf("CleanTemp: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "y.00.tmp")); !os.IsNotExist(err) {
		t.Fatal("y.00.tmp should have been removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Fatal("keep.txt should have survived CleanTemp")
	}
}

func TestFinalizePlotSameFilesystem(t *testing.T) {
	root := t.TempDir()
	tempDir := filepath.Join(root, "temp")
	outDir := filepath.Join(root, "out")
	l := NewLayout(tempDir, "", outDir)
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	src := filepath.Join(tempDir, "plot.tmp")
	mustWrite(t, src, "plot-bytes")

	dst, err := l.FinalizePlot(src, "plot-final.plot")
	if err != nil {
		t.Fatalf("FinalizePlot: %v", err)
	}
	if dst != filepath.Join(outDir, "plot-final.plot") {
		t.Fatalf("dst = %s, want plot-final.plot under outDir", dst)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source file should no longer exist after FinalizePlot")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "plot-bytes" {
		t.Fatalf("ReadFile(dst) = %q, %v; want %q, nil", data, err, "plot-bytes")
	}
}

func TestListTempFilesFindsBothDirs(t *testing.T) {
	root := t.TempDir()
	t1 := filepath.Join(root, "t1")
	t2 := filepath.Join(root, "t2")
	l := NewLayout(t1, t2, filepath.Join(root, "out"))
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	mustWrite(t, filepath.Join(t1, "a.tmp"), "x")
	mustWrite(t, filepath.Join(t2, "b.tmp"), "y")

	files, err := l.ListTempFiles()
	if err != nil {
		t.Fatalf("ListTempFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
