package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("Exists returned true for non-existent file")
	}

	path := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists returned false for existing file")
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "out", "people.csv")

	var seen string
	err := WriteTmpThenMove(tmpDir, outPath, func(tmpPath string) error {
		seen = tmpPath
		if Exists(outPath) {
			t.Error("final path visible before write completed")
		}
		return os.WriteFile(tmpPath, []byte("Name\n"), 0o644)
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove failed: %v", err)
	}

	if filepath.Ext(seen) != TmpSuffix {
		t.Errorf("tmp path %q lacks %s suffix", seen, TmpSuffix)
	}
	if Exists(seen) {
		t.Error("tmp file still exists after move")
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(data) != "Name\n" {
		t.Errorf("final content = %q", data)
	}
}

func TestWriteTmpThenMove_Error(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "people.csv")
	boom := errors.New("boom")

	var seen string
	err := WriteTmpThenMove(tmpDir, outPath, func(tmpPath string) error {
		seen = tmpPath
		if err := os.WriteFile(tmpPath, []byte("partial"), 0o644); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if Exists(seen) {
		t.Error("tmp file not removed after failure")
	}
	if Exists(outPath) {
		t.Error("final file created despite failure")
	}
}

func TestCleanupTmpFiles(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]bool{
		filepath.Join(tmpDir, "a.csv.tmp"): false,
		filepath.Join(nested, "b.csv.tmp"): false,
		filepath.Join(tmpDir, "keep.csv"):  true,
	}
	for path := range files {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := CleanupTmpFiles(tmpDir)
	if err != nil {
		t.Fatalf("CleanupTmpFiles failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	for path, keep := range files {
		if Exists(path) != keep {
			t.Errorf("%s exists = %v, want %v", path, !keep, keep)
		}
	}
}

func TestCleanupTmpFiles_MissingDir(t *testing.T) {
	removed, err := CleanupTmpFiles(filepath.Join(t.TempDir(), "missing"))
	if err != nil || removed != 0 {
		t.Errorf("CleanupTmpFiles(missing) = %d, %v; want 0, nil", removed, err)
	}
}
