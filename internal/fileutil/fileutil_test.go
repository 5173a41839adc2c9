package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	full := filepath.Join(dir, "full.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{path: full, want: true},
		{path: empty, want: false},
		{path: dir, want: false},
		{path: filepath.Join(dir, "missing.mp4"), want: false},
	}
	for _, tt := range tests {
		if got := NonEmptyFile(tt.path); got != tt.want {
			t.Fatalf("NonEmptyFile(%s) = %v, want %v", filepath.Base(tt.path), got, tt.want)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "project.json")

	if err := WriteFileAtomic(target, []byte(`{"v":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte(`{"v":2}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode mismatch: got %o, want 600", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestSwapDirReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "segments")
	staged := filepath.Join(dir, "segments.abc.partial")

	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "segment_001.mp4"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(staged, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staged, "segment_002.mp4"), []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := SwapDir(staged, dest); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dest, "segment_001.mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected previous content to be gone, stat err %v", err)
	}
	if !NonEmptyFile(filepath.Join(dest, "segment_002.mp4")) {
		t.Fatal("expected staged content in place")
	}
	if DirExists(staged) || DirExists(dest+".old") {
		t.Fatal("expected staging and backup directories to be removed")
	}
}

func TestSwapDirWithoutPrevious(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "merged.x.partial")
	if err := os.MkdirAll(staged, 0o755); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "merged")
	if err := SwapDir(staged, dest); err != nil {
		t.Fatal(err)
	}
	if !DirExists(dest) {
		t.Fatal("expected destination directory")
	}
}

func TestSwapDirMissingStage(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "merged")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := SwapDir(filepath.Join(dir, "missing"), dest); err == nil {
		t.Fatal("expected error for missing staged directory")
	}
	if !DirExists(dest) {
		t.Fatal("previous directory must survive a failed swap")
	}
}

func TestMoveFileCreatesParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "final.mp4")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "output", "segment_001.mp4")
	if err := MoveFile(src, dest); err != nil {
		t.Fatal(err)
	}
	if !NonEmptyFile(dest) {
		t.Fatal("expected moved file")
	}
}
