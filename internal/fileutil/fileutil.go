package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// DirExists reports whether path is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so readers observe either the old or the new content.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// SwapDir replaces dest with the staged directory src. Any previous dest is
// moved aside first and removed only after src is in place, so a failed swap
// leaves the old contents untouched.
func SwapDir(src, dest string) error {
	if !DirExists(src) {
		return fmt.Errorf("swap %s: staged directory missing", filepath.Base(dest))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	backup := dest + ".old"
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("clear stale backup: %w", err)
	}
	hadPrevious := true
	if err := os.Rename(dest, backup); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("move previous %s aside: %w", filepath.Base(dest), err)
		}
		hadPrevious = false
	}
	if err := os.Rename(src, dest); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, dest)
		}
		return fmt.Errorf("publish %s: %w", filepath.Base(dest), err)
	}
	if hadPrevious {
		return os.RemoveAll(backup)
	}
	return nil
}

// MoveFile renames src to dest, creating dest's parent directory.
func MoveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dest)
}
