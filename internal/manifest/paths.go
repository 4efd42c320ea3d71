package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LazyDirName is the per-package state directory. It is always excluded
// from input enumeration.
const LazyDirName = ".lazy"

// Slug maps a task name to a filename-safe, deterministic identifier:
// lowercased, with every byte outside [a-z0-9._-] replaced by '-'.
func Slug(taskName string) string {
	lower := strings.ToLower(taskName)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, lower)
}

// Path returns the current manifest path for taskName under pkgDir.
func Path(pkgDir, taskName string) string {
	return filepath.Join(pkgDir, LazyDirName, "manifests", Slug(taskName))
}

// NextPath returns the transient path the builder writes before the atomic
// rename. Stray .next files from an aborted run are overwritten next run.
func NextPath(pkgDir, taskName string) string {
	return Path(pkgDir, taskName) + ".next"
}

// DiffPath returns the path of the human-readable diff from the last miss.
func DiffPath(pkgDir, taskName string) string {
	return filepath.Join(pkgDir, LazyDirName, "diffs", Slug(taskName))
}

// writeFileAtomic writes content to path via a temp file in the same
// directory followed by a rename, so readers never observe a partial file.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lazy-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
