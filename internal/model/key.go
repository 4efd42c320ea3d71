package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TaskKey identifies one scheduled task: "{taskName}::{relPackageDir}" with
// the workspace root spelled "<rootDir>". Keys are stable across runs and
// derived purely from static inputs; they double as map keys and sort keys.
type TaskKey string

// NewTaskKey builds the key for taskName running in pkgDir under rootDir.
// Both directories must be absolute.
func NewTaskKey(taskName, pkgDir, rootDir string) TaskKey {
	rel := RootDirToken
	if pkgDir != rootDir {
		r, err := filepath.Rel(rootDir, pkgDir)
		if err != nil || strings.HasPrefix(r, "..") {
			// A package outside the root violates workspace discovery's
			// contract; keep the key deterministic anyway.
			rel = filepath.ToSlash(pkgDir)
		} else {
			rel = filepath.ToSlash(r)
		}
	}
	return TaskKey(fmt.Sprintf("%s::%s", taskName, rel))
}

func (k TaskKey) String() string { return string(k) }

// TaskName returns the task-name half of the key.
func (k TaskKey) TaskName() string {
	if i := strings.Index(string(k), "::"); i >= 0 {
		return string(k)[:i]
	}
	return string(k)
}
