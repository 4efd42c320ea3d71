// Package inputs enumerates the deterministic input file set of a task:
// workspace-level base includes, package-scoped include/exclude globs, and
// extra files inherited from upstream tasks' outputs. All results are
// repo-relative POSIX paths, deduplicated and sorted.
package inputs

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"lazyrun/internal/manifest"
	"lazyrun/internal/model"
)

// Enumerator resolves input sets for tasks of one workspace.
type Enumerator struct {
	// RootDir is the absolute workspace root.
	RootDir string
	// Base is the workspace-level cache config with defaults applied.
	Base model.BaseCacheConfig
}

// New returns an enumerator for the workspace rooted at rootDir. Empty base
// includes fall back to the lockfile + config default set.
func New(rootDir string, base model.BaseCacheConfig) *Enumerator {
	if len(base.Includes) == 0 {
		base.Includes = model.DefaultBaseCacheIncludes()
	}
	return &Enumerator{RootDir: rootDir, Base: base}
}

// Enumerate yields the sorted, deduplicated list of repo-relative input
// paths for a task in pkgDir. extraFiles are repo-relative paths supplied by
// the caller (upstream output files). When cache is nil ("none") there is no
// input set at all: ok is false and the task is un-cacheable.
func (e *Enumerator) Enumerate(pkgDir string, cache *model.CacheConfig, extraFiles []string) (paths []string, ok bool, err error) {
	if cache == nil {
		return nil, false, nil
	}

	set := make(map[string]struct{})

	if err := e.collectBase(set); err != nil {
		return nil, false, err
	}
	if err := e.collectPackage(set, pkgDir, cache.Inputs); err != nil {
		return nil, false, err
	}
	for _, f := range extraFiles {
		set[path.Clean(f)] = struct{}{}
	}

	paths = make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, true, nil
}

// Outputs resolves a task's output globs under pkgDir to repo-relative
// sorted paths. The package's .lazy directory never counts as an output.
func (e *Enumerator) Outputs(pkgDir string, spec model.GlobSpec) ([]string, error) {
	set := make(map[string]struct{})
	if err := e.collectPackage(set, pkgDir, spec); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// collectBase adds the base-cache includes minus excludes. Patterns are
// rooted at the workspace; the literal "<rootDir>" prefix is accepted for
// compatibility with per-package config sharing.
func (e *Enumerator) collectBase(set map[string]struct{}) error {
	rootFS := os.DirFS(e.RootDir)
	excludes := make([]string, 0, len(e.Base.Excludes))
	for _, x := range e.Base.Excludes {
		excludes = append(excludes, stripRootToken(x))
	}

	for _, inc := range e.Base.Includes {
		pattern := stripRootToken(inc)
		err := doublestar.GlobWalk(rootFS, pattern, func(p string, d fs.DirEntry) error {
			if d.IsDir() {
				if hiddenName(d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if hiddenPath(p) {
				return nil
			}
			excluded, err := matchAny(excludes, p)
			if err != nil {
				return err
			}
			if !excluded {
				set[p] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("resolve base include %q: %w", inc, err)
		}
	}
	return nil
}

// collectPackage adds the files matched by spec under pkgDir, converted to
// repo-relative paths. The .lazy subtree is always excluded.
func (e *Enumerator) collectPackage(set map[string]struct{}, pkgDir string, spec model.GlobSpec) error {
	pkgRel, err := filepath.Rel(e.RootDir, pkgDir)
	if err != nil {
		return fmt.Errorf("package dir %s outside workspace root %s: %w", pkgDir, e.RootDir, err)
	}
	pkgRel = filepath.ToSlash(pkgRel)
	pkgFS := os.DirFS(pkgDir)

	for _, inc := range spec.Include {
		err := doublestar.GlobWalk(pkgFS, inc, func(p string, d fs.DirEntry) error {
			if d.IsDir() {
				// Covers the package's .lazy state dir as well.
				if hiddenName(d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if hiddenPath(p) || p == manifest.LazyDirName || strings.HasPrefix(p, manifest.LazyDirName+"/") {
				return nil
			}
			excluded, err := matchAny(spec.Exclude, p)
			if err != nil {
				return err
			}
			if !excluded {
				set[repoJoin(pkgRel, p)] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("resolve include %q in %s: %w", inc, pkgDir, err)
		}
	}
	return nil
}

func matchAny(patterns []string, p string) (bool, error) {
	for _, pat := range patterns {
		ok, err := doublestar.Match(pat, p)
		if err != nil {
			return false, fmt.Errorf("invalid exclude pattern %q: %w", pat, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Glob expansion never matches hidden files or descends into hidden
// directories, matching the glob semantics the config format assumes. Task
// outputs like .out.txt therefore never feed back into the input set.
func hiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func hiddenPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if hiddenName(seg) {
			return true
		}
	}
	return false
}

func stripRootToken(pattern string) string {
	if strings.HasPrefix(pattern, model.RootDirToken+"/") {
		return pattern[len(model.RootDirToken)+1:]
	}
	return pattern
}

func repoJoin(pkgRel, p string) string {
	if pkgRel == "." {
		return p
	}
	return path.Join(pkgRel, p)
}
