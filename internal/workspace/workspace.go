// Package workspace discovers the repository layout: the workspace root
// (located by its package-manager lockfile), the member packages declared by
// the workspace manifest, and the local dependency edges between them.
package workspace

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"lazyrun/internal/model"
)

// PackageManager identifies the tool whose lockfile anchors the workspace.
type PackageManager string

const (
	Pnpm PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	Npm  PackageManager = "npm"
)

// Lockfile precedence when more than one is present.
var lockfileNames = []struct {
	name string
	pm   PackageManager
}{
	{"pnpm-lock.yaml", Pnpm},
	{"yarn.lock", Yarn},
	{"package-lock.json", Npm},
}

// Workspace is the resolved repository layout, built once per invocation.
type Workspace struct {
	RootDir        string
	PackageManager PackageManager
	// Packages are the workspace members, sorted by directory.
	Packages []model.Package
	// RootScripts are the root package manifest's scripts, used by
	// top-level tasks.
	RootScripts map[string]string

	byName map[string]*model.Package
	byDir  map[string]*model.Package
}

// FindRoot walks up from startDir until it finds a directory containing a
// supported lockfile.
func FindRoot(startDir string) (string, PackageManager, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", startDir, err)
	}
	for {
		for _, lf := range lockfileNames {
			if _, err := os.Stat(filepath.Join(dir, lf.name)); err == nil {
				return dir, lf.pm, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("could not find workspace root above %s: no pnpm-lock.yaml, yarn.lock, or package-lock.json", startDir)
		}
		dir = parent
	}
}

// packageJSON is the subset of a package manifest we read.
type packageJSON struct {
	Name                 string            `json:"name"`
	Workspaces           json.RawMessage   `json:"workspaces"`
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

type pnpmWorkspaceYAML struct {
	Packages []string `yaml:"packages"`
}

// Discover enumerates the workspace rooted at rootDir: member globs from the
// root package manifest's workspaces field or pnpm-workspace.yaml, one
// package per matched directory that contains a package.json, and local
// dependency edges restricted to in-workspace names.
func Discover(rootDir string, pm PackageManager) (*Workspace, error) {
	root, err := readPackageJSON(filepath.Join(rootDir, "package.json"))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	globs, err := memberGlobs(rootDir, pm, root)
	if err != nil {
		return nil, err
	}

	dirs, err := expandMemberGlobs(rootDir, globs)
	if err != nil {
		return nil, err
	}

	manifests := make(map[string]*packageJSON, len(dirs))
	names := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		pj, err := readPackageJSON(filepath.Join(dir, "package.json"))
		if err != nil {
			return nil, err
		}
		if pj.Name == "" {
			return nil, fmt.Errorf("workspace package %s has no name", dir)
		}
		if names[pj.Name] {
			return nil, fmt.Errorf("duplicate workspace package name %q", pj.Name)
		}
		manifests[dir] = pj
		names[pj.Name] = true
	}

	ws := &Workspace{
		RootDir:        rootDir,
		PackageManager: pm,
		byName:         make(map[string]*model.Package, len(dirs)),
		byDir:          make(map[string]*model.Package, len(dirs)),
	}
	if root != nil {
		ws.RootScripts = root.Scripts
	}

	for _, dir := range dirs {
		pj := manifests[dir]
		ws.Packages = append(ws.Packages, model.Package{
			Name:      pj.Name,
			Dir:       dir,
			LocalDeps: localDeps(pj, names),
			Scripts:   pj.Scripts,
		})
	}
	sort.Slice(ws.Packages, func(i, j int) bool { return ws.Packages[i].Dir < ws.Packages[j].Dir })
	for i := range ws.Packages {
		p := &ws.Packages[i]
		ws.byName[p.Name] = p
		ws.byDir[p.Dir] = p
	}
	return ws, nil
}

// PackageByName returns the member with the given manifest name.
func (w *Workspace) PackageByName(name string) (*model.Package, bool) {
	p, ok := w.byName[name]
	return p, ok
}

// PackageByDir returns the member at the given absolute directory.
func (w *Workspace) PackageByDir(dir string) (*model.Package, bool) {
	p, ok := w.byDir[dir]
	return p, ok
}

// AbsPath converts a repo-relative POSIX path to an absolute path.
func (w *Workspace) AbsPath(rel string) string {
	return filepath.Join(w.RootDir, filepath.FromSlash(rel))
}

func memberGlobs(rootDir string, pm PackageManager, root *packageJSON) ([]string, error) {
	// pnpm declares members in pnpm-workspace.yaml; the others in the root
	// package manifest's workspaces field.
	if pm == Pnpm {
		raw, err := os.ReadFile(filepath.Join(rootDir, "pnpm-workspace.yaml"))
		if err == nil {
			var pw pnpmWorkspaceYAML
			if err := yaml.Unmarshal(raw, &pw); err != nil {
				return nil, fmt.Errorf("parse pnpm-workspace.yaml: %w", err)
			}
			return pw.Packages, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read pnpm-workspace.yaml: %w", err)
		}
	}

	if root == nil || len(root.Workspaces) == 0 {
		return nil, fmt.Errorf("no workspace declaration found in %s (expected a workspaces field or pnpm-workspace.yaml)", rootDir)
	}

	// workspaces is either ["glob", ...] or {"packages": ["glob", ...]}.
	var list []string
	if err := json.Unmarshal(root.Workspaces, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(root.Workspaces, &obj); err == nil && obj.Packages != nil {
		return obj.Packages, nil
	}
	return nil, fmt.Errorf("unsupported workspaces declaration in %s/package.json", rootDir)
}

func expandMemberGlobs(rootDir string, globs []string) ([]string, error) {
	rootFS := os.DirFS(rootDir)
	set := make(map[string]struct{})
	for _, g := range globs {
		// Negated patterns are a pnpm extension; members excluded this way
		// simply should not match any positive glob in the repos we target.
		if len(g) > 0 && g[0] == '!' {
			continue
		}
		err := doublestar.GlobWalk(rootFS, g, func(p string, d fs.DirEntry) error {
			if !d.IsDir() || p == "." {
				return nil
			}
			if _, err := fs.Stat(rootFS, p+"/package.json"); err == nil {
				set[filepath.Join(rootDir, filepath.FromSlash(p))] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("expand workspace glob %q: %w", g, err)
		}
	}
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func readPackageJSON(path string) (*packageJSON, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var pj packageJSON
	if err := json.Unmarshal(raw, &pj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &pj, nil
}

func localDeps(pj *packageJSON, workspaceNames map[string]bool) []string {
	set := make(map[string]struct{})
	for _, deps := range []map[string]string{
		pj.Dependencies, pj.DevDependencies, pj.PeerDependencies, pj.OptionalDependencies,
	} {
		for name := range deps {
			if workspaceNames[name] {
				set[name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
