// Package graph resolves requested tasks into concrete (package, taskName)
// nodes, wires dependency edges from package dependencies and runsAfter
// rules, and produces a deterministic topological order for the runner.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"lazyrun/internal/config"
	"lazyrun/internal/model"
	"lazyrun/internal/workspace"
)

// RequestedTask is one task name the user asked to run, with its CLI
// modifiers.
type RequestedTask struct {
	TaskName    string
	FilterPaths []string // absolute package-path filters; empty means all
	Force       bool
	ExtraArgs   []string
}

// ScheduledTask is one graph node. Immutable once the graph is built; all
// per-run mutable state lives in the runner's state table.
type ScheduledTask struct {
	Key        model.TaskKey
	TaskName   string
	PackageDir string
	Config     model.TaskConfig
	Force      bool
	ExtraArgs  []string
	// Command is the shell command to spawn: the config's baseCommand or the
	// package manifest's scripts entry for the task name.
	Command string
	// UpstreamKeys lists all direct dependencies, deduplicated and sorted.
	UpstreamKeys []model.TaskKey
	// RunsAfterUpstream maps each bound runsAfter upstream key to its edge
	// config. Only keys of nodes that exist appear here.
	RunsAfterUpstream map[model.TaskKey]model.RunsAfterConfig
	// PackageDepUpstream lists the same-task nodes of this package's local
	// dependencies, sorted ascending. Empty unless runType is dependent.
	PackageDepUpstream []model.TaskKey
}

// Graph is the resolved task DAG.
type Graph struct {
	// SortedKeys is the deterministic topological order: among ready nodes,
	// ascending TaskKey.
	SortedKeys []model.TaskKey
	Tasks      map[model.TaskKey]*ScheduledTask
}

// Build resolves the requested tasks against the workspace, adds edges, and
// topologically sorts the result. A dependency cycle is a fatal
// configuration error reported with the offending cycle of task keys.
func Build(ws *workspace.Workspace, cfg *config.Resolver, requests []RequestedTask) (*Graph, error) {
	g := &Graph{Tasks: make(map[model.TaskKey]*ScheduledTask)}

	for _, req := range requests {
		if err := g.emitNodes(ws, cfg, req); err != nil {
			return nil, err
		}
	}
	g.addEdges(ws, cfg)

	sorted, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.SortedKeys = sorted
	return g, nil
}

// emitNodes creates the nodes for one requested task. A node exists for a
// package only when the task is actually runnable there: the resolved config
// carries a baseCommand or the package manifest declares the script.
func (g *Graph) emitNodes(ws *workspace.Workspace, cfg *config.Resolver, req RequestedTask) error {
	rootCfg := cfg.Task(ws.RootDir, req.TaskName)
	if rootCfg.RunType == model.RunTypeTopLevel {
		command := rootCfg.BaseCommand
		if command == "" {
			command = ws.RootScripts[req.TaskName]
		}
		if command == "" {
			return nil
		}
		g.addNode(ws, req, ws.RootDir, rootCfg, command)
		return nil
	}

	for i := range ws.Packages {
		pkg := &ws.Packages[i]
		if !matchesFilter(pkg.Dir, req.FilterPaths) {
			continue
		}
		taskCfg := cfg.Task(pkg.Dir, req.TaskName)
		command := taskCfg.BaseCommand
		if command == "" {
			command = pkg.Scripts[req.TaskName]
		}
		if command == "" {
			continue
		}
		g.addNode(ws, req, pkg.Dir, taskCfg, command)
	}
	return nil
}

func (g *Graph) addNode(ws *workspace.Workspace, req RequestedTask, dir string, taskCfg model.TaskConfig, command string) {
	key := model.NewTaskKey(req.TaskName, dir, ws.RootDir)
	if _, exists := g.Tasks[key]; exists {
		return
	}
	g.Tasks[key] = &ScheduledTask{
		Key:        key,
		TaskName:   req.TaskName,
		PackageDir: dir,
		Config:     taskCfg,
		Force:      req.Force,
		ExtraArgs:  req.ExtraArgs,
		Command:    command,
	}
}

// addEdges wires package-dependency edges for dependent tasks and runsAfter
// edges for every task. Edges bind only to nodes that exist.
func (g *Graph) addEdges(ws *workspace.Workspace, cfg *config.Resolver) {
	for _, task := range g.Tasks {
		upstream := make(map[model.TaskKey]struct{})

		if task.Config.RunType == model.RunTypeDependent {
			if pkg, ok := ws.PackageByDir(task.PackageDir); ok {
				for _, depName := range pkg.LocalDeps {
					dep, ok := ws.PackageByName(depName)
					if !ok {
						continue
					}
					depKey := model.NewTaskKey(task.TaskName, dep.Dir, ws.RootDir)
					if _, exists := g.Tasks[depKey]; exists {
						upstream[depKey] = struct{}{}
						task.PackageDepUpstream = append(task.PackageDepUpstream, depKey)
					}
				}
			}
			sortKeys(task.PackageDepUpstream)
		}

		task.RunsAfterUpstream = make(map[model.TaskKey]model.RunsAfterConfig)
		for otherName, raCfg := range task.Config.RunsAfter {
			var otherKey model.TaskKey
			if cfg.Task(ws.RootDir, otherName).RunType == model.RunTypeTopLevel {
				otherKey = model.NewTaskKey(otherName, ws.RootDir, ws.RootDir)
			} else {
				otherKey = model.NewTaskKey(otherName, task.PackageDir, ws.RootDir)
			}
			if _, exists := g.Tasks[otherKey]; exists {
				upstream[otherKey] = struct{}{}
				task.RunsAfterUpstream[otherKey] = raCfg
			}
		}

		keys := make([]model.TaskKey, 0, len(upstream))
		for k := range upstream {
			keys = append(keys, k)
		}
		sortKeys(keys)
		task.UpstreamKeys = keys
	}
}

// topoSort runs Kahn's algorithm, visiting ready nodes in ascending TaskKey
// order so the result is stable across runs. On cycle detection it uses DFS
// to reconstruct and report the cycle path.
func (g *Graph) topoSort() ([]model.TaskKey, error) {
	inDegree := make(map[model.TaskKey]int, len(g.Tasks))
	downstream := make(map[model.TaskKey][]model.TaskKey)
	for key, task := range g.Tasks {
		inDegree[key] = len(task.UpstreamKeys)
		for _, up := range task.UpstreamKeys {
			downstream[up] = append(downstream[up], key)
		}
	}

	var ready []model.TaskKey
	for key, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}
	sortKeys(ready)

	sorted := make([]model.TaskKey, 0, len(g.Tasks))
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		sorted = append(sorted, key)

		var unblocked []model.TaskKey
		for _, down := range downstream[key] {
			inDegree[down]--
			if inDegree[down] == 0 {
				unblocked = append(unblocked, down)
			}
		}
		if len(unblocked) > 0 {
			ready = append(ready, unblocked...)
			sortKeys(ready)
		}
	}

	if len(sorted) == len(g.Tasks) {
		return sorted, nil
	}

	cycle := g.findCyclePath(inDegree)
	return nil, fmt.Errorf("circular task dependency detected: %s", joinKeys(cycle))
}

// findCyclePath finds a cycle among nodes with non-zero in-degree by DFS
// over upstream edges.
func (g *Graph) findCyclePath(inDegree map[model.TaskKey]int) []model.TaskKey {
	const (
		white = 0 // unvisited
		gray  = 1 // in current path
		black = 2 // finished
	)

	color := make(map[model.TaskKey]int)
	parent := make(map[model.TaskKey]model.TaskKey)
	var cycle []model.TaskKey

	var dfs func(key model.TaskKey) bool
	dfs = func(key model.TaskKey) bool {
		color[key] = gray
		for _, up := range g.Tasks[key].UpstreamKeys {
			if color[up] == gray {
				cycle = []model.TaskKey{up}
				current := key
				for current != up {
					cycle = append(cycle, current)
					current = parent[current]
				}
				cycle = append(cycle, up)
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return true
			}
			if color[up] == white {
				parent[up] = key
				if dfs(up) {
					return true
				}
			}
		}
		color[key] = black
		return false
	}

	remaining := make([]model.TaskKey, 0, len(inDegree))
	for key, deg := range inDegree {
		if deg > 0 {
			remaining = append(remaining, key)
		}
	}
	sortKeys(remaining)
	for _, key := range remaining {
		if color[key] == white && dfs(key) {
			return cycle
		}
	}
	return nil
}

// matchesFilter reports whether pkgDir matches any filter path: equal, a
// filter that contains the package, or a filter contained in the package.
func matchesFilter(pkgDir string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		f = strings.TrimRight(f, "/")
		if pkgDir == f ||
			strings.HasPrefix(pkgDir, f+"/") ||
			strings.HasPrefix(f, pkgDir+"/") {
			return true
		}
	}
	return false
}

func sortKeys(keys []model.TaskKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

func joinKeys(keys []model.TaskKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, " -> ")
}
