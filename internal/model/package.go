// Package model defines the data structures shared across workspace
// discovery, graph construction, manifest building, and the runner.
package model

// Package is one workspace member, discovered once per invocation and
// immutable thereafter.
type Package struct {
	// Name is the package manifest's name field.
	Name string
	// Dir is the absolute path of the package directory.
	Dir string
	// LocalDeps lists the names of workspace packages this package depends
	// on, sorted ascending.
	LocalDeps []string
	// Scripts maps script names to shell commands from the package manifest.
	// Used as the command fallback when a task config has no baseCommand.
	Scripts map[string]string
}
