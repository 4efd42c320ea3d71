package model

// RunType controls how many graph nodes a task produces and which
// package-dependency edges it picks up.
type RunType string

const (
	// RunTypeDependent emits one node per package with edges from the
	// package's local dependencies. The default.
	RunTypeDependent RunType = "dependent"
	// RunTypeIndependent emits one node per package with no
	// package-dependency edges.
	RunTypeIndependent RunType = "independent"
	// RunTypeTopLevel emits a single node rooted at the workspace root.
	RunTypeTopLevel RunType = "top-level"
)

// GlobSpec is an include/exclude glob pair rooted at some directory.
type GlobSpec struct {
	Include []string
	Exclude []string
}

// DefaultGlobSpec returns the spec that matches everything under the root.
func DefaultGlobSpec() GlobSpec {
	return GlobSpec{Include: []string{"**/*"}}
}

// RunsAfterConfig declares an ordering edge from another task, independent
// of package dependencies.
type RunsAfterConfig struct {
	// InheritsInput folds the upstream task's input manifest hash into this
	// task's manifest.
	InheritsInput bool
	// UsesOutput feeds the upstream task's output files into this task's
	// input enumeration. Defaults to true.
	UsesOutput bool
}

// CacheConfig controls input fingerprinting for one task. A nil *CacheConfig
// on TaskConfig means cache "none": the task is un-cacheable and always runs.
type CacheConfig struct {
	// EnvInputs names environment variables whose values participate in the
	// fingerprint.
	EnvInputs []string
	// InheritsInputFromDependencies folds the manifest hashes of
	// local-dependency tasks into this task's manifest. Defaults to true.
	InheritsInputFromDependencies bool
	// Inputs selects this task's input files under the package directory.
	Inputs GlobSpec
	// Outputs selects the files captured after a successful run and handed
	// to downstream tasks.
	Outputs GlobSpec
	// UsesOutputFromDependencies feeds local-dependency tasks' output files
	// into this task's input enumeration. Defaults to true.
	UsesOutputFromDependencies bool
}

// DefaultCacheConfig returns the cache settings used when a task declares
// nothing: fingerprint every file in the package.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		InheritsInputFromDependencies: true,
		Inputs:                        DefaultGlobSpec(),
		Outputs:                       DefaultGlobSpec(),
		UsesOutputFromDependencies:    true,
	}
}

// TaskConfig is the fully resolved configuration for one (packageDir,
// taskName) pair. All defaults are applied at resolution time; consumers
// never re-default.
type TaskConfig struct {
	RunType     RunType
	BaseCommand string
	RunsAfter   map[string]RunsAfterConfig
	Parallel    bool
	// Cache is nil iff the config said cache: "none".
	Cache *CacheConfig
}

// BaseCacheConfig is the workspace-level cache configuration from the root
// config file.
type BaseCacheConfig struct {
	// Includes are glob patterns added to every task's input set. The
	// literal "<rootDir>" prefix expands to the workspace root.
	Includes []string
	// Excludes are glob patterns removed from the base include set.
	Excludes []string
	// EnvInputs are env var names folded into every task's fingerprint.
	EnvInputs []string
}

// RootDirToken is the placeholder expanded to the workspace root in base
// cache include/exclude patterns.
const RootDirToken = "<rootDir>"

// DefaultBaseCacheIncludes fingerprint the package-manager lockfile and the
// runner's own config files for every task.
func DefaultBaseCacheIncludes() []string {
	return []string{
		RootDirToken + "/{yarn.lock,pnpm-lock.yaml,package-lock.json}",
		RootDirToken + "/lazy.config.*",
	}
}
