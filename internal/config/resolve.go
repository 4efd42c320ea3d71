package config

import (
	"fmt"

	"lazyrun/internal/model"
)

// Resolver answers "what is the configuration of taskName in pkgDir" for one
// workspace, merging per-package config files over the root config and
// applying all defaults. Built once per invocation; read-only afterwards.
type Resolver struct {
	rootDir string
	root    *File
	perDir  map[string]*File
}

// NewResolver loads the root config and each package directory's config.
// Any malformed file, duplicate config, or unknown runType aborts before a
// single task runs.
func NewResolver(rootDir string, pkgDirs []string) (*Resolver, error) {
	root, rootPath, err := LoadDir(rootDir)
	if err != nil {
		return nil, err
	}
	if err := validateFile(root, rootPath); err != nil {
		return nil, err
	}

	perDir := make(map[string]*File, len(pkgDirs))
	for _, dir := range pkgDirs {
		f, path, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		if err := validateFile(f, path); err != nil {
			return nil, err
		}
		perDir[dir] = f
	}

	return &Resolver{rootDir: rootDir, root: root, perDir: perDir}, nil
}

func validateFile(f *File, path string) error {
	if f == nil {
		return nil
	}
	for name, task := range f.Tasks {
		switch model.RunType(task.RunType) {
		case "", model.RunTypeDependent, model.RunTypeIndependent, model.RunTypeTopLevel:
		default:
			return fmt.Errorf("config %s: task %q has unknown runType %q", path, name, task.RunType)
		}
	}
	return nil
}

// BaseCache returns the workspace-level cache config with defaults applied.
// Only the root config file's baseCacheConfig section is honored.
func (r *Resolver) BaseCache() model.BaseCacheConfig {
	base := model.BaseCacheConfig{Includes: model.DefaultBaseCacheIncludes()}
	if r.root == nil || r.root.BaseCacheConfig == nil {
		return base
	}
	s := r.root.BaseCacheConfig
	if len(s.Includes) > 0 {
		base.Includes = s.Includes
	}
	base.Excludes = s.Excludes
	base.EnvInputs = s.EnvInputs
	return base
}

// Task resolves the configuration for (pkgDir, taskName). A task entry in
// the package's own config file shadows the root's entry; with neither, the
// task runs with pure defaults.
func (r *Resolver) Task(pkgDir, taskName string) model.TaskConfig {
	var shape TaskShape
	if f, ok := r.perDir[pkgDir]; ok {
		if s, ok := f.Tasks[taskName]; ok {
			return resolveShape(s)
		}
	}
	if r.root != nil {
		if s, ok := r.root.Tasks[taskName]; ok {
			return resolveShape(s)
		}
	}
	return resolveShape(shape)
}

func resolveShape(s TaskShape) model.TaskConfig {
	cfg := model.TaskConfig{
		RunType:     model.RunTypeDependent,
		BaseCommand: s.BaseCommand,
		Parallel:    true,
	}
	if s.RunType != "" {
		cfg.RunType = model.RunType(s.RunType)
	}
	if s.Parallel != nil {
		cfg.Parallel = *s.Parallel
	}

	if len(s.RunsAfter) > 0 {
		cfg.RunsAfter = make(map[string]model.RunsAfterConfig, len(s.RunsAfter))
		for other, ra := range s.RunsAfter {
			cfg.RunsAfter[other] = model.RunsAfterConfig{
				InheritsInput: ra.InheritsInput,
				UsesOutput:    ra.UsesOutput == nil || *ra.UsesOutput,
			}
		}
	}

	cfg.Cache = resolveCache(s.Cache)
	return cfg
}

func resolveCache(s *CacheShape) *model.CacheConfig {
	if s == nil {
		return model.DefaultCacheConfig()
	}
	if s.None {
		return nil
	}
	c := model.DefaultCacheConfig()
	c.EnvInputs = s.EnvInputs
	if s.InheritsInputFromDependencies != nil {
		c.InheritsInputFromDependencies = *s.InheritsInputFromDependencies
	}
	if s.UsesOutputFromDependencies != nil {
		c.UsesOutputFromDependencies = *s.UsesOutputFromDependencies
	}
	c.Inputs = resolveGlob(s.Inputs)
	c.Outputs = resolveGlob(s.Outputs)
	return c
}

func resolveGlob(s *GlobShape) model.GlobSpec {
	spec := model.DefaultGlobSpec()
	if s == nil {
		return spec
	}
	if len(s.Include) > 0 {
		spec.Include = s.Include
	}
	spec.Exclude = s.Exclude
	return spec
}
