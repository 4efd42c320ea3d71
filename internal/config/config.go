// Package config loads lazy.config.* files and resolves per-task
// configuration with defaults applied.
//
// Only declarative config formats are supported (lazy.config.json and
// lazy.config.yaml). The JS/TS config variants some workspaces carry require
// executing arbitrary code and are rejected with an explicit error.
package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a lazy.config file, at the workspace root or
// inside a package directory.
type File struct {
	BaseCacheConfig *BaseCacheShape      `json:"baseCacheConfig" yaml:"baseCacheConfig"`
	Tasks           map[string]TaskShape `json:"tasks" yaml:"tasks"`
}

// BaseCacheShape is the workspace-level cache section, honored only in the
// root config file.
type BaseCacheShape struct {
	Includes  []string `json:"includes" yaml:"includes"`
	Excludes  []string `json:"excludes" yaml:"excludes"`
	EnvInputs []string `json:"envInputs" yaml:"envInputs"`
}

// TaskShape is one task's raw configuration. Pointer fields distinguish
// "absent" from zero values so defaults apply only when unset.
type TaskShape struct {
	RunType     string                    `json:"runType" yaml:"runType"`
	BaseCommand string                    `json:"baseCommand" yaml:"baseCommand"`
	RunsAfter   map[string]RunsAfterShape `json:"runsAfter" yaml:"runsAfter"`
	Parallel    *bool                     `json:"parallel" yaml:"parallel"`
	Cache       *CacheShape               `json:"cache" yaml:"cache"`
}

// RunsAfterShape declares an ordering dependency on another task.
type RunsAfterShape struct {
	InheritsInput bool  `json:"inheritsInput" yaml:"inheritsInput"`
	UsesOutput    *bool `json:"usesOutput" yaml:"usesOutput"`
}

// GlobShape is a raw include/exclude pair.
type GlobShape struct {
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// CacheShape is either the literal string "none" or a cache object.
type CacheShape struct {
	None                          bool
	EnvInputs                     []string
	InheritsInputFromDependencies *bool
	Inputs                        *GlobShape
	Outputs                       *GlobShape
	UsesOutputFromDependencies    *bool
}

// cacheObject mirrors CacheShape without the custom unmarshalling, so the
// object form decodes with plain struct tags.
type cacheObject struct {
	EnvInputs                     []string   `json:"envInputs" yaml:"envInputs"`
	InheritsInputFromDependencies *bool      `json:"inheritsInputFromDependencies" yaml:"inheritsInputFromDependencies"`
	Inputs                        *GlobShape `json:"inputs" yaml:"inputs"`
	Outputs                       *GlobShape `json:"outputs" yaml:"outputs"`
	UsesOutputFromDependencies    *bool      `json:"usesOutputFromDependencies" yaml:"usesOutputFromDependencies"`
}

func (c *CacheShape) fromObject(obj cacheObject) {
	c.None = false
	c.EnvInputs = obj.EnvInputs
	c.InheritsInputFromDependencies = obj.InheritsInputFromDependencies
	c.Inputs = obj.Inputs
	c.Outputs = obj.Outputs
	c.UsesOutputFromDependencies = obj.UsesOutputFromDependencies
}

// UnmarshalJSON accepts `"none"` or a cache object.
func (c *CacheShape) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "none" {
			return fmt.Errorf("cache must be \"none\" or an object, got %q", s)
		}
		*c = CacheShape{None: true}
		return nil
	}
	var obj cacheObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("cache must be \"none\" or an object: %w", err)
	}
	c.fromObject(obj)
	return nil
}

// UnmarshalYAML accepts `none` / `"none"` or a cache mapping.
func (c *CacheShape) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return fmt.Errorf("cache must be \"none\" or a mapping: %w", err)
		}
		if s != "none" {
			return fmt.Errorf("cache must be \"none\" or a mapping, got %q", s)
		}
		*c = CacheShape{None: true}
		return nil
	}
	var obj cacheObject
	if err := value.Decode(&obj); err != nil {
		return fmt.Errorf("cache must be \"none\" or a mapping: %w", err)
	}
	c.fromObject(obj)
	return nil
}
