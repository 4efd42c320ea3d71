package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const configPrefix = "lazy.config."

// The full set of names a workspace might carry. Only the declarative ones
// load; the code-bearing variants are rejected, not ignored.
var codeExtensions = map[string]bool{
	".js": true, ".cjs": true, ".mjs": true,
	".ts": true, ".cts": true, ".mts": true,
}

// LoadDir reads the config file in dir, if any. At most one lazy.config.*
// file may exist per directory; more than one is a fatal configuration
// error, as is a JS/TS config variant.
func LoadDir(dir string) (*File, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("read config dir %s: %w", dir, err)
	}

	var matches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), configPrefix) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return nil, "", nil
	}
	if len(matches) > 1 {
		sort.Strings(matches)
		return nil, "", fmt.Errorf("multiple config files in %s: %s", dir, strings.Join(matches, ", "))
	}

	name := matches[0]
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)

	if codeExtensions[ext] {
		return nil, "", fmt.Errorf("config file %s: executable config formats are not supported, use lazy.config.json or lazy.config.yaml", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	switch ext {
	case ".json":
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, "", fmt.Errorf("config file %s: unsupported extension %q", path, ext)
	}
	return &f, path, nil
}
