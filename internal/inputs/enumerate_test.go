package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazyrun/internal/model"
)

// writeTree creates files (keyed by slash-relative path) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func fixtureRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package-lock.json":                    "{}",
		"package.json":                         `{"name":"root"}`,
		"packages/utils/package.json":          `{"name":"utils"}`,
		"packages/utils/index.js":              "module.exports = 1\n",
		"packages/utils/src/helper.js":         "x\n",
		"packages/utils/README.md":             "docs\n",
		"packages/utils/.out.txt":              "built\n",
		"packages/utils/.lazy/manifests/build": "stale\n",
	})
	return root
}

func TestEnumerate_Defaults(t *testing.T) {
	root := fixtureRoot(t)
	e := New(root, model.BaseCacheConfig{})
	pkgDir := filepath.Join(root, "packages", "utils")

	paths, ok, err := e.Enumerate(pkgDir, model.DefaultCacheConfig(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{
		"package-lock.json",
		"packages/utils/README.md",
		"packages/utils/index.js",
		"packages/utils/package.json",
		"packages/utils/src/helper.js",
	}, paths)
}

func TestEnumerate_HiddenFilesNeverMatch(t *testing.T) {
	root := fixtureRoot(t)
	writeTree(t, root, map[string]string{
		"packages/utils/.cache/blob": "x",
	})
	e := New(root, model.BaseCacheConfig{})
	pkgDir := filepath.Join(root, "packages", "utils")

	paths, _, err := e.Enumerate(pkgDir, model.DefaultCacheConfig(), nil)
	require.NoError(t, err)
	for _, p := range paths {
		assert.NotContains(t, p, ".out.txt")
		assert.NotContains(t, p, ".lazy")
		assert.NotContains(t, p, ".cache")
	}
}

func TestEnumerate_ExcludeGlobs(t *testing.T) {
	root := fixtureRoot(t)
	e := New(root, model.BaseCacheConfig{})
	pkgDir := filepath.Join(root, "packages", "utils")

	cache := model.DefaultCacheConfig()
	cache.Inputs.Exclude = []string{"**/*.md"}

	paths, _, err := e.Enumerate(pkgDir, cache, nil)
	require.NoError(t, err)
	assert.NotContains(t, paths, "packages/utils/README.md")
	assert.Contains(t, paths, "packages/utils/index.js")
}

func TestEnumerate_NarrowIncludes(t *testing.T) {
	root := fixtureRoot(t)
	e := New(root, model.BaseCacheConfig{})
	pkgDir := filepath.Join(root, "packages", "utils")

	cache := model.DefaultCacheConfig()
	cache.Inputs = model.GlobSpec{Include: []string{"src/**/*"}}

	paths, _, err := e.Enumerate(pkgDir, cache, nil)
	require.NoError(t, err)
	assert.Contains(t, paths, "packages/utils/src/helper.js")
	assert.NotContains(t, paths, "packages/utils/index.js")
}

func TestEnumerate_ExtraFilesMergedAndSorted(t *testing.T) {
	root := fixtureRoot(t)
	e := New(root, model.BaseCacheConfig{})
	pkgDir := filepath.Join(root, "packages", "utils")

	extra := []string{"packages/other/dist/out.js", "packages/utils/index.js"}
	paths, _, err := e.Enumerate(pkgDir, model.DefaultCacheConfig(), extra)
	require.NoError(t, err)

	assert.Contains(t, paths, "packages/other/dist/out.js")
	// Already-enumerated files dedupe instead of doubling.
	count := 0
	for _, p := range paths {
		if p == "packages/utils/index.js" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.IsIncreasing(t, paths)
}

func TestEnumerate_CacheNoneHasNoInputSet(t *testing.T) {
	root := fixtureRoot(t)
	e := New(root, model.BaseCacheConfig{})

	paths, ok, err := e.Enumerate(filepath.Join(root, "packages", "utils"), nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, paths)
}

func TestEnumerate_BaseIncludesAndExcludes(t *testing.T) {
	root := fixtureRoot(t)
	writeTree(t, root, map[string]string{
		"configs/tsconfig.json": "{}",
		"configs/skip.json":     "{}",
	})
	e := New(root, model.BaseCacheConfig{
		Includes: []string{model.RootDirToken + "/configs/*.json"},
		Excludes: []string{"configs/skip.json"},
	})
	pkgDir := filepath.Join(root, "packages", "utils")

	paths, _, err := e.Enumerate(pkgDir, model.DefaultCacheConfig(), nil)
	require.NoError(t, err)
	assert.Contains(t, paths, "configs/tsconfig.json")
	assert.NotContains(t, paths, "configs/skip.json")
	// Custom base includes replace the default lockfile set.
	assert.NotContains(t, paths, "package-lock.json")
}

func TestOutputs(t *testing.T) {
	root := fixtureRoot(t)
	writeTree(t, root, map[string]string{
		"packages/utils/dist/out.js":  "x",
		"packages/utils/dist/out.map": "x",
	})
	e := New(root, model.BaseCacheConfig{})
	pkgDir := filepath.Join(root, "packages", "utils")

	outs, err := e.Outputs(pkgDir, model.GlobSpec{Include: []string{"dist/**/*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"packages/utils/dist/out.js",
		"packages/utils/dist/out.map",
	}, outs)
}
