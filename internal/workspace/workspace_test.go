package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFindRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "packages", "utils", "src")
	writeFiles(t, root, map[string]string{
		"package-lock.json":        "{}",
		"packages/utils/src/.keep": "",
	})

	got, pm, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
	assert.Equal(t, Npm, pm)
}

func TestFindRoot_LockfilePrecedence(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pnpm-lock.yaml":    "",
		"yarn.lock":         "",
		"package-lock.json": "{}",
	})

	_, pm, err := FindRoot(root)
	require.NoError(t, err)
	assert.Equal(t, Pnpm, pm)
}

func TestFindRoot_NotFound(t *testing.T) {
	_, _, err := FindRoot(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find workspace root")
}

func TestDiscover_WorkspacesArray(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package-lock.json": "{}",
		"package.json": `{
			"name": "root",
			"workspaces": ["packages/*"],
			"scripts": {"prepare": "echo prepare"}
		}`,
		"packages/utils/package.json": `{"name": "utils", "scripts": {"build": "echo u"}}`,
		"packages/core/package.json": `{
			"name": "core",
			"dependencies": {"utils": "*", "react": "^18.0.0"},
			"scripts": {"build": "echo c"}
		}`,
		"packages/no-manifest/readme.txt": "not a package",
	})

	ws, err := Discover(root, Npm)
	require.NoError(t, err)

	require.Len(t, ws.Packages, 2)
	assert.Equal(t, "core", ws.Packages[0].Name)
	assert.Equal(t, "utils", ws.Packages[1].Name)
	assert.Equal(t, []string{"utils"}, ws.Packages[0].LocalDeps, "out-of-workspace deps are ignored")
	assert.Empty(t, ws.Packages[1].LocalDeps)
	assert.Equal(t, "echo prepare", ws.RootScripts["prepare"])

	core, ok := ws.PackageByName("core")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "packages", "core"), core.Dir)

	byDir, ok := ws.PackageByDir(core.Dir)
	require.True(t, ok)
	assert.Equal(t, "core", byDir.Name)
}

func TestDiscover_WorkspacesObjectForm(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"yarn.lock": "",
		"package.json": `{
			"name": "root",
			"workspaces": {"packages": ["libs/*"]}
		}`,
		"libs/a/package.json": `{"name": "a"}`,
	})

	ws, err := Discover(root, Yarn)
	require.NoError(t, err)
	require.Len(t, ws.Packages, 1)
	assert.Equal(t, "a", ws.Packages[0].Name)
}

func TestDiscover_PnpmWorkspaceYAML(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pnpm-lock.yaml":      "",
		"pnpm-workspace.yaml": "packages:\n  - \"apps/*\"\n",
		"package.json":        `{"name": "root"}`,
		"apps/web/package.json": `{
			"name": "web",
			"devDependencies": {"shared": "workspace:*"}
		}`,
		"apps/shared/package.json": `{"name": "shared"}`,
	})

	ws, err := Discover(root, Pnpm)
	require.NoError(t, err)
	require.Len(t, ws.Packages, 2)

	web, ok := ws.PackageByName("web")
	require.True(t, ok)
	assert.Equal(t, []string{"shared"}, web.LocalDeps, "devDependencies count as local deps")
}

func TestDiscover_DuplicateNameFatal(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package-lock.json":       "{}",
		"package.json":            `{"name": "root", "workspaces": ["packages/*"]}`,
		"packages/a/package.json": `{"name": "dup"}`,
		"packages/b/package.json": `{"name": "dup"}`,
	})

	_, err := Discover(root, Npm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate workspace package name "dup"`)
}

func TestDiscover_NoWorkspaceDeclaration(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package-lock.json": "{}",
		"package.json":      `{"name": "root"}`,
	})

	_, err := Discover(root, Npm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workspace declaration")
}

func TestAbsPath(t *testing.T) {
	ws := &Workspace{RootDir: filepath.FromSlash("/repo")}
	assert.Equal(t, filepath.FromSlash("/repo/packages/utils/index.js"), ws.AbsPath("packages/utils/index.js"))
}
