package dockerfile

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestResolveUsesHandwrittenDockerfile(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "Dockerfile", "FROM scratch\n")

	dir, err := Resolve(repoRoot, ".")
	assert.NilError(t, err)
	assert.Equal(t, dir, repoRoot)

	contents, err := os.ReadFile(filepath.Join(repoRoot, "Dockerfile"))
	assert.NilError(t, err)
	assert.Equal(t, string(contents), "FROM scratch\n")
}

func TestResolveSynthesizesForGoProject(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "go.mod", "module example.com/app\n")

	dir, err := Resolve(repoRoot, ".")
	assert.NilError(t, err)
	assert.Equal(t, dir, repoRoot)

	contents, err := os.ReadFile(filepath.Join(repoRoot, "Dockerfile"))
	assert.NilError(t, err)
	assert.Assert(t, len(contents) > 0)
	firstLine := string(contents[:len(Sentinel)])
	assert.Equal(t, firstLine, Sentinel)
}

func TestResolveSynthesizesForPythonProject(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "requirements.txt", "flask\n")

	dir, err := Resolve(repoRoot, ".")
	assert.NilError(t, err)
	assert.Equal(t, dir, repoRoot)
}

func TestResolveFallsBackToSubdirectory(t *testing.T) {
	repoRoot := t.TempDir()
	subdir := filepath.Join(repoRoot, "backend")
	assert.NilError(t, os.MkdirAll(subdir, 0755))
	writeFile(t, subdir, "go.mod", "module example.com/backend\n")

	dir, err := Resolve(repoRoot, ".")
	assert.NilError(t, err)
	assert.Equal(t, dir, subdir)
}

func TestResolveUndetectableProjectType(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "README.md", "hello\n")

	_, err := Resolve(repoRoot, ".")
	assert.ErrorIs(t, err, ErrUndetectableProjectType)
}

func TestHasHandwrittenDockerfileIgnoresSynthesized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", Sentinel+"\nFROM node:20-alpine\n")

	assert.Assert(t, !hasHandwrittenDockerfile(dir))
}

func TestCandidateDirsExcludesHiddenAndNodeModules(t *testing.T) {
	repoRoot := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(repoRoot, ".git"), 0755))
	assert.NilError(t, os.MkdirAll(filepath.Join(repoRoot, "node_modules"), 0755))
	assert.NilError(t, os.MkdirAll(filepath.Join(repoRoot, "api"), 0755))

	candidates := candidateDirs(repoRoot, repoRoot)
	for _, c := range candidates {
		assert.Assert(t, filepath.Base(c) != ".git")
		assert.Assert(t, filepath.Base(c) != "node_modules")
	}
	assert.Assert(t, containsDir(candidates, filepath.Join(repoRoot, "api")))
}

func containsDir(dirs []string, target string) bool {
	for _, d := range dirs {
		if d == target {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
}
