package sourcefetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/versiongate/deploy-engine/models"
)

func TestPrepareSourceRejectsNonHTTPS(t *testing.T) {
	project := &models.Project{
		RepoURL:   "git@github.com:example/repo.git",
		Branch:    "main",
		LocalPath: t.TempDir(),
	}

	err := PrepareSource(context.Background(), project)
	assert.ErrorContains(t, err, "not HTTPS")
}

func TestIsGitRepositoryFalseForFreshDir(t *testing.T) {
	dir := t.TempDir()
	assert.Assert(t, !isGitRepository(dir))
}

func TestIsGitRepositoryTrueWhenDotGitPresent(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	assert.Assert(t, isGitRepository(dir))
}

func TestCombinedOutputOfFallsBackToErrorString(t *testing.T) {
	plain := assertableError("boom")
	assert.Equal(t, combinedOutputOf(plain), "boom")
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
