package webhook

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/orchestrator"
)

func TestBranchFromRef(t *testing.T) {
	assert.Equal(t, branchFromRef("refs/heads/main"), "main")
	assert.Equal(t, branchFromRef("refs/heads/feature/x"), "feature/x")
	assert.Equal(t, branchFromRef("main"), "main")
}

type fakeDeployer struct {
	calls int32
}

func (f *fakeDeployer) Deploy(ctx context.Context, projectID string) (*orchestrator.DeployResult, error) {
	atomic.AddInt32(&f.calls, 1)
	return &orchestrator.DeployResult{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDatabase(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"), testLogger())
	assert.NilError(t, err)
	t.Cleanup(func() { database.CloseDatabase() })
	return database
}

func createTestProject(t *testing.T, database *db.Database, name, secret, branch string) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:            name + "-id",
		Name:          name,
		RepoURL:       "https://example.com/" + name + ".git",
		Branch:        branch,
		BuildContext:  ".",
		LocalPath:     "/tmp/" + name,
		AppPort:       8080,
		HealthPath:    "/health",
		BasePort:      3100,
		WebhookSecret: secret,
		Env:           map[string]string{},
	}
	assert.NilError(t, database.CreateProject(project))
	return project
}

func TestDispatchUnknownSecretReturnsNotFound(t *testing.T) {
	database := openTestDatabase(t)
	dispatcher := New(database, &fakeDeployer{}, testLogger())

	_, err := dispatcher.Dispatch(context.Background(), "unknown-secret", PushEventType, strings.NewReader(`{}`))
	assert.ErrorContains(t, err, "no project matches")
}

func TestDispatchSkipsNonPushEvent(t *testing.T) {
	database := openTestDatabase(t)
	createTestProject(t, database, "app1", "secret1", "main")
	dispatcher := New(database, &fakeDeployer{}, testLogger())

	outcome, err := dispatcher.Dispatch(context.Background(), "secret1", "pull_request", strings.NewReader(`{}`))
	assert.NilError(t, err)
	assert.Assert(t, outcome.Skipped)
}

func TestDispatchSkipsBranchMismatch(t *testing.T) {
	database := openTestDatabase(t)
	createTestProject(t, database, "app2", "secret2", "main")
	dispatcher := New(database, &fakeDeployer{}, testLogger())

	body := strings.NewReader(`{"ref":"refs/heads/develop"}`)
	outcome, err := dispatcher.Dispatch(context.Background(), "secret2", PushEventType, body)
	assert.NilError(t, err)
	assert.Assert(t, outcome.Skipped)
	assert.Equal(t, outcome.Reason, "branch mismatch")
}

func TestDispatchTriggersDeployOnMatchingBranch(t *testing.T) {
	database := openTestDatabase(t)
	createTestProject(t, database, "app3", "secret3", "main")
	deployer := &fakeDeployer{}
	dispatcher := New(database, deployer, testLogger())

	body := strings.NewReader(`{"ref":"refs/heads/main"}`)
	outcome, err := dispatcher.Dispatch(context.Background(), "secret3", PushEventType, body)
	assert.NilError(t, err)
	assert.Assert(t, !outcome.Skipped)
}

func TestDispatchRateLimitsRepeatedWebhooks(t *testing.T) {
	database := openTestDatabase(t)
	createTestProject(t, database, "app4", "secret4", "main")
	dispatcher := New(database, &fakeDeployer{}, testLogger())

	for i := 0; i < rateBurst; i++ {
		body := strings.NewReader(`{"ref":"refs/heads/main"}`)
		outcome, err := dispatcher.Dispatch(context.Background(), "secret4", PushEventType, body)
		assert.NilError(t, err)
		assert.Assert(t, !outcome.Skipped)
	}

	body := strings.NewReader(`{"ref":"refs/heads/main"}`)
	outcome, err := dispatcher.Dispatch(context.Background(), "secret4", PushEventType, body)
	assert.NilError(t, err)
	assert.Assert(t, outcome.Skipped)
	assert.Equal(t, outcome.Reason, "rate limited")
}

func TestLimiterForReturnsSameLimiterInstance(t *testing.T) {
	dispatcher := New(nil, nil, testLogger())
	a := dispatcher.limiterFor("proj-1")
	b := dispatcher.limiterFor("proj-1")
	assert.Assert(t, a == b)
}
