package rollback

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/projectlock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startHealthServer listens on an OS-assigned loopback port and answers
// every request with 200 when healthy is true and 503 otherwise, standing in for a freshly relaunched container's
// health endpoint so Rollback's real validator.Validate call has something
// to probe without a Docker daemon.
func startHealthServer(t *testing.T, healthy bool) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})}
	go server.Serve(listener)
	t.Cleanup(func() { server.Close() })

	return listener.Addr().(*net.TCPAddr).Port
}

func testProject() *models.Project {
	return &models.Project{
		ID:         "proj-1",
		Name:       "widget",
		AppPort:    8080,
		HealthPath: "/health",
		Env:        map[string]string{},
	}
}

func TestRollbackNoActiveDeployment(t *testing.T) {
	store := &fakeStore{}
	engine := New(store, newFakeDocker(), &fakeSwitcher{}, projectlock.NewTable(), testLogger(), "versiongate-net")

	_, err := engine.Rollback(context.Background(), testProject())
	assert.Assert(t, err != nil)
	apiErr, ok := err.(*apierrors.APIError)
	assert.Assert(t, ok)
	assert.Equal(t, apiErr.Kind, apierrors.KindNoActiveDeployment)
}

func TestRollbackNoPreviousDeployment(t *testing.T) {
	store := &fakeStore{
		active:     &models.Deployment{ID: "dep-current", ProjectID: "proj-1", Version: 2, Status: models.StatusActive, ContainerName: "widget-green"},
		noPrevious: true,
	}
	engine := New(store, newFakeDocker(), &fakeSwitcher{}, projectlock.NewTable(), testLogger(), "versiongate-net")

	_, err := engine.Rollback(context.Background(), testProject())
	assert.Assert(t, err != nil)
	apiErr, ok := err.(*apierrors.APIError)
	assert.Assert(t, ok)
	assert.Equal(t, apiErr.Kind, apierrors.KindNoPreviousDeployment)
}

func TestRollbackSuccessRestoresTrafficAndStatuses(t *testing.T) {
	port := startHealthServer(t, true)

	current := &models.Deployment{ID: "dep-current", ProjectID: "proj-1", Version: 2, Status: models.StatusActive, ContainerName: "widget-green", Port: 9999}
	previous := &models.Deployment{ID: "dep-previous", ProjectID: "proj-1", Version: 1, Status: models.StatusRolledBack, ContainerName: "widget-blue", Port: port, ImageTag: "versiongate-widget:1"}
	store := &fakeStore{active: current, previous: previous}
	dockerFake := newFakeDocker()
	switcherFake := &fakeSwitcher{}
	engine := New(store, dockerFake, switcherFake, projectlock.NewTable(), testLogger(), "versiongate-net")

	result, err := engine.Rollback(context.Background(), testProject())
	assert.NilError(t, err)
	assert.Equal(t, result.RestoredTo.ID, previous.ID)
	assert.Equal(t, result.RolledBackFrom.ID, current.ID)

	assert.Equal(t, previous.Status, models.StatusActive)
	assert.Equal(t, current.Status, models.StatusRolledBack)
	assert.Equal(t, switcherFake.port, port)
	assert.Assert(t, dockerFake.running[previous.ContainerName])
	assert.Assert(t, !dockerFake.running[current.ContainerName])
}

func TestRollbackFailsValidationLeavesCurrentActive(t *testing.T) {
	port := startHealthServer(t, false)

	current := &models.Deployment{ID: "dep-current", ProjectID: "proj-1", Version: 2, Status: models.StatusActive, ContainerName: "widget-green", Port: 9999}
	previous := &models.Deployment{ID: "dep-previous", ProjectID: "proj-1", Version: 1, Status: models.StatusRolledBack, ContainerName: "widget-blue", Port: port, ImageTag: "versiongate-widget:1"}
	store := &fakeStore{active: current, previous: previous}
	engine := New(store, newFakeDocker(), &fakeSwitcher{}, projectlock.NewTable(), testLogger(), "versiongate-net")

	_, err := engine.Rollback(context.Background(), testProject())
	assert.Assert(t, err != nil)
	apiErr, ok := err.(*apierrors.APIError)
	assert.Assert(t, ok)
	assert.Equal(t, apiErr.Kind, apierrors.KindRollbackValidationFailed)
	assert.Equal(t, current.Status, models.StatusActive)
}

func TestRollbackConflictWhenLockHeld(t *testing.T) {
	locks := projectlock.NewTable()
	assert.Assert(t, locks.Acquire("proj-1"))
	defer locks.Release("proj-1")

	store := &fakeStore{active: &models.Deployment{ID: "dep-current", ProjectID: "proj-1", Version: 2, Status: models.StatusActive}}
	engine := New(store, newFakeDocker(), &fakeSwitcher{}, locks, testLogger(), "versiongate-net")

	_, err := engine.Rollback(context.Background(), testProject())
	apiErr, ok := err.(*apierrors.APIError)
	assert.Assert(t, ok)
	assert.Equal(t, apiErr.Kind, apierrors.KindConflict)
}
