package rollback

import (
	"context"
	"fmt"
	"sync"

	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/models"
)

// fakeStore is a minimal in-memory stand-in for *db.Database, satisfying the
// store interface declared in rollback.go.
type fakeStore struct {
	mu          sync.Mutex
	active      *models.Deployment
	previous    *models.Deployment
	noPrevious  bool
	statusCalls []statusUpdate
}

type statusUpdate struct {
	id     string
	status models.DeploymentStatus
}

func (f *fakeStore) FindActiveForProject(projectID string) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil, fmt.Errorf("no active deployment")
	}
	return f.active, nil
}

func (f *fakeStore) FindPreviousForProject(projectID string, currentVersion int) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noPrevious || f.previous == nil {
		return nil, fmt.Errorf("no previous deployment")
	}
	return f.previous, nil
}

func (f *fakeStore) UpdateDeploymentStatus(id string, status models.DeploymentStatus, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusUpdate{id: id, status: status})
	if f.active != nil && f.active.ID == id {
		f.active.Status = status
	}
	if f.previous != nil && f.previous.ID == id {
		f.previous.Status = status
	}
	return nil
}

// fakeDocker is a minimal in-memory stand-in for *docker.Client, satisfying
// the containerRuntime interface.
type fakeDocker struct {
	mu      sync.Mutex
	running map[string]bool
	runErr  error
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{running: map[string]bool{}}
}

func (f *fakeDocker) RunContainer(ctx context.Context, cfg docker.RunContainerConfig) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.mu.Lock()
	f.running[cfg.Name] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDocker) StopContainer(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, name)
	return nil
}

func (f *fakeDocker) RemoveContainer(ctx context.Context, name string) error {
	return nil
}

func (f *fakeDocker) InspectRunning(ctx context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[name]
}

// fakeSwitcher is a minimal stand-in for *trafficswitch.Switcher.
type fakeSwitcher struct {
	mu   sync.Mutex
	port int
	err  error
}

func (f *fakeSwitcher) PointUpstreamAt(port int) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.port = port
	f.mu.Unlock()
	return nil
}
