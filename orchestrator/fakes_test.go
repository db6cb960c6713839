package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/models"
)

// fakeStore is a minimal in-memory stand-in for *db.Database, satisfying the
// store interface declared in orchestrator.go.
type fakeStore struct {
	mu          sync.Mutex
	projects    map[string]*models.Project
	deployments map[string]*models.Deployment
	nextVersion int

	// statusUpdates records every UpdateDeploymentStatus call, in order, so
	// tests can wait on the pipeline's async goroutine reaching a terminal state.
	statusUpdates chan statusUpdate
}

type statusUpdate struct {
	id     string
	status models.DeploymentStatus
}

func newFakeStore(project *models.Project) *fakeStore {
	return &fakeStore{
		projects:      map[string]*models.Project{project.ID: project},
		deployments:   map[string]*models.Deployment{},
		nextVersion:   1,
		statusUpdates: make(chan statusUpdate, 16),
	}
}

func (f *fakeStore) FindProjectByID(id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %q not found", id)
	}
	return project, nil
}

func (f *fakeStore) FindActiveForProject(projectID string) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deployments {
		if d.ProjectID == projectID && d.Status == models.StatusActive {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no active deployment")
}

func (f *fakeStore) FindDeployingForProject(projectID string) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deployments {
		if d.ProjectID == projectID && d.Status == models.StatusDeploying {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no deploying deployment")
}

func (f *fakeStore) NextVersionForProject(projectID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.nextVersion
	f.nextVersion++
	return v, nil
}

func (f *fakeStore) CreateDeployment(deployment *models.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployments[deployment.ID] = deployment
	return nil
}

func (f *fakeStore) UpdateDeploymentStatus(id string, status models.DeploymentStatus, errorMessage *string) error {
	f.mu.Lock()
	d, ok := f.deployments[id]
	if ok {
		d.Status = status
		d.ErrorMessage = errorMessage
	}
	f.mu.Unlock()

	select {
	case f.statusUpdates <- statusUpdate{id: id, status: status}:
	default:
	}
	return nil
}

// fakeDocker is a minimal in-memory stand-in for *docker.Client, satisfying
// the containerRuntime interface.
type fakeDocker struct {
	mu      sync.Mutex
	running map[string]bool

	buildErr error
	runErr   error
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{running: map[string]bool{}}
}

func (f *fakeDocker) BuildImage(ctx context.Context, tag string, contextDir string) (string, error) {
	if f.buildErr != nil {
		return "build output", f.buildErr
	}
	return "", nil
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

func (f *fakeDocker) FreeHostPort(ctx context.Context, hostPort int) error {
	return nil
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
