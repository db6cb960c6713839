// Package rollback implements one-click rollback to a project's most recent
// ROLLED_BACK deployment. It holds the same per-project lock the deploy
// pipeline does (shared via a *projectlock.Table constructed once in
// main.go), so a rollback and a deploy for the same project can never run concurrently.
package rollback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/projectlock"
	"github.com/versiongate/deploy-engine/validator"
)

// store is the narrow slice of *db.Database a rollback touches.
type store interface {
	FindActiveForProject(projectID string) (*models.Deployment, error)
	FindPreviousForProject(projectID string, currentVersion int) (*models.Deployment, error)
	UpdateDeploymentStatus(id string, status models.DeploymentStatus, errorMessage *string) error
}

// containerRuntime is the narrow slice of *docker.Client a rollback drives.
type containerRuntime interface {
	RunContainer(ctx context.Context, cfg docker.RunContainerConfig) error
	StopContainer(ctx context.Context, name string) error
	RemoveContainer(ctx context.Context, name string) error
	InspectRunning(ctx context.Context, name string) bool
}

// trafficSwitcher is the narrow slice of *trafficswitch.Switcher a rollback needs.
type trafficSwitcher interface {
	PointUpstreamAt(port int) error
}

// Engine holds the dependencies a rollback needs.
type Engine struct {
	database    store
	docker      containerRuntime
	switcher    trafficSwitcher
	logger      *slog.Logger
	locks       *projectlock.Table
	networkName string
}

// New constructs an Engine. locks is the same *projectlock.Table handed to
// orchestrator.New, so the two share lock state for a given project.
func New(database store, dockerClient containerRuntime, switcher trafficSwitcher, locks *projectlock.Table, logger *slog.Logger, networkName string) *Engine {
	return &Engine{database: database, docker: dockerClient, switcher: switcher, logger: logger, locks: locks, networkName: networkName}
}

// Result is returned by Rollback on success.
type Result struct {
	RolledBackFrom *models.Deployment
	RestoredTo     *models.Deployment
	Message        string
}

// Rollback restarts a project's most recent ROLLED_BACK deployment, validates
// it, switches traffic back to it, and retires the current ACTIVE deployment.
// if the previous image has since been pruned, RunContainer fails and the
// rollback aborts with the current deployment left ACTIVE and untouched.
func (e *Engine) Rollback(ctx context.Context, project *models.Project) (*Result, error) {
	if !e.locks.Acquire(project.ID) {
		return nil, apierrors.Conflict("deployment already in progress for project %q", project.Name)
	}
	defer e.locks.Release(project.ID)

	current, err := e.database.FindActiveForProject(project.ID)
	if err != nil {
		return nil, apierrors.NoActiveDeployment("project %q has no active deployment", project.Name)
	}

	previous, err := e.database.FindPreviousForProject(project.ID, current.Version)
	if err != nil {
		return nil, apierrors.NoPreviousDeployment("project %q has no previous deployment to roll back to", project.Name)
	}

	if err := e.docker.RunContainer(ctx, docker.RunContainerConfig{
		Name:          previous.ContainerName,
		ImageTag:      previous.ImageTag,
		HostPort:      previous.Port,
		ContainerPort: project.AppPort,
		NetworkName:   e.networkName,
		Env:           project.Env,
	}); err != nil {
		return nil, fmt.Errorf("failed to relaunch previous container %q: %w", previous.ContainerName, err)
	}

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", previous.Port)
	validation := validator.Validate(ctx, baseURL, project.HealthPath, previous.ContainerName, e.docker.InspectRunning)
	if !validation.OK {
		_ = e.docker.StopContainer(ctx, previous.ContainerName)
		_ = e.docker.RemoveContainer(ctx, previous.ContainerName)
		return nil, apierrors.RollbackValidationFailed("restarted previous container failed health check: %s", validation.Error)
	}

	if err := e.switcher.PointUpstreamAt(previous.Port); err != nil {
		return nil, fmt.Errorf("failed to switch traffic back to previous deployment: %w", err)
	}

	if err := e.docker.StopContainer(ctx, current.ContainerName); err != nil {
		e.logger.Warn("failed to stop current container during rollback (continuing)", "container_name", current.ContainerName, "error", err)
	}
	if err := e.docker.RemoveContainer(ctx, current.ContainerName); err != nil {
		e.logger.Warn("failed to remove current container during rollback (continuing)", "container_name", current.ContainerName, "error", err)
	}

	if err := e.database.UpdateDeploymentStatus(previous.ID, models.StatusActive, nil); err != nil {
		return nil, fmt.Errorf("failed to promote previous deployment %q to ACTIVE: %w", previous.ID, err)
	}
	if err := e.database.UpdateDeploymentStatus(current.ID, models.StatusRolledBack, nil); err != nil {
		e.logger.Error("failed to mark rolled-back deployment", "deployment_id", current.ID, "error", err)
	}

	e.logger.Info("rollback complete", "project", project.Name, "restored_version", previous.Version, "rolled_back_version", current.Version)

	return &Result{
		RolledBackFrom: current,
		RestoredTo:     previous,
		Message:        fmt.Sprintf("rolled back to version %d", previous.Version),
	}, nil
}
