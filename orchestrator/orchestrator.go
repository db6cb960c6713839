// Package orchestrator implements the deployment pipeline: the core state
// machine that takes a registered project from "deploy requested" to a
// validated, traffic-serving container, retiring whatever was previously
// active. Grounded on the teacher's DeployerPipeline (build2/pipeline.go):
// a dependency-injected struct constructed once in main.go, with one
// exported entry point invoked per deployment and no per-call state kept on
// the struct itself.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/projectlock"
)

// store is the narrow slice of *db.Database the deploy pipeline touches,
// declared at the point of use so a fake can stand in for tests without a
// real database — the "adapter objects referencing each other... pass as an
// explicit dependency struct, avoid hidden singletons so tests can inject
// fakes" shape the rest of this package's collaborators follow too.
type store interface {
	FindProjectByID(id string) (*models.Project, error)
	FindActiveForProject(projectID string) (*models.Deployment, error)
	FindDeployingForProject(projectID string) (*models.Deployment, error)
	NextVersionForProject(projectID string) (int, error)
	CreateDeployment(deployment *models.Deployment) error
	UpdateDeploymentStatus(id string, status models.DeploymentStatus, errorMessage *string) error
}

// containerRuntime is the narrow slice of *docker.Client the deploy pipeline
// drives: build, launch, probe, and tear down one project's containers.
type containerRuntime interface {
	BuildImage(ctx context.Context, tag string, contextDir string) (string, error)
	RunContainer(ctx context.Context, cfg docker.RunContainerConfig) error
	StopContainer(ctx context.Context, name string) error
	RemoveContainer(ctx context.Context, name string) error
	InspectRunning(ctx context.Context, name string) bool
	FreeHostPort(ctx context.Context, hostPort int) error
}

// trafficSwitcher is the narrow slice of *trafficswitch.Switcher the
// pipeline needs: rewriting the reverse-proxy upstream after a new
// container validates healthy.
type trafficSwitcher interface {
	PointUpstreamAt(port int) error
}

// Orchestrator holds the dependencies every deployment pipeline run needs.
// constructed once in main.go; Deploy and Cancel are safe to call
// concurrently for different projects, serialized per-project by locks.
type Orchestrator struct {
	database store
	docker   containerRuntime
	switcher trafficSwitcher
	logger   *slog.Logger
	locks    *projectlock.Table

	// networkName is the Docker network every project container joins.
	networkName string

	// logRoot is the base directory per-project build log files are written to.
	logRoot string
}

// Config groups the values Orchestrator needs from the application config,
// the same "mirror the relevant config fields, don't import the config
// package" pattern the teacher applies in DeployerPipelineConfig.
type Config struct {
	NetworkName string
	LogRoot     string
}

// New constructs an Orchestrator. locks is shared with the rollback engine
// (constructed once in main.go) so a deploy and a rollback for the same
// project can never run concurrently.
func New(database store, dockerClient containerRuntime, switcher trafficSwitcher, locks *projectlock.Table, logger *slog.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		database:    database,
		docker:      dockerClient,
		switcher:    switcher,
		logger:      logger,
		locks:       locks,
		networkName: cfg.NetworkName,
		logRoot:     cfg.LogRoot,
	}
}

// DeployResult is returned by Deploy once the deployment record exists;
// Deployment.Status is DEPLOYING at that point, not yet ACTIVE — the pipeline
// continues in the background and the caller polls the deployment endpoints
// for its terminal state.
type DeployResult struct {
	Deployment *models.Deployment
	Message    string
}

func (o *Orchestrator) containerNameFor(project *models.Project, color models.Color) string {
	return fmt.Sprintf("%s-%s", project.Name, lowerColor(color))
}

func lowerColor(color models.Color) string {
	if color == models.ColorBlue {
		return "blue"
	}
	return "green"
}

func hostPortFor(project *models.Project, color models.Color) int {
	if color == models.ColorBlue {
		return project.BasePort
	}
	return project.BasePort + 1
}

// failDeployment marks a deployment FAILED with the error's string form and
// logs the transition, swallowing (but logging) any repository write
// failure — per §7's propagation policy, the watcher/reconciliation will
// re-converge a record that failed to persist its FAILED status.
func (o *Orchestrator) failDeployment(ctx context.Context, deployment *models.Deployment, cause error) {
	message := cause.Error()
	if err := o.database.UpdateDeploymentStatus(deployment.ID, models.StatusFailed, &message); err != nil {
		o.logger.Error("failed to persist FAILED status for deployment",
			"deployment_id", deployment.ID, "underlying_error", cause, "write_error", err)
	}
}
