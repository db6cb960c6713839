package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/deploylog"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/dockerfile"
	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/sourcefetch"
	"github.com/versiongate/deploy-engine/validator"
)

// Deploy acquires the per-project lock, computes the new deployment's slot
// and version, and persists its DEPLOYING record — all synchronously, so the
// caller gets back a real deployment id to poll immediately. The rest of the
// pipeline (source fetch, image build, container launch, validation, traffic
// switch, promotion) runs in its own goroutine: a deploy can run well past
// any HTTP server's write timeout, so nothing past record creation may block
// the request that triggered it, the same fire-and-forget shape the webhook
// dispatcher uses for its own deploy trigger.
func (o *Orchestrator) Deploy(ctx context.Context, projectID string) (*DeployResult, error) {
	if !o.locks.Acquire(projectID) {
		return nil, apierrors.Conflict("deployment already in progress for project %q", projectID)
	}

	project, err := o.database.FindProjectByID(projectID)
	if err != nil {
		o.locks.Release(projectID)
		return nil, err
	}

	previousActive, err := o.database.FindActiveForProject(projectID)
	hadPreviousActive := err == nil
	newColor := models.ColorBlue
	if hadPreviousActive {
		newColor = previousActive.Color.Opposite()
	}

	version, err := o.database.NextVersionForProject(projectID)
	if err != nil {
		o.locks.Release(projectID)
		return nil, fmt.Errorf("failed to compute next version for project %q: %w", projectID, err)
	}

	deployment := &models.Deployment{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		Version:       version,
		Color:         newColor,
		Port:          hostPortFor(project, newColor),
		ContainerName: o.containerNameFor(project, newColor),
		ImageTag:      fmt.Sprintf("versiongate-%s:%d", project.Name, time.Now().UnixMilli()),
		Status:        models.StatusDeploying,
	}

	if err := o.database.CreateDeployment(deployment); err != nil {
		o.locks.Release(projectID)
		return nil, fmt.Errorf("failed to persist deployment record: %w", err)
	}

	// the pipeline goroutine updates deployment in place, so the caller gets a
	// copy taken while it is still DEPLOYING.
	returned := *deployment

	go o.runPipelineAsync(project, deployment, previousActive, hadPreviousActive)

	return &DeployResult{
		Deployment: &returned,
		Message:    fmt.Sprintf("deployment started for version %d on %s", returned.Version, returned.Color),
	}, nil
}

// runPipelineAsync runs everything after the DEPLOYING record exists,
// against a background context: the request that triggered Deploy has
// already received its response by the time this goroutine starts, so there
// is no request context left to propagate. Every exit path releases the
// project's lock and, on failure, flips the deployment record to FAILED.
func (o *Orchestrator) runPipelineAsync(project *models.Project, deployment *models.Deployment, previousActive *models.Deployment, hadPreviousActive bool) {
	defer o.locks.Release(project.ID)
	ctx := context.Background()

	buildLog, err := deploylog.Open(o.logRoot, project.Name)
	if err != nil {
		o.logger.Warn("failed to open build log, continuing without one", "project", project.Name, "error", err)
		buildLog = nil
	}
	defer func() {
		if buildLog != nil {
			_ = buildLog.Close()
		}
	}()
	logStep := func(format string, args ...any) {
		if buildLog != nil {
			buildLog.Logf(deployment.Version, format, args...)
		}
	}

	logStep("preparing source for %s", project.RepoURL)
	if err := sourcefetch.PrepareSource(ctx, project); err != nil {
		logStep("deployment failed: %v", err)
		o.failDeployment(ctx, deployment, err)
		return
	}
	if o.locks.CancelRequested(project.ID) {
		cancelErr := apierrors.Deployment("cancelled by user")
		logStep("deployment failed: %v", cancelErr)
		o.failDeployment(ctx, deployment, cancelErr)
		return
	}

	buildContextDir, err := dockerfile.Resolve(project.LocalPath, project.BuildContext)
	if err != nil {
		logStep("deployment failed: %v", err)
		o.failDeployment(ctx, deployment, err)
		return
	}

	if _, pipelineErr := o.runPipelineSteps(ctx, project, deployment, buildContextDir, previousActive, hadPreviousActive, logStep); pipelineErr != nil {
		logStep("deployment failed: %v", pipelineErr)
		o.failDeployment(ctx, deployment, pipelineErr)
	}
}

func (o *Orchestrator) runPipelineSteps(
	ctx context.Context,
	project *models.Project,
	deployment *models.Deployment,
	buildContextDir string,
	previousActive *models.Deployment,
	hadPreviousActive bool,
	logStep func(format string, args ...any),
) (*DeployResult, error) {
	// step 4: build image.
	logStep("building image %s from %s", deployment.ImageTag, buildContextDir)
	buildOutput, err := o.docker.BuildImage(ctx, deployment.ImageTag, buildContextDir)
	if err != nil {
		return nil, apierrors.Deployment("image build failed: %s", combinedOrErr(buildOutput, err))
	}
	if o.locks.CancelRequested(project.ID) {
		return nil, apierrors.Deployment("cancelled by user")
	}

	// step 5: launch container, defensively clearing any stale occupant of
	// this slot first (each call below ignores absence).
	logStep("launching container %s on port %d", deployment.ContainerName, deployment.Port)
	_ = o.docker.StopContainer(ctx, deployment.ContainerName)
	_ = o.docker.RemoveContainer(ctx, deployment.ContainerName)
	_ = o.docker.FreeHostPort(ctx, deployment.Port)

	if err := o.docker.RunContainer(ctx, docker.RunContainerConfig{
		Name:          deployment.ContainerName,
		ImageTag:      deployment.ImageTag,
		HostPort:      deployment.Port,
		ContainerPort: project.AppPort,
		NetworkName:   o.networkName,
		Env:           project.Env,
	}); err != nil {
		return nil, apierrors.Deployment("container launch failed: %s", err)
	}
	if o.locks.CancelRequested(project.ID) {
		return nil, apierrors.Deployment("cancelled by user")
	}

	// validate before switching traffic: the previous ACTIVE keeps serving
	// until the new container proves healthy.
	logStep("validating health at %s", project.HealthPath)
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", deployment.Port)
	validation := validator.Validate(ctx, baseURL, project.HealthPath, deployment.ContainerName, o.docker.InspectRunning)
	if !validation.OK {
		return nil, apierrors.Deployment("health check failed: %s", validation.Error)
	}

	// step 6: switch traffic.
	logStep("switching traffic to port %d", deployment.Port)
	if err := o.switcher.PointUpstreamAt(deployment.Port); err != nil {
		return nil, apierrors.Deployment("%s", err)
	}

	// step 7: promote and retire.
	if err := o.database.UpdateDeploymentStatus(deployment.ID, models.StatusActive, nil); err != nil {
		return nil, fmt.Errorf("failed to promote deployment %q to ACTIVE: %w", deployment.ID, err)
	}
	deployment.Status = models.StatusActive
	logStep("deployment ACTIVE")

	if hadPreviousActive {
		// non-fatal: logged, not propagated. the new deployment is ACTIVE
		// regardless of whether the outgoing container tears down cleanly.
		if err := o.docker.StopContainer(ctx, previousActive.ContainerName); err != nil {
			o.logger.Warn("failed to stop outgoing container (continuing)", "container_name", previousActive.ContainerName, "error", err)
		}
		if err := o.docker.RemoveContainer(ctx, previousActive.ContainerName); err != nil {
			o.logger.Warn("failed to remove outgoing container (continuing)", "container_name", previousActive.ContainerName, "error", err)
		}
		// written after the outgoing container is stopped, not before: a
		// watcher tick racing this pipeline may observe the old container
		// down and mark it FAILED first, but this ROLLED_BACK write is the
		// last writer and the desired terminal state.
		if err := o.database.UpdateDeploymentStatus(previousActive.ID, models.StatusRolledBack, nil); err != nil {
			o.logger.Error("failed to mark previous deployment ROLLED_BACK", "deployment_id", previousActive.ID, "error", err)
		}
	}

	o.logger.Info("deployment complete",
		"project", project.Name, "deployment_id", deployment.ID, "version", deployment.Version, "color", deployment.Color)

	return &DeployResult{
		Deployment: deployment,
		Message:    fmt.Sprintf("deployed version %d on %s", deployment.Version, deployment.Color),
	}, nil
}

func combinedOrErr(output string, err error) string {
	if output != "" {
		return output
	}
	return err.Error()
}
