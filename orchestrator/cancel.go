package orchestrator

import (
	"context"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/models"
)

// Cancel stops an in-flight deployment for a project. it unconditionally
// stops and removes the deployment's container — this also unblocks any
// in-progress health probe, which fails fast because inspectRunning now
// returns false — then marks the deployment FAILED and releases the lock.
func (o *Orchestrator) Cancel(ctx context.Context, projectID string) error {
	deployment, err := o.database.FindDeployingForProject(projectID)
	if err != nil {
		return apierrors.NotFound("no in-flight deployment for project %q", projectID)
	}

	if o.locks.IsLocked(projectID) {
		o.locks.RequestCancel(projectID)
	}

	if err := o.docker.StopContainer(ctx, deployment.ContainerName); err != nil {
		o.logger.Warn("failed to stop container during cancel (continuing)", "container_name", deployment.ContainerName, "error", err)
	}
	if err := o.docker.RemoveContainer(ctx, deployment.ContainerName); err != nil {
		o.logger.Warn("failed to remove container during cancel (continuing)", "container_name", deployment.ContainerName, "error", err)
	}

	message := "Cancelled by user"
	if err := o.database.UpdateDeploymentStatus(deployment.ID, models.StatusFailed, &message); err != nil {
		o.logger.Error("failed to mark cancelled deployment FAILED", "deployment_id", deployment.ID, "error", err)
	}

	o.locks.Release(projectID)
	return nil
}
