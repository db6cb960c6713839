// Package reconcile runs once at boot, before the control API accepts
// traffic, to classify deployment records orphaned by a prior crash. It
// never restarts containers or re-runs pipelines — only classifies.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/models"
)

// Report summarizes what a reconciliation pass changed.
type Report struct {
	DeployingFixed   int
	ActiveInvalidated int
}

// Run performs one reconciliation pass: every DEPLOYING record is orphaned
// by definition (a live orchestrator holds the in-memory lock for a
// deployment's whole DEPLOYING lifetime, so a DEPLOYING row surviving into a
// fresh process means the process that owned it is gone); every ACTIVE
// record is checked against the container runtime's actual state.
func Run(ctx context.Context, database *db.Database, dockerClient *docker.Client, logger *slog.Logger) (*Report, error) {
	report := &Report{}

	deploying, err := database.FindAllDeploying()
	if err != nil {
		return nil, err
	}
	crashedMessage := "Process crashed mid-deploy"
	for _, deployment := range deploying {
		if err := database.UpdateDeploymentStatus(deployment.ID, models.StatusFailed, &crashedMessage); err != nil {
			logger.Error("failed to invalidate orphaned DEPLOYING record", "deployment_id", deployment.ID, "error", err)
			continue
		}
		report.DeployingFixed++
	}

	activeWithProjects, err := database.FindAllActiveWithProjects()
	if err != nil {
		return nil, err
	}
	notRunningMessage := "Container not running at boot"
	for _, pair := range activeWithProjects {
		if dockerClient.InspectRunning(ctx, pair.Deployment.ContainerName) {
			continue
		}
		if err := database.UpdateDeploymentStatus(pair.Deployment.ID, models.StatusFailed, &notRunningMessage); err != nil {
			logger.Error("failed to invalidate stale ACTIVE record", "deployment_id", pair.Deployment.ID, "error", err)
			continue
		}
		report.ActiveInvalidated++
	}

	logger.Info("reconciliation complete", "deploying_fixed", report.DeployingFixed, "active_invalidated", report.ActiveInvalidated)
	return report, nil
}
