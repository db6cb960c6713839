// Package watcher runs a periodic steady-state audit of every ACTIVE
// deployment's container, catching drift the reconciliation pass only ever
// sees once, at boot. Grounded on the teacher's background-goroutine
// scheduling style in main.go's graceful-shutdown loop, generalized into its
// own ticker-driven package.
package watcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/models"
)

// Interval is the time between ticks. the first tick fires one interval
// after the watcher starts, not immediately — reconciliation already audited
// boot-time state.
const Interval = 60 * time.Second

// Watcher periodically audits every ACTIVE deployment's container.
type Watcher struct {
	database *db.Database
	docker   *docker.Client
	logger   *slog.Logger

	// tickRunning is the re-entrancy guard: if the previous tick has not
	// finished, the next tick is skipped rather than queued.
	tickRunning atomic.Bool
}

func New(database *db.Database, dockerClient *docker.Client, logger *slog.Logger) *Watcher {
	return &Watcher{database: database, docker: dockerClient, logger: logger}
}

// Run blocks, ticking every Interval until ctx is cancelled. it is meant to
// be started as its own goroutine and never prevents process exit: the
// caller cancels ctx during shutdown rather than waiting on this to return cleanly.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	if !w.tickRunning.CompareAndSwap(false, true) {
		w.logger.Debug("watcher tick skipped: previous tick still running")
		return
	}
	defer w.tickRunning.Store(false)

	activeWithProjects, err := w.database.FindAllActiveWithProjects()
	if err != nil {
		// silent per the audit contract: a DB read failure aborts this tick
		// and the next tick will retry.
		w.logger.Warn("watcher tick aborted: failed to list active deployments", "error", err)
		return
	}

	stoppedMessage := "Container stopped"
	for _, pair := range activeWithProjects {
		if w.docker.InspectRunning(ctx, pair.Deployment.ContainerName) {
			continue
		}
		if err := w.database.UpdateDeploymentStatus(pair.Deployment.ID, models.StatusFailed, &stoppedMessage); err != nil {
			w.logger.Error("watcher failed to mark deployment FAILED", "deployment_id", pair.Deployment.ID, "error", err)
			continue
		}
		w.logger.Warn("watcher detected stopped container", "project", pair.Project.Name, "container_name", pair.Deployment.ContainerName)
	}
}
