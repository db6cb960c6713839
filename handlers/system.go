package handlers

import (
	"log/slog"
	"net/http"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/reconcile"
)

// SystemHandler serves the operational/system endpoints: a manual trigger
// for the reconciliation pass that otherwise only runs once at boot.
type SystemHandler struct {
	database *db.Database
	docker   *docker.Client
	logger   *slog.Logger
}

func NewSystemHandler(database *db.Database, dockerClient *docker.Client, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{database: database, docker: dockerClient, logger: logger}
}

// Reconcile handles POST /api/v1/system/reconcile.
func (h *SystemHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := reconcile.Run(r.Context(), h.database, h.docker, h.logger)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, report)
}
