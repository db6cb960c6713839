package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/deploylog"
	"github.com/versiongate/deploy-engine/docker"
)

// defaultBuildLogTailLines bounds how many lines GET .../build-log returns
// absent a ?lines= query parameter.
const defaultBuildLogTailLines = 500

// defaultLogTailLines bounds how many lines GET .../logs returns when the
// caller does not specify ?lines=, matching the container adapter's
// tailLines contract from §4.2.
const defaultLogTailLines = 200

// ObservabilityHandler serves the logs and metrics endpoints for a project's
// currently ACTIVE deployment.
type ObservabilityHandler struct {
	database *db.Database
	docker   *docker.Client
	logger   *slog.Logger
	logRoot  string
}

func NewObservabilityHandler(database *db.Database, dockerClient *docker.Client, logger *slog.Logger, logRoot string) *ObservabilityHandler {
	return &ObservabilityHandler{database: database, docker: dockerClient, logger: logger, logRoot: logRoot}
}

// Logs handles GET /api/v1/projects/{id}/logs?lines=N.
func (h *ObservabilityHandler) Logs(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	deployment, err := h.database.FindActiveForProject(projectID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	tailLines := defaultLogTailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			tailLines = parsed
		}
	}

	logs, err := h.docker.GetLogs(r.Context(), deployment.ContainerName, tailLines)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"logs": logs})
}

// Metrics handles GET /api/v1/projects/{id}/metrics.
func (h *ObservabilityHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	deployment, err := h.database.FindActiveForProject(projectID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	stats, err := h.docker.GetStats(r.Context(), deployment.ContainerName)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, stats)
}

// BuildLog handles GET /api/v1/projects/{id}/build-log?lines=N, serving the
// pipeline's own narration (fetch/build/validate/switch steps) rather than
// the running container's stdout — a supplement to the runtime logs endpoint
// above, useful for diagnosing a FAILED deployment whose container never started.
func (h *ObservabilityHandler) BuildLog(w http.ResponseWriter, r *http.Request) {
	project, err := h.database.FindProjectByID(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	tailLines := defaultBuildLogTailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			tailLines = parsed
		}
	}

	contents, err := deploylog.TailLines(h.logRoot, project.Name, tailLines)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"log": contents})
}
