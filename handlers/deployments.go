package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/orchestrator"
)

// DeploymentHandler serves the deployment-lifecycle endpoints: listing,
// triggering a deploy, and cancelling an in-flight one. Rollback has its own
// handler (rollback.go) since it is a distinct engine, though it shares the
// orchestrator's per-project lock table so the two can never run concurrently.
type DeploymentHandler struct {
	database     *db.Database
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

func NewDeploymentHandler(database *db.Database, orch *orchestrator.Orchestrator, logger *slog.Logger) *DeploymentHandler {
	return &DeploymentHandler{database: database, orchestrator: orch, logger: logger}
}

// ListDeployments handles GET /api/v1/deployments, across every project.
// returns an empty JSON array (not null) when no deployments exist.
func (h *DeploymentHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	projects, err := h.database.FindAllProjects()
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	all := []*models.Deployment{}
	for _, project := range projects {
		deployments, err := h.database.FindAllForProject(project.ID)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		all = append(all, deployments...)
	}
	writeJsonAndRespond(w, http.StatusOK, all)
}

// ListDeploymentsForProject handles GET /api/v1/projects/{id}/deployments,
// the natural companion to ListDeployments for a per-project history view.
func (h *DeploymentHandler) ListDeploymentsForProject(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.database.FindAllForProject(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if deployments == nil {
		deployments = []*models.Deployment{}
	}
	writeJsonAndRespond(w, http.StatusOK, deployments)
}

type deployRequest struct {
	ProjectID string `json:"projectId"`
}

// Deploy handles POST /api/v1/deploy.
func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, apierrors.Validation("malformed request body: %v", err), h.logger)
		return
	}
	if req.ProjectID == "" {
		writeDomainError(w, apierrors.Validation("projectId is required"), h.logger)
		return
	}

	result, err := h.orchestrator.Deploy(r.Context(), req.ProjectID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusAccepted, result)
}

// CancelDeploy handles POST /api/v1/projects/{id}/cancel-deploy.
func (h *DeploymentHandler) CancelDeploy(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if err := h.orchestrator.Cancel(r.Context(), projectID); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]bool{"cancelled": true})
}
