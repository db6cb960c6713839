package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/models"
)

// nameValidator restricts project names to the container-name-safe charset:
// lowercase letters, digits, and hyphens, 1-64 characters.
var nameValidator = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// ProjectHandler serves the project-management endpoints.
type ProjectHandler struct {
	database         *db.Database
	logger           *slog.Logger
	projectsRootPath string
}

func NewProjectHandler(database *db.Database, logger *slog.Logger, projectsRootPath string) *ProjectHandler {
	return &ProjectHandler{database: database, logger: logger, projectsRootPath: projectsRootPath}
}

type createProjectRequest struct {
	Name         string            `json:"name"`
	RepoURL      string            `json:"repo_url"`
	Branch       string            `json:"branch"`
	BuildContext string            `json:"build_context"`
	AppPort      int               `json:"app_port"`
	HealthPath   string            `json:"health_path"`
	Env          map[string]string `json:"env"`
}

// ListProjects handles GET /api/v1/projects.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.database.FindAllProjects()
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, projects)
}

// GetProject handles GET /api/v1/projects/{id}.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.database.FindProjectByID(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, project)
}

// CreateProject handles POST /api/v1/projects.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, apierrors.Validation("malformed request body: %v", err), h.logger)
		return
	}

	if !nameValidator.MatchString(req.Name) {
		writeDomainError(w, apierrors.Validation("name must be 1-64 lowercase alphanumeric/hyphen characters"), h.logger)
		return
	}
	if !strings.HasPrefix(req.RepoURL, "https://") {
		writeDomainError(w, apierrors.Validation("repo_url must use https"), h.logger)
		return
	}
	if req.AppPort < 1 || req.AppPort > 65535 {
		writeDomainError(w, apierrors.Validation("app_port must be between 1 and 65535"), h.logger)
		return
	}
	if req.Branch == "" {
		req.Branch = "main"
	}
	if req.BuildContext == "" {
		req.BuildContext = "."
	}
	if req.HealthPath == "" {
		req.HealthPath = "/health"
	}
	if req.Env == nil {
		req.Env = map[string]string{}
	}

	if _, err := h.database.FindProjectByName(req.Name); err == nil {
		writeDomainError(w, apierrors.Validation("project name %q already exists", req.Name), h.logger)
		return
	}

	basePort, err := h.database.NextBasePort()
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	webhookSecret, err := generateWebhookSecret()
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	projectID := uuid.NewString()
	project := &models.Project{
		ID:            projectID,
		Name:          req.Name,
		RepoURL:       req.RepoURL,
		Branch:        req.Branch,
		BuildContext:  req.BuildContext,
		LocalPath:     h.projectsRootPath + "/" + projectID,
		AppPort:       req.AppPort,
		HealthPath:    req.HealthPath,
		BasePort:      basePort,
		WebhookSecret: webhookSecret,
		Env:           req.Env,
	}

	if err := h.database.CreateProject(project); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJsonAndRespond(w, http.StatusCreated, project)
}

type updateProjectRequest struct {
	Branch       *string `json:"branch"`
	BuildContext *string `json:"build_context"`
	HealthPath   *string `json:"health_path"`
}

// UpdateProject handles PATCH /api/v1/projects/{id}.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, apierrors.Validation("malformed request body: %v", err), h.logger)
		return
	}

	if err := h.database.UpdateProject(id, db.ProjectUpdate{
		Branch:       req.Branch,
		BuildContext: req.BuildContext,
		HealthPath:   req.HealthPath,
	}); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	project, err := h.database.FindProjectByID(id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, project)
}

type updateProjectEnvRequest struct {
	Env map[string]string `json:"env"`
}

// UpdateProjectEnv handles PATCH /api/v1/projects/{id}/env.
func (h *ProjectHandler) UpdateProjectEnv(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProjectEnvRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, apierrors.Validation("malformed request body: %v", err), h.logger)
		return
	}
	if req.Env == nil {
		writeDomainError(w, apierrors.Validation("env must be a JSON object"), h.logger)
		return
	}

	if err := h.database.UpdateProject(id, db.ProjectUpdate{Env: req.Env}); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	project, err := h.database.FindProjectByID(id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, project)
}

// DeleteProject handles DELETE /api/v1/projects/{id}. cascades to the
// project's deployment rows at the database layer; it does not stop any
// running container, matching the contract's silence on runtime teardown for deletion.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.database.DeleteProject(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
