package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/rollback"
)

// RollbackHandler serves POST /api/v1/projects/{id}/rollback.
type RollbackHandler struct {
	database *db.Database
	engine   *rollback.Engine
	logger   *slog.Logger
}

func NewRollbackHandler(database *db.Database, engine *rollback.Engine, logger *slog.Logger) *RollbackHandler {
	return &RollbackHandler{database: database, engine: engine, logger: logger}
}

func (h *RollbackHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	project, err := h.database.FindProjectByID(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	result, err := h.engine.Rollback(r.Context(), project)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, result)
}
