package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/db"
)

// writeJsonAndRespond serializes payload to JSON and writes it to the
// response with the given status code. all handlers use this instead of
// calling json.NewEncoder directly, keeping the response format consistent
// across the entire API.
func writeJsonAndRespond(responseWriter http.ResponseWriter, statusCode int, dataPayload any) {
	responseWriter.Header().Set("Content-Type", "application/json")

	serializedData, err := json.Marshal(dataPayload)
	if err != nil {
		http.Error(responseWriter, `{"error":"internal encoding error"}`, http.StatusInternalServerError)
		return
	}

	responseWriter.WriteHeader(statusCode)
	responseWriter.Write(serializedData) // nolint:errcheck -- write errors are not actionable on the server side
}

// writeErrorJsonAndLogIt logs the error at level ERROR and writes a standard
// JSON error response: {"error": "message"}.
func writeErrorJsonAndLogIt(responseWriter http.ResponseWriter, statusCode int, message string, logger *slog.Logger) {
	logger.Error("request error", "status", statusCode, "message", message)
	writeJsonAndRespond(responseWriter, statusCode, map[string]string{"error": message})
}

// writeDomainError maps an error from the db/orchestrator/rollback layers
// onto its taxonomy status code. db.ErrRecordNotFound is the one sentinel
// outside the apierrors package, since the db package predates and is
// reused independently of it.
func writeDomainError(responseWriter http.ResponseWriter, err error, logger *slog.Logger) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		writeErrorJsonAndLogIt(responseWriter, apiErr.StatusCode(), apiErr.Message, logger)
		return
	}
	if errors.Is(err, db.ErrRecordNotFound) {
		writeErrorJsonAndLogIt(responseWriter, http.StatusNotFound, "not found", logger)
		return
	}
	writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, err.Error(), logger)
}

// generateWebhookSecret returns a cryptographically secure random hex
// string embedded in a project's webhook URL. 24 random bytes encoded as hex
// produces a 48-character string, the length the webhook URL convention calls for.
func generateWebhookSecret() (string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(secretBytes), nil
}
