package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/db"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateWebhookSecretLengthAndCharset(t *testing.T) {
	secret, err := generateWebhookSecret()
	assert.NilError(t, err)
	assert.Equal(t, len(secret), 48)

	for _, r := range secret {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		assert.Assert(t, isHex)
	}
}

func TestGenerateWebhookSecretIsUnique(t *testing.T) {
	first, err := generateWebhookSecret()
	assert.NilError(t, err)
	second, err := generateWebhookSecret()
	assert.NilError(t, err)
	assert.Assert(t, first != second)
}

func TestWriteDomainErrorMapsAPIError(t *testing.T) {
	recorder := httptest.NewRecorder()
	writeDomainError(recorder, apierrors.NotFound("missing project"), testLogger())

	assert.Equal(t, recorder.Code, http.StatusNotFound)
	var body map[string]string
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, body["error"], "missing project")
}

func TestWriteDomainErrorMapsRecordNotFound(t *testing.T) {
	recorder := httptest.NewRecorder()
	writeDomainError(recorder, db.ErrRecordNotFound, testLogger())

	assert.Equal(t, recorder.Code, http.StatusNotFound)
}

func TestWriteDomainErrorDefaultsToInternalError(t *testing.T) {
	recorder := httptest.NewRecorder()
	writeDomainError(recorder, errors.New("something unexpected"), testLogger())

	assert.Equal(t, recorder.Code, http.StatusInternalServerError)
}

func TestWriteJsonAndRespondSetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()
	writeJsonAndRespond(recorder, http.StatusOK, map[string]string{"ok": "true"})

	assert.Equal(t, recorder.Code, http.StatusOK)
	assert.Equal(t, recorder.Header().Get("Content-Type"), "application/json")
}
