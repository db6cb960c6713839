package apierrors

import (
	"net/http"
	"testing"

	"gotest.tools/v3/assert"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  *APIError
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"not found", NotFound("missing %s", "project"), http.StatusNotFound},
		{"conflict", Conflict("busy"), http.StatusConflict},
		{"deployment", Deployment("boom"), http.StatusInternalServerError},
		{"rollback validation failed", RollbackValidationFailed("unhealthy"), http.StatusInternalServerError},
		{"no active deployment", NoActiveDeployment("none"), http.StatusBadRequest},
		{"no previous deployment", NoPreviousDeployment("none"), http.StatusBadRequest},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.err.StatusCode(), c.want)
		})
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	err := Validation("name %q already exists", "myapp")
	assert.Equal(t, err.Error(), `name "myapp" already exists`)
}
