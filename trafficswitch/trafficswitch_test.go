package trafficswitch

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPointUpstreamAtWritesConfigAndReloads(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "upstream.conf")
	switcher := NewSwitcher(configPath, "true", nil, testLogger())

	err := switcher.PointUpstreamAt(8081)
	assert.NilError(t, err)

	contents, err := os.ReadFile(configPath)
	assert.NilError(t, err)
	assert.Equal(t, string(contents), "upstream versiongate_backend {\n  server 127.0.0.1:8081;\n}\n")
}

func TestPointUpstreamAtRestoresBackupOnReloadFailure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "upstream.conf")
	original := "upstream versiongate_backend {\n  server 127.0.0.1:8080;\n}\n"
	assert.NilError(t, os.WriteFile(configPath, []byte(original), 0644))

	switcher := NewSwitcher(configPath, "false", nil, testLogger())

	err := switcher.PointUpstreamAt(8081)
	assert.ErrorContains(t, err, "reload failed")

	contents, err := os.ReadFile(configPath)
	assert.NilError(t, err)
	assert.Equal(t, string(contents), original)
}

func TestPointUpstreamAtWithNoPriorConfigReportsReloadFailure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "upstream.conf")
	switcher := NewSwitcher(configPath, "false", nil, testLogger())

	err := switcher.PointUpstreamAt(8081)
	assert.ErrorContains(t, err, "reload failed")

	_, statErr := os.Stat(configPath)
	assert.NilError(t, statErr)
}
