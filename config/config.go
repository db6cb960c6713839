/*
Package config handles loading and validating application configuration
from environment variables. most values have sensible local-dev defaults;
DATABASE_URL is the one required variable, matching the teacher's own
"fail fast if the thing the app cannot run without is missing" posture.
*/
package config

import (
	"fmt"
	"log/slog" // slog = structured log. used for json/text logging in this app
	"os"
	"path/filepath" // used to extract file base name from absolute path in logging
	"strings"
)

// AppConfig holds all configuration values for the application.
// values are read once at startup and passed through the app via dependency
// injection. no global config variable is used; callers receive a *AppConfig
// explicitly, making dependencies visible and the code easier to test.
type AppConfig struct {
	// Port is the TCP port the control API listens on.
	Port string

	// DatabaseURL is the persistence connection string (a sqlite file path
	// in this implementation). required: the app cannot run without it.
	DatabaseURL string

	// ProjectsRootPath is the base directory on disk where each project's
	// repository is checked out, one subdirectory per project ID.
	ProjectsRootPath string

	// DockerNetwork is the Docker network name every project container joins
	// so the engine's own network namespace can reach them on 127.0.0.1:<port>.
	DockerNetwork string

	// NginxConfigPath is the upstream file the traffic switcher rewrites.
	NginxConfigPath string

	// NginxReloadCmd is the binary invoked to reload the reverse proxy after
	// the upstream file is rewritten, e.g. "nginx" with NginxReloadArgs ["-s", "reload"].
	NginxReloadCmd string

	// NginxReloadArgs are the arguments passed to NginxReloadCmd, space-separated.
	NginxReloadArgs []string

	// LogLevel controls the minimum slog level emitted: debug|info|warn|error.
	LogLevel string

	// LogFormat controls the output format of slog.
	// accepted values: "json" (default, for production/log shipping) | "text" (local dev)
	LogFormat string

	// LogRoot is the directory per-project build log files are written to.
	// not named directly by the external interface section, but required by
	// the logs endpoint to have a concrete backing store.
	LogRoot string

	// AllowedOrigin is the single origin the control API's CORS policy admits,
	// e.g. the dashboard's own origin.
	AllowedOrigin string
}

// NewLogger constructs a *slog.Logger based on the LogFormat and LogLevel
// fields of the config. "text" produces human-readable output for local
// development; any other value produces structured JSON suitable for
// container log shipping.
func (config *AppConfig) NewLogger() *slog.Logger {
	var handler slog.Handler

	options := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(config.LogLevel),

		// ReplaceAttr trims the absolute source file path down to a basename
		// so log lines stay readable instead of spanning the full module path.
		ReplaceAttr: func(groups []string, attribute slog.Attr) slog.Attr {
			if attribute.Key == slog.SourceKey {
				source := attribute.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attribute
		},
	}

	if config.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, options)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, options)
	}

	return slog.New(handler)
}

// parseLogLevel maps the LOG_LEVEL string onto a slog.Level, defaulting to
// Info for an empty or unrecognized value rather than failing startup over it.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadAppConfig reads configuration from environment variables and returns a
// populated AppConfig, or an error if a required variable is missing.
// missing optional variables fall back to the defaults named in the external
// interface contract (§6): PORT=9090, PROJECTS_ROOT_PATH=/var/versiongate/projects,
// DOCKER_NETWORK=versiongate-net, NGINX_CONFIG_PATH=/etc/nginx/conf.d/upstream.conf.
func LoadAppConfig() (*AppConfig, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &AppConfig{
		Port:             getEnv("PORT", "9090"),
		DatabaseURL:      databaseURL,
		ProjectsRootPath: getEnv("PROJECTS_ROOT_PATH", "/var/versiongate/projects"),
		DockerNetwork:    getEnv("DOCKER_NETWORK", "versiongate-net"),
		NginxConfigPath:  getEnv("NGINX_CONFIG_PATH", "/etc/nginx/conf.d/upstream.conf"),
		NginxReloadCmd:   getEnv("NGINX_RELOAD_CMD", "nginx"),
		NginxReloadArgs:  strings.Fields(getEnv("NGINX_RELOAD_ARGS", "-s reload")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		LogRoot:          getEnv("LOG_ROOT", "/var/versiongate/logs"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
	}, nil
}

// getEnv retrieves the value of an environment variable by key.
// if the variable is not set or is empty, the provided fallback value is returned.
// this avoids scattered os.Getenv calls with inline fallback logic throughout the codebase.
func getEnv(key, fallbackValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallbackValue
}
