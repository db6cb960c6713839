// Package trafficswitch rewrites the reverse-proxy's upstream config file to
// point at a newly launched container and reloads the proxy, crash-safely.
// Grounded on util.CopyFile's temp-file-then-rename instinct for atomic
// writes, extended here with a backup slot and a reload-failure restore path.
package trafficswitch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/versiongate/deploy-engine/procrunner"
)

// TrafficSwitchError is raised when the upstream rewrite or the proxy reload
// fails; Reason is surfaced on the deployment record.
type TrafficSwitchError struct {
	Reason string
}

func (e *TrafficSwitchError) Error() string {
	return fmt.Sprintf("traffic switch failed: %s", e.Reason)
}

// Switcher owns the reverse-proxy config path and reload command.
type Switcher struct {
	configPath string
	reloadCmd  string
	reloadArgs []string
	logger     *slog.Logger
}

// NewSwitcher constructs a Switcher. reloadCmd/reloadArgs is the proxy's
// standard reload invocation, e.g. "nginx", []string{"-s", "reload"}.
func NewSwitcher(configPath string, reloadCmd string, reloadArgs []string, logger *slog.Logger) *Switcher {
	return &Switcher{
		configPath: configPath,
		reloadCmd:  reloadCmd,
		reloadArgs: reloadArgs,
		logger:     logger,
	}
}

// PointUpstreamAt rewrites the upstream file to target 127.0.0.1:port and
// reloads the proxy. on reload failure, a previously taken backup is
// restored best-effort and a TrafficSwitchError is always returned in that case.
func (switcher *Switcher) PointUpstreamAt(port int) error {
	content := fmt.Sprintf("upstream versiongate_backend {\n  server 127.0.0.1:%d;\n}\n", port)
	tmpPath := switcher.configPath + ".tmp"
	bakPath := switcher.configPath + ".bak"

	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return &TrafficSwitchError{Reason: fmt.Sprintf("failed to write temp config %q: %v", tmpPath, err)}
	}

	hadBackup := false
	if existing, err := os.ReadFile(switcher.configPath); err == nil {
		if err := os.WriteFile(bakPath, existing, 0644); err == nil {
			hadBackup = true
		} else {
			switcher.logger.Warn("failed to write upstream config backup", "path", bakPath, "error", err)
		}
	}

	if err := os.Rename(tmpPath, switcher.configPath); err != nil {
		return &TrafficSwitchError{Reason: fmt.Sprintf("failed to rename %q to %q: %v", tmpPath, switcher.configPath, err)}
	}

	if err := switcher.reload(); err != nil {
		reason := fmt.Sprintf("reload failed after switching to port %d: %v", port, err)
		if hadBackup {
			if restoreErr := switcher.restoreBackup(bakPath); restoreErr != nil {
				switcher.logger.Error("failed to restore upstream config backup after failed reload",
					"backup_path", bakPath, "error", restoreErr)
				reason = fmt.Sprintf("%s; restore from backup also failed: %v", reason, restoreErr)
			} else {
				switcher.logger.Info("restored upstream config from backup after failed reload", "backup_path", bakPath)
				if reloadErr := switcher.reload(); reloadErr != nil {
					switcher.logger.Error("reload after restore also failed", "error", reloadErr)
				}
			}
		}
		return &TrafficSwitchError{Reason: reason}
	}

	switcher.logger.Info("upstream switched", "port", port)
	return nil
}

func (switcher *Switcher) restoreBackup(bakPath string) error {
	content, err := os.ReadFile(bakPath)
	if err != nil {
		return fmt.Errorf("failed to read backup %q: %w", bakPath, err)
	}
	if err := os.WriteFile(switcher.configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to restore config from backup %q: %w", bakPath, err)
	}
	return nil
}

func (switcher *Switcher) reload() error {
	_, err := procrunner.Run(context.Background(), switcher.reloadCmd, switcher.reloadArgs, procrunner.Options{TimeoutMs: 10_000})
	return err
}
