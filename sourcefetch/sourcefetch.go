// Package sourcefetch keeps a project's local checkout in sync with the tip
// of its configured branch. It shells out to the system `git` binary via
// procrunner rather than a pure-Go git library (go-git): the native binary
// handles every protocol edge case and avoids pulling in go-git's large
// transitive dependency tree for what is, per project, a clone-once and
// fetch-reset-repeatedly operation.
package sourcefetch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/versiongate/deploy-engine/models"
	"github.com/versiongate/deploy-engine/procrunner"
)

// SourceFetchError wraps a git failure with the command's combined output,
// so the orchestrator can surface the exact git error text on the deployment record.
type SourceFetchError struct {
	Reason string
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source fetch failed: %s", e.Reason)
}

// cloneTimeoutMs and fetchTimeoutMs bound how long a single git invocation
// may run before it is killed and treated as a failure; a hung clone (dead
// remote, auth prompt with no TTY to answer it) must not wedge a pipeline slot forever.
const (
	cloneTimeoutMs = 5 * 60 * 1000
	fetchTimeoutMs = 2 * 60 * 1000
)

// PrepareSource ensures localPath contains a checkout of project.Branch at
// the remote tip: clones on first use, or fetches and hard-resets on every
// subsequent call. Non-HTTPS repo URLs are rejected before any process is spawned.
func PrepareSource(ctx context.Context, project *models.Project) error {
	if !strings.HasPrefix(project.RepoURL, "https://") {
		return &SourceFetchError{Reason: fmt.Sprintf("repo url %q is not HTTPS", project.RepoURL)}
	}

	if !isGitRepository(project.LocalPath) {
		return cloneRepo(ctx, project)
	}
	return fetchAndReset(ctx, project)
}

func isGitRepository(localPath string) bool {
	_, err := os.Stat(localPath + "/.git")
	return err == nil
}

func cloneRepo(ctx context.Context, project *models.Project) error {
	_, err := procrunner.Run(ctx, "git", []string{
		"clone",
		"--branch", project.Branch,
		"--single-branch",
		project.RepoURL,
		project.LocalPath,
	}, procrunner.Options{TimeoutMs: cloneTimeoutMs})
	if err != nil {
		return &SourceFetchError{Reason: combinedOutputOf(err)}
	}
	return nil
}

func fetchAndReset(ctx context.Context, project *models.Project) error {
	_, err := procrunner.Run(ctx, "git", []string{"fetch", "origin"}, procrunner.Options{
		Dir:       project.LocalPath,
		TimeoutMs: fetchTimeoutMs,
	})
	if err != nil {
		return &SourceFetchError{Reason: combinedOutputOf(err)}
	}

	_, err = procrunner.Run(ctx, "git", []string{"reset", "--hard", "origin/" + project.Branch}, procrunner.Options{
		Dir:       project.LocalPath,
		TimeoutMs: fetchTimeoutMs,
	})
	if err != nil {
		return &SourceFetchError{Reason: combinedOutputOf(err)}
	}
	return nil
}

// combinedOutputOf extracts the captured git output from a procrunner error
// so SourceFetchError carries exactly what the command printed, not just the
// exit status wrapping it.
func combinedOutputOf(err error) string {
	if execErr, ok := err.(*procrunner.ExecError); ok {
		if execErr.CombinedOutput != "" {
			return execErr.CombinedOutput
		}
	}
	return err.Error()
}
