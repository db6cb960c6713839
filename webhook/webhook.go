// Package webhook matches an inbound git-provider push event to a
// registered project via the URL-embedded webhook secret and triggers a
// deploy asynchronously so the webhook sender is not held open for the
// pipeline's duration.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/versiongate/deploy-engine/apierrors"
	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/orchestrator"
)

// rateLimit and rateBurst bound how often a single project's webhook can
// trigger a deploy: a misconfigured CI system retrying failed pushes should
// not be able to starve the per-project orchestrator lock with a flood of
// ConflictErrors. One token every 10 seconds, burst of 2 covers a legitimate
// "push, then immediately push a fixup" pair without false-limiting.
const (
	rateLimit = rate.Every(10 * time.Second)
	rateBurst = 2
)

// pushPayload is the minimal subset of a provider's push-event JSON body the
// dispatcher needs: the event's ref (to compare against the project's
// configured branch) and nothing else — payload shape varies by provider
// beyond this, and nothing else is read.
type pushPayload struct {
	Ref string `json:"ref"`
}

// Deployer is the subset of Orchestrator the dispatcher needs, accepted as
// an interface so a future multi-step dispatcher (e.g. one that also queues
// a build before deploying) can be substituted without changing this package.
type Deployer interface {
	Deploy(ctx context.Context, projectID string) (*orchestrator.DeployResult, error)
}

// Dispatcher resolves webhook secrets to projects and fires deploys.
type Dispatcher struct {
	database *db.Database
	deployer Deployer
	logger   *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

func New(database *db.Database, deployer Deployer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		database: database,
		deployer: deployer,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the per-project token bucket, creating it on first use.
func (d *Dispatcher) limiterFor(projectID string) *rate.Limiter {
	d.limitersMu.Lock()
	defer d.limitersMu.Unlock()

	limiter, ok := d.limiters[projectID]
	if !ok {
		limiter = rate.NewLimiter(rateLimit, rateBurst)
		d.limiters[projectID] = limiter
	}
	return limiter
}

// Outcome describes how a webhook request was handled, for the HTTP handler
// to turn into a status code and response body.
type Outcome struct {
	Skipped bool
	Reason  string
}

// PushEventType is the only event type Dispatch deploys on; the control API
// handler passes the event type it read from the request header, or this
// value when the header is absent.
const PushEventType = "push"

// Dispatch matches secret to a project, gates on event type and branch, and
// if both match, triggers a deploy in its own goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, secret string, eventType string, body io.Reader) (*Outcome, error) {
	project, err := d.database.FindProjectByWebhookSecret(secret)
	if err != nil {
		return nil, apierrors.NotFound("no project matches this webhook secret")
	}

	if eventType != PushEventType {
		return &Outcome{Skipped: true, Reason: "not a push event"}, nil
	}

	var payload pushPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return &Outcome{Skipped: true, Reason: "malformed payload"}, nil
	}

	branch := branchFromRef(payload.Ref)
	if branch != project.Branch {
		return &Outcome{Skipped: true, Reason: "branch mismatch"}, nil
	}

	if !d.limiterFor(project.ID).Allow() {
		return &Outcome{Skipped: true, Reason: "rate limited"}, nil
	}

	projectID := project.ID
	go func() {
		deployCtx := context.Background()
		if _, err := d.deployer.Deploy(deployCtx, projectID); err != nil {
			d.logger.Error("webhook-triggered deploy failed", "project", project.Name, "error", err)
		}
	}()

	return &Outcome{Skipped: false}, nil
}

// branchFromRef strips the "refs/heads/" prefix a push event's ref carries,
// leaving just the branch name to compare against the project's configured branch.
func branchFromRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
