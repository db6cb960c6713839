// Package models defines the data structures shared across the application.
// this package has no imports from other internal packages, making it the
// foundation of the dependency graph. other packages (db, orchestrator,
// handlers) import from here.
package models

import "time"

// DeploymentStatus represents the current lifecycle state of a deployment.
// a named string type instead of plain string enforces that only valid
// status values are used at compile time when combined with the constants below.
type DeploymentStatus string

// Color identifies which of a project's two fixed port slots a deployment occupies.
type Color string

const (
	// StatusPending is reserved and not used in the normal flow (kept for schema completeness).
	StatusPending DeploymentStatus = "PENDING"

	// StatusDeploying means the pipeline is actively running (fetch, build, launch, validate, switch).
	StatusDeploying DeploymentStatus = "DEPLOYING"

	// StatusActive means the container is running and receiving traffic via the upstream.
	StatusActive DeploymentStatus = "ACTIVE"

	// StatusFailed means the pipeline (or a watcher/reconciliation pass) found the
	// deployment unhealthy or aborted. terminal; never revived.
	StatusFailed DeploymentStatus = "FAILED"

	// StatusRolledBack means this deployment was once ACTIVE and has since been
	// superseded by a later deploy, or was demoted by a rollback that restored an earlier deployment.
	StatusRolledBack DeploymentStatus = "ROLLED_BACK"
)

const (
	// ColorBlue occupies project.basePort.
	ColorBlue Color = "BLUE"

	// ColorGreen occupies project.basePort+1.
	ColorGreen Color = "GREEN"
)

// Opposite returns the other slot color. used when the orchestrator picks the
// color for a new deployment: the opposite of whatever is currently ACTIVE.
func (c Color) Opposite() Color {
	if c == ColorBlue {
		return ColorGreen
	}
	return ColorBlue
}

// Project is a registered git repository plus the build/runtime parameters
// the orchestrator needs to deploy it. env is stored as a JSON-encoded map
// in the database (SQLite has no native map column type).
type Project struct {
	// ID is an opaque unique identifier, generated at creation time.
	ID string `json:"id" db:"id"`

	// Name is lowercase-alphanumeric-hyphen, 1-64 chars, globally unique.
	// used as the container-name prefix ("<name>-blue", "<name>-green")
	// and in the synthesized image tag ("versiongate-<name>:<epoch-ms>").
	Name string `json:"name" db:"name"`

	// RepoURL is the HTTPS clone URL. non-HTTPS schemes are rejected at creation.
	RepoURL string `json:"repo_url" db:"repo_url"`

	// Branch is the branch the source fetcher tracks.
	Branch string `json:"branch" db:"branch"`

	// BuildContext is a path relative to the repository root used as the
	// default image-build context. default ".".
	BuildContext string `json:"build_context" db:"build_context"`

	// LocalPath is the absolute path on disk where the repo is checked out.
	// assigned as "<projectsRoot>/<id>" immediately after creation and never changes.
	LocalPath string `json:"local_path" db:"local_path"`

	// AppPort is the port the application listens on inside its container, 1-65535.
	AppPort int `json:"app_port" db:"app_port"`

	// HealthPath is the absolute URL path used for readiness probes. default "/health".
	HealthPath string `json:"health_path" db:"health_path"`

	// BasePort is the lower of the two host ports reserved for this project,
	// 1024-65534. BLUE uses BasePort, GREEN uses BasePort+1. auto-assigned as
	// max(existing BasePort)+2 starting at 3100; disjoint across all projects.
	BasePort int `json:"base_port" db:"base_port"`

	// WebhookSecret is a random 48-hex-character token embedded in the
	// project's webhook URL ("/api/v1/webhooks/<secret>").
	WebhookSecret string `json:"webhook_secret" db:"webhook_secret"`

	// EnvJSON is the JSON-encoded form of Env as stored in the database.
	// handlers and the orchestrator work with Env (the decoded map); this
	// field exists only so the repository layer has a plain string column to scan into.
	EnvJSON string `json:"-" db:"env"`

	// Env is the decoded environment-variable map, not a database column itself.
	// populated by the repository layer immediately after a row scan,
	// and re-encoded into EnvJSON immediately before a write.
	Env map[string]string `json:"env" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Deployment is a single pipeline run for a project: one attempt to build and
// launch a new container on one of the project's two fixed slots.
type Deployment struct {
	ID        string `json:"id" db:"id"`
	ProjectID string `json:"project_id" db:"project_id"`

	// Version is a positive integer, monotonically increasing per project;
	// assigned at pipeline start as max(version for this project)+1, or 1.
	Version int `json:"version" db:"version"`

	// Color is the slot this deployment occupies: the opposite of whichever
	// color was ACTIVE when the pipeline started, or BLUE if none was.
	Color Color `json:"color" db:"color"`

	// Port is project.BasePort when Color=BLUE, project.BasePort+1 when Color=GREEN.
	Port int `json:"port" db:"port"`

	// ContainerName is "<project.Name>-<color lowercased>", e.g. "myapp-blue".
	ContainerName string `json:"container_name" db:"container_name"`

	// ImageTag is "versiongate-<project.Name>:<pipeline-start-epoch-ms>".
	ImageTag string `json:"image_tag" db:"image_tag"`

	Status DeploymentStatus `json:"status" db:"status"`

	// ErrorMessage is populated when Status transitions to FAILED; nil otherwise.
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectWithDeployment pairs a project with one of its deployments, the shape
// the watcher and reconciliation iterate over when auditing ACTIVE records.
type ProjectWithDeployment struct {
	Project    *Project
	Deployment *Deployment
}
