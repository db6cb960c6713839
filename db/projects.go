package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/versiongate/deploy-engine/models"
)

// defaultStartingBasePort is the first base port handed out when no project
// yet exists. each project consumes two consecutive ports (BLUE, GREEN), so
// the next assignment always starts two above the highest seen.
const defaultStartingBasePort = 3100

func scanProject(row scanner) (*models.Project, error) {
	project := &models.Project{}
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.RepoURL,
		&project.Branch,
		&project.BuildContext,
		&project.LocalPath,
		&project.AppPort,
		&project.HealthPath,
		&project.BasePort,
		&project.WebhookSecret,
		&project.EnvJSON,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeProjectEnv(project); err != nil {
		return nil, err
	}
	return project, nil
}

// decodeProjectEnv populates project.Env from project.EnvJSON, the shared
// step between a standalone project scan and the joined
// active-deployments-with-projects scan.
func decodeProjectEnv(project *models.Project) error {
	if project.EnvJSON == "" {
		project.Env = map[string]string{}
		return nil
	}
	if err := json.Unmarshal([]byte(project.EnvJSON), &project.Env); err != nil {
		return fmt.Errorf("failed to decode env json for project %q: %w", project.ID, err)
	}
	return nil
}

const projectColumns = `id, name, repo_url, branch, build_context, local_path, app_port, health_path, base_port, webhook_secret, env, created_at, updated_at`

// CreateProject inserts a new project row. project.Env is encoded to
// project.EnvJSON here so callers only ever deal with the decoded map.
func (database *Database) CreateProject(project *models.Project) error {
	envJSON, err := json.Marshal(project.Env)
	if err != nil {
		return fmt.Errorf("failed to encode env for project %q: %w", project.Name, err)
	}
	project.EnvJSON = string(envJSON)

	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err = database.connection.Exec(
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.RepoURL,
		project.Branch,
		project.BuildContext,
		project.LocalPath,
		project.AppPort,
		project.HealthPath,
		project.BasePort,
		project.WebhookSecret,
		project.EnvJSON,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project %q: %w", project.Name, err)
	}
	return nil
}

// FindProjectByID returns the project with this ID, or ErrRecordNotFound.
func (database *Database) FindProjectByID(id string) (*models.Project, error) {
	row := database.connection.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by id %q: %w", id, err)
	}
	return project, nil
}

// FindProjectByName returns the project with this exact name, or ErrRecordNotFound.
func (database *Database) FindProjectByName(name string) (*models.Project, error) {
	row := database.connection.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE name = ?`, name)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by name %q: %w", name, err)
	}
	return project, nil
}

// FindProjectByWebhookSecret resolves the project addressed by an inbound
// webhook URL's secret path segment, or ErrRecordNotFound.
func (database *Database) FindProjectByWebhookSecret(secret string) (*models.Project, error) {
	row := database.connection.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE webhook_secret = ?`, secret)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by webhook secret: %w", err)
	}
	return project, nil
}

// FindAllProjects returns every registered project, ordered by creation time.
func (database *Database) FindAllProjects() ([]*models.Project, error) {
	rows, err := database.connection.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

// ProjectUpdate carries the subset of mutable project fields a PATCH request
// may change. a nil field means "leave unchanged" — the pointer-per-field
// shape is what lets partial updates be expressed without a separate
// "which fields were set" bitmask.
type ProjectUpdate struct {
	Branch       *string
	BuildContext *string
	HealthPath   *string
	Env          map[string]string
}

// UpdateProject applies a partial update and bumps UpdatedAt. fields left nil
// in update keep their current database value.
func (database *Database) UpdateProject(id string, update ProjectUpdate) error {
	existing, err := database.FindProjectByID(id)
	if err != nil {
		return err
	}

	if update.Branch != nil {
		existing.Branch = *update.Branch
	}
	if update.BuildContext != nil {
		existing.BuildContext = *update.BuildContext
	}
	if update.HealthPath != nil {
		existing.HealthPath = *update.HealthPath
	}
	if update.Env != nil {
		existing.Env = update.Env
	}

	envJSON, err := json.Marshal(existing.Env)
	if err != nil {
		return fmt.Errorf("failed to encode env for project %q: %w", id, err)
	}

	_, err = database.connection.Exec(
		`UPDATE projects SET branch = ?, build_context = ?, health_path = ?, env = ?, updated_at = ? WHERE id = ?`,
		existing.Branch,
		existing.BuildContext,
		existing.HealthPath,
		string(envJSON),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update project %q: %w", id, err)
	}
	return nil
}

// DeleteProject removes the project row; ON DELETE CASCADE removes its
// deployments in the same statement.
func (database *Database) DeleteProject(id string) error {
	result, err := database.connection.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %q: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine delete result for project %q: %w", id, err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// NextBasePort returns the next free base port: defaultStartingBasePort when
// no project exists, otherwise the highest existing base_port plus 2, so that
// every project's {BasePort, BasePort+1} pair stays disjoint from every other.
func (database *Database) NextBasePort() (int, error) {
	var maxBasePort sql.NullInt64
	row := database.connection.QueryRow(`SELECT MAX(base_port) FROM projects`)
	if err := row.Scan(&maxBasePort); err != nil {
		return 0, fmt.Errorf("failed to compute next base port: %w", err)
	}
	if !maxBasePort.Valid {
		return defaultStartingBasePort, nil
	}
	return int(maxBasePort.Int64) + 2, nil
}
