package db

// deployments.go contains all SQL query functions for the deployments table.
// each function is a method on *Database and operates on a single table,
// raw SQL syntax is used intentionally: it keeps the query layer explicit,
// avoids ORM magic, and makes the SQL readable and auditable.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/versiongate/deploy-engine/models"
)

const deploymentColumns = `id, project_id, version, color, port, container_name, image_tag, status, error_message, created_at, updated_at`

// projectColumnsAliased and deploymentColumnsAliased qualify the shared
// column lists with a table alias for the joined active-deployments query.
const projectColumnsAliased = `p.id, p.name, p.repo_url, p.branch, p.build_context, p.local_path, p.app_port, p.health_path, p.base_port, p.webhook_secret, p.env, p.created_at, p.updated_at`
const deploymentColumnsAliased = `d.id, d.project_id, d.version, d.color, d.port, d.container_name, d.image_tag, d.status, d.error_message, d.created_at, d.updated_at`

func scanDeployment(row scanner) (*models.Deployment, error) {
	deployment := &models.Deployment{}
	err := row.Scan(
		&deployment.ID,
		&deployment.ProjectID,
		&deployment.Version,
		&deployment.Color,
		&deployment.Port,
		&deployment.ContainerName,
		&deployment.ImageTag,
		&deployment.Status,
		&deployment.ErrorMessage,
		&deployment.CreatedAt,
		&deployment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return deployment, nil
}

// CreateDeployment inserts a new deployment row, normally in DEPLOYING status
// at pipeline start.
func (database *Database) CreateDeployment(deployment *models.Deployment) error {
	now := time.Now().UTC()
	deployment.CreatedAt = now
	deployment.UpdatedAt = now

	_, err := database.connection.Exec(
		`INSERT INTO deployments (`+deploymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deployment.ID,
		deployment.ProjectID,
		deployment.Version,
		deployment.Color,
		deployment.Port,
		deployment.ContainerName,
		deployment.ImageTag,
		deployment.Status,
		deployment.ErrorMessage,
		deployment.CreatedAt,
		deployment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deployment for project %q: %w", deployment.ProjectID, err)
	}
	return nil
}

// FindDeploymentByID returns the deployment with this ID, or ErrRecordNotFound.
func (database *Database) FindDeploymentByID(id string) (*models.Deployment, error) {
	row := database.connection.QueryRow(`SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id)
	deployment, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deployment by id %q: %w", id, err)
	}
	return deployment, nil
}

// FindActiveForProject returns the project's current ACTIVE deployment, or
// ErrRecordNotFound if none (a project with no successful deploy yet).
// at most one ACTIVE row per project is an invariant the orchestrator and
// rollback engine both maintain by always demoting the prior ACTIVE in the
// same step that promotes the new one.
func (database *Database) FindActiveForProject(projectID string) (*models.Deployment, error) {
	row := database.connection.QueryRow(
		`SELECT `+deploymentColumns+` FROM deployments WHERE project_id = ? AND status = ? ORDER BY version DESC LIMIT 1`,
		projectID, models.StatusActive,
	)
	deployment, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active deployment for project %q: %w", projectID, err)
	}
	return deployment, nil
}

// FindDeployingForProject returns the project's in-flight DEPLOYING
// deployment, or ErrRecordNotFound if no deploy is currently running.
func (database *Database) FindDeployingForProject(projectID string) (*models.Deployment, error) {
	row := database.connection.QueryRow(
		`SELECT `+deploymentColumns+` FROM deployments WHERE project_id = ? AND status = ? ORDER BY version DESC LIMIT 1`,
		projectID, models.StatusDeploying,
	)
	deployment, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deploying deployment for project %q: %w", projectID, err)
	}
	return deployment, nil
}

// FindPreviousForProject returns the most recent ROLLED_BACK deployment with
// version strictly less than currentVersion, the rollback target.
func (database *Database) FindPreviousForProject(projectID string, currentVersion int) (*models.Deployment, error) {
	row := database.connection.QueryRow(
		`SELECT `+deploymentColumns+` FROM deployments
		 WHERE project_id = ? AND status = ? AND version < ?
		 ORDER BY version DESC LIMIT 1`,
		projectID, models.StatusRolledBack, currentVersion,
	)
	deployment, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find previous deployment for project %q: %w", projectID, err)
	}
	return deployment, nil
}

// FindAllForProject returns every deployment for a project, newest first.
func (database *Database) FindAllForProject(projectID string) ([]*models.Deployment, error) {
	rows, err := database.connection.Query(
		`SELECT `+deploymentColumns+` FROM deployments WHERE project_id = ? ORDER BY version DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments for project %q: %w", projectID, err)
	}
	defer rows.Close()
	return scanDeploymentRows(rows)
}

// FindAllDeploying returns every DEPLOYING row across all projects. used by
// reconciliation on boot: any row still marked DEPLOYING when the process
// starts was orphaned by a crash, since a live orchestrator holds the
// in-memory lock for the whole time a deployment is in that state.
func (database *Database) FindAllDeploying() ([]*models.Deployment, error) {
	rows, err := database.connection.Query(
		`SELECT `+deploymentColumns+` FROM deployments WHERE status = ?`,
		models.StatusDeploying,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deploying deployments: %w", err)
	}
	defer rows.Close()
	return scanDeploymentRows(rows)
}

// FindAllActiveWithProjects returns every ACTIVE deployment paired with its
// owning project, the shape the container watcher and reconciliation both
// iterate over to audit actual container state against recorded state.
func (database *Database) FindAllActiveWithProjects() ([]*models.ProjectWithDeployment, error) {
	query := `
		SELECT ` + projectColumnsAliased + `, ` + deploymentColumnsAliased + `
		FROM deployments d
		JOIN projects p ON p.id = d.project_id
		WHERE d.status = ?
	`
	rows, err := database.connection.Query(query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active deployments with projects: %w", err)
	}
	defer rows.Close()

	var paired []*models.ProjectWithDeployment
	for rows.Next() {
		project := &models.Project{}
		deployment := &models.Deployment{}
		err := rows.Scan(
			&project.ID, &project.Name, &project.RepoURL, &project.Branch, &project.BuildContext,
			&project.LocalPath, &project.AppPort, &project.HealthPath, &project.BasePort,
			&project.WebhookSecret, &project.EnvJSON, &project.CreatedAt, &project.UpdatedAt,
			&deployment.ID, &deployment.ProjectID, &deployment.Version, &deployment.Color,
			&deployment.Port, &deployment.ContainerName, &deployment.ImageTag, &deployment.Status,
			&deployment.ErrorMessage, &deployment.CreatedAt, &deployment.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active deployment/project row: %w", err)
		}
		if err := decodeProjectEnv(project); err != nil {
			return nil, err
		}
		paired = append(paired, &models.ProjectWithDeployment{Project: project, Deployment: deployment})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active deployment rows: %w", err)
	}
	return paired, nil
}

// NextVersionForProject returns max(version)+1 for a project, or 1 if it has
// no deployments yet. version numbers are never reused, even across rollbacks.
func (database *Database) NextVersionForProject(projectID string) (int, error) {
	var maxVersion sql.NullInt64
	row := database.connection.QueryRow(`SELECT MAX(version) FROM deployments WHERE project_id = ?`, projectID)
	if err := row.Scan(&maxVersion); err != nil {
		return 0, fmt.Errorf("failed to compute next version for project %q: %w", projectID, err)
	}
	if !maxVersion.Valid {
		return 1, nil
	}
	return int(maxVersion.Int64) + 1, nil
}

// UpdateDeploymentStatus transitions a deployment's status and, for FAILED
// transitions, records the failure reason. UpdatedAt is bumped regardless.
func (database *Database) UpdateDeploymentStatus(id string, status models.DeploymentStatus, errorMessage *string) error {
	result, err := database.connection.Exec(
		`UPDATE deployments SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update deployment %q status to %q: %w", id, status, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine update result for deployment %q: %w", id, err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func scanDeploymentRows(rows *sql.Rows) ([]*models.Deployment, error) {
	var deployments []*models.Deployment
	for rows.Next() {
		deployment, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment row: %w", err)
		}
		deployments = append(deployments, deployment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployment rows: %w", err)
	}
	return deployments, nil
}
