package db

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/versiongate/deploy-engine/models"
)

func newTestDeployment(projectID string, version int, color models.Color, status models.DeploymentStatus) *models.Deployment {
	return &models.Deployment{
		ID:            projectID + "-v" + string(rune('0'+version)),
		ProjectID:     projectID,
		Version:       version,
		Color:         color,
		Port:          3100,
		ContainerName: "app-" + string(color),
		ImageTag:      "versiongate-app:123",
		Status:        status,
	}
}

func TestCreateAndFindDeploymentByID(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj1")
	assert.NilError(t, database.CreateProject(project))

	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusDeploying)
	assert.NilError(t, database.CreateDeployment(deployment))

	found, err := database.FindDeploymentByID(deployment.ID)
	assert.NilError(t, err)
	assert.Equal(t, found.Status, models.StatusDeploying)
}

func TestFindActiveForProject(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj2")
	assert.NilError(t, database.CreateProject(project))

	_, err := database.FindActiveForProject(project.ID)
	assert.Assert(t, errors.Is(err, ErrRecordNotFound))

	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusActive)
	assert.NilError(t, database.CreateDeployment(deployment))

	found, err := database.FindActiveForProject(project.ID)
	assert.NilError(t, err)
	assert.Equal(t, found.ID, deployment.ID)
}

func TestFindDeployingForProject(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj3")
	assert.NilError(t, database.CreateProject(project))

	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusDeploying)
	assert.NilError(t, database.CreateDeployment(deployment))

	found, err := database.FindDeployingForProject(project.ID)
	assert.NilError(t, err)
	assert.Equal(t, found.ID, deployment.ID)
}

func TestFindPreviousForProject(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj4")
	assert.NilError(t, database.CreateProject(project))

	v1 := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusRolledBack)
	assert.NilError(t, database.CreateDeployment(v1))
	v2 := newTestDeployment(project.ID, 2, models.ColorGreen, models.StatusActive)
	assert.NilError(t, database.CreateDeployment(v2))

	found, err := database.FindPreviousForProject(project.ID, 2)
	assert.NilError(t, err)
	assert.Equal(t, found.ID, v1.ID)
}

func TestNextVersionForProject(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj5")
	assert.NilError(t, database.CreateProject(project))

	version, err := database.NextVersionForProject(project.ID)
	assert.NilError(t, err)
	assert.Equal(t, version, 1)

	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusActive)
	assert.NilError(t, database.CreateDeployment(deployment))

	version, err = database.NextVersionForProject(project.ID)
	assert.NilError(t, err)
	assert.Equal(t, version, 2)
}

func TestUpdateDeploymentStatus(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj6")
	assert.NilError(t, database.CreateProject(project))
	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusDeploying)
	assert.NilError(t, database.CreateDeployment(deployment))

	errMsg := "health check failed"
	assert.NilError(t, database.UpdateDeploymentStatus(deployment.ID, models.StatusFailed, &errMsg))

	found, err := database.FindDeploymentByID(deployment.ID)
	assert.NilError(t, err)
	assert.Equal(t, found.Status, models.StatusFailed)
	assert.Assert(t, found.ErrorMessage != nil)
	assert.Equal(t, *found.ErrorMessage, errMsg)
}

func TestUpdateDeploymentStatusNotFound(t *testing.T) {
	database := openTestDatabase(t)
	err := database.UpdateDeploymentStatus("missing", models.StatusFailed, nil)
	assert.Assert(t, errors.Is(err, ErrRecordNotFound))
}

func TestFindAllActiveWithProjects(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj7")
	assert.NilError(t, database.CreateProject(project))
	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusActive)
	assert.NilError(t, database.CreateDeployment(deployment))

	paired, err := database.FindAllActiveWithProjects()
	assert.NilError(t, err)
	assert.Equal(t, len(paired), 1)
	assert.Equal(t, paired[0].Project.ID, project.ID)
	assert.Equal(t, paired[0].Deployment.ID, deployment.ID)
}

func TestFindAllDeploying(t *testing.T) {
	database := openTestDatabase(t)
	project := newTestProject("proj8")
	assert.NilError(t, database.CreateProject(project))
	deployment := newTestDeployment(project.ID, 1, models.ColorBlue, models.StatusDeploying)
	assert.NilError(t, database.CreateDeployment(deployment))

	deploying, err := database.FindAllDeploying()
	assert.NilError(t, err)
	assert.Equal(t, len(deploying), 1)
}
