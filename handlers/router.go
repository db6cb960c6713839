package handlers

// router.go constructs the chi router, registers all middleware, and wires
// every route to its handler. it is the single source of truth for the
// control API's HTTP surface area; adding a new endpoint means adding one
// line in this file, nothing else.

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/orchestrator"
	"github.com/versiongate/deploy-engine/rollback"
	"github.com/versiongate/deploy-engine/webhook"
)

// RouterDependencies groups every external dependency the router and its
// handlers need. passing one struct keeps CreateAndSetupRouter's signature
// stable as more handlers are added.
type RouterDependencies struct {
	Logger           *slog.Logger
	Database         *db.Database
	Docker           *docker.Client
	Orchestrator     *orchestrator.Orchestrator
	Rollback         *rollback.Engine
	Webhooks         *webhook.Dispatcher
	ProjectsRootPath string
	LogRoot          string
	AllowedOrigin    string
}

// CreateAndSetupRouter constructs the chi multiplexer, attaches middleware,
// constructs all handlers with their dependencies, and registers every
// route. it returns a plain http.Handler so main.go has no chi import or awareness.
func CreateAndSetupRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(CORSMiddleware(deps.AllowedOrigin))

	healthHandler := NewHealthHandler(deps.Logger)
	projectHandler := NewProjectHandler(deps.Database, deps.Logger, deps.ProjectsRootPath)
	deploymentHandler := NewDeploymentHandler(deps.Database, deps.Orchestrator, deps.Logger)
	rollbackHandler := NewRollbackHandler(deps.Database, deps.Rollback, deps.Logger)
	observabilityHandler := NewObservabilityHandler(deps.Database, deps.Docker, deps.Logger, deps.LogRoot)
	webhookHandler := NewWebhookHandler(deps.Webhooks, deps.Logger)
	systemHandler := NewSystemHandler(deps.Database, deps.Docker, deps.Logger)

	// /health is kept at the root, outside /api: load balancers, container
	// orchestrators, and uptime monitors expect it at a standard root path.
	router.Get("/health", healthHandler.Health)

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/projects", func(projects chi.Router) {
			projects.Get("/", projectHandler.ListProjects)
			projects.Post("/", projectHandler.CreateProject)

			projects.Route("/{id}", func(project chi.Router) {
				project.Get("/", projectHandler.GetProject)
				project.Patch("/", projectHandler.UpdateProject)
				project.Patch("/env", projectHandler.UpdateProjectEnv)
				project.Delete("/", projectHandler.DeleteProject)

				project.Get("/deployments", deploymentHandler.ListDeploymentsForProject)
				project.Post("/rollback", rollbackHandler.Rollback)
				project.Post("/cancel-deploy", deploymentHandler.CancelDeploy)
				project.Get("/logs", observabilityHandler.Logs)
				project.Get("/metrics", observabilityHandler.Metrics)
				project.Get("/build-log", observabilityHandler.BuildLog)
			})
		})

		api.Get("/deployments", deploymentHandler.ListDeployments)
		api.Post("/deploy", deploymentHandler.Deploy)

		api.Post("/webhooks/{secret}", webhookHandler.Handle)

		api.Post("/system/reconcile", systemHandler.Reconcile)
	})

	return router
}
