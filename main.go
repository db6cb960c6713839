package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/versiongate/deploy-engine/config"
	"github.com/versiongate/deploy-engine/db"
	"github.com/versiongate/deploy-engine/docker"
	"github.com/versiongate/deploy-engine/handlers"
	"github.com/versiongate/deploy-engine/orchestrator"
	"github.com/versiongate/deploy-engine/projectlock"
	"github.com/versiongate/deploy-engine/reconcile"
	"github.com/versiongate/deploy-engine/rollback"
	"github.com/versiongate/deploy-engine/trafficswitch"
	"github.com/versiongate/deploy-engine/watcher"
	"github.com/versiongate/deploy-engine/webhook"
)

func main() {
	appConfig, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := appConfig.NewLogger()

	logger.Info("versiongate control plane starting",
		"port", appConfig.Port,
		"database_url", appConfig.DatabaseURL,
		"log_format", appConfig.LogFormat,
	)

	// opening the database and running schema migration (init tables).
	// if this fails, the application cannot serve requests, so exit immediately.
	database, err := db.OpenDatabase(appConfig.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.CloseDatabase()

	dockerClient, err := docker.NewClient(logger)
	if err != nil {
		log.Fatalf("failed to connect to docker daemon: %v", err)
	}
	defer dockerClient.Close()

	switcher := trafficswitch.NewSwitcher(appConfig.NginxConfigPath, appConfig.NginxReloadCmd, appConfig.NginxReloadArgs, logger)

	// reconciliation runs once, synchronously, before the HTTP server starts
	// accepting traffic: any DEPLOYING record orphaned by a prior crash, or
	// any ACTIVE record whose container is no longer running, is classified
	// FAILED before a client can observe stale state.
	bootContext := context.Background()
	report, err := reconcile.Run(bootContext, database, dockerClient, logger)
	if err != nil {
		log.Fatalf("reconciliation pass failed: %v", err)
	}
	logger.Info("reconciliation complete",
		"deploying_fixed", report.DeployingFixed,
		"active_invalidated", report.ActiveInvalidated,
	)

	// locks is shared by the orchestrator and the rollback engine so a deploy
	// and a rollback for the same project can never run concurrently.
	locks := projectlock.NewTable()

	orch := orchestrator.New(database, dockerClient, switcher, locks, logger, orchestrator.Config{
		NetworkName: appConfig.DockerNetwork,
		LogRoot:     appConfig.LogRoot,
	})
	rollbackEngine := rollback.New(database, dockerClient, switcher, locks, logger, appConfig.DockerNetwork)
	webhookDispatcher := webhook.New(database, orch, logger)

	// the container watcher runs for the lifetime of the process, auditing
	// every ACTIVE deployment's container once per watcher.Interval. it is
	// stopped by cancelling watcherContext during graceful shutdown.
	watcherContext, cancelWatcher := context.WithCancel(context.Background())
	defer cancelWatcher()
	containerWatcher := watcher.New(database, dockerClient, logger)
	go containerWatcher.Run(watcherContext)

	router := handlers.CreateAndSetupRouter(handlers.RouterDependencies{
		Logger:           logger,
		Database:         database,
		Docker:           dockerClient,
		Orchestrator:     orch,
		Rollback:         rollbackEngine,
		Webhooks:         webhookDispatcher,
		ProjectsRootPath: appConfig.ProjectsRootPath,
		LogRoot:          appConfig.LogRoot,
		AllowedOrigin:    appConfig.AllowedOrigin,
	})

	// Explicit HTTP Server Instantiation:
	// the standard library's http.ListenAndServe leaves timeouts at their
	// zero-value (infinite) defaults. the server is constructed manually here
	// so read/write/idle deadlines are set explicitly.
	server := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// the server runs in its own goroutine so the main goroutine can block on
	// the signal channel below; a buffered channel relays a fatal listen
	// error back to main without a shared-memory race.
	shutdownChannel := make(chan error, 1)

	go func() {
		logger.Info("http server listening", "addr", server.Addr)

		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			shutdownChannel <- err
		}
		close(shutdownChannel)
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("startup complete, server ready to serve", "port", appConfig.Port)

	select {
	case sig := <-signalChannel:
		logger.Info("shutdown signal received", "signal", sig)
	case err := <-shutdownChannel:
		if err != nil {
			log.Fatalf("http server failed: %v", err)
		}
	}

	cancelWatcher()

	shutdownContext, cancelShutdownContext := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdownContext()

	if err := server.Shutdown(shutdownContext); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("server shut down cleanly")
	}
}
