// Package docker wraps the Docker Engine SDK and provides the high-level
// container-runtime operations the orchestrator needs: building images,
// running/stopping/removing containers, inspecting running state, reading
// logs and stats, and freeing a host port from a stale container. all Docker
// SDK calls are isolated here so no other package imports the SDK directly.
// if the runtime strategy ever changed (e.g. Podman's compatible socket, or
// shelling to the CLI), only this package would change.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dockerSDKclient "github.com/docker/docker/client"
)

// Client wraps the Docker SDK client with a logger. the SDK client manages
// the connection to the Docker daemon over the Unix socket; it is safe to
// share a single Client across goroutines since the SDK handles concurrency
// internally, which is why the orchestrator (one pipeline per project,
// potentially many in parallel) can hold just one Client for its whole lifetime.
type Client struct {
	sdk    *dockerSDKclient.Client
	logger *slog.Logger
}

// NewClient constructs a Client, connects to the Docker daemon using the
// default socket path (/var/run/docker.sock unless $DOCKER_HOST overrides
// it), and pings it to verify the connection is live before returning.
// a returned error should cause main.go to exit immediately: if the Docker
// daemon is unreachable, the engine cannot build or run anything.
func NewClient(logger *slog.Logger) (*Client, error) {
	sdkClient, err := dockerSDKclient.NewClientWithOpts(
		dockerSDKclient.FromEnv,
		dockerSDKclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker sdk client: %w", err)
	}

	client := &Client{
		sdk:    sdkClient,
		logger: logger,
	}

	pingContext, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()

	if err := client.ping(pingContext); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	logger.Info("docker client connected", "host", sdkClient.DaemonHost())
	return client, nil
}

func (client *Client) ping(ctx context.Context) error {
	_, err := client.sdk.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying Docker SDK client connection.
// should be deferred in main.go immediately after NewClient returns successfully.
func (client *Client) Close() error {
	return client.sdk.Close()
}
