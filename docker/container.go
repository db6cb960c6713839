package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// RunContainerConfig holds the parameters for RunContainer. grouping them in
// a struct keeps the function signature stable as more options are added,
// the same reasoning the teacher applied to NginxContainerConfigArgs.
type RunContainerConfig struct {
	// Name is the Docker container name, "<project.Name>-<color lowercased>".
	Name string

	// ImageTag is the image built for this deployment.
	ImageTag string

	// HostPort is the project's fixed slot port (basePort or basePort+1).
	HostPort int

	// ContainerPort is the port the application listens on inside the container.
	ContainerPort int

	// NetworkName is the Docker network every project container joins.
	NetworkName string

	// Env is passed as one -e KEY=VALUE per entry; order is irrelevant.
	Env map[string]string
}

// RunContainer launches a detached container with restart policy
// unless-stopped and port mapping HostPort:ContainerPort, and connects it to
// NetworkName. it does not pull the image — the image was just built locally
// by BuildImage, so no registry round-trip is needed or wanted here.
func (client *Client) RunContainer(ctx context.Context, cfg RunContainerConfig) error {
	envList := make([]string, 0, len(cfg.Env))
	for key, value := range cfg.Env {
		envList = append(envList, key+"="+value)
	}

	containerPortSpec, err := nat.NewPort("tcp", fmt.Sprintf("%d", cfg.ContainerPort))
	if err != nil {
		return fmt.Errorf("invalid container port %d: %w", cfg.ContainerPort, err)
	}

	internalConfig := &container.Config{
		Image:        cfg.ImageTag,
		Env:          envList,
		ExposedPorts: nat.PortSet{containerPortSpec: struct{}{}},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPortSpec: []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", cfg.HostPort)},
			},
		},
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}

	networkingConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			cfg.NetworkName: {},
		},
	}

	var platform *v1.Platform = nil

	createResponse, err := client.sdk.ContainerCreate(
		ctx,
		internalConfig,
		hostConfig,
		networkingConfig,
		platform,
		cfg.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create container %q: %w", cfg.Name, err)
	}

	client.logger.Info("container created",
		"container_id", shortID(createResponse.ID),
		"container_name", cfg.Name,
		"host_port", cfg.HostPort,
	)

	if err := client.sdk.ContainerStart(ctx, createResponse.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %q: %w", cfg.Name, err)
	}

	client.logger.Info("container started",
		"container_name", cfg.Name,
		"host_port", cfg.HostPort,
	)
	return nil
}

// StopContainer stops a container by name. idempotent: if the container does
// not exist, that is the desired state and nil is returned, not an error.
func (client *Client) StopContainer(ctx context.Context, name string) error {
	id, found, err := client.findContainerByName(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	stopTimeout := 10
	if err := client.sdk.ContainerStop(ctx, id, container.StopOptions{Timeout: &stopTimeout}); err != nil {
		return fmt.Errorf("failed to stop container %q: %w", name, err)
	}
	return nil
}

// RemoveContainer removes a container by name. idempotent like StopContainer.
func (client *Client) RemoveContainer(ctx context.Context, name string) error {
	id, found, err := client.findContainerByName(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := client.sdk.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container %q: %w", name, err)
	}
	client.logger.Info("container removed", "name", name)
	return nil
}

// InspectRunning returns true iff a container with this name exists and is
// reported running. any lookup failure is treated as "not running" per the
// adapter contract — callers must never block on a flaky runtime lookup.
func (client *Client) InspectRunning(ctx context.Context, name string) bool {
	id, found, err := client.findContainerByName(ctx, name)
	if err != nil || !found {
		return false
	}

	inspectResult, err := client.sdk.ContainerInspect(ctx, id)
	if err != nil {
		return false
	}
	return inspectResult.State != nil && inspectResult.State.Running
}

// GetLogs returns up to tailLines of combined stdout+stderr from a container.
func (client *Client) GetLogs(ctx context.Context, name string, tailLines int) (string, error) {
	id, found, err := client.findContainerByName(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("container %q not found", name)
	}

	reader, err := client.sdk.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       fmt.Sprintf("%d", tailLines),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read logs for %q: %w", name, err)
	}
	defer reader.Close()

	// the container runs without a TTY, so Docker multiplexes stdout/stderr
	// with an 8-byte frame header per chunk; stdcopy.StdCopy demultiplexes it
	// into plain text, the same helper the teacher uses for build container logs.
	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, reader); err != nil {
		return "", fmt.Errorf("failed to demultiplex logs for %q: %w", name, err)
	}
	return combined.String(), nil
}

// Stats is the observability snapshot returned by GetStats.
type Stats struct {
	CPUPct       float64
	MemUsedBytes uint64
	MemLimitBytes uint64
	MemPct       float64
	NetInBytes   uint64
	NetOutBytes  uint64
	Pids         uint64
}

// GetStats reads a single non-streaming stats sample for a container and
// computes the same CPU/memory percentages `docker stats` shows, using the
// classic two-sample cgroup delta formula (current vs pre- CPU/system usage).
func (client *Client) GetStats(ctx context.Context, name string) (*Stats, error) {
	id, found, err := client.findContainerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("container %q not found", name)
	}

	// stream=false asks the daemon for a single sample rather than the
	// continuous feed `docker stats` normally consumes.
	statsReader, err := client.sdk.ContainerStats(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats for %q: %w", name, err)
	}
	defer statsReader.Body.Close()

	var raw dockertypes.StatsJSON
	if err := json.NewDecoder(statsReader.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode stats for %q: %w", name, err)
	}

	return computeStats(&raw), nil
}

// computeStats turns the raw two-sample cgroup counters the Engine API
// returns into the percentages operators actually read, the same arithmetic
// `docker stats` performs client-side.
func computeStats(raw *dockertypes.StatsJSON) *Stats {
	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	var cpuPct float64
	if systemDelta > 0 && cpuDelta > 0 {
		onlineCPUs := float64(raw.CPUStats.OnlineCPUs)
		if onlineCPUs == 0 {
			onlineCPUs = float64(len(raw.CPUStats.CPUUsage.PercpuUsage))
		}
		if onlineCPUs == 0 {
			onlineCPUs = 1
		}
		cpuPct = (cpuDelta / systemDelta) * onlineCPUs * 100.0
	}

	var memPct float64
	if raw.MemoryStats.Limit > 0 {
		memPct = (float64(raw.MemoryStats.Usage) / float64(raw.MemoryStats.Limit)) * 100.0
	}

	var netIn, netOut uint64
	for _, netStats := range raw.Networks {
		netIn += netStats.RxBytes
		netOut += netStats.TxBytes
	}

	return &Stats{
		CPUPct:        cpuPct,
		MemUsedBytes:  raw.MemoryStats.Usage,
		MemLimitBytes: raw.MemoryStats.Limit,
		MemPct:        memPct,
		NetInBytes:    netIn,
		NetOutBytes:   netOut,
		Pids:          raw.PidsStats.Current,
	}
}

// FreeHostPort stops and removes any container currently bound to hostPort.
// used as a pre-launch defensive step so a stale container left over from a
// crash does not cause "port already allocated" on the new RunContainer call.
func (client *Client) FreeHostPort(ctx context.Context, hostPort int) error {
	portStr := fmt.Sprintf("%d", hostPort)

	containers, err := client.sdk.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return fmt.Errorf("failed to list containers while freeing port %d: %w", hostPort, err)
	}

	for _, listed := range containers {
		for _, port := range listed.Ports {
			if port.PublicPort == 0 {
				continue
			}
			if fmt.Sprintf("%d", port.PublicPort) != portStr {
				continue
			}

			client.logger.Info("freeing stale container bound to port", "port", hostPort, "container_id", shortID(listed.ID))
			stopTimeout := 10
			if err := client.sdk.ContainerStop(ctx, listed.ID, container.StopOptions{Timeout: &stopTimeout}); err != nil {
				client.logger.Warn("failed to stop stale container (continuing)", "container_id", shortID(listed.ID), "error", err)
			}
			if err := client.sdk.ContainerRemove(ctx, listed.ID, container.RemoveOptions{Force: true}); err != nil {
				client.logger.Warn("failed to remove stale container (continuing)", "container_id", shortID(listed.ID), "error", err)
			}
		}
	}
	return nil
}

// findContainerByName resolves a container's ID from its exact name.
// Docker prefixes container names with "/" internally, so the comparison
// includes that prefix to avoid a false partial match from the list filter.
func (client *Client) findContainerByName(ctx context.Context, name string) (string, bool, error) {
	nameCriteria := filters.Arg("name", name)
	listFilters := filters.NewArgs(nameCriteria)

	containers, err := client.sdk.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: listFilters,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to list containers to find %q: %w", name, err)
	}

	targetName := "/" + name
	for _, listed := range containers {
		for _, candidateName := range listed.Names {
			if candidateName == targetName {
				return listed.ID, true, nil
			}
		}
	}
	return "", false, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
