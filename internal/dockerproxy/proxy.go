// Package dockerproxy passes panel container operations through to
// the local Docker engine.
package dockerproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/panelkit/devpanel/internal/models"
)

const (
	// defaultLogTail bounds a log fetch when the caller gives no tail.
	defaultLogTail = 100
	// stopTimeout is how long the engine waits before killing a
	// container that ignores the stop signal.
	stopTimeout = 10 * time.Second
	// restartPause sits between the stop and start of a restart.
	restartPause = 2 * time.Second
)

// Proxy wraps a Docker engine client with the panel's container
// operations.
type Proxy struct {
	cli *client.Client
	log *slog.Logger
}

// New connects to the engine named by the usual DOCKER_* environment
// variables. Callers treat a failure here as "no Docker on this host"
// and run without container features.
func New(log *slog.Logger) (*Proxy, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	return &Proxy{cli: cli, log: log}, nil
}

// Close releases the engine connection.
func (p *Proxy) Close() error {
	return p.cli.Close()
}

// ListContainers returns every container on the host, running or not,
// with best-effort resource usage attached.
func (p *Proxy) ListContainers(ctx context.Context) ([]models.ContainerInfo, error) {
	containers, err := p.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]models.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		info := summarize(c)
		cpuUsage, memUsage, err := p.ContainerStats(ctx, info.ID)
		if err != nil {
			p.log.Debug("container stats unavailable", "container", info.ID, "error", err)
		}
		info.CPUUsage = cpuUsage
		info.MemoryUsage = memUsage
		out = append(out, info)
	}
	return out, nil
}

// StartContainer starts a stopped container.
func (p *Proxy) StartContainer(ctx context.Context, id string) error {
	p.log.Info("starting container", "container", id)
	if err := p.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

// StopContainer stops a running container, giving it stopTimeout to
// exit before the engine kills it.
func (p *Proxy) StopContainer(ctx context.Context, id string) error {
	p.log.Info("stopping container", "container", id)
	seconds := int(stopTimeout.Seconds())
	if err := p.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

// RestartContainer stops the container, waits briefly for its ports to
// free up, then starts it again.
func (p *Proxy) RestartContainer(ctx context.Context, id string) error {
	if err := p.StopContainer(ctx, id); err != nil {
		return err
	}
	time.Sleep(restartPause)
	return p.StartContainer(ctx, id)
}

// ContainerLogs returns the last tail lines of a container's combined
// stdout and stderr. A tail of zero or less means defaultLogTail.
func (p *Proxy) ContainerLogs(ctx context.Context, id string, tail int) ([]string, error) {
	if tail <= 0 {
		tail = defaultLogTail
	}
	rc, err := p.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	// The engine multiplexes stdout and stderr onto one stream.
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return nil, fmt.Errorf("read container logs: %w", err)
	}
	return splitLogLines(buf.String()), nil
}

// ContainerStats takes a single stats sample and returns CPU usage in
// percent and memory usage in bytes.
func (p *Proxy) ContainerStats(ctx context.Context, id string) (float64, uint64, error) {
	resp, err := p.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return 0, 0, fmt.Errorf("container stats: %w", err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, 0, fmt.Errorf("decode container stats: %w", err)
	}
	return cpuPercent(&stats), stats.MemoryStats.Usage, nil
}

// summarize maps an engine container record onto the panel's wire
// shape, leaving the resource figures for the caller to fill in.
func summarize(c types.Container) models.ContainerInfo {
	id := c.ID
	if len(id) > 12 {
		id = id[:12]
	}

	var name string
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	ports := make([]string, 0, len(c.Ports))
	for _, port := range c.Ports {
		if port.PublicPort > 0 {
			ports = append(ports, fmt.Sprintf("%d:%d", port.PublicPort, port.PrivatePort))
		} else {
			ports = append(ports, strconv.Itoa(int(port.PrivatePort)))
		}
	}

	return models.ContainerInfo{
		ID:      id,
		Name:    name,
		Status:  c.Status,
		Image:   c.Image,
		Ports:   ports,
		Created: time.Unix(c.Created, 0).UTC(),
	}
}

// cpuPercent derives a usage percentage from the deltas between the
// sample's current and previous CPU counters.
func cpuPercent(stats *container.StatsResponse) float64 {
	var cpuDelta, systemDelta float64
	if cur, pre := stats.CPUStats.CPUUsage.TotalUsage, stats.PreCPUStats.CPUUsage.TotalUsage; cur > pre {
		cpuDelta = float64(cur - pre)
	}
	if cur, pre := stats.CPUStats.SystemUsage, stats.PreCPUStats.SystemUsage; cur > pre {
		systemDelta = float64(cur - pre)
	}
	if systemDelta == 0 {
		return 0
	}
	return cpuDelta / systemDelta * 100
}

func splitLogLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
