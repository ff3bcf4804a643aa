// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docker is the Docker adapter (§4.B): a narrow, typed
// surface over the Docker Engine that the Infrastructure Service
// uses. It converts engine-specific errors into anvylerr kinds so no
// caller above this package ever inspects an engine error type:
// NotFound, Validation (an invalid image reference or a missing
// image), EngineUnavailable, and Internal for everything else. There
// is no separate state-error kind; an engine state conflict, such as
// starting a container that is already running, surfaces as Internal.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
)

// ManagedLabel and ContainerIDLabel are written onto every container
// Anvyl creates, per §4.C create-container semantics, so the
// reconciler can attribute an engine container back to a store row
// even if the store is lost.
const (
	ManagedLabel      = "anvyl.managed"
	ContainerIDLabel  = "anvyl.container_id"
)

// Spec is the Docker-facing description of a container to create.
type Spec struct {
	Name        string
	Image       string
	Env         map[string]string
	Command     []string
	Labels      map[string]string
	Ports       []PortBinding
	Volumes     []VolumeBinding
	WorkingDir  string
}

type PortBinding struct {
	HostPort      int
	ContainerPort int
	Protocol      string // "tcp" or "udp", defaults to tcp
}

type VolumeBinding struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// Summary is one row of a list_containers(all=true) response.
type Summary struct {
	DockerID string
	Names    []string
	Image    string
	State    string
	Labels   map[string]string
	Created  time.Time
}

// Inspection is the result of inspect(docker_id).
type Inspection struct {
	DockerID   string
	Status     string // one of created|running|exited|unknown
	Labels     map[string]string
	StartedAt  *time.Time
	FinishedAt *time.Time
	ExitCode   *int
}

// ExecResult is the result of exec(docker_id, argv, tty).
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Stats is a point-in-time CPU/memory sample.
type Stats struct {
	CPUPercent    float64
	MemUsedBytes  uint64
	MemLimitBytes uint64
}

// Adapter is the Docker Engine adapter.
type Adapter struct {
	cli *client.Client
}

// New creates an adapter using the environment's Docker connection
// settings (DOCKER_HOST, DOCKER_CERT_PATH, ...).
func New() (*Adapter, error) { return NewWithHost("") }

// NewWithHost creates an adapter against a specific Docker host URL,
// or falls back to the environment if host is empty.
func NewWithHost(host string) (*Adapter, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "create docker client")
	}
	return &Adapter{cli: cli}, nil
}

// Close releases the underlying connection.
func (a *Adapter) Close() error { return a.cli.Close() }

// ListContainers returns engine container summaries, optionally
// including stopped/exited containers.
func (a *Adapter) ListContainers(ctx context.Context, all bool) ([]Summary, error) {
	list, err := a.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Summary, 0, len(list))
	for _, c := range list {
		out = append(out, Summary{
			DockerID: c.ID,
			Names:    c.Names,
			Image:    c.Image,
			State:    c.State,
			Labels:   c.Labels,
			Created:  time.Unix(c.Created, 0).UTC(),
		})
	}
	return out, nil
}

// ListManaged returns only containers carrying the anvyl.managed
// label, used by the reconciler.
func (a *Adapter) ListManaged(ctx context.Context) ([]Summary, error) {
	f := filters.NewArgs()
	f.Add("label", ManagedLabel+"=true")
	list, err := a.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Summary, 0, len(list))
	for _, c := range list {
		out = append(out, Summary{DockerID: c.ID, Names: c.Names, Image: c.Image, State: c.State, Labels: c.Labels, Created: time.Unix(c.Created, 0).UTC()})
	}
	return out, nil
}

// Inspect returns the full engine record for a container.
func (a *Adapter) Inspect(ctx context.Context, dockerID string) (*Inspection, error) {
	resp, err := a.cli.ContainerInspect(ctx, dockerID)
	if err != nil {
		return nil, classify(err)
	}
	ins := &Inspection{
		DockerID: resp.ID,
		Status:   mapEngineStatus(resp.State),
		Labels:   resp.Config.Labels,
	}
	if resp.State.StartedAt != "" && resp.State.StartedAt != "0001-01-01T00:00:00Z" {
		if t, err := time.Parse(time.RFC3339Nano, resp.State.StartedAt); err == nil {
			ins.StartedAt = &t
		}
	}
	if resp.State.FinishedAt != "" && resp.State.FinishedAt != "0001-01-01T00:00:00Z" {
		if t, err := time.Parse(time.RFC3339Nano, resp.State.FinishedAt); err == nil {
			ins.FinishedAt = &t
		}
	}
	if !resp.State.Running {
		code := resp.State.ExitCode
		ins.ExitCode = &code
	}
	return ins, nil
}

func mapEngineStatus(s *container.State) string {
	if s == nil {
		return "unknown"
	}
	switch {
	case s.Running:
		return "running"
	case s.Dead, s.OOMKilled:
		return "exited"
	case s.Status == "created":
		return "created"
	case s.Status == "exited":
		return "exited"
	default:
		return "unknown"
	}
}

// Create builds and starts an engine container from spec, returning
// its docker_id.
func (a *Adapter) Create(ctx context.Context, spec Spec) (string, error) {
	portBindings := nat.PortMap{}
	exposedPorts := nat.PortSet{}
	for _, p := range spec.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		containerPort := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, proto))
		portBindings[containerPort] = []nat.PortBinding{{HostPort: strconv.Itoa(p.HostPort)}}
		exposedPorts[containerPort] = struct{}{}
	}

	binds := make([]string, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		b := fmt.Sprintf("%s:%s", v.HostPath, v.ContainerPath)
		if v.ReadOnly {
			b += ":ro"
		}
		binds = append(binds, b)
	}

	containerConfig := &container.Config{
		Image:        spec.Image,
		Env:          envMapToSlice(spec.Env),
		ExposedPorts: exposedPorts,
		WorkingDir:   spec.WorkingDir,
		Cmd:          spec.Command,
		Labels:       spec.Labels,
	}
	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Binds:        binds,
	}

	resp, err := a.cli.ContainerCreate(ctx, containerConfig, hostConfig, &network.NetworkingConfig{}, nil, spec.Name)
	if err != nil {
		return "", classify(err)
	}
	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best-effort cleanup of the half-created container; the
		// caller is responsible for deleting its store row on any
		// error from Create.
		_ = a.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", classify(err)
	}
	return resp.ID, nil
}

// Start starts an existing, stopped container.
func (a *Adapter) Start(ctx context.Context, dockerID string) error {
	if err := a.cli.ContainerStart(ctx, dockerID, container.StartOptions{}); err != nil {
		return classify(err)
	}
	return nil
}

// Stop stops a running container, sending SIGTERM then SIGKILL after
// timeout elapses.
func (a *Adapter) Stop(ctx context.Context, dockerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := a.cli.ContainerStop(ctx, dockerID, container.StopOptions{Timeout: &seconds}); err != nil {
		return classify(err)
	}
	return nil
}

// Remove removes a container from the engine.
func (a *Adapter) Remove(ctx context.Context, dockerID string, force bool) error {
	if err := a.cli.ContainerRemove(ctx, dockerID, container.RemoveOptions{Force: force}); err != nil {
		return classify(err)
	}
	return nil
}

// Logs returns a reader over the container's log stream. Callers must
// close it. When follow is false the reader reaches EOF once the
// buffered tail is delivered.
func (a *Adapter) Logs(ctx context.Context, dockerID string, tail int, follow bool) (io.ReadCloser, error) {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
	}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}
	rc, err := a.cli.ContainerLogs(ctx, dockerID, opts)
	if err != nil {
		return nil, classify(err)
	}
	return rc, nil
}

// Exec runs argv inside the container and collects its output.
func (a *Adapter) Exec(ctx context.Context, dockerID string, argv []string, tty bool) (*ExecResult, error) {
	created, err := a.cli.ContainerExecCreate(ctx, dockerID, container.ExecOptions{
		Cmd:          argv,
		Tty:          tty,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, classify(err)
	}

	attached, err := a.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: tty})
	if err != nil {
		return nil, classify(err)
	}
	defer attached.Close()

	var stdout strings.Builder
	if _, err := io.Copy(&stdout, attached.Reader); err != nil && !errors.Is(err, io.EOF) {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "read exec output")
	}

	inspected, err := a.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, classify(err)
	}

	return &ExecResult{ExitCode: inspected.ExitCode, Stdout: stdout.String()}, nil
}

// Stats returns a point-in-time CPU/memory sample for a running
// container.
func (a *Adapter) Stats(ctx context.Context, dockerID string) (*Stats, error) {
	resp, err := a.cli.ContainerStatsOneShot(ctx, dockerID)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	var raw struct {
		CPUStats struct {
			CPUUsage    struct{ TotalUsage uint64 } `json:"cpu_usage"`
			SystemUsage uint64                      `json:"system_cpu_usage"`
			OnlineCPUs  uint32                      `json:"online_cpus"`
		} `json:"cpu_stats"`
		PreCPUStats struct {
			CPUUsage    struct{ TotalUsage uint64 } `json:"cpu_usage"`
			SystemUsage uint64                      `json:"system_cpu_usage"`
		} `json:"precpu_stats"`
		MemoryStats struct {
			Usage uint64 `json:"usage"`
			Limit uint64 `json:"limit"`
		} `json:"memory_stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "decode stats")
	}

	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	var cpuPercent float64
	if systemDelta > 0 && cpuDelta > 0 {
		online := float64(raw.CPUStats.OnlineCPUs)
		if online == 0 {
			online = 1
		}
		cpuPercent = (cpuDelta / systemDelta) * online * 100.0
	}

	return &Stats{
		CPUPercent:    cpuPercent,
		MemUsedBytes:  raw.MemoryStats.Usage,
		MemLimitBytes: raw.MemoryStats.Limit,
	}, nil
}

func envMapToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// classify converts an engine error into the adapter's error
// taxonomy. Only this function is allowed to look at the shape of a
// docker/client error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if client.IsErrNotFound(err) {
		return anvylerr.Wrap(anvylerr.KindNotFound, err, "container not found")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "docker engine call timed out")
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "Cannot connect to the Docker daemon"):
		return anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "docker engine unreachable")
	case strings.Contains(msg, "invalid reference format"), strings.Contains(msg, "No such image"):
		return anvylerr.Wrap(anvylerr.KindValidation, err, "invalid container spec")
	case client.IsErrConnectionFailed(err):
		return anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "docker engine unreachable")
	}
	return anvylerr.Wrap(anvylerr.KindInternal, err, "docker engine call failed")
}
