// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package infra

import (
	"context"
	"io"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/docker"
	"github.com/kessler-frost/anvyl/internal/hostmetrics"
	"github.com/kessler-frost/anvyl/internal/models"
	"github.com/kessler-frost/anvyl/internal/store"
)

// Service is the Infrastructure Service's process-wide state: one
// persistence handle, one Docker adapter handle, one local host id,
// one background reconciler.
type Service struct {
	store  *store.Store
	docker *docker.Adapter
	log    zerolog.Logger

	localHostID string

	hostMu sync.Mutex // serializes host inventory mutations (§5)

	containerLocks sync.Map // container id -> *sync.Mutex (§5, per-container write mutex)

	reconcileInterval time.Duration
	missingMu         sync.Mutex
	missingTicks      map[string]int // container internal id -> consecutive ticks absent from the engine
	reconcileBusy     sync.Mutex     // held only for the duration of a tick; tick returns at once if this is still locked

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs the service without starting the reconciler. Call
// Bootstrap to register the local host, then Run to start the
// background reconciler loop.
func New(st *store.Store, dock *docker.Adapter, reconcileInterval time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:             st,
		docker:            dock,
		log:               log,
		reconcileInterval: reconcileInterval,
		missingTicks:      make(map[string]int),
	}
}

// Bootstrap registers the local host on first start, or refreshes an
// existing local host row on subsequent starts (§3 Lifecycle: "the
// local host is never deletable").
func (s *Service) Bootstrap(ctx context.Context) error {
	existing, err := s.store.GetLocalHost(ctx)
	if err == nil {
		s.localHostID = existing.ID
		_, err := s.store.UpdateHost(ctx, existing.ID, func(h *models.Host) error {
			h.Status = models.HostActive
			now := time.Now().UTC()
			h.LastHeartbeat = &now
			return nil
		})
		return err
	}
	if anvylerr.KindOf(err) != anvylerr.KindNotFound {
		return err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}
	h := &models.Host{
		ID:      uuid.NewString(),
		Name:    hostname,
		IP:      localOutboundIP(),
		OS:      osName(),
		Status:  models.HostActive,
		IsLocal: true,
	}
	h.SetTags([]string{"local"})
	if err := s.store.AddHost(ctx, h); err != nil {
		return err
	}
	s.localHostID = h.ID
	s.log.Info().Str("host_id", h.ID).Str("hostname", hostname).Msg("registered local host")
	return nil
}

func osName() string {
	return runtime.GOOS
}

// localOutboundIP resolves the machine's primary non-loopback address
// by dialing a UDP "connection" (no packet is actually sent) and
// reading the address the kernel would route it from, falling back to
// loopback if nothing is routable.
func localOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

func (s *Service) LocalHostID() string { return s.localHostID }

// Close tears down background work. Safe to call even if Run was
// never started.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Service) containerLock(id string) *sync.Mutex {
	v, _ := s.containerLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ---- Health & status ----

func (s *Service) Health(ctx context.Context) HealthStatus {
	var hs HealthStatus
	hs.Status = "ok"
	_, dbErr := s.store.GetLocalHost(ctx)
	hs.Components.DB = dbErr == nil || anvylerr.KindOf(dbErr) == anvylerr.KindNotFound
	_, dockErr := s.docker.ListContainers(ctx, false)
	hs.Components.Docker = dockErr == nil
	if !hs.Components.DB || !hs.Components.Docker {
		hs.Status = "degraded"
	}
	return hs
}

func (s *Service) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	hosts, err := s.store.ListHosts(ctx)
	if err != nil {
		return nil, err
	}
	containers, err := s.store.ListContainers(ctx, "", true)
	if err != nil {
		return nil, err
	}
	status := &SystemStatus{Hosts: len(hosts), Engine: "ok"}
	if _, err := s.docker.ListContainers(ctx, false); err != nil {
		status.Engine = "down"
	}
	running, stopped, total := hostsToStatusCounts(containers)
	status.Containers.Running = running
	status.Containers.Stopped = stopped
	status.Containers.Total = total
	return status, nil
}

// ---- Hosts ----

func (s *Service) ListHosts(ctx context.Context) ([]models.Host, error) {
	return s.store.ListHosts(ctx)
}

func (s *Service) GetHost(ctx context.Context, id string) (*models.Host, error) {
	return s.store.GetHost(ctx, id)
}

func (s *Service) AddHost(ctx context.Context, req AddHostRequest) (*models.Host, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, anvylerr.New(anvylerr.KindValidation, "name is required")
	}
	if strings.TrimSpace(req.IP) == "" {
		return nil, anvylerr.New(anvylerr.KindValidation, "ip is required")
	}
	s.hostMu.Lock()
	defer s.hostMu.Unlock()

	h := &models.Host{
		ID:     uuid.NewString(),
		Name:   req.Name,
		IP:     req.IP,
		OS:     req.OS,
		Status: models.HostInactive,
	}
	h.SetTags(req.Tags)
	if err := s.store.AddHost(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) UpdateHost(ctx context.Context, id string, req UpdateHostRequest) (*models.Host, error) {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()

	return s.store.UpdateHost(ctx, id, func(h *models.Host) error {
		if req.Name != nil {
			h.Name = *req.Name
		}
		if req.Status != nil {
			h.Status = models.HostStatus(*req.Status)
		}
		if req.Tags != nil {
			h.SetTags(req.Tags)
		}
		if req.Resources != nil {
			h.Resources = *req.Resources
		}
		if req.Metadata != nil {
			h.Metadata = *req.Metadata
		}
		return nil
	})
}

func (s *Service) RemoveHost(ctx context.Context, id string) error {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	return s.store.RemoveHost(ctx, id)
}

func (s *Service) HostMetrics(ctx context.Context, id string) (*HostMetrics, error) {
	h, err := s.store.GetHost(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.IsLocal {
		snap, err := hostmetrics.Sample(ctx)
		if err != nil {
			return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "sample host metrics")
		}
		return &HostMetrics{
			CPUPercent:  snap.CPUPercent,
			MemoryUsed:  snap.MemoryUsed,
			MemoryTotal: snap.MemoryTotal,
			DiskUsed:    snap.DiskUsed,
			DiskTotal:   snap.DiskTotal,
			LoadAverage: snap.LoadAverage1,
		}, nil
	}
	snap := hostmetrics.Decode(h.Resources)
	return &HostMetrics{
		CPUPercent:  snap.CPUPercent,
		MemoryUsed:  snap.MemoryUsed,
		MemoryTotal: snap.MemoryTotal,
		DiskUsed:    snap.DiskUsed,
		DiskTotal:   snap.DiskTotal,
		LoadAverage: snap.LoadAverage1,
	}, nil
}

// ---- Containers ----

// ListContainers lists containers, optionally scoped to hostID. Unless
// all is true, stopped and exited containers are excluded (§4.C:
// "optional all=true includes stopped").
func (s *Service) ListContainers(ctx context.Context, hostID string, all bool) ([]models.Container, error) {
	return s.store.ListContainers(ctx, hostID, all)
}

func (s *Service) GetContainer(ctx context.Context, id string) (*models.Container, error) {
	return s.store.GetContainer(ctx, id)
}

// CreateContainer implements the five-step create-container semantics
// of §4.C: validate, persist the row before the engine call, create +
// start the engine container with the managed labels, then update the
// row on success or delete it and surface the adapter error on
// failure.
func (s *Service) CreateContainer(ctx context.Context, req CreateContainerRequest) (*models.Container, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, anvylerr.New(anvylerr.KindValidation, "name is required")
	}
	if strings.TrimSpace(req.Image) == "" {
		return nil, anvylerr.New(anvylerr.KindValidation, "image is required")
	}
	if req.HostID != "" && req.HostID != s.localHostID {
		return nil, anvylerr.New(anvylerr.KindValidation, "containers can only be created on the local host in single-node scope")
	}

	id := uuid.NewString()
	row := &models.Container{
		ID:     id,
		Name:   req.Name,
		Image:  req.Image,
		HostID: s.localHostID,
		Status: models.ContainerCreated,
	}
	row.SetLabels(req.Labels)
	row.SetPorts(req.Ports)
	row.SetVolumes(req.Volumes)
	row.SetEnvironment(req.Environment)
	row.SetCommand(req.Command)
	if err := s.store.AddContainer(ctx, row); err != nil {
		return nil, err
	}

	lock := s.containerLock(id)
	lock.Lock()
	defer lock.Unlock()

	labels := lo.Assign(map[string]string{}, req.Labels, map[string]string{
		docker.ManagedLabel:     "true",
		docker.ContainerIDLabel: id,
	})

	spec := docker.Spec{
		Name:    req.Name,
		Image:   req.Image,
		Env:     parseEnv(req.Environment),
		Labels:  labels,
		Command: req.Command,
		Ports:   parsePorts(req.Ports),
		Volumes: parseVolumes(req.Volumes),
	}

	dockerID, err := s.docker.Create(ctx, spec)
	if err != nil {
		_ = s.store.RemoveContainer(ctx, id)
		return nil, err
	}

	now := time.Now().UTC()
	return s.store.UpdateContainer(ctx, id, func(c *models.Container) error {
		c.DockerID = &dockerID
		c.Status = models.ContainerRunning
		c.StartedAt = &now
		return nil
	})
}

func (s *Service) StopContainer(ctx context.Context, id string, timeoutSeconds int) (*models.Container, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	lock := s.containerLock(id)
	lock.Lock()
	defer lock.Unlock()

	row, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.DockerID != nil {
		if err := s.docker.Stop(ctx, *row.DockerID, time.Duration(timeoutSeconds)*time.Second); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateContainer(ctx, row.ID, func(c *models.Container) error {
		c.Status = models.ContainerStopped
		return nil
	})
}

func (s *Service) RemoveContainer(ctx context.Context, id string, force bool) error {
	lock := s.containerLock(id)
	lock.Lock()
	defer lock.Unlock()

	row, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return err
	}
	if row.DockerID != nil {
		if err := s.docker.Stop(ctx, *row.DockerID, 10*time.Second); err != nil && anvylerr.KindOf(err) != anvylerr.KindNotFound {
			return err
		}
		if err := s.docker.Remove(ctx, *row.DockerID, force); err != nil && anvylerr.KindOf(err) != anvylerr.KindNotFound {
			return err
		}
	}
	return s.store.RemoveContainer(ctx, row.ID)
}

func (s *Service) ContainerLogs(ctx context.Context, id string, tail int, follow bool) (io.ReadCloser, error) {
	row, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.DockerID == nil {
		return nil, anvylerr.Newf(anvylerr.KindNotFound, "container %s has no engine record yet", id)
	}
	return s.docker.Logs(ctx, *row.DockerID, tail, follow)
}

func (s *Service) ExecContainer(ctx context.Context, id string, req ExecRequest) (*ExecResult, error) {
	if len(req.Command) == 0 {
		return nil, anvylerr.New(anvylerr.KindValidation, "command is required")
	}
	row, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.DockerID == nil {
		return nil, anvylerr.Newf(anvylerr.KindNotFound, "container %s has no engine record yet", id)
	}
	res, err := s.docker.Exec(ctx, *row.DockerID, req.Command, req.TTY)
	if err != nil {
		return nil, err
	}
	return &ExecResult{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

// ---- Supplemented feature: local host command execution ----
// Grounded on original_source/anvyl/infrastructure_service.py's
// exec_command_on_host, which restricts execution to the local host
// only.

func (s *Service) ExecOnHost(ctx context.Context, hostID string, req ExecRequest) (*ExecResult, error) {
	if hostID != s.localHostID {
		return nil, anvylerr.New(anvylerr.KindInvariant, "commands can only be executed on the local host")
	}
	if len(req.Command) == 0 {
		return nil, anvylerr.New(anvylerr.KindValidation, "command is required")
	}
	return runHostCommand(ctx, req)
}

func parseEnv(kv []string) map[string]string {
	out := map[string]string{}
	for _, e := range kv {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

func parsePorts(specs []string) []docker.PortBinding {
	var out []docker.PortBinding
	for _, p := range specs {
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			continue
		}
		hostPort, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		containerSpec := parts[1]
		protocol := "tcp"
		containerPortStr := containerSpec
		if idx := strings.Index(containerSpec, "/"); idx >= 0 {
			containerPortStr = containerSpec[:idx]
			protocol = containerSpec[idx+1:]
		}
		containerPort, err := strconv.Atoi(containerPortStr)
		if err != nil {
			continue
		}
		out = append(out, docker.PortBinding{HostPort: hostPort, ContainerPort: containerPort, Protocol: protocol})
	}
	return out
}

func parseVolumes(specs []string) []docker.VolumeBinding {
	var out []docker.VolumeBinding
	for _, v := range specs {
		parts := strings.Split(v, ":")
		if len(parts) < 2 {
			continue
		}
		vb := docker.VolumeBinding{HostPath: parts[0], ContainerPath: parts[1]}
		if len(parts) >= 3 && parts[2] == "ro" {
			vb.ReadOnly = true
		}
		out = append(out, vb)
	}
	return out
}

