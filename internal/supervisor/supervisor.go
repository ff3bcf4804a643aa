// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/config"
)

// spawnGracePeriod is how long Start waits before declaring a newly
// spawned child alive; a process that exits within this window is
// treated as a spawn failure rather than a successfully started
// service that happened to crash moments later. These are vars
// rather than consts so tests can shrink them; production callers
// never override them from the §4.F defaults.
var (
	spawnGracePeriod    = 300 * time.Millisecond
	stopGracePeriod     = 10 * time.Second
	healthCheckDeadline = 30 * time.Second
)

// Status is the result of a status(service) query.
type Status struct {
	Service       Service `json:"service"`
	Running       bool    `json:"running"`
	PID           int     `json:"pid,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds,omitempty"`
	Port          int     `json:"port,omitempty"`
}

// StartOptions customizes a start/restart/start_all call. It is kept
// as a distinct type so new options can be added without changing
// every call site's signature.
type StartOptions struct {
	// Foreground is not read by the Supervisor or set by the CLI; the
	// Supervisor always spawns detached.
	Foreground bool
}

// Supervisor manages the Infrastructure, MCP, and Agent services as
// detached OS processes, using cfg to resolve each service's PID
// file, log file, and port.
type Supervisor struct {
	cfg *config.AppConfig
	log zerolog.Logger
}

func New(cfg *config.AppConfig, log zerolog.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, log: log}
}

// Status reports whether svc is running, lazily cleaning up a stale
// PID file left behind by a process that died out-of-band.
func (s *Supervisor) Status(ctx context.Context, svc Service) (Status, error) {
	pf := newPIDFile(svc.pidPath(s.cfg))
	status := Status{Service: svc, Port: svc.port(s.cfg)}

	pid, err := pf.read()
	if err != nil {
		if os.IsNotExist(err) {
			return status, nil
		}
		return status, anvylerr.Wrap(anvylerr.KindInternal, err, "read pid file")
	}

	alive, err := isAlive(ctx, pid, svc)
	if err != nil {
		return status, anvylerr.Wrap(anvylerr.KindInternal, err, "check process liveness")
	}
	if !alive {
		_ = pf.remove()
		return status, nil
	}

	status.Running = true
	status.PID = pid
	if up, err := uptime(ctx, pid); err == nil {
		status.UptimeSeconds = up.Seconds()
	}
	return status, nil
}

// StatusAll reports per-service status plus whether every service is
// running.
func (s *Supervisor) StatusAll(ctx context.Context) (map[Service]Status, bool, error) {
	out := make(map[Service]Status, len(All))
	healthy := true
	for _, svc := range All {
		st, err := s.Status(ctx, svc)
		if err != nil {
			return nil, false, err
		}
		out[svc] = st
		healthy = healthy && st.Running
	}
	return out, healthy, nil
}

// Start spawns svc if it is not already running, and returns its
// PID either way.
func (s *Supervisor) Start(ctx context.Context, svc Service, opts StartOptions) (int, error) {
	if st, err := s.Status(ctx, svc); err != nil {
		return 0, err
	} else if st.Running {
		return st.PID, nil
	}

	binary, err := resolveBinary(svc)
	if err != nil {
		return 0, &SpawnError{Service: svc, cause: err}
	}

	logPath := svc.logPath(s.cfg)
	pid, exited, err := spawnDetached(binary, nil, svc.env(s.cfg), logPath)
	if err != nil {
		return 0, &SpawnError{Service: svc, cause: err, LogTail: tailLines(logPath, 20)}
	}

	select {
	case exitErr := <-exited:
		exitCode := 0
		if ee, ok := exitErr.(interface{ ExitCode() int }); ok {
			exitCode = ee.ExitCode()
		}
		return 0, &SpawnError{Service: svc, ExitCode: exitCode, cause: exitErr, LogTail: tailLines(logPath, 20)}
	case <-time.After(spawnGracePeriod):
	}

	pf := newPIDFile(svc.pidPath(s.cfg))
	if err := pf.write(pid); err != nil {
		return 0, anvylerr.Wrap(anvylerr.KindInternal, err, "write pid file")
	}

	s.log.Info().Str("service", string(svc)).Int("pid", pid).Msg("service started")
	return pid, nil
}

// Stop sends SIGTERM to svc, escalating to SIGKILL after
// stopGracePeriod, and removes its PID file. It is a no-op if svc is
// not running.
func (s *Supervisor) Stop(ctx context.Context, svc Service) error {
	pf := newPIDFile(svc.pidPath(s.cfg))
	pid, err := pf.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return anvylerr.Wrap(anvylerr.KindInternal, err, "read pid file")
	}

	alive, err := isAlive(ctx, pid, svc)
	if err != nil {
		return anvylerr.Wrap(anvylerr.KindInternal, err, "check process liveness")
	}
	if !alive {
		return pf.remove()
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return pf.remove()
	}

	if err := signalTerm(proc); err != nil && !isNoSuchProcess(err) {
		// A send racing the process's own exit is not itself a
		// failure; fall through to polling regardless.
		s.log.Warn().Err(err).Str("service", string(svc)).Msg("sigterm delivery failed")
	}

	deadline := time.Now().Add(stopGracePeriod)
	for time.Now().Before(deadline) {
		running, err := proc.IsRunningWithContext(ctx)
		if err != nil || !running {
			return pf.remove()
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := proc.KillWithContext(ctx); err != nil && !isNoSuchProcess(err) {
		return anvylerr.Wrap(anvylerr.KindInternal, err, "sigkill service")
	}
	s.log.Warn().Str("service", string(svc)).Msg("service did not exit within grace period, sent sigkill")
	return pf.remove()
}

// Restart stops then starts svc.
func (s *Supervisor) Restart(ctx context.Context, svc Service, opts StartOptions) (int, error) {
	if err := s.Stop(ctx, svc); err != nil {
		return 0, err
	}
	return s.Start(ctx, svc, opts)
}

// StartAll starts infra, mcp, and agent in order, waiting for each
// one's health endpoint before starting the next. On failure it stops
// every service this call started and surfaces the failure.
func (s *Supervisor) StartAll(ctx context.Context, opts StartOptions) error {
	var started []Service
	for _, svc := range All {
		if _, err := s.Start(ctx, svc, opts); err != nil {
			s.rollback(context.Background(), started)
			return err
		}
		started = append(started, svc)

		if err := s.waitHealthy(ctx, svc); err != nil {
			s.rollback(context.Background(), started)
			return &SpawnError{Service: svc, cause: err, LogTail: tailLines(svc.logPath(s.cfg), 20)}
		}
	}
	return nil
}

func (s *Supervisor) rollback(ctx context.Context, started []Service) {
	for i := len(started) - 1; i >= 0; i-- {
		if err := s.Stop(ctx, started[i]); err != nil {
			s.log.Error().Err(err).Str("service", string(started[i])).Msg("rollback stop failed")
		}
	}
}

// StopAll stops agent, mcp, and infra in that order (the reverse of
// StartAll).
func (s *Supervisor) StopAll(ctx context.Context) error {
	for i := len(All) - 1; i >= 0; i-- {
		if err := s.Stop(ctx, All[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) waitHealthy(ctx context.Context, svc Service) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckDeadline)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.healthURL(s.cfg), nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Logs returns the service's log file contents, optionally limited to
// the last `tail` lines, and a follower when follow is requested.
func (s *Supervisor) Logs(svc Service, tail int, follow bool) (io.ReadCloser, error) {
	logPath := svc.logPath(s.cfg)
	f, err := os.Open(logPath)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindNotFound, err, "open log file")
	}

	if follow {
		// The caller reads from f as the child keeps appending. f is
		// positioned at the start of the file and tail is not applied,
		// so a follower sees the existing contents first and then the
		// bytes appended after them.
		return f, nil
	}

	if tail <= 0 {
		return f, nil
	}
	lines := tailLines(logPath, tail)
	f.Close()
	return io.NopCloser(newLineReader(lines)), nil
}

func isNoSuchProcess(err error) bool {
	return err != nil && err.Error() == "os: process already finished"
}
