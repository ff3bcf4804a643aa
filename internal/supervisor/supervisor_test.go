// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kessler-frost/anvyl/internal/config"
)

// installFakeBinary writes an executable shell script named after
// svc's expected binary into a fresh directory and prepends that
// directory to $PATH, so resolveBinary's exec.LookPath fallback finds
// it without needing a real anvyl-<service> build on disk.
func installFakeBinary(t *testing.T, svc Service, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, svc.binaryName())
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0700))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	stateDir := t.TempDir()
	return &config.AppConfig{
		StateDir:  stateDir,
		InfraPort: 14200,
		MCPPort:   14201,
		AgentPort: 14202,
	}
}

func TestStartSpawnsAndWritesPIDFile(t *testing.T) {
	installFakeBinary(t, Infra, "sleep 5")
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())

	pid, err := sup.Start(context.Background(), Infra, StartOptions{})
	require.NoError(t, err)
	require.Greater(t, pid, 0)
	t.Cleanup(func() { _ = sup.Stop(context.Background(), Infra) })

	st, err := sup.Status(context.Background(), Infra)
	require.NoError(t, err)
	require.True(t, st.Running)
	require.Equal(t, pid, st.PID)
}

func TestStartIsIdempotent(t *testing.T) {
	installFakeBinary(t, Infra, "sleep 5")
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())

	pid1, err := sup.Start(context.Background(), Infra, StartOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Stop(context.Background(), Infra) })

	pid2, err := sup.Start(context.Background(), Infra, StartOptions{})
	require.NoError(t, err)
	require.Equal(t, pid1, pid2)
}

func TestStartSurfacesSpawnFailure(t *testing.T) {
	installFakeBinary(t, Infra, "exit 7")
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())

	savedGrace := spawnGracePeriod
	spawnGracePeriod = 50 * time.Millisecond
	t.Cleanup(func() { spawnGracePeriod = savedGrace })

	_, err := sup.Start(context.Background(), Infra, StartOptions{})
	require.Error(t, err)
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	require.Equal(t, Infra, spawnErr.Service)

	st, err := sup.Status(context.Background(), Infra)
	require.NoError(t, err)
	require.False(t, st.Running)
}

func TestStopIsIdempotentAndRemovesPIDFile(t *testing.T) {
	installFakeBinary(t, Infra, "sleep 5")
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())

	savedStop := stopGracePeriod
	stopGracePeriod = 500 * time.Millisecond
	t.Cleanup(func() { stopGracePeriod = savedStop })

	_, err := sup.Start(context.Background(), Infra, StartOptions{})
	require.NoError(t, err)

	require.NoError(t, sup.Stop(context.Background(), Infra))
	require.NoError(t, sup.Stop(context.Background(), Infra))

	st, err := sup.Status(context.Background(), Infra)
	require.NoError(t, err)
	require.False(t, st.Running)
	require.NoFileExists(t, filepath.Join(cfg.PIDDir(), "infra.pid"))
}

func TestStatusDetectsStalePIDFile(t *testing.T) {
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())

	require.NoError(t, os.MkdirAll(cfg.PIDDir(), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PIDDir(), "infra.pid"), []byte("999999\n"), 0600))

	st, err := sup.Status(context.Background(), Infra)
	require.NoError(t, err)
	require.False(t, st.Running)
	require.NoFileExists(t, filepath.Join(cfg.PIDDir(), "infra.pid"))
}

func TestStatusAllReportsEachService(t *testing.T) {
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())

	statuses, healthy, err := sup.StatusAll(context.Background())
	require.NoError(t, err)
	require.False(t, healthy)
	require.Len(t, statuses, 3)
	require.Equal(t, cfg.InfraPort, statuses[Infra].Port)
}

func TestWaitHealthySucceedsOncePollingEndpointReturns200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.InfraPort = portOf(t, srv.URL)
	sup := New(cfg, zerolog.Nop())

	savedDeadline := healthCheckDeadline
	healthCheckDeadline = 2 * time.Second
	t.Cleanup(func() { healthCheckDeadline = savedDeadline })

	require.NoError(t, sup.waitHealthy(context.Background(), Infra))
}

func TestWaitHealthyTimesOutWhenEndpointNeverRespondsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.InfraPort = portOf(t, srv.URL)
	sup := New(cfg, zerolog.Nop())

	savedDeadline := healthCheckDeadline
	healthCheckDeadline = 300 * time.Millisecond
	t.Cleanup(func() { healthCheckDeadline = savedDeadline })

	require.Error(t, sup.waitHealthy(context.Background(), Infra))
}

func portOf(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

func TestLogsReturnsTailOfLogFile(t *testing.T) {
	cfg := testConfig(t)
	sup := New(cfg, zerolog.Nop())
	logPath := Infra.logPath(cfg)
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0700))

	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0600))

	rc, err := sup.Logs(Infra, 5, false)
	require.NoError(t, err)
	defer rc.Close()

	buf := make([]byte, 4096)
	n, _ := rc.Read(buf)
	out := string(buf[:n])
	require.Contains(t, out, "line 49")
	require.NotContains(t, out, "line 40")
}
