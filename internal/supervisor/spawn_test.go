// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func skipIfSpawnUnavailable(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("spawn not permitted in this environment: %v", err)
	}
}

func TestSpawnDetachedWritesLogAndReportsExit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "svc.log")

	pid, exited, err := spawnDetached("sh", []string{"-c", "echo hello-from-child"}, os.Environ(), logPath)
	skipIfSpawnUnavailable(t, err)
	require.NoError(t, err)
	require.Greater(t, pid, 0)

	select {
	case exitErr := <-exited:
		require.NoError(t, exitErr)
	case <-time.After(3 * time.Second):
		t.Fatal("child did not exit in time")
	}

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(content), "hello-from-child")
}

func TestSpawnDetachedSurvivesAndIsKillable(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "svc.log")

	pid, exited, err := spawnDetached("sleep", []string{"5"}, os.Environ(), logPath)
	skipIfSpawnUnavailable(t, err)
	require.NoError(t, err)

	proc, err := os.FindProcess(pid)
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.Signal(0)))
	require.NoError(t, proc.Kill())

	select {
	case <-exited:
	case <-time.After(3 * time.Second):
		t.Fatal("killed child was never reaped")
	}
}

func TestIsAliveRejectsMismatchedCommandLine(t *testing.T) {
	// Our own test process is definitely alive, but its command line
	// has nothing to do with a service named "infra".
	alive, err := isAlive(context.Background(), os.Getpid(), Infra)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestIsAliveFalseForDeadPID(t *testing.T) {
	alive, err := isAlive(context.Background(), 999999, Infra)
	require.NoError(t, err)
	require.False(t, alive)
}
