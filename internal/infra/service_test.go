// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package infra

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/docker"
	"github.com/kessler-frost/anvyl/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "anvyl-test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dock, err := docker.New() // constructing the client does not dial the engine
	require.NoError(t, err)
	t.Cleanup(func() { _ = dock.Close() })

	return New(st, dock, time.Second, zerolog.Nop())
}

func TestBootstrapRegistersLocalHostOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	require.NoError(t, s.Bootstrap(ctx))
	firstID := s.LocalHostID()
	require.NotEmpty(t, firstID)

	require.NoError(t, s.Bootstrap(ctx))
	assert.Equal(t, firstID, s.LocalHostID())

	hosts, err := s.ListHosts(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.True(t, hosts[0].IsLocal)
	assert.Equal(t, []string{"local"}, hosts[0].GetTags())
}

func TestAddHostValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.AddHost(ctx, AddHostRequest{Name: "", IP: "10.0.0.1"})
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindValidation, anvylerr.KindOf(err))

	_, err = s.AddHost(ctx, AddHostRequest{Name: "worker", IP: ""})
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindValidation, anvylerr.KindOf(err))
}

func TestAddHostAndUpdateHost(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	h, err := s.AddHost(ctx, AddHostRequest{Name: "worker", IP: "10.0.0.5", Tags: []string{"edge"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, h.GetTags())

	newName := "worker-1"
	updated, err := s.UpdateHost(ctx, h.ID, UpdateHostRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "worker-1", updated.Name)
}

func TestRemoveHostRejectsLocalHost(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	require.NoError(t, s.Bootstrap(ctx))

	err := s.RemoveHost(ctx, s.LocalHostID())
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindInvariant, anvylerr.KindOf(err))
}

func TestCreateContainerRejectsRemoteHost(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	require.NoError(t, s.Bootstrap(ctx))

	_, err := s.CreateContainer(ctx, CreateContainerRequest{
		Name: "web", Image: "nginx:alpine", HostID: "some-other-host",
	})
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindValidation, anvylerr.KindOf(err))
}

func TestExecOnHostRejectsNonLocalHost(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	require.NoError(t, s.Bootstrap(ctx))

	_, err := s.ExecOnHost(ctx, "not-the-local-host", ExecRequest{Command: []string{"echo", "hi"}})
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindInvariant, anvylerr.KindOf(err))
}

func TestExecOnHostRunsLocalCommand(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	require.NoError(t, s.Bootstrap(ctx))

	res, err := s.ExecOnHost(ctx, s.LocalHostID(), ExecRequest{Command: []string{"echo", "hello"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
}

func TestParsePortsAndVolumes(t *testing.T) {
	ports := parsePorts([]string{"8080:80", "9090:90/udp", "bad"})
	require.Len(t, ports, 2)
	assert.Equal(t, docker.PortBinding{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}, ports[0])
	assert.Equal(t, docker.PortBinding{HostPort: 9090, ContainerPort: 90, Protocol: "udp"}, ports[1])

	volumes := parseVolumes([]string{"/host:/container", "/host:/container:ro", "bad"})
	require.Len(t, volumes, 2)
	assert.False(t, volumes[0].ReadOnly)
	assert.True(t, volumes[1].ReadOnly)
}

func TestParseEnv(t *testing.T) {
	env := parseEnv([]string{"A=1", "B=2=3", "bad"})
	assert.Equal(t, "1", env["A"])
	assert.Equal(t, "2=3", env["B"])
}
