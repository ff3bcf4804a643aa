// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anvyl-test.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newLocalHost() *models.Host {
	return &models.Host{
		ID:      uuid.NewString(),
		Name:    "local",
		IP:      "127.0.0.1",
		OS:      "Linux",
		Status:  models.HostActive,
		IsLocal: true,
	}
}

func TestAddAndGetLocalHost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h := newLocalHost()

	require.NoError(t, s.AddHost(ctx, h))

	got, err := s.GetLocalHost(ctx)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
}

func TestOnlyOneLocalHostAllowed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AddHost(ctx, newLocalHost()))

	second := newLocalHost()
	err := s.AddHost(ctx, second)
	require.Error(t, err)
}

func TestRemoveHostRejectsLocal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h := newLocalHost()
	require.NoError(t, s.AddHost(ctx, h))

	err := s.RemoveHost(ctx, h.ID)
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindInvariant, anvylerr.KindOf(err))
}

func TestRemoveHostCascadesContainers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	host := &models.Host{ID: uuid.NewString(), Name: "remote", IP: "10.0.0.5", Status: models.HostActive}
	require.NoError(t, s.AddHost(ctx, host))

	c := &models.Container{ID: uuid.NewString(), Name: "web", Image: "nginx:alpine", HostID: host.ID, Status: models.ContainerCreated}
	require.NoError(t, s.AddContainer(ctx, c))

	require.NoError(t, s.RemoveHost(ctx, host.ID))

	_, err := s.GetContainer(ctx, c.ID)
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindNotFound, anvylerr.KindOf(err))
}

func TestContainerNameUniquePerHost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	host := newLocalHost()
	require.NoError(t, s.AddHost(ctx, host))

	c1 := &models.Container{ID: uuid.NewString(), Name: "web", Image: "nginx:alpine", HostID: host.ID, Status: models.ContainerCreated}
	require.NoError(t, s.AddContainer(ctx, c1))

	c2 := &models.Container{ID: uuid.NewString(), Name: "web", Image: "nginx:alpine", HostID: host.ID, Status: models.ContainerCreated}
	err := s.AddContainer(ctx, c2)
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindConflict, anvylerr.KindOf(err))
}

func TestContainerNameReusableAfterRemoval(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	host := newLocalHost()
	require.NoError(t, s.AddHost(ctx, host))

	c1 := &models.Container{ID: uuid.NewString(), Name: "web", Image: "nginx:alpine", HostID: host.ID, Status: models.ContainerCreated}
	require.NoError(t, s.AddContainer(ctx, c1))

	_, err := s.UpdateContainer(ctx, c1.ID, func(c *models.Container) error {
		c.Status = models.ContainerRemoved
		return nil
	})
	require.NoError(t, err)

	c2 := &models.Container{ID: uuid.NewString(), Name: "web", Image: "nginx:alpine", HostID: host.ID, Status: models.ContainerCreated}
	assert.NoError(t, s.AddContainer(ctx, c2))
}

func TestListContainersFilterByHost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h1 := newLocalHost()
	require.NoError(t, s.AddHost(ctx, h1))
	h2 := &models.Host{ID: uuid.NewString(), Name: "other", IP: "10.0.0.9", Status: models.HostActive}
	require.NoError(t, s.AddHost(ctx, h2))

	require.NoError(t, s.AddContainer(ctx, &models.Container{ID: uuid.NewString(), Name: "a", Image: "x", HostID: h1.ID, Status: models.ContainerCreated}))
	require.NoError(t, s.AddContainer(ctx, &models.Container{ID: uuid.NewString(), Name: "b", Image: "x", HostID: h2.ID, Status: models.ContainerCreated}))

	containers, err := s.ListContainers(ctx, h1.ID, true)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "a", containers[0].Name)
}

func TestAddContainerUnknownHost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	err := s.AddContainer(ctx, &models.Container{ID: uuid.NewString(), Name: "x", Image: "y", HostID: "missing", Status: models.ContainerCreated})
	require.Error(t, err)
	assert.Equal(t, anvylerr.KindNotFound, anvylerr.KindOf(err))
}
