// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"
	"io"

	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/models"
)

// InfraClient is everything the tool catalog needs from the
// Infrastructure Service. The MCP server and the Infrastructure
// Service are separate OS processes (§4.F, §5: the DB and the Docker
// socket belong to the Infrastructure Service alone), so production
// code satisfies this with an HTTP client (internal/cliclient)
// rather than an in-process *infra.Service; tests may satisfy it with
// a real *infra.Service directly since its method set already
// matches.
type InfraClient interface {
	ListHosts(ctx context.Context) ([]models.Host, error)
	AddHost(ctx context.Context, req infra.AddHostRequest) (*models.Host, error)
	HostMetrics(ctx context.Context, id string) (*infra.HostMetrics, error)
	ListContainers(ctx context.Context, hostID string, all bool) ([]models.Container, error)
	CreateContainer(ctx context.Context, req infra.CreateContainerRequest) (*models.Container, error)
	RemoveContainer(ctx context.Context, id string, force bool) error
	ContainerLogs(ctx context.Context, id string, tail int, follow bool) (io.ReadCloser, error)
	ExecContainer(ctx context.Context, id string, req infra.ExecRequest) (*infra.ExecResult, error)
	ExecOnHost(ctx context.Context, hostID string, req infra.ExecRequest) (*infra.ExecResult, error)
	SystemStatus(ctx context.Context) (*infra.SystemStatus, error)
}
