// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the external anvyl command-line surface
// (§6): verbs dispatched to the Service Supervisor for lifecycle
// management, and verbs proxied over HTTP to the Infrastructure and
// Agent services for everything else.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kessler-frost/anvyl/internal/supervisor"
)

const appName = "anvyl"

// jsonOutput is set by the persistent --json flag; list/status
// commands check it to switch between a table and a JSON encoding.
var jsonOutput bool

// apiTimeout bounds every cliclient call the CLI makes; it is
// generous since it competes with the services' own internal
// deadlines (§5), not tight operations.
const apiTimeout = 30 * time.Second

// Execute builds the root command tree and runs it.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand assembles the full anvyl command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Anvyl - single-node infrastructure orchestrator",
		Long: `Anvyl manages a local Docker host and the containers running on it,
and exposes both to an AI agent over MCP.

Run 'anvyl up' to start the Infrastructure, MCP, and Agent services.
Run 'anvyl status' to check what is running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(newUpCommand())
	cmd.AddCommand(newDownCommand())
	cmd.AddCommand(newRestartCommand())
	cmd.AddCommand(newStatusCommand())

	cmd.AddCommand(newServiceGroupCommand(supervisor.Infra, "infra", "Manage the Infrastructure Service"))
	cmd.AddCommand(newAgentGroupCommand())
	mcpCmd := newServiceGroupCommand(supervisor.MCP, "mcp", "Manage the MCP Server")
	cmd.AddCommand(mcpCmd)

	cmd.AddCommand(newHostCommand())
	cmd.AddCommand(newContainerCommand())

	return cmd
}
