// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters keep package names consistent across the
// codebase instead of scattering string literals at every call site.

// GetStoreLogger returns a logger for the persistence layer.
func GetStoreLogger() zerolog.Logger { return GetLogger("store") }

// GetDockerLogger returns a logger for the Docker adapter.
func GetDockerLogger() zerolog.Logger { return GetLogger("docker") }

// GetInfraLogger returns a logger for the Infrastructure Service.
func GetInfraLogger() zerolog.Logger { return GetLogger("infra") }

// GetHTTPLogger returns a logger for HTTP request handling.
func GetHTTPLogger() zerolog.Logger { return GetLogger("http") }

// GetMCPLogger returns a logger for the MCP server.
func GetMCPLogger() zerolog.Logger { return GetLogger("mcp") }

// GetAgentLogger returns a logger for the Agent Service.
func GetAgentLogger() zerolog.Logger { return GetLogger("agent") }

// GetSupervisorLogger returns a logger for the Service Supervisor.
func GetSupervisorLogger() zerolog.Logger { return GetLogger("supervisor") }

// GetCLILogger returns a logger for the external CLI.
func GetCLILogger() zerolog.Logger { return GetLogger("cli") }
