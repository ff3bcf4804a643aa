// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package supervisor implements the Service Supervisor (§4.F): it
// starts, stops, and monitors the Infrastructure, MCP, and Agent
// services as independent detached OS processes, tracking liveness
// through PID files under the configured state directory rather than
// holding any in-memory state between CLI invocations.
package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kessler-frost/anvyl/internal/config"
)

// Service identifies one of the three long-lived processes the
// Supervisor manages.
type Service string

const (
	Infra Service = "infra"
	MCP   Service = "mcp"
	Agent Service = "agent"
)

// All lists every service in start order. StopAll walks it in
// reverse.
var All = []Service{Infra, MCP, Agent}

func (s Service) String() string { return string(s) }

// binaryName is the executable the Supervisor spawns for this
// service. Each service ships as its own cmd/ binary (§4.F spawns
// "the appropriate executable" per service, distinct from the anvyl
// CLI binary that invokes the Supervisor).
func (s Service) binaryName() string {
	return "anvyl-" + string(s)
}

func (s Service) pidPath(cfg *config.AppConfig) string {
	return filepath.Join(cfg.PIDDir(), string(s)+".pid")
}

func (s Service) logPath(cfg *config.AppConfig) string {
	return filepath.Join(cfg.LogDir(), string(s)+".log")
}

func (s Service) port(cfg *config.AppConfig) int {
	switch s {
	case Infra:
		return cfg.InfraPort
	case MCP:
		return cfg.MCPPort
	case Agent:
		return cfg.AgentPort
	default:
		return 0
	}
}

// healthURL is the endpoint start_all polls before starting the next
// service in the chain.
func (s Service) healthURL(cfg *config.AppConfig) string {
	return fmt.Sprintf("http://localhost:%d/health", s.port(cfg))
}

// env returns the child process's full environment: the Supervisor's
// own environment (PATH, HOME, DOCKER_HOST, and any TLS/credential
// variables a remote Docker daemon or model provider needs) plus the
// ANVYL_* configuration every service reads at startup (§6). Passing
// only the ANVYL_* subset would leave the child unable to resolve
// non-absolute commands via $PATH or reach a non-default Docker host.
func (s Service) env(cfg *config.AppConfig) []string {
	return append(os.Environ(),
		"ANVYL_STATE_DIR="+cfg.StateDir,
		"ANVYL_DB_PATH="+cfg.DBPath,
		fmt.Sprintf("ANVYL_INFRA_PORT=%d", cfg.InfraPort),
		fmt.Sprintf("ANVYL_MCP_PORT=%d", cfg.MCPPort),
		fmt.Sprintf("ANVYL_AGENT_PORT=%d", cfg.AgentPort),
		"ANVYL_INFRA_URL="+cfg.InfraURL,
		"ANVYL_MCP_URL="+cfg.MCPURL,
		"ANVYL_MODEL_PROVIDER_URL="+cfg.ModelProviderURL,
		"ANVYL_MODEL="+cfg.Model,
		fmt.Sprintf("ANVYL_RECONCILE_INTERVAL=%s", cfg.ReconcileInterval),
		"ANVYL_LOG_LEVEL="+cfg.LogLevel,
	)
}
