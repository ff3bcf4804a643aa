// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kessler-frost/anvyl/internal/cliclient"
	"github.com/kessler-frost/anvyl/internal/config"
	"github.com/kessler-frost/anvyl/internal/supervisor"
)

// loadConfig loads the ANVYL_* configuration every subcommand needs
// to resolve ports, state directory, and service URLs.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, newExitError(ExitFailure, fmt.Errorf("load config: %w", err))
	}
	return cfg, nil
}

// newSupervisor builds a Supervisor against a quiet logger; the CLI
// prints its own status lines and doesn't want the Supervisor's
// structured log lines interleaved with them.
func newSupervisor(cfg *config.AppConfig) *supervisor.Supervisor {
	return supervisor.New(cfg, zerolog.Nop())
}

func newInfraClient(cfg *config.AppConfig) *cliclient.InfraClient {
	return cliclient.NewInfraClient(cfg.InfraURL, apiTimeout)
}

func agentBaseURL(cfg *config.AppConfig) string {
	return fmt.Sprintf("http://localhost:%d", cfg.AgentPort)
}

func newAgentClient(cfg *config.AppConfig) *cliclient.AgentClient {
	return cliclient.NewAgentClient(agentBaseURL(cfg), apiTimeout)
}
