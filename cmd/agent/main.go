// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command anvyl-agent runs the Agent Service (§4.E): a bounded
// tool-call loop that turns natural-language requests into MCP tool
// invocations against an external OpenAI-compatible model provider.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kessler-frost/anvyl/internal/agent"
	"github.com/kessler-frost/anvyl/internal/config"
	"github.com/kessler-frost/anvyl/internal/httpapi"
	"github.com/kessler-frost/anvyl/internal/logger"
)

const defaultMaxIterations = 8

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(logger.Config{Level: cfg.LogLevel})
	defer logger.CloseGlobal()

	log := logger.GetAgentLogger()
	log.Info().Msg("starting agent service")

	provider := agent.NewProviderClient(cfg.ModelProviderURL, 60*time.Second)
	mcp := agent.NewMCPClient(cfg.MCPURL, 30*time.Second)
	svc := agent.New(provider, mcp, cfg.Model, cfg.ModelProviderURL, cfg.MCPURL, defaultMaxIterations, log)

	handlers := agent.NewHandlers(svc)
	router := agent.NewRouter(handlers, nil, logger.GetHTTPLogger())
	runner := httpapi.NewRunner(cfg.AgentPort, router, logger.GetHTTPLogger())

	serverErrChan := make(chan error, 1)
	go func() { serverErrChan <- runner.Run() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	case err := <-serverErrChan:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	log.Info().Msg("agent service shut down")
}
