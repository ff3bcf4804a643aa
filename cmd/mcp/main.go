// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command anvyl-mcp runs the MCP Server (§4.D): a JSON-RPC 2.0
// endpoint exposing the Infrastructure Service's operations as a
// tool catalog, reached over HTTP so it never touches the
// Infrastructure Service's database or Docker socket directly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kessler-frost/anvyl/internal/cliclient"
	"github.com/kessler-frost/anvyl/internal/config"
	"github.com/kessler-frost/anvyl/internal/httpapi"
	"github.com/kessler-frost/anvyl/internal/logger"
	"github.com/kessler-frost/anvyl/internal/mcpserver"
)

// version is the MCP protocol server version reported in
// initialize's serverInfo, distinct from ProtocolVersion.
const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(logger.Config{Level: cfg.LogLevel})
	defer logger.CloseGlobal()

	log := logger.GetMCPLogger()
	log.Info().Msg("starting mcp server")

	infraClient := cliclient.NewInfraClient(cfg.InfraURL, 30*time.Second)
	mcp := mcpserver.New(infraClient, version, log)

	runner := httpapi.NewRunner(cfg.MCPPort, mcp.HTTPHandler(), log)

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

	log.Info().Msg("mcp server shut down")
}
