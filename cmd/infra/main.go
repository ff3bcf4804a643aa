// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command anvyl-infra runs the Infrastructure Service (§4.C): the
// persistence-backed host/container registry, the Docker adapter,
// and the reconciler, fronted by an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kessler-frost/anvyl/internal/config"
	"github.com/kessler-frost/anvyl/internal/docker"
	"github.com/kessler-frost/anvyl/internal/httpapi"
	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/logger"
	"github.com/kessler-frost/anvyl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(logger.Config{Level: cfg.LogLevel})
	defer logger.CloseGlobal()

	log := logger.GetInfraLogger()
	log.Info().Msg("starting infrastructure service")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	dock, err := docker.New()
	if err != nil {
		log.Fatal().Err(err).Msg("connect to docker engine")
	}
	defer dock.Close()

	svc := infra.New(st, dock, cfg.ReconcileInterval, logger.GetInfraLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.Bootstrap(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("bootstrap local host")
	}
	svc.Run(ctx)

	handlers := httpapi.NewHandlers(svc)
	router := httpapi.NewRouter(handlers, nil, logger.GetHTTPLogger())
	runner := httpapi.NewRunner(cfg.InfraPort, router, logger.GetHTTPLogger())

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	cancel()
	if err := svc.Close(); err != nil {
		log.Error().Err(err).Msg("error closing infrastructure service")
	}

	log.Info().Msg("infrastructure service shut down")
}
