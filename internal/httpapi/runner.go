// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Runner wraps a configured http.Server with the Run/Shutdown
// lifecycle every Anvyl HTTP service (Infrastructure, Agent, and the
// MCP server's HTTP transport) follows: Run blocks in ListenAndServe
// until Shutdown is called, and Shutdown performs a graceful drain
// bounded by its context.
type Runner struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewRunner builds a Runner listening on port with handler.
func NewRunner(port int, handler http.Handler, log zerolog.Logger) *Runner {
	return &Runner{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Run blocks until the server is shut down, returning nil on a clean
// shutdown.
func (r *Runner) Run() error {
	r.log.Info().Str("addr", r.httpServer.Addr).Msg("http server listening")
	err := r.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server within ctx's deadline.
func (r *Runner) Shutdown(ctx context.Context) error {
	return r.httpServer.Shutdown(ctx)
}
