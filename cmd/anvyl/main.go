// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command anvyl is the external CLI (§6): it either dispatches to the
// Service Supervisor to manage the Infrastructure, MCP, and Agent
// services as detached processes, or proxies a request over HTTP to
// one of those services once it is running.
package main

import (
	"github.com/kessler-frost/anvyl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
