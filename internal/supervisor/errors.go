// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import "fmt"

// SpawnError is returned when a service fails to start, either
// because the child process itself exited or because its health
// endpoint never came up within the start_all deadline. It carries
// enough of the log tail for the CLI to print something actionable
// without a separate `anvyl <service> logs` round-trip.
type SpawnError struct {
	Service  Service
	ExitCode int
	LogTail  []string
	cause    error
}

func (e *SpawnError) Error() string {
	msg := fmt.Sprintf("%s failed to start (exit code %d)", e.Service, e.ExitCode)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if len(e.LogTail) > 0 {
		msg += "\n--- log tail ---\n"
		for _, line := range e.LogTail {
			msg += line + "\n"
		}
	}
	return msg
}

func (e *SpawnError) Unwrap() error { return e.cause }
