// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/supervisor"
)

// Exit codes for the anvyl CLI (§6).
const (
	ExitSuccess            = 0
	ExitFailure            = 1
	ExitInvalidArgs        = 2
	ExitServiceNotRunning  = 3
	ExitBackendUnavailable = 4
)

// ExitError is an error that carries the process exit code main()
// should use once the root command returns it.
type ExitError struct {
	Code int
	err  error
}

func newExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, err: err}
}

func (e *ExitError) Error() string { return e.err.Error() }
func (e *ExitError) Unwrap() error { return e.err }

// HandleExitError prints err to stderr and exits with the code it
// carries, defaulting to ExitFailure for a plain error.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if ee, ok := err.(*ExitError); ok {
		exitErr = ee
	}
	if exitErr == nil {
		exitErr = newExitError(ExitFailure, err)
	}
	fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
	os.Exit(exitErr.Code)
}

// wrapAPIError classifies an error returned by a cliclient call into
// the exit code a script driving the CLI can branch on: a transport
// failure reaching a service (or the Infrastructure Service reporting
// its Docker engine down) reads as "service not running", the Agent
// Service reporting its model provider unreachable or timed out reads
// as "backend unavailable", and a rejected request reads as invalid
// arguments.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	switch anvylerr.KindOf(err) {
	case anvylerr.KindValidation:
		return newExitError(ExitInvalidArgs, err)
	case anvylerr.KindEngineUnavailable:
		return newExitError(ExitServiceNotRunning, err)
	case anvylerr.KindProviderUnavailable, anvylerr.KindProviderTimeout:
		return newExitError(ExitBackendUnavailable, err)
	default:
		return newExitError(ExitFailure, err)
	}
}

// wrapSpawnError classifies an error returned by the Supervisor.
func wrapSpawnError(err error) error {
	if err == nil {
		return nil
	}
	var se *supervisor.SpawnError
	if ok := asSpawnError(err, &se); ok {
		return newExitError(ExitFailure, err)
	}
	return wrapAPIError(err)
}

func asSpawnError(err error, target **supervisor.SpawnError) bool {
	for err != nil {
		if se, ok := err.(*supervisor.SpawnError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
