// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/supervisor"
)

func TestWrapAPIErrorMapsKindToExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", anvylerr.New(anvylerr.KindValidation, "bad request"), ExitInvalidArgs},
		{"engine unavailable", anvylerr.New(anvylerr.KindEngineUnavailable, "infra service unreachable"), ExitServiceNotRunning},
		{"provider unavailable", anvylerr.New(anvylerr.KindProviderUnavailable, "model provider unreachable"), ExitBackendUnavailable},
		{"internal", anvylerr.New(anvylerr.KindInternal, "boom"), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wrapped := wrapAPIError(c.err)
			var exitErr *ExitError
			ok := errors.As(wrapped, &exitErr)
			assert.True(t, ok)
			assert.Equal(t, c.code, exitErr.Code)
		})
	}
}

func TestWrapAPIErrorNilIsNil(t *testing.T) {
	assert.Nil(t, wrapAPIError(nil))
}

func TestWrapSpawnErrorMapsSpawnErrorToGenericFailure(t *testing.T) {
	err := &supervisor.SpawnError{Service: supervisor.Infra, ExitCode: 1}
	wrapped := wrapSpawnError(err)

	var exitErr *ExitError
	ok := errors.As(wrapped, &exitErr)
	assert.True(t, ok)
	assert.Equal(t, ExitFailure, exitErr.Code)
}

func TestWrapSpawnErrorFallsBackToAPIErrorMapping(t *testing.T) {
	err := anvylerr.New(anvylerr.KindEngineUnavailable, "infra service unreachable")
	wrapped := wrapSpawnError(err)

	var exitErr *ExitError
	ok := errors.As(wrapped, &exitErr)
	assert.True(t, ok)
	assert.Equal(t, ExitServiceNotRunning, exitErr.Code)
}

func TestHandleExitErrorNilDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { HandleExitError(nil) })
}
