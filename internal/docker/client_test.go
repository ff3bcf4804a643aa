// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package docker

import (
	"context"
	"errors"
	"testing"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/stretchr/testify/assert"
)

func TestClassifyDeadlineExceeded(t *testing.T) {
	err := classify(context.DeadlineExceeded)
	assert.Equal(t, anvylerr.KindEngineUnavailable, anvylerr.KindOf(err))
}

func TestClassifyConnectionRefused(t *testing.T) {
	err := classify(errors.New("Get \"http://docker\": dial unix: connection refused"))
	assert.Equal(t, anvylerr.KindEngineUnavailable, anvylerr.KindOf(err))
}

func TestClassifyInvalidReference(t *testing.T) {
	err := classify(errors.New("invalid reference format"))
	assert.Equal(t, anvylerr.KindValidation, anvylerr.KindOf(err))
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestMapEngineStatus(t *testing.T) {
	cases := []struct {
		name  string
		state *dockercontainer.State
		want  string
	}{
		{"nil state", nil, "unknown"},
		{"running", &dockercontainer.State{Running: true}, "running"},
		{"dead", &dockercontainer.State{Dead: true}, "exited"},
		{"created", &dockercontainer.State{Status: "created"}, "created"},
		{"exited", &dockercontainer.State{Status: "exited"}, "exited"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mapEngineStatus(tc.state))
		})
	}
}

func TestEnvMapToSlice(t *testing.T) {
	out := envMapToSlice(map[string]string{"A": "1"})
	assert.Equal(t, []string{"A=1"}, out)
}
