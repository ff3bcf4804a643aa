// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"debug", "debug", "debug"},
		{"upper case", "WARN", "warn"},
		{"warning alias", "warning", "warn"},
		{"unknown defaults to info", "bogus", "info"},
		{"empty defaults to info", "", "info"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLevel(tc.input).String())
		})
	}
}

func TestManagerGetLoggerIsStablePerPackage(t *testing.T) {
	m := NewManager(Config{Level: "info"})

	first := m.GetLogger("store")
	second := m.GetLogger("store")
	assert.Equal(t, first.GetLevel(), second.GetLevel())

	other := m.GetLogger("docker")
	assert.NotNil(t, other)
}

func TestGetLoggerWithoutInitializeDoesNotPanic(t *testing.T) {
	globalManager = nil
	assert.NotPanics(t, func() {
		GetLogger("store")
	})
}
