// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommandRegistersTopLevelVerbs(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"up", "down", "restart", "status", "infra", "mcp", "agent", "host", "container"} {
		assert.True(t, names[want], "expected %q command to be registered", want)
	}
}

func TestServiceGroupCommandsExposeLifecycleVerbs(t *testing.T) {
	root := NewRootCommand()

	for _, group := range []string{"infra", "mcp", "agent"} {
		cmd, _, err := root.Find([]string{group})
		assert.NoError(t, err)

		sub := make(map[string]bool)
		for _, c := range cmd.Commands() {
			sub[c.Name()] = true
		}
		for _, want := range []string{"up", "down", "status", "logs"} {
			assert.True(t, sub[want], "expected %s to have a %q subcommand", group, want)
		}
	}

	agentCmd, _, err := root.Find([]string{"agent"})
	assert.NoError(t, err)
	found := false
	for _, c := range agentCmd.Commands() {
		if c.Name() == "query" {
			found = true
		}
	}
	assert.True(t, found, "expected agent to have a query subcommand")
}
