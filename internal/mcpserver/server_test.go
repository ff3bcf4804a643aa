// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kessler-frost/anvyl/internal/docker"
	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "anvyl-test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dock, err := docker.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = dock.Close() })

	svc := infra.New(st, dock, time.Second, zerolog.Nop())
	require.NoError(t, svc.Bootstrap(context.Background()))

	return New(svc, "test", zerolog.Nop())
}

func rawID(n int) json.RawMessage { b, _ := json.Marshal(n); return b }

func TestInitialize(t *testing.T) {
	s := newTestServer(t)
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", ID: rawID(1), Method: "initialize"})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/list"})
	require.NotNil(t, resp)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	tools, ok := result["tools"].([]Tool)
	require.True(t, ok)
	require.True(t, len(tools) >= 9)
}

func TestToolsCallListHosts(t *testing.T) {
	s := newTestServer(t)
	params, _ := json.Marshal(ToolCallParams{Name: "list_hosts", Arguments: map[string]any{}})
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/call", Params: params})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ToolCallResult)
	require.True(t, ok)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
}

func TestToolsCallUnknownTool(t *testing.T) {
	s := newTestServer(t)
	params, _ := json.Marshal(ToolCallParams{Name: "nope", Arguments: map[string]any{}})
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/call", Params: params})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
}

func TestToolsCallExecHostCommandRejectsNonLocalHost(t *testing.T) {
	s := newTestServer(t)
	params, _ := json.Marshal(ToolCallParams{
		Name:      "exec_host_command",
		Arguments: map[string]any{"host_id": "not-local", "command": []any{"echo", "hi"}},
	})
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/call", Params: params})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ToolCallResult)
	require.True(t, ok)
	require.True(t, result.IsError)
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", ID: rawID(1), Method: "nonexistent"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
}

func TestNotificationGetsNoResponse(t *testing.T) {
	s := newTestServer(t)
	resp := s.Handle(context.Background(), Request{JSONRPC: "2.0", Method: "nonexistent"})
	require.Nil(t, resp)
}
