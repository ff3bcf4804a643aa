// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newFakeMCPServer(t *testing.T, toolCallResult string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mcpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Method {
		case "tools/list":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"tools": []map[string]any{
						{"name": "list_hosts", "description": "list hosts", "inputSchema": map[string]any{"type": "object"}},
					},
				},
			})
		case "tools/call":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"content": []map[string]any{{"type": "text", "text": toolCallResult}},
					"isError": false,
				},
			})
		}
	}))
}

func newFakeProviderServer(t *testing.T, responses ...map[string]any) *httptest.Server {
	t.Helper()
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := responses[call]
		if call < len(responses)-1 {
			call++
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{{"message": resp}}})
	}))
}

func TestQueryReturnsFinalReplyWithoutToolCalls(t *testing.T) {
	mcpSrv := newFakeMCPServer(t, "")
	defer mcpSrv.Close()
	providerSrv := newFakeProviderServer(t, map[string]any{"role": "assistant", "content": "all good"})
	defer providerSrv.Close()

	svc := New(NewProviderClient(providerSrv.URL, 5*time.Second), NewMCPClient(mcpSrv.URL, 5*time.Second), "test-model", providerSrv.URL, mcpSrv.URL, 8, zerolog.Nop())

	resp, err := svc.Query(t.Context(), QueryRequest{Query: "how are things"})
	require.NoError(t, err)
	require.Equal(t, "all good", resp.Reply)
	require.Empty(t, resp.ToolCalls)
}

func TestQueryExecutesToolCallThenFinalizes(t *testing.T) {
	mcpSrv := newFakeMCPServer(t, `{"hosts":[]}`)
	defer mcpSrv.Close()

	toolCallMsg := map[string]any{
		"role": "assistant",
		"tool_calls": []map[string]any{
			{"id": "call_1", "type": "function", "function": map[string]any{"name": "list_hosts", "arguments": "{}"}},
		},
	}
	finalMsg := map[string]any{"role": "assistant", "content": "there are no hosts"}
	providerSrv := newFakeProviderServer(t, toolCallMsg, finalMsg)
	defer providerSrv.Close()

	svc := New(NewProviderClient(providerSrv.URL, 5*time.Second), NewMCPClient(mcpSrv.URL, 5*time.Second), "test-model", providerSrv.URL, mcpSrv.URL, 8, zerolog.Nop())

	resp, err := svc.Query(t.Context(), QueryRequest{Query: "list hosts"})
	require.NoError(t, err)
	require.Equal(t, "there are no hosts", resp.Reply)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "list_hosts", resp.ToolCalls[0].Name)
}

func TestQueryExhaustsIterationBudget(t *testing.T) {
	mcpSrv := newFakeMCPServer(t, "ok")
	defer mcpSrv.Close()

	toolCallMsg := map[string]any{
		"role": "assistant",
		"tool_calls": []map[string]any{
			{"id": "call_1", "type": "function", "function": map[string]any{"name": "list_hosts", "arguments": "{}"}},
		},
	}
	providerSrv := newFakeProviderServer(t, toolCallMsg)
	defer providerSrv.Close()

	svc := New(NewProviderClient(providerSrv.URL, 5*time.Second), NewMCPClient(mcpSrv.URL, 5*time.Second), "test-model", providerSrv.URL, mcpSrv.URL, 2, zerolog.Nop())

	resp, err := svc.Query(t.Context(), QueryRequest{Query: "loop forever"})
	require.NoError(t, err)
	require.Equal(t, "exceeded tool-call budget", resp.Reply)
	require.Len(t, resp.ToolCalls, 2)
}

func TestAddAndListHosts(t *testing.T) {
	svc := New(nil, nil, "m", "", "", 8, zerolog.Nop())
	svc.AddHost(HostRecord{ID: "h1", IP: "10.0.0.1"})
	hosts := svc.ListHosts()
	require.Len(t, hosts, 1)
	require.Equal(t, "h1", hosts[0].ID)
}
