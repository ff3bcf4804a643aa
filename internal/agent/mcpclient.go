// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
)

// mcpRequest/mcpResponse mirror internal/mcpserver's JSON-RPC 2.0
// wire types without importing that package, keeping the Agent
// Service's only coupling to the MCP server an HTTP boundary.
type mcpRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type mcpResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// MCPClient calls the MCP server's HTTP transport.
type MCPClient struct {
	baseURL string
	http    *http.Client
	nextID  int
}

func NewMCPClient(baseURL string, timeout time.Duration) *MCPClient {
	return &MCPClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *MCPClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.nextID++
	body, err := json.Marshal(mcpRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "encode mcp request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "build mcp request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "mcp server unreachable")
	}
	defer resp.Body.Close()

	var parsed mcpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "malformed mcp response")
	}
	if parsed.Error != nil {
		return nil, anvylerr.New(anvylerr.FromHTTPStatus(mapMCPCodeToHTTP(parsed.Error.Code)), parsed.Error.Message)
	}
	return parsed.Result, nil
}

func mapMCPCodeToHTTP(code int) int {
	switch code {
	case -32602:
		return 400
	case -32001:
		return 404
	case -32002:
		return 409
	case -32003:
		return 503
	default:
		return 500
	}
}

// ListTools fetches the MCP server's tool catalog.
func (c *MCPClient) ListTools(ctx context.Context) ([]ToolSchema, error) {
	raw, err := c.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "decode tools/list result")
	}

	out := make([]ToolSchema, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		out = append(out, ToolSchema{
			Type: "function",
			Function: ToolFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out, nil
}

// CallTool invokes one MCP tool and returns its text result, or an
// error string if the tool call itself reported isError.
func (c *MCPClient) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	raw, err := c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": arguments})
	if err != nil {
		return "", err
	}
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", anvylerr.Wrap(anvylerr.KindInternal, err, "decode tools/call result")
	}
	var text string
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}
	if parsed.IsError {
		return text, anvylerr.New(anvylerr.KindInternal, text)
	}
	return text, nil
}
