// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
)

// Server dispatches JSON-RPC 2.0 requests against the tool catalog
// backed by one Infrastructure Service client.
type Server struct {
	svc     InfraClient
	tools   map[string]toolDef
	log     zerolog.Logger
	version string
}

func New(svc InfraClient, version string, log zerolog.Logger) *Server {
	return &Server{svc: svc, tools: toolsByName(), log: log, version: version}
}

// Handle dispatches one request and returns the response to write
// back, or nil if req was a notification (no response is sent).
func (s *Server) Handle(ctx context.Context, req Request) *Response {
	if req.IsNotification() && req.Method != "tools/call" {
		return nil
	}
	switch req.Method {
	case "initialize":
		return newResult(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": true, "resources": true, "prompts": true},
			ServerInfo:      ServerInfo{Name: "anvyl-mcp-server", Version: s.version},
		})
	case "ping":
		return newResult(req.ID, map[string]any{})
	case "tools/list":
		return newResult(req.ID, map[string]any{"tools": publicTools()})
	case "tools/call":
		return s.handleToolCall(ctx, req)
	case "resources/list":
		return newResult(req.ID, map[string]any{"resources": []Resource{}})
	case "resources/read":
		return newError(req.ID, anvylerr.MCPCode(anvylerr.KindNotFound), "no resources are exposed by this server")
	case "prompts/list":
		return newResult(req.ID, map[string]any{"prompts": []Prompt{}})
	case "prompts/get":
		return newError(req.ID, anvylerr.MCPCode(anvylerr.KindNotFound), "no prompts are exposed by this server")
	default:
		if req.IsNotification() {
			return nil
		}
		return newError(req.ID, -32601, "method not found: "+req.Method)
	}
}

func publicTools() []Tool {
	out := make([]Tool, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t.Tool)
	}
	return out
}

func (s *Server) handleToolCall(ctx context.Context, req Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newError(req.ID, anvylerr.MCPCode(anvylerr.KindValidation), "invalid tools/call params")
	}
	tool, ok := s.tools[params.Name]
	if !ok {
		return newError(req.ID, anvylerr.MCPCode(anvylerr.KindNotFound), "unknown tool: "+params.Name)
	}

	text, err := tool.handler(ctx, s.svc, params.Arguments)
	if err != nil {
		if req.IsNotification() {
			return nil
		}
		return newResult(req.ID, ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}
	if req.IsNotification() {
		return nil
	}
	return newResult(req.ID, ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}})
}
