// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const systemPreamble = "You are Anvyl's infrastructure agent. You can inspect and manage " +
	"hosts and containers on this node by calling the tools listed below. " +
	"Use them precisely and explain the outcome to the user in plain language."

// Service is the Agent Service's orchestration state: one provider
// client, one MCP client, a cached tool catalog fetched once per
// process lifetime, and an in-memory registry of known remote hosts.
type Service struct {
	provider *ProviderClient
	mcp      *MCPClient
	log      zerolog.Logger

	model         string
	providerURL   string
	mcpURL        string
	maxIterations int

	toolsOnce sync.Once
	toolsErr  error
	tools     []ToolSchema

	hostsMu sync.Mutex
	hosts   map[string]HostRecord
}

func New(provider *ProviderClient, mcp *MCPClient, model, providerURL, mcpURL string, maxIterations int, log zerolog.Logger) *Service {
	return &Service{
		provider:      provider,
		mcp:           mcp,
		log:           log,
		model:         model,
		providerURL:   providerURL,
		mcpURL:        mcpURL,
		maxIterations: maxIterations,
		hosts:         make(map[string]HostRecord),
	}
}

func (s *Service) loadTools(ctx context.Context) ([]ToolSchema, error) {
	s.toolsOnce.Do(func() {
		s.tools, s.toolsErr = s.mcp.ListTools(ctx)
	})
	return s.tools, s.toolsErr
}

// Query runs the bounded tool-call loop described in §4.E for one
// natural-language request.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	tools, err := s.loadTools(ctx)
	if err != nil {
		return nil, err
	}

	system := systemPreamble
	if req.HostID != "" {
		system += fmt.Sprintf(" The request targets host %q; cross-host forwarding to a remote host's own agent is not implemented in this deployment, so treat any such request as out of scope and say so.", req.HostID)
	}

	messages := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: req.Query},
	}

	var trace []ToolCallTrace

	for i := 0; i < s.maxIterations; i++ {
		reply, err := s.provider.Complete(ctx, s.model, messages, tools)
		if err != nil {
			return nil, err
		}

		if len(reply.ToolCalls) == 0 {
			return &QueryResponse{Reply: reply.Content, ToolCalls: trace, Model: s.model}, nil
		}

		messages = append(messages, ChatMessage{Role: "assistant", ToolCalls: reply.ToolCalls})

		for _, tc := range reply.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}

			result, callErr := s.mcp.CallTool(ctx, tc.Function.Name, args)
			if callErr != nil {
				result = callErr.Error()
			}

			trace = append(trace, ToolCallTrace{Name: tc.Function.Name, Arguments: args, Result: result})
			messages = append(messages, ChatMessage{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	return &QueryResponse{
		Reply:     "exceeded tool-call budget",
		ToolCalls: trace,
		Model:     s.model,
	}, nil
}

func (s *Service) Info(ctx context.Context) (*InfoResponse, error) {
	tools, err := s.loadTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Function.Name)
	}
	return &InfoResponse{Model: s.model, ProviderURL: s.providerURL, MCPURL: s.mcpURL, Tools: names}, nil
}

func (s *Service) AddHost(h HostRecord) {
	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()
	s.hosts[h.ID] = h
}

func (s *Service) ListHosts() []HostRecord {
	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()
	out := make([]HostRecord, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	return out
}
