// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
)

// ChatMessage is one message in an OpenAI-compatible chat completion
// request.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded object, per OpenAI wire format
}

// ToolSchema is a single entry of the "tools" array sent to the
// provider, describing one callable MCP tool.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function ToolFunctionDef `json:"function"`
}

type ToolFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatCompletionRequest struct {
	Model      string        `json:"model"`
	Messages   []ChatMessage `json:"messages"`
	Tools      []ToolSchema  `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// ProviderClient calls an OpenAI-compatible /chat/completions
// endpoint.
type ProviderClient struct {
	baseURL string
	http    *http.Client
}

func NewProviderClient(baseURL string, timeout time.Duration) *ProviderClient {
	return &ProviderClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Complete calls POST {baseURL}/chat/completions and returns the
// first choice's message.
func (c *ProviderClient) Complete(ctx context.Context, model string, messages []ChatMessage, tools []ToolSchema) (*ChatMessage, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:      model,
		Messages:   messages,
		Tools:      tools,
		ToolChoice: "auto",
	})
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "encode chat completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "build provider request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, anvylerr.Wrap(anvylerr.KindProviderTimeout, err, "provider request timed out")
		}
		return nil, anvylerr.Wrap(anvylerr.KindProviderUnavailable, err, "provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, anvylerr.Newf(anvylerr.KindProviderTimeout, "provider returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return nil, anvylerr.Newf(anvylerr.KindProviderUnavailable, "provider returned status %d", resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindProviderUnavailable, err, "malformed provider response")
	}
	if len(parsed.Choices) == 0 {
		return nil, anvylerr.New(anvylerr.KindProviderUnavailable, "provider returned no choices")
	}
	return &parsed.Choices[0].Message, nil
}
