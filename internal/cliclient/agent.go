// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kessler-frost/anvyl/internal/agent"
	"github.com/kessler-frost/anvyl/internal/anvylerr"
)

// AgentClient calls the Agent Service's HTTP API (§4.E), used by
// `anvyl agent query`.
type AgentClient struct {
	baseURL string
	http    *http.Client
}

func NewAgentClient(baseURL string, timeout time.Duration) *AgentClient {
	return &AgentClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *AgentClient) Query(ctx context.Context, req agent.QueryRequest) (*agent.QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "encode query request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "build query request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "agent service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error struct{ Message string }
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, anvylerr.New(anvylerr.FromHTTPStatus(resp.StatusCode), fmt.Sprintf("agent returned status %d", resp.StatusCode))
	}

	var out agent.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "decode query response")
	}
	return &out, nil
}

func (c *AgentClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return anvylerr.Wrap(anvylerr.KindInternal, err, "build health request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "agent service unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return anvylerr.Newf(anvylerr.KindProviderUnavailable, "agent health returned status %d", resp.StatusCode)
	}
	return nil
}
