// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cliclient holds thin HTTP clients for the Infrastructure
// and Agent services' APIs, used by the external CLI and the MCP
// server to talk to a running service over HTTP. They import
// internal/infra and internal/agent only for the request and response
// types; no service logic runs in the caller's process, so the only
// coupling between processes is the wire contract in §4.C/§4.E.
package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/models"
)

// InfraClient calls the Infrastructure Service's HTTP API (§4.C).
type InfraClient struct {
	baseURL string
	http    *http.Client
}

func NewInfraClient(baseURL string, timeout time.Duration) *InfraClient {
	return &InfraClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *InfraClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return anvylerr.Wrap(anvylerr.KindInternal, err, "encode request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return anvylerr.Wrap(anvylerr.KindInternal, err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "infra service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error struct {
				Kind    string `json:"kind"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("infra service returned status %d", resp.StatusCode)
		}
		return anvylerr.New(anvylerr.FromHTTPStatus(resp.StatusCode), msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return anvylerr.Wrap(anvylerr.KindInternal, err, "decode response body")
	}
	return nil
}

func (c *InfraClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *InfraClient) SystemStatus(ctx context.Context) (*infra.SystemStatus, error) {
	var out infra.SystemStatus
	if err := c.do(ctx, http.MethodGet, "/system/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) ListHosts(ctx context.Context) ([]models.Host, error) {
	var out []models.Host
	if err := c.do(ctx, http.MethodGet, "/hosts/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InfraClient) GetHost(ctx context.Context, id string) (*models.Host, error) {
	var out models.Host
	if err := c.do(ctx, http.MethodGet, "/hosts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) AddHost(ctx context.Context, req infra.AddHostRequest) (*models.Host, error) {
	var out models.Host
	if err := c.do(ctx, http.MethodPost, "/hosts/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) UpdateHost(ctx context.Context, id string, req infra.UpdateHostRequest) (*models.Host, error) {
	var out models.Host
	if err := c.do(ctx, http.MethodPut, "/hosts/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) RemoveHost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/hosts/"+url.PathEscape(id), nil, nil)
}

func (c *InfraClient) HostMetrics(ctx context.Context, id string) (*infra.HostMetrics, error) {
	var out infra.HostMetrics
	if err := c.do(ctx, http.MethodGet, "/hosts/"+url.PathEscape(id)+"/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) ExecOnHost(ctx context.Context, hostID string, req infra.ExecRequest) (*infra.ExecResult, error) {
	var out infra.ExecResult
	if err := c.do(ctx, http.MethodPost, "/hosts/"+url.PathEscape(hostID)+"/exec", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) ListContainers(ctx context.Context, hostID string, all bool) ([]models.Container, error) {
	q := url.Values{}
	if hostID != "" {
		q.Set("host_id", hostID)
	}
	if all {
		q.Set("all", "true")
	}
	path := "/containers/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Container
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InfraClient) GetContainer(ctx context.Context, id string) (*models.Container, error) {
	var out models.Container
	if err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) CreateContainer(ctx context.Context, req infra.CreateContainerRequest) (*models.Container, error) {
	var out models.Container
	if err := c.do(ctx, http.MethodPost, "/containers/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) StopContainer(ctx context.Context, id string, timeoutSeconds int) (*models.Container, error) {
	var out models.Container
	req := infra.StopContainerRequest{TimeoutSeconds: timeoutSeconds}
	if err := c.do(ctx, http.MethodPost, "/containers/"+url.PathEscape(id)+"/stop", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InfraClient) RemoveContainer(ctx context.Context, id string, force bool) error {
	path := "/containers/" + url.PathEscape(id)
	if force {
		path += "?force=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ContainerLogs streams a container's log tail. Unlike the other
// methods it returns the raw response body instead of decoding JSON.
func (c *InfraClient) ContainerLogs(ctx context.Context, id string, tail int, follow bool) (io.ReadCloser, error) {
	path := fmt.Sprintf("/containers/%s/logs?tail=%d", url.PathEscape(id), tail)
	if follow {
		path += "&follow=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindInternal, err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, anvylerr.Wrap(anvylerr.KindEngineUnavailable, err, "infra service unreachable")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, anvylerr.New(anvylerr.FromHTTPStatus(resp.StatusCode), errBody.Error.Message)
	}
	return resp.Body, nil
}

func (c *InfraClient) ExecContainer(ctx context.Context, id string, req infra.ExecRequest) (*infra.ExecResult, error) {
	var out infra.ExecResult
	if err := c.do(ctx, http.MethodPost, "/containers/"+url.PathEscape(id)+"/exec", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
