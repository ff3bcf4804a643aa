// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kessler-frost/anvyl/internal/docker"
	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "anvyl-test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dock, err := docker.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = dock.Close() })

	svc := infra.New(st, dock, time.Second, zerolog.Nop())
	require.NoError(t, svc.Bootstrap(t.Context()))

	h := NewHandlers(svc)
	r := NewRouter(h, nil, zerolog.Nop())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body, "status")
}

func TestListHostsIncludesLocalHost(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/hosts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hosts []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hosts))
	require.Len(t, hosts, 1)
}

func TestAddHostValidationError(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/hosts/", "application/json", strings.NewReader(`{"name":"","ip":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Validation", body.Error.Kind)
}

func TestAddAndRemoveHost(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/hosts/", "application/json", strings.NewReader(`{"name":"worker","ip":"10.0.0.5"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var host map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&host))
	id, _ := host["id"].(string)
	require.NotEmpty(t, id)

	del, err := http.NewRequest(http.MethodDelete, srv.URL+"/hosts/"+id+"/", nil)
	require.NoError(t, err)
	delResp, err := srv.Client().Do(del)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)
}

func TestRemoveLocalHostRejected(t *testing.T) {
	srv := newTestServer(t)
	listResp, err := http.Get(srv.URL + "/hosts")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var hosts []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&hosts))
	require.Len(t, hosts, 1)
	id, _ := hosts[0]["id"].(string)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/hosts/"+id+"/", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}
