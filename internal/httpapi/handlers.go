// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/infra"
)

// defaultLogTail is how many lines ContainerLogs returns when the
// caller omits ?tail.
const defaultLogTail = 100

// Handlers holds the Infrastructure Service dependency the HTTP layer
// drives. It is the only package that translates between wire JSON
// and infra's request/response types.
type Handlers struct {
	svc *infra.Service
}

// NewHandlers creates the handler set.
func NewHandlers(svc *infra.Service) *Handlers {
	return &Handlers{svc: svc}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return anvylerr.New(anvylerr.KindValidation, "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return anvylerr.Wrap(anvylerr.KindValidation, err, "invalid request body")
	}
	return nil
}

// ---- health & status ----

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *Handlers) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.SystemStatus(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ---- hosts ----

func (h *Handlers) ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.svc.ListHosts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hosts)
}

func (h *Handlers) GetHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.svc.GetHost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}

func (h *Handlers) AddHost(w http.ResponseWriter, r *http.Request) {
	var req infra.AddHostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	host, err := h.svc.AddHost(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, host)
}

func (h *Handlers) UpdateHost(w http.ResponseWriter, r *http.Request) {
	var req infra.UpdateHostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	host, err := h.svc.UpdateHost(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}

func (h *Handlers) RemoveHost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveHost(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handlers) HostMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.svc.HostMetrics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handlers) ExecOnHost(w http.ResponseWriter, r *http.Request) {
	var req infra.ExecRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.svc.ExecOnHost(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- containers ----

func (h *Handlers) ListContainers(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	containers, err := h.svc.ListContainers(r.Context(), r.URL.Query().Get("host_id"), all)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, containers)
}

func (h *Handlers) GetContainer(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetContainer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var req infra.CreateContainerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	c, err := h.svc.CreateContainer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) StopContainer(w http.ResponseWriter, r *http.Request) {
	var req infra.StopContainerRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	c, err := h.svc.StopContainer(r.Context(), chi.URLParam(r, "id"), req.TimeoutSeconds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveContainer(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := h.svc.RemoveContainer(r.Context(), chi.URLParam(r, "id"), force); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ContainerLogs implements GET /containers/{id}/logs. A one-shot
// request returns the raw engine output as application/octet-stream;
// follow=true instead streams text/event-stream, one "event: log"
// per line, so a browser EventSource or a line-oriented client doesn't
// have to reassemble a byte stream itself.
func (h *Handlers) ContainerLogs(w http.ResponseWriter, r *http.Request) {
	tail := defaultLogTail
	if v := r.URL.Query().Get("tail"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			tail = n
		}
	}
	follow := r.URL.Query().Get("follow") == "true"

	rc, err := h.svc.ContainerLogs(r.Context(), chi.URLParam(r, "id"), tail, follow)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	if !follow {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		io.Copy(w, rc)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		if _, err := io.WriteString(w, "event: log\ndata: "+scanner.Text()+"\n\n"); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (h *Handlers) ExecContainer(w http.ResponseWriter, r *http.Request) {
	var req infra.ExecRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.svc.ExecContainer(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
