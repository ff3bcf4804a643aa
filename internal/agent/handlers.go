// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/httpapi"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers { return &Handlers{svc: svc} }

// NewRouter builds the Agent Service's chi router (§4.E).
func NewRouter(h *Handlers, allowedOrigins []string, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(httpapi.Recovery(log))
	r.Use(httpapi.RequestID)
	r.Use(httpapi.Logger(log))
	r.Use(httpapi.CORS(allowedOrigins))
	r.Use(httpapi.MaxBodySize(1 << 20))

	r.Get("/health", h.Health)
	r.Get("/info", h.Info)
	r.Post("/query", h.Query)
	r.Get("/hosts", h.ListHosts)
	r.Post("/hosts", h.AddHost)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	kind := anvylerr.KindOf(err)
	writeJSON(w, anvylerr.HTTPStatus(kind), map[string]any{
		"error": map[string]string{"kind": kind.String(), "message": err.Error()},
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Info(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(w, anvylerr.Wrap(anvylerr.KindValidation, err, "invalid request body"))
		return
	}
	if req.Query == "" {
		writeServiceError(w, anvylerr.New(anvylerr.KindValidation, "query is required"))
		return
	}

	resp, err := h.svc.Query(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListHosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListHosts())
}

func (h *Handlers) AddHost(w http.ResponseWriter, r *http.Request) {
	var rec HostRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeServiceError(w, anvylerr.Wrap(anvylerr.KindValidation, err, "invalid request body"))
		return
	}
	if rec.ID == "" || rec.IP == "" {
		writeServiceError(w, anvylerr.New(anvylerr.KindValidation, "id and ip are required"))
		return
	}
	h.svc.AddHost(rec)
	writeJSON(w, http.StatusCreated, rec)
}
