// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// NewRouter builds the Infrastructure Service's chi router (§4.C).
func NewRouter(h *Handlers, allowedOrigins []string, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(log))
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(CORS(allowedOrigins))
	r.Use(MaxBodySize(1 << 20))

	r.Get("/health", h.Health)
	r.Get("/system/status", h.SystemStatus)

	r.Route("/hosts", func(r chi.Router) {
		r.Get("/", h.ListHosts)
		r.Post("/", h.AddHost)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetHost)
			r.Put("/", h.UpdateHost)
			r.Delete("/", h.RemoveHost)
			r.Get("/metrics", h.HostMetrics)
			r.Post("/exec", h.ExecOnHost)
		})
	})

	r.Route("/containers", func(r chi.Router) {
		r.Get("/", h.ListContainers)
		r.Post("/", h.CreateContainer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetContainer)
			r.Post("/stop", h.StopContainer)
			r.Delete("/", h.RemoveContainer)
			r.Get("/logs", h.ContainerLogs)
			r.Post("/exec", h.ExecContainer)
		})
	})

	return r
}
