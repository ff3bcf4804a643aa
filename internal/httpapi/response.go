// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
)

// errorBody is the single JSON error shape every endpoint returns on
// failure, at every HTTP status code.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode json response")
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	body := errorBody{}
	body.Error.Kind = kind
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeServiceError maps a service-layer error onto this API's wire
// format. It is the only place in httpapi that looks at anvylerr.Kind
// (§9: HTTP mapping happens only at the request edge).
func writeServiceError(w http.ResponseWriter, err error) {
	kind := anvylerr.KindOf(err)
	writeError(w, anvylerr.HTTPStatus(kind), kind.String(), err.Error())
}
