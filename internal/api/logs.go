/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_rundown/internal/logbuffer"
)

const defaultLogLimit = 200

func (a *API) handleStudioLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusNotFound, "logs_disabled")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		StudioID:   chi.URLParam(r, "studioID"),
		PlaylistID: q.Get("playlist"),
		Job:        q.Get("job"),
		Search:     q.Get("search"),
		Limit:      defaultLogLimit,
		Descending: true,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    a.logBuffer.Query(params),
		"components": a.logBuffer.ComponentsForStudio(params.StudioID),
	})
}

func (a *API) handleStudioLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusNotFound, "logs_disabled")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.StatsForStudio(chi.URLParam(r, "studioID")))
}
