/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/friendsincode/grimnir_rundown/internal/audit"
	"github.com/friendsincode/grimnir_rundown/internal/auth"
	"github.com/friendsincode/grimnir_rundown/internal/events"
)

type studioCtxKey struct{}

// studioNote lets handlers that learn the studio late report it to
// recordAction.
type studioNote struct{ id string }

func withStudio(ctx context.Context, studioID string) context.Context {
	if note, ok := ctx.Value(studioCtxKey{}).(*studioNote); ok {
		note.id = studioID
		return ctx
	}
	return context.WithValue(ctx, studioCtxKey{}, &studioNote{id: studioID})
}

func studioFromContext(r *http.Request) string {
	if id := chi.URLParam(r, "studioID"); id != "" {
		return id
	}
	if note, ok := r.Context().Value(studioCtxKey{}).(*studioNote); ok {
		return note.id
	}
	return ""
}

// SetActionLog enables recording of operator commands and the action log
// endpoint.
func (a *API) SetActionLog(bus *events.Bus, svc *audit.Service) {
	a.bus = bus
	a.actions = svc
}

// recordAction publishes one user action event per mutating request.
func (a *API) recordAction(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.bus == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		r = r.WithContext(withStudio(r.Context(), studioFromContext(r)))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		var body bytes.Buffer
		ww.Tee(&body)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		pattern := chi.RouteContext(r.Context()).RoutePattern()

		payload := events.Payload{
			"timestamp":   start,
			"studio_id":   studioFromContext(r),
			"playlist_id": chi.URLParam(r, "playlistID"),
			"action":      actionName(r.Method, pattern),
			"success":     status < http.StatusBadRequest,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"route":       pattern,
		}
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.UserID != "" {
			payload["user_id"] = claims.UserID
		}
		if id := chi.URLParam(r, "actionID"); id != "" {
			payload["action_id"] = id
		}
		if status >= http.StatusBadRequest {
			var errBody struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(body.Bytes(), &errBody) == nil {
				payload["error_code"] = errBody.Error
			}
		}

		a.bus.Publish(events.EventUserAction, payload)
	})
}

// actionName turns a route pattern into a short name such as "take",
// "next.move" or "playback.part-started".
func actionName(method, pattern string) string {
	rest := pattern
	for _, marker := range []string{"{playlistID}", "{studioID}"} {
		if i := strings.Index(rest, marker); i >= 0 {
			rest = rest[i+len(marker):]
			break
		}
	}
	var parts []string
	for _, p := range strings.Split(strings.Trim(rest, "/"), "/") {
		if p == "" || strings.HasPrefix(p, "{") {
			continue
		}
		parts = append(parts, p)
	}
	name := strings.Join(parts, ".")
	switch {
	case name == "" && method == http.MethodPut:
		return "import"
	case name == "" && method == http.MethodDelete:
		return "delete"
	case method == http.MethodDelete:
		return name + ".clear"
	case name == "":
		return strings.ToLower(method)
	}
	return name
}

func (a *API) handleStudioActions(w http.ResponseWriter, r *http.Request) {
	if a.actions == nil {
		writeError(w, http.StatusNotFound, "action_log_disabled")
		return
	}

	q := r.URL.Query()
	filters := audit.QueryFilters{
		StudioID:   chi.URLParam(r, "studioID"),
		PlaylistID: q.Get("playlist"),
		UserID:     q.Get("user"),
		Action:     q.Get("action"),
		FailedOnly: q.Get("failed") == "true",
		Limit:      100,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		filters.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset")
			return
		}
		filters.Offset = offset
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		filters.StartTime = &since
	}

	entries, total, err := a.actions.Query(r.Context(), filters)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total})
}
