/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/audit"
	"github.com/friendsincode/grimnir_rundown/internal/auth"
	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/logbuffer"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
	"github.com/friendsincode/grimnir_rundown/internal/webhooks"
)

// API exposes HTTP handlers.
type API struct {
	svc       *playout.Service
	store     *store.Store
	hub       http.Handler
	logBuffer *logbuffer.Buffer
	bus       *events.Bus
	actions   *audit.Service
	webhooks  *webhooks.Service
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API router wrapper. hub may be nil when websocket push is
// not wanted.
func New(svc *playout.Service, st *store.Store, hub http.Handler, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		svc:       svc,
		store:     st,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SetLogBuffer enables the studio log endpoints.
func (a *API) SetLogBuffer(buf *logbuffer.Buffer) {
	a.logBuffer = buf
}

// Routes registers API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))
			operator := auth.RequireRole(auth.RoleOperator)
			admin := auth.RequireRole(auth.RoleAdmin)
			mutating := chi.Chain(operator, a.recordAction)

			if a.hub != nil {
				pr.Get("/ws", a.hub.ServeHTTP)
			}

			pr.Route("/studios", func(r chi.Router) {
				r.Get("/", a.handleStudiosList)
				r.Route("/{studioID}", func(r chi.Router) {
					r.Use(a.studioAccess)
					r.Get("/", a.handleStudioGet)
					r.Get("/timeline", a.handleStudioTimeline)
					r.Get("/playlists", a.handleStudioPlaylists)
					r.Route("/logs", func(lr chi.Router) {
						lr.Get("/", a.handleStudioLogs)
						lr.Get("/stats", a.handleStudioLogStats)
					})
					r.Get("/actions", a.handleStudioActions)
					r.Route("/webhooks", func(wr chi.Router) {
						a.webhookRoutes(wr, admin)
					})
					r.With(mutating...).Post("/baseline", a.handleStudioBaseline)
				})
			})

			pr.Route("/playlists/{playlistID}", func(r chi.Router) {
				r.With(mutating...).Put("/", a.handlePlaylistImport)

				r.Group(func(r chi.Router) {
					r.Use(a.playlistAccess)
					r.Get("/", a.handlePlaylistState)
					r.With(mutating...).Delete("/", a.handlePlaylistDelete)

					r.Group(func(r chi.Router) {
						r.Use(mutating...)
						r.Post("/activate", a.handleActivate)
						r.Post("/deactivate", a.handleDeactivate)
						r.Post("/reset", a.handleReset)
						r.Post("/take", a.handleTake)
						r.Post("/next", a.handleSetNext)
						r.Post("/next/move", a.handleMoveNext)
						r.Post("/next/segment", a.handleSetNextSegment)
						r.Post("/next/queue-segment", a.handleQueueNextSegment)
						r.Post("/hold", a.handleHold)
						r.Delete("/hold", a.handleHoldCancel)
						r.Post("/disable-next-piece", a.handleDisableNextPiece)
						r.Post("/actions/{actionID}", a.handleExecuteAction)
						r.Post("/ttimers", a.handleTTimer)
						r.Put("/quickloop/{side}", a.handleQuickLoopMarker)
						r.Delete("/quickloop", a.handleQuickLoopClear)
						r.Post("/timeline/regenerate", a.handleRegenerateTimeline)

						r.Route("/playback", func(r chi.Router) {
							r.Post("/part-started", a.handlePartStarted)
							r.Post("/part-stopped", a.handlePartStopped)
							r.Post("/piece-started", a.handlePieceStarted)
							r.Post("/piece-stopped", a.handlePieceStopped)
						})
					})
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if sqlDB, err := a.store.DB().DB(); err == nil {
		if err := sqlDB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// studioAccess rejects tokens restricted to another studio.
func (a *API) studioAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok || !claims.CanAccessStudio(chi.URLParam(r, "studioID")) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// playlistAccess resolves the playlist studio and applies the same check.
func (a *API) playlistAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playlistID := chi.URLParam(r, "playlistID")
		pl, err := a.store.LoadPlaylist(r.Context(), playlistID)
		if err != nil {
			a.respondError(w, r, playlistLookupError(err, playlistID))
			return
		}
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok || !claims.CanAccessStudio(pl.StudioID) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(withStudio(r.Context(), pl.StudioID)))
	})
}

func playlistLookupError(err error, playlistID string) error {
	if errors.Is(err, store.ErrPlaylistNotFound) {
		return usererror.Wrap(err, usererror.PlaylistNotFound, map[string]any{"playlistId": playlistID})
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

type userErrorBody struct {
	Error   usererror.Code `json:"error"`
	Message string         `json:"message"`
	Args    map[string]any `json:"args,omitempty"`
}

// respondError writes user errors verbatim and hides everything else.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ue, ok := usererror.As(err); ok {
		if ue.Cause != nil {
			a.logger.Debug().Err(ue.Cause).Str("code", string(ue.Code)).Str("path", r.URL.Path).Msg("user error")
		}
		writeJSON(w, ue.Status, userErrorBody{Error: ue.Code, Message: message(ue), Args: ue.Args})
		return
	}
	a.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error")
}

func message(ue *usererror.Error) string {
	if ue.Code == usererror.ValidationFailed && ue.Cause != nil {
		return ue.Cause.Error()
	}
	if reason, ok := ue.Args["reason"].(string); ok {
		return reason
	}
	return string(ue.Code)
}

// decode reads an optional JSON body into v.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return usererror.Wrap(err, usererror.ValidationFailed, map[string]any{"reason": "invalid_json"})
	}
	return nil
}

func (a *API) handleStudiosList(w http.ResponseWriter, r *http.Request) {
	studios, err := a.store.ListStudios(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	visible := make([]models.Studio, 0, len(studios))
	for _, studio := range studios {
		if claims == nil || claims.CanAccessStudio(studio.ID) {
			visible = append(visible, studio)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (a *API) handleStudioGet(w http.ResponseWriter, r *http.Request) {
	studioID := chi.URLParam(r, "studioID")
	studio, err := a.store.LoadStudio(r.Context(), studioID)
	if err != nil {
		if errors.Is(err, store.ErrStudioNotFound) {
			err = usererror.Wrap(err, usererror.StudioNotFound, map[string]any{"studioId": studioID})
		}
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studio)
}

func (a *API) handleStudioTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := a.svc.StudioTimeline(r.Context(), chi.URLParam(r, "studioID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (a *API) handleStudioPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.store.ListPlaylists(r.Context(), chi.URLParam(r, "studioID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handleStudioBaseline(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.UpdateStudioBaseline(r.Context(), chi.URLParam(r, "studioID")); err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
