/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_rundown/internal/auth"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// playlistImportRequest is the ingest payload of one playlist.
type playlistImportRequest struct {
	Name              string           `json:"name"`
	StudioID          string           `json:"studioId"`
	RundownIDsInOrder []string         `json:"rundownIdsInOrder"`
	Loop              bool             `json:"loop"`
	Rundowns          []models.Rundown `json:"rundowns"`
	Segments          []models.Segment `json:"segments"`
	Parts             []models.Part    `json:"parts"`
	Pieces            []models.Piece   `json:"pieces"`
}

func (a *API) handlePlaylistImport(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")
	var req playlistImportRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	if req.StudioID == "" {
		a.respondError(w, r, usererror.New(usererror.ValidationFailed, map[string]any{"reason": "studioId is required"}))
		return
	}
	withStudio(r.Context(), req.StudioID)
	if claims, ok := auth.ClaimsFromContext(r.Context()); !ok || !claims.CanAccessStudio(req.StudioID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if _, err := a.store.LoadStudio(r.Context(), req.StudioID); err != nil {
		if errors.Is(err, store.ErrStudioNotFound) {
			err = usererror.Wrap(err, usererror.StudioNotFound, map[string]any{"studioId": req.StudioID})
		}
		a.respondError(w, r, err)
		return
	}

	existing, err := a.store.LoadPlaylist(r.Context(), playlistID)
	switch {
	case err == nil && existing.StudioID != req.StudioID && existing.IsActive():
		a.respondError(w, r, usererror.New(usererror.RundownAlreadyActive, map[string]any{"playlistId": playlistID}))
		return
	case err != nil && !errors.Is(err, store.ErrPlaylistNotFound):
		a.respondError(w, r, err)
		return
	}

	content := store.PlaylistContent{
		Playlist: models.RundownPlaylist{
			ID:                playlistID,
			StudioID:          req.StudioID,
			Name:              req.Name,
			RundownIDsInOrder: req.RundownIDsInOrder,
			Loop:              req.Loop,
		},
		Rundowns: req.Rundowns,
		Segments: req.Segments,
		Parts:    req.Parts,
		Pieces:   req.Pieces,
	}
	for i := range content.Rundowns {
		content.Rundowns[i].PlaylistID = playlistID
		content.Rundowns[i].StudioID = req.StudioID
	}
	if err := a.store.ImportPlaylist(r.Context(), content); err != nil {
		a.respondError(w, r, err)
		return
	}

	// an active playlist picks up the new content right away
	if existing != nil && existing.IsActive() {
		if err := a.svc.RegenerateTimeline(r.Context(), playlistID); err != nil && !usererror.HasCode(err, usererror.InactiveRundown) {
			a.logger.Warn().Err(err).Str("playlist_id", playlistID).Msg("timeline refresh after import failed")
		}
	}

	a.logger.Info().Str("playlist_id", playlistID).Str("studio_id", req.StudioID).Int("parts", len(req.Parts)).Msg("playlist imported")
	writeJSON(w, http.StatusOK, map[string]string{"status": "imported", "playlistId": playlistID})
}

func (a *API) handlePlaylistState(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.PlaylistState(r.Context(), chi.URLParam(r, "playlistID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")
	pl, err := a.store.LoadPlaylist(r.Context(), playlistID)
	if err != nil {
		a.respondError(w, r, playlistLookupError(err, playlistID))
		return
	}
	if pl.IsActive() {
		a.respondError(w, r, usererror.New(usererror.RundownAlreadyActive, map[string]any{"playlistId": playlistID}))
		return
	}
	if err := a.store.DeletePlaylist(r.Context(), playlistID); err != nil {
		a.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rehearsal bool `json:"rehearsal"`
	}
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.command(w, r, "activated", func(id string) error {
		return a.svc.ActivatePlaylist(r.Context(), id, req.Rehearsal)
	})
}

func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "deactivated", func(id string) error {
		return a.svc.DeactivatePlaylist(r.Context(), id)
	})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "reset", func(id string) error {
		return a.svc.ResetPlaylist(r.Context(), id)
	})
}

func (a *API) handleTake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromPartInstanceID string `json:"fromPartInstanceId"`
	}
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.command(w, r, "taken", func(id string) error {
		return a.svc.Take(r.Context(), id, req.FromPartInstanceID)
	})
}

func (a *API) handleSetNext(w http.ResponseWriter, r *http.Request) {
	var req playout.SetNextRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.command(w, r, "next_set", func(id string) error {
		return a.svc.SetNextPart(r.Context(), id, req)
	})
}

func (a *API) handleMoveNext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parts           int  `json:"parts"`
		Segments        int  `json:"segments"`
		IgnoreQuickLoop bool `json:"ignoreQuickLoop"`
	}
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	partID, err := a.svc.MoveNextPart(r.Context(), chi.URLParam(r, "playlistID"), req.Parts, req.Segments, req.IgnoreQuickLoop)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "next_set", "partId": partID})
}

type segmentRequest struct {
	SegmentID string `json:"segmentId"`
}

func (a *API) handleSetNextSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.command(w, r, "next_segment_set", func(id string) error {
		return a.svc.SetNextSegment(r.Context(), id, req.SegmentID)
	})
}

func (a *API) handleQueueNextSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.command(w, r, "segment_queued", func(id string) error {
		return a.svc.QueueNextSegment(r.Context(), id, req.SegmentID)
	})
}

func (a *API) handleHold(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "hold_activated", func(id string) error {
		return a.svc.ActivateHold(r.Context(), id)
	})
}

func (a *API) handleHoldCancel(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "hold_cancelled", func(id string) error {
		return a.svc.DeactivateHold(r.Context(), id)
	})
}

func (a *API) handleDisableNextPiece(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Undo bool `json:"undo"`
	}
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	pieceInstanceID, err := a.svc.DisableNextPiece(r.Context(), chi.URLParam(r, "playlistID"), req.Undo)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "toggled", "pieceInstanceId": pieceInstanceID})
}

func (a *API) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserData map[string]any `json:"userData"`
	}
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	actionID := chi.URLParam(r, "actionID")
	a.command(w, r, "executed", func(id string) error {
		return a.svc.ExecuteAction(r.Context(), id, actionID, req.UserData)
	})
}

func (a *API) handleTTimer(w http.ResponseWriter, r *http.Request) {
	var cmd playout.TimerCommand
	if err := decode(r, &cmd); err != nil {
		a.respondError(w, r, err)
		return
	}
	timer, err := a.svc.UpdateTTimer(r.Context(), chi.URLParam(r, "playlistID"), cmd)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timer)
}

func (a *API) handleQuickLoopMarker(w http.ResponseWriter, r *http.Request) {
	side := quickloop.Side(chi.URLParam(r, "side"))
	if side != quickloop.SideStart && side != quickloop.SideEnd {
		a.respondError(w, r, usererror.New(usererror.ValidationFailed, map[string]any{"reason": "side must be start or end"}))
		return
	}
	var req struct {
		Marker *models.QuickLoopMarker `json:"marker"`
	}
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	props, err := a.svc.SetQuickLoopMarker(r.Context(), chi.URLParam(r, "playlistID"), side, req.Marker)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (a *API) handleQuickLoopClear(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "quickloop_cleared", func(id string) error {
		return a.svc.ClearQuickLoop(r.Context(), id)
	})
}

func (a *API) handleRegenerateTimeline(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "regenerated", func(id string) error {
		return a.svc.RegenerateTimeline(r.Context(), id)
	})
}

func (a *API) handlePartStarted(w http.ResponseWriter, r *http.Request) {
	a.playback(w, r, a.svc.OnPartPlaybackStarted)
}

func (a *API) handlePartStopped(w http.ResponseWriter, r *http.Request) {
	a.playback(w, r, a.svc.OnPartPlaybackStopped)
}

func (a *API) handlePieceStarted(w http.ResponseWriter, r *http.Request) {
	a.playback(w, r, a.svc.OnPiecePlaybackStarted)
}

func (a *API) handlePieceStopped(w http.ResponseWriter, r *http.Request) {
	a.playback(w, r, a.svc.OnPiecePlaybackStopped)
}

func (a *API) playback(w http.ResponseWriter, r *http.Request, report func(ctx context.Context, playlistID string, ev playout.PlaybackEvent) error) {
	var ev playout.PlaybackEvent
	if err := decode(r, &ev); err != nil {
		a.respondError(w, r, err)
		return
	}
	if ev.PartInstanceID == "" {
		a.respondError(w, r, usererror.New(usererror.ValidationFailed, map[string]any{"reason": "partInstanceId is required"}))
		return
	}
	a.command(w, r, "recorded", func(id string) error {
		return report(r.Context(), id, ev)
	})
}

// command runs a playlist command and answers with status on success.
func (a *API) command(w http.ResponseWriter, r *http.Request, status string, run func(playlistID string) error) {
	playlistID := chi.URLParam(r, "playlistID")
	if err := run(playlistID); err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "playlistId": playlistID})
}
