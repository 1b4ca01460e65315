/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/grimnir_rundown/internal/blueprint"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
	"github.com/friendsincode/grimnir_rundown/internal/ttimers"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// ExecuteAction runs a blueprint action against the playlist.
func (s *Service) ExecuteAction(ctx context.Context, playlistID, actionID string, userData map[string]any) error {
	_, err := runJobWithPlayoutModel(ctx, s, "executeAction", playlistID, requireActive, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := requireActive(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		ac := newActionContext(s, jc, m)
		if err := s.bp.ExecuteAction(jc.ctx, ac, actionID, userData); err != nil {
			var unknown *blueprint.UnknownActionError
			if errors.As(err, &unknown) {
				return struct{}{}, usererror.New(usererror.ActionNotFound, map[string]any{"actionId": actionID})
			}
			if _, ok := usererror.As(err); ok {
				return struct{}{}, err
			}
			return struct{}{}, usererror.Wrap(err, usererror.ActionFailed, map[string]any{"actionId": actionID})
		}
		if q := jc.queued; q != nil {
			jc.queued = nil
			s.setNextPartInstance(jc, m, queuedTarget(m, q), nextOptions{manual: true})
		}
		jc.logger.Info().Str("action_id", actionID).Msg("action executed")
		return struct{}{}, nil
	})
	return err
}

// actionContext is what a blueprint sees of a playout job.
type actionContext struct {
	s      *Service
	jc     *jobContext
	m      *model.PlayoutModel
	timers *ttimers.Service
}

var _ blueprint.ActionContext = (*actionContext)(nil)

func newActionContext(s *Service, jc *jobContext, m *model.PlayoutModel) *actionContext {
	now := func() time.Time { return time.UnixMilli(jc.now) }
	return &actionContext{s: s, jc: jc, m: m, timers: ttimers.NewService(m, s.loc, now)}
}

func (a *actionContext) instance(scope blueprint.Scope) *model.PartInstanceModel {
	switch scope {
	case blueprint.ScopePrevious:
		return a.m.PreviousPartInstance()
	case blueprint.ScopeCurrent:
		return a.m.CurrentPartInstance()
	case blueprint.ScopeNext:
		return a.m.NextPartInstance()
	}
	return nil
}

func (a *actionContext) Now() int64 { return a.jc.now }

func (a *actionContext) GetPartInstance(scope blueprint.Scope) (*models.PartInstance, bool) {
	inst := a.instance(scope)
	if inst == nil {
		return nil, false
	}
	doc := *inst.PartInstance()
	return &doc, true
}

func (a *actionContext) GetPieceInstances(scope blueprint.Scope) []models.PieceInstance {
	inst := a.instance(scope)
	if inst == nil {
		return nil
	}
	return inst.PieceInstanceDocs()
}

func (a *actionContext) GetUpcomingParts(limit int) []models.Part {
	return GetOrderedPartsAfterPlayhead(a.m, quickloop.New(a.m), limit)
}

// FindLastPieceOnLayer searches current, then previous, for the latest
// starting piece on the layer.
func (a *actionContext) FindLastPieceOnLayer(sourceLayerID string) (*models.PieceInstance, bool) {
	for _, inst := range []*model.PartInstanceModel{a.m.CurrentPartInstance(), a.m.PreviousPartInstance()} {
		if inst == nil {
			continue
		}
		pieces := inst.PieceInstances()
		for i := len(pieces) - 1; i >= 0; i-- {
			doc := *pieces[i].PieceInstance()
			if doc.Piece.SourceLayerID == sourceLayerID && !doc.Disabled {
				return &doc, true
			}
		}
	}
	return nil, false
}

func (a *actionContext) Timer(index int) (blueprint.Timer, error) {
	h, err := a.timers.Handle(index)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// InsertPiece adds an adlib piece to current or next. Pieces inserted into
// current start now and replace what plays on their layer.
func (a *actionContext) InsertPiece(scope blueprint.Scope, piece models.Piece) (string, error) {
	if scope != blueprint.ScopeCurrent && scope != blueprint.ScopeNext {
		return "", usererror.New(usererror.ValidationFailed, map[string]any{"scope": string(scope)})
	}
	inst := a.instance(scope)
	if inst == nil {
		return "", usererror.New(usererror.NoCurrentOrNextPart, map[string]any{"scope": string(scope)})
	}
	for _, o := range piece.TimelineObjects {
		if err := o.Content.Validate(); err != nil {
			return "", usererror.Wrap(err, usererror.ValidationFailed, map[string]any{"objectId": o.ID})
		}
	}

	adlibSource := piece.ID
	piece.ID = a.s.newID()
	piece.RundownID = inst.PartInstance().RundownID
	piece.StartPartID = inst.Part().ID
	piece.StartSegmentID = inst.PartInstance().SegmentID

	var inserted *int64
	if scope == blueprint.ScopeCurrent {
		now := a.jc.now
		inserted = &now
		piece.Enable.StartNow = true
		if _, err := a.stopOnLayers(inst, []string{piece.SourceLayerID}); err != nil {
			return "", err
		}
	}

	doc := a.s.newPieceInstance(a.m, inst.ID(), piece, inserted)
	doc.AdlibSourceID = adlibSource
	inst.InsertPieceInstance(doc)

	if scope == blueprint.ScopeCurrent {
		if next := a.m.NextPartInstance(); next != nil {
			syncInfiniteContinuations(a.s, a.m, inst, next)
		}
	}
	a.m.RequestTimelineUpdate()
	return doc.ID, nil
}

func (a *actionContext) findPieceInstance(id string) *model.PieceInstanceModel {
	for _, inst := range []*model.PartInstanceModel{a.m.CurrentPartInstance(), a.m.NextPartInstance(), a.m.PreviousPartInstance()} {
		if inst == nil {
			continue
		}
		if pi := inst.FindPieceInstance(id); pi != nil && !pi.PieceInstance().Reset {
			return pi
		}
	}
	return nil
}

func (a *actionContext) UpdatePieceInstance(pieceInstanceID string, update blueprint.PieceUpdate) error {
	pi := a.findPieceInstance(pieceInstanceID)
	if pi == nil {
		return usererror.New(usererror.ValidationFailed, map[string]any{"pieceInstanceId": pieceInstanceID})
	}
	piece := pi.PieceInstance().Piece
	if update.Name != nil {
		piece.Name = *update.Name
	}
	if update.TimelineObjects != nil {
		for _, o := range update.TimelineObjects {
			if err := o.Content.Validate(); err != nil {
				return usererror.Wrap(err, usererror.ValidationFailed, map[string]any{"objectId": o.ID})
			}
		}
		piece.TimelineObjects = update.TimelineObjects
	}
	pi.SetPiece(piece)
	if update.Disabled != nil {
		pi.SetDisabled(*update.Disabled)
	}
	if update.UserDuration != nil {
		pi.SetUserDuration(update.UserDuration)
	}
	a.m.RequestTimelineUpdate()
	return nil
}

func (a *actionContext) UpdatePartInstance(scope blueprint.Scope, update blueprint.PartUpdate) error {
	inst := a.instance(scope)
	if inst == nil {
		return usererror.New(usererror.NoCurrentOrNextPart, map[string]any{"scope": string(scope)})
	}
	part := *inst.Part()
	if update.Title != nil {
		part.Title = *update.Title
	}
	if update.ExpectedDuration != nil {
		d := *update.ExpectedDuration
		part.ExpectedDuration = &d
	}
	if update.AutoNext != nil {
		part.AutoNext = *update.AutoNext
	}
	if update.AutoNextOverlap != nil {
		part.AutoNextOverlap = *update.AutoNextOverlap
	}
	inst.SetPart(part)
	a.m.RequestTimelineUpdate()
	return nil
}

func (a *actionContext) StopPiecesOnLayers(sourceLayerIDs []string) ([]string, error) {
	cur := a.m.CurrentPartInstance()
	if cur == nil {
		return nil, usererror.New(usererror.NoCurrentOrNextPart, nil)
	}
	stopped, err := a.stopOnLayers(cur, sourceLayerIDs)
	if err != nil {
		return nil, err
	}
	if len(stopped) > 0 {
		if next := a.m.NextPartInstance(); next != nil {
			syncInfiniteContinuations(a.s, a.m, cur, next)
		}
		a.m.RequestTimelineUpdate()
	}
	return stopped, nil
}

// stopOnLayers ends the pieces of cur that play on the layers now.
func (a *actionContext) stopOnLayers(cur *model.PartInstanceModel, layers []string) ([]string, error) {
	want := make(map[string]bool, len(layers))
	for _, l := range layers {
		want[l] = true
	}
	partStart := a.jc.now
	if v := cur.PartInstance().Timings.PlannedStartedPlayback; v != nil {
		partStart = *v
	}
	rel := a.jc.now - partStart

	var stopped []string
	for _, pi := range cur.PieceInstances() {
		doc := pi.PieceInstance()
		if !want[doc.Piece.SourceLayerID] || doc.Disabled || endedByUser(doc) {
			continue
		}
		if start := pieceStartInPart(doc, partStart); start > rel {
			continue
		}
		end := rel
		pi.SetUserDuration(&models.PieceUserDuration{EndRelativeToPart: &end})
		stopped = append(stopped, doc.ID)
	}
	return stopped, nil
}

// pieceStartInPart is a piece's start relative to its part.
func pieceStartInPart(pi *models.PieceInstance, partStart int64) int64 {
	switch {
	case pi.PlannedStartedPlayback != nil:
		return *pi.PlannedStartedPlayback - partStart
	case pi.Piece.Enable.StartNow && pi.DynamicallyInserted != nil:
		return *pi.DynamicallyInserted - partStart
	default:
		return pi.Piece.Enable.Start
	}
}

func (a *actionContext) BlockTakeUntil(unixMs *int64) error {
	cur := a.m.CurrentPartInstance()
	if cur == nil {
		return usererror.New(usererror.NoCurrentOrNextPart, nil)
	}
	cur.SetBlockTakeUntil(unixMs)
	return nil
}

func (a *actionContext) QueuePartAfterTake(part models.Part, pieces []models.Piece) error {
	if !part.Playable() {
		return usererror.New(usererror.PartNotPlayable, map[string]any{"partId": part.ID})
	}
	if part.ID == "" {
		part.ID = a.s.newID()
	}
	pieces = append([]models.Piece(nil), pieces...)
	for i := range pieces {
		if pieces[i].ID == "" {
			pieces[i].ID = a.s.newID()
		}
	}
	a.jc.queued = &queuedPart{part: part, pieces: pieces}
	return nil
}
