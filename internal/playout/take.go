/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// Take puts the next part on air. fromPartInstanceID, when set, must be the
// current instance the operator saw.
func (s *Service) Take(ctx context.Context, playlistID, fromPartInstanceID string) error {
	check := func(pl *models.RundownPlaylist) error {
		if err := requireActive(pl); err != nil {
			return err
		}
		return validateTake(pl, fromPartInstanceID)
	}
	_, err := runJobWithPlayoutModel(ctx, s, "take", playlistID, check, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := requireActive(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		if err := validateTake(m.Playlist(), fromPartInstanceID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.takeNextPart(jc, m, false)
	})
	return err
}

func validateTake(pl *models.RundownPlaylist, fromPartInstanceID string) error {
	if pl.NextPartInfo == nil && pl.HoldState != models.HoldActive {
		return usererror.New(usererror.TakeNoNextPart, nil)
	}
	if fromPartInstanceID != "" {
		cur := ""
		if pl.CurrentPartInfo != nil {
			cur = pl.CurrentPartInfo.PartInstanceID
		}
		if cur != fromPartInstanceID {
			return usererror.New(usererror.TakeFromIncorrectPart, map[string]any{"expected": cur, "got": fromPartInstanceID})
		}
	}
	return nil
}

// takeNextPart promotes next to current. auto is set when the gateway
// reports next started on its own; operator guards are skipped then.
func (s *Service) takeNextPart(jc *jobContext, m *model.PlayoutModel, auto bool) error {
	now := jc.now
	pl := m.Playlist()
	settings := m.Studio().Settings
	cur := m.CurrentPartInstance()

	if !auto {
		if pl.LastTakeTime != nil && settings.MinimumTakeSpanMs > 0 && now-*pl.LastTakeTime < settings.MinimumTakeSpanMs {
			return usererror.New(usererror.TakeRateLimit, map[string]any{"retryAfterMs": settings.MinimumTakeSpanMs - (now - *pl.LastTakeTime)})
		}
		if cur != nil {
			doc := cur.PartInstance()
			if doc.BlockTakeUntil != nil && *doc.BlockTakeUntil > now {
				return usererror.New(usererror.TakeBlockedDuration, map[string]any{"untilMs": *doc.BlockTakeUntil})
			}
			if tr := doc.Part.InTransition; tr != nil && doc.Timings.Take != nil && *doc.Timings.Take+tr.BlockTakeDurationMs > now {
				return usererror.New(usererror.TakeDuringTransition, nil)
			}
		}
	}

	switch pl.HoldState {
	case models.HoldActive:
		completeHold(m, now)
		m.SetLastTakeTime(now)
		m.RequestTimelineUpdate()
		return nil
	case models.HoldComplete:
		m.SetHoldState(models.HoldNone)
	}

	next := m.NextPartInstance()
	if next == nil {
		return usererror.New(usererror.TakeNoNextPart, nil)
	}

	ac := newActionContext(s, jc, m)
	if err := s.bp.OnPreTake(jc.ctx, ac); err != nil {
		jc.logger.Warn().Err(err).Str("blueprint", s.bp.Name()).Msg("pre-take hook failed")
	}

	if cur != nil {
		syncInfiniteContinuations(s, m, cur, next)
		if pl.HoldState == models.HoldPending {
			extendOnHold(s, m, cur, next)
			m.SetHoldState(models.HoldActive)
		}
		cur.SetPlannedStoppedPlayback(&now)
	}

	takeCount := 0
	if cur != nil {
		takeCount = cur.PartInstance().TakeCount + 1
	}
	nextInfo := *pl.NextPartInfo
	var prevInfo *models.PartInfo
	if pl.CurrentPartInfo != nil {
		info := *pl.CurrentPartInfo
		prevInfo = &info
	}

	next.SetTaken(now, takeCount)
	m.SetPreviousPartInfo(prevInfo)
	m.SetCurrentPartInfo(&nextInfo)
	m.SetNextPartInfo(nil)
	m.SetNextTimeOffset(nil)
	m.SetLastTakeTime(now)
	if pl.StartedPlayback == nil {
		m.SetStartedPlayback(&now)
	}
	if nextInfo.ConsumesQueuedSegmentID {
		m.SetQueuedSegmentID("")
	}

	ql := quickloop.New(m)
	ql.UpdateProps(quickloop.SideNone)

	if err := s.bp.OnPostTake(jc.ctx, ac); err != nil {
		jc.logger.Warn().Err(err).Str("blueprint", s.bp.Name()).Msg("post-take hook failed")
	}

	if q := jc.queued; q != nil {
		jc.queued = nil
		s.setNextPartInstance(jc, m, queuedTarget(m, q), nextOptions{manual: true})
	} else {
		s.selectAndSetNext(jc, m, ql)
	}

	jc.logger.Info().
		Str("part_instance_id", nextInfo.PartInstanceID).
		Str("part_id", next.Part().ID).
		Bool("auto", auto).
		Msg("take")
	m.RequestTimelineUpdate()
	return nil
}

// selectAndSetNext runs automatic next selection from the current part.
func (s *Service) selectAndSetNext(jc *jobContext, m *model.PlayoutModel, ql *quickloop.Service) {
	var from *models.Part
	if cur := m.CurrentPartInstance(); cur != nil {
		from = cur.Part()
	}
	sel := selectNextPart(m, ql, from)
	if sel.part == nil {
		s.setNextPartInstance(jc, m, nil, nextOptions{})
		return
	}
	s.setNextPartInstance(jc, m, &nextTarget{part: sel.part}, nextOptions{consumesQueued: sel.consumesQueuedSegmentID})
}

// queuedTarget turns a part queued by an action into an adlib part placed
// right after the current one.
func queuedTarget(m *model.PlayoutModel, q *queuedPart) *nextTarget {
	part := q.part
	if cur := m.CurrentPartInstance(); cur != nil {
		curPart := cur.Part()
		part.RundownID = curPart.RundownID
		part.SegmentID = curPart.SegmentID
		part.Rank = curPart.Rank + 0.5
	}
	pieces := make([]models.Piece, len(q.pieces))
	for i, p := range q.pieces {
		p.StartPartID = part.ID
		p.StartSegmentID = part.SegmentID
		p.RundownID = part.RundownID
		pieces[i] = p
	}
	return &nextTarget{part: &part, pieces: pieces, orphaned: models.OrphanedAdlib}
}

// extendOnHold carries the ExtendOnHold pieces of cur into next, linked as
// infinites so the timeline keeps them running across the hold.
func extendOnHold(s *Service, m *model.PlayoutModel, cur, next *model.PartInstanceModel) {
	for _, pi := range cur.PieceInstances() {
		src := pi.PieceInstance()
		if !src.Piece.ExtendOnHold || src.Disabled || src.Infinite != nil {
			continue
		}
		pi.SetInfinite(&models.PieceInstanceInfinite{
			InfiniteInstanceID: s.newID(),
			InfinitePieceID:    src.Piece.ID,
		})
		next.InsertPieceInstance(continuation(s, m, next.ID(), *pi.PieceInstance()))
	}
}

// completeHold ends the hold: pieces extended into the on-air part stop now.
func completeHold(m *model.PlayoutModel, now int64) {
	m.SetHoldState(models.HoldComplete)
	cur := m.CurrentPartInstance()
	if cur == nil {
		return
	}
	start := now
	if v := cur.PartInstance().Timings.PlannedStartedPlayback; v != nil {
		start = *v
	}
	for _, pi := range cur.PieceInstances() {
		doc := pi.PieceInstance()
		if doc.Infinite == nil || !doc.Infinite.FromPreviousPart || !doc.Piece.ExtendOnHold || doc.Piece.IsInfinite() {
			continue
		}
		end := now - start
		pi.SetUserDuration(&models.PieceUserDuration{EndRelativeToPart: &end})
	}
}
