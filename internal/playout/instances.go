/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
)

// nextTarget is what setNextPartInstance makes next: a planned part, or an
// existing instance that can be reused.
type nextTarget struct {
	part     *models.Part
	instance *model.PartInstanceModel
	// pieces overrides the planned pieces, for parts queued by actions
	pieces   []models.Piece
	orphaned models.OrphanedReason
}

type nextOptions struct {
	manual         bool
	consumesQueued bool
	offset         *int64
}

// setNextPartInstance makes target the next part instance. A nil target
// clears next. An untaken next instance that is replaced is reset.
func (s *Service) setNextPartInstance(jc *jobContext, m *model.PlayoutModel, target *nextTarget, opts nextOptions) *model.PartInstanceModel {
	old := m.NextPartInstance()
	cur := m.CurrentPartInstance()

	if target == nil {
		if old != nil && !old.PartInstance().IsTaken {
			old.MarkReset()
		}
		m.SetNextPartInfo(nil)
		m.SetNextTimeOffset(nil)
		m.RequestTimelineUpdate()
		return nil
	}

	var next *model.PartInstanceModel
	switch {
	case target.instance != nil:
		next = target.instance
	case old != nil && target.part != nil && old.Part().ID == target.part.ID && !old.PartInstance().IsTaken && target.pieces == nil:
		// same part already next; keep its instance so adlibs stay
		next = old
	default:
		next = s.createPartInstance(jc, m, *target.part, target.pieces, target.orphaned)
	}

	if old != nil && old != next && !old.PartInstance().IsTaken {
		old.MarkReset()
	}

	if cur != nil && next != cur {
		syncInfiniteContinuations(s, m, cur, next)
	}

	doc := next.PartInstance()
	m.SetNextPartInfo(&models.PartInfo{
		PartInstanceID:          doc.ID,
		RundownID:               doc.RundownID,
		SegmentID:               doc.SegmentID,
		SegmentPlayoutID:        doc.SegmentPlayoutID,
		ManuallySelected:        opts.manual,
		ConsumesQueuedSegmentID: opts.consumesQueued,
	})
	m.SetNextTimeOffset(opts.offset)
	next.SetSetAsNext(jc.now)
	m.RequestTimelineUpdate()
	return next
}

// createPartInstance instantiates part with its planned pieces, or with
// pieces when given.
func (s *Service) createPartInstance(jc *jobContext, m *model.PlayoutModel, part models.Part, pieces []models.Piece, orphaned models.OrphanedReason) *model.PartInstanceModel {
	pl := m.Playlist()

	segmentPlayoutID := s.newID()
	if cur := m.CurrentPartInstance(); cur != nil && cur.PartInstance().SegmentID == part.SegmentID {
		segmentPlayoutID = cur.PartInstance().SegmentPlayoutID
	}

	doc := models.PartInstance{
		ID:                   s.newID(),
		PlaylistID:           pl.ID,
		RundownID:            part.RundownID,
		SegmentID:            part.SegmentID,
		SegmentPlayoutID:     segmentPlayoutID,
		PlaylistActivationID: pl.ActivationID,
		Rehearsal:            pl.Rehearsal,
		Orphaned:             orphaned,
		Part:                 part,
	}

	if pieces == nil {
		pieces = m.PiecesForPart(part.ID)
	}
	instances := make([]models.PieceInstance, 0, len(pieces))
	for _, p := range pieces {
		instances = append(instances, s.newPieceInstance(m, doc.ID, p, nil))
	}
	return m.AddPartInstance(doc, instances)
}

func (s *Service) newPieceInstance(m *model.PlayoutModel, partInstanceID string, p models.Piece, inserted *int64) models.PieceInstance {
	pl := m.Playlist()
	pi := models.PieceInstance{
		ID:                   s.newID(),
		PlaylistID:           pl.ID,
		RundownID:            p.RundownID,
		PartInstanceID:       partInstanceID,
		PlaylistActivationID: pl.ActivationID,
		DynamicallyInserted:  inserted,
		Piece:                p,
	}
	if p.IsInfinite() {
		pi.Infinite = &models.PieceInstanceInfinite{
			InfiniteInstanceID: s.newID(),
			InfinitePieceID:    p.ID,
		}
	}
	return pi
}

// continuesInto reports whether an infinite piece playing in from carries on
// into a part at to.
func continuesInto(p models.Piece, from, to *models.PartInstance) bool {
	switch p.Lifespan {
	case models.LifespanSegmentChange, models.LifespanSegmentEnd:
		return from.SegmentID == to.SegmentID
	case models.LifespanRundownChange, models.LifespanRundownEnd:
		return from.RundownID == to.RundownID
	case models.LifespanShowStyleEnd:
		return true
	}
	return false
}

// syncInfiniteContinuations makes next carry exactly the infinites of cur
// that live on into it. A planned piece of next on the same source layer
// ends the infinite.
func syncInfiniteContinuations(s *Service, m *model.PlayoutModel, cur, next *model.PartInstanceModel) {
	curDoc, nextDoc := cur.PartInstance(), next.PartInstance()

	ownLayers := make(map[string]bool)
	existing := make(map[string]*model.PieceInstanceModel)
	for _, pi := range next.PieceInstances() {
		doc := pi.PieceInstance()
		if doc.Infinite != nil && doc.Infinite.FromPreviousPart {
			existing[doc.Infinite.InfiniteInstanceID] = pi
			continue
		}
		ownLayers[doc.Piece.SourceLayerID] = true
	}

	wanted := make(map[string]bool)
	for _, pi := range cur.PieceInstances() {
		src := pi.PieceInstance()
		if src.Infinite == nil || src.Disabled {
			continue
		}
		if !continuesInto(src.Piece, curDoc, nextDoc) || ownLayers[src.Piece.SourceLayerID] {
			continue
		}
		if src.PlannedStoppedPlayback != nil || endedByUser(src) {
			continue
		}
		id := src.Infinite.InfiniteInstanceID
		wanted[id] = true
		if _, ok := existing[id]; ok {
			continue
		}
		next.InsertPieceInstance(continuation(s, m, nextDoc.ID, *src))
	}

	for id, pi := range existing {
		if !wanted[id] {
			pi.MarkReset()
		}
	}
}

func endedByUser(pi *models.PieceInstance) bool {
	return pi.UserDuration != nil && (pi.UserDuration.EndRelativeToPart != nil || pi.UserDuration.EndRelativeToNow != nil)
}

// continuation copies an infinite piece instance into another part instance,
// keeping its infinite identity and absolute start.
func continuation(s *Service, m *model.PlayoutModel, partInstanceID string, src models.PieceInstance) models.PieceInstance {
	pl := m.Playlist()
	inf := *src.Infinite
	inf.FromPreviousPart = true
	return models.PieceInstance{
		ID:                     s.newID(),
		PlaylistID:             pl.ID,
		RundownID:              src.RundownID,
		PartInstanceID:         partInstanceID,
		PlaylistActivationID:   pl.ActivationID,
		AdlibSourceID:          src.AdlibSourceID,
		DynamicallyInserted:    src.DynamicallyInserted,
		Piece:                  src.Piece,
		Infinite:               &inf,
		PlannedStartedPlayback: src.PlannedStartedPlayback,
	}
}
