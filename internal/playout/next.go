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

// SetNextRequest names what to set as next: a planned part or an existing
// part instance. NextTimeOffset starts the part part-way through.
type SetNextRequest struct {
	PartID         string `json:"partId,omitempty"`
	PartInstanceID string `json:"partInstanceId,omitempty"`
	NextTimeOffset *int64 `json:"nextTimeOffset,omitempty"`
}

// SetNextPart makes a part (or a reusable part instance) next.
func (s *Service) SetNextPart(ctx context.Context, playlistID string, req SetNextRequest) error {
	if (req.PartID == "") == (req.PartInstanceID == "") {
		return usererror.New(usererror.ValidationFailed, map[string]any{"reason": "exactly one of partId and partInstanceId is required"})
	}
	_, err := runJobWithPlayoutModel(ctx, s, "setNextPart", playlistID, requireNotInHold, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := requireNotInHold(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		target, err := resolveNextTarget(m, req)
		if err != nil {
			return struct{}{}, err
		}
		s.setNextPartInstance(jc, m, target, nextOptions{manual: true, offset: req.NextTimeOffset})
		quickloop.New(m).UpdateProps(quickloop.SideNone)
		return struct{}{}, nil
	})
	return err
}

func resolveNextTarget(m *model.PlayoutModel, req SetNextRequest) (*nextTarget, error) {
	if req.PartInstanceID != "" {
		inst := m.FindPartInstance(req.PartInstanceID)
		if inst == nil || inst.PartInstance().Reset {
			return nil, usererror.New(usererror.PartNotFound, map[string]any{"partInstanceId": req.PartInstanceID})
		}
		if !inst.Part().Playable() {
			return nil, usererror.New(usererror.PartNotPlayable, map[string]any{"partId": inst.Part().ID})
		}
		cur := m.CurrentPartInstance()
		if (cur == nil || cur.ID() != inst.ID()) && !inst.PartInstance().IsTaken {
			return &nextTarget{instance: inst}, nil
		}
		// a taken instance is played again as a fresh one
		part := *inst.Part()
		var pieces []models.Piece
		if inst.PartInstance().Orphaned == models.OrphanedAdlib {
			for _, pi := range inst.PieceInstances() {
				if doc := pi.PieceInstance(); doc.Infinite == nil || !doc.Infinite.FromPreviousPart {
					pieces = append(pieces, doc.Piece)
				}
			}
		}
		return &nextTarget{part: &part, pieces: pieces, orphaned: inst.PartInstance().Orphaned}, nil
	}

	part, ok := m.FindPart(req.PartID)
	if !ok {
		return nil, usererror.New(usererror.PartNotFound, map[string]any{"partId": req.PartID})
	}
	if !part.Playable() {
		return nil, usererror.New(usererror.PartNotPlayable, map[string]any{"partId": req.PartID})
	}
	return &nextTarget{part: part}, nil
}

// MoveNextPart moves next by partDelta playable parts or segmentDelta
// segments and returns the new next part id, or "" when nothing moved.
func (s *Service) MoveNextPart(ctx context.Context, playlistID string, partDelta, segmentDelta int, ignoreQuickLoop bool) (string, error) {
	if partDelta == 0 && segmentDelta == 0 {
		return "", usererror.New(usererror.ValidationFailed, map[string]any{"reason": "partDelta or segmentDelta must be non-zero"})
	}
	check := func(pl *models.RundownPlaylist) error {
		if err := requireNotInHold(pl); err != nil {
			return err
		}
		if pl.CurrentPartInfo == nil && pl.NextPartInfo == nil {
			return usererror.New(usererror.NoCurrentOrNextPart, nil)
		}
		return nil
	}
	return runJobWithPlayoutModel(ctx, s, "moveNextPart", playlistID, check, func(jc *jobContext, m *model.PlayoutModel) (string, error) {
		if err := check(m.Playlist()); err != nil {
			return "", err
		}
		ql := quickloop.New(m)
		target := moveTarget(m, ql, partDelta, segmentDelta, ignoreQuickLoop)
		if target == nil {
			return "", nil
		}
		s.setNextPartInstance(jc, m, &nextTarget{part: target}, nextOptions{manual: true})
		ql.UpdateProps(quickloop.SideNone)
		return target.ID, nil
	})
}

// moveTarget finds the part delta steps from the reference part (next, or
// current when nothing is next).
func moveTarget(m *model.PlayoutModel, ql *quickloop.Service, partDelta, segmentDelta int, ignoreQuickLoop bool) *models.Part {
	var ref *models.Part
	if next := m.NextPartInstance(); next != nil {
		ref = next.Part()
	} else if cur := m.CurrentPartInstance(); cur != nil {
		ref = cur.Part()
	}
	if ref == nil {
		return nil
	}

	inLoop := !ignoreQuickLoop && ql.IsLoopRunning()
	parts := playableParts(m.GetAllOrderedParts())
	if inLoop {
		parts = ql.PartsInLoop()
	}
	if len(parts) == 0 {
		return nil
	}

	if segmentDelta != 0 {
		return moveBySegment(m, parts, ref, segmentDelta)
	}

	idx := -1
	for i := range parts {
		if parts[i].ID == ref.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// orphaned reference: step from where it would sit
		idx = indexAfter(m, ql, parts, ref)
		if partDelta > 0 {
			idx--
		}
	}
	target := idx + partDelta
	if inLoop {
		n := len(parts)
		target = ((target % n) + n) % n
	}
	if target < 0 || target >= len(parts) {
		return nil
	}
	p, _ := m.FindPart(parts[target].ID)
	return p
}

// moveBySegment steps through segments that hold at least one candidate part
// and returns the first candidate of the target segment.
func moveBySegment(m *model.PlayoutModel, parts []models.Part, ref *models.Part, delta int) *models.Part {
	var segments []string
	first := make(map[string]string)
	for _, p := range parts {
		if _, ok := first[p.SegmentID]; !ok {
			first[p.SegmentID] = p.ID
			segments = append(segments, p.SegmentID)
		}
	}

	idx := -1
	for i, id := range segments {
		if id == ref.SegmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		ordered := m.OrderedSegments()
		rank := make(map[string]int, len(ordered))
		for i, seg := range ordered {
			rank[seg.ID] = i
		}
		refRank, ok := rank[ref.SegmentID]
		if !ok {
			return nil
		}
		idx = len(segments)
		for i, id := range segments {
			if rank[id] > refRank {
				idx = i
				break
			}
		}
		if delta > 0 {
			idx--
		}
	}

	target := idx + delta
	if target < 0 || target >= len(segments) {
		return nil
	}
	p, _ := m.FindPart(first[segments[target]])
	return p
}

// SetNextSegment makes the first playable part of segmentID next.
func (s *Service) SetNextSegment(ctx context.Context, playlistID, segmentID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "setNextSegment", playlistID, requireNotInHold, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := requireNotInHold(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		if _, ok := m.FindSegment(segmentID); !ok {
			return struct{}{}, usererror.New(usererror.SegmentNotFound, map[string]any{"segmentId": segmentID})
		}
		part := firstPlayableInSegment(m, segmentID)
		if part == nil {
			return struct{}{}, usererror.New(usererror.PartNotFound, map[string]any{"segmentId": segmentID})
		}
		m.SetQueuedSegmentID("")
		s.setNextPartInstance(jc, m, &nextTarget{part: part}, nextOptions{manual: true})
		quickloop.New(m).UpdateProps(quickloop.SideNone)
		return struct{}{}, nil
	})
	return err
}

// QueueNextSegment records segmentID to play after the current segment. An
// empty id clears the queue. If next already leaves the current segment it
// is replaced right away.
func (s *Service) QueueNextSegment(ctx context.Context, playlistID, segmentID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "queueNextSegment", playlistID, requireNotInHold, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := requireNotInHold(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		if segmentID != "" {
			if _, ok := m.FindSegment(segmentID); !ok {
				return struct{}{}, usererror.New(usererror.SegmentNotFound, map[string]any{"segmentId": segmentID})
			}
			if firstPlayableInSegment(m, segmentID) == nil {
				return struct{}{}, usererror.New(usererror.PartNotFound, map[string]any{"segmentId": segmentID})
			}
		}

		m.SetQueuedSegmentID(segmentID)

		cur, next := m.CurrentPartInstance(), m.NextPartInstance()
		nextInfo := m.Playlist().NextPartInfo
		switch {
		case segmentID == "":
			if nextInfo != nil && nextInfo.ConsumesQueuedSegmentID {
				s.selectAndSetNext(jc, m, quickloop.New(m))
			}
		case cur == nil:
			s.selectAndSetNext(jc, m, quickloop.New(m))
		case next == nil || next.PartInstance().SegmentID != cur.PartInstance().SegmentID || nextInfo.ConsumesQueuedSegmentID:
			s.selectAndSetNext(jc, m, quickloop.New(m))
		}
		return struct{}{}, nil
	})
	return err
}
