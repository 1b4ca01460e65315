/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
)

// GetOrderedPartsAfterPlayhead returns up to limit playable parts that follow
// the next part (or current, when nothing is next) in playout order. Inside a
// running QuickLoop the walk wraps to the loop start; otherwise it wraps only
// when the playlist loops.
func GetOrderedPartsAfterPlayhead(m *model.PlayoutModel, ql *quickloop.Service, limit int) []models.Part {
	if limit <= 0 {
		return nil
	}

	var ref *models.Part
	if next := m.NextPartInstance(); next != nil {
		ref = next.Part()
	} else if cur := m.CurrentPartInstance(); cur != nil {
		ref = cur.Part()
	}

	wrap := m.Playlist().Loop
	candidates := playableParts(m.GetAllOrderedParts())
	if ql.IsLoopRunning() {
		candidates = ql.PartsInLoop()
		wrap = true
	}
	if len(candidates) == 0 {
		return nil
	}

	startIdx := 0
	if ref != nil {
		startIdx = indexAfter(m, ql, candidates, ref)
		if startIdx >= len(candidates) {
			if !wrap {
				return nil
			}
			startIdx = 0
		}
	}

	out := make([]models.Part, 0, limit)
	for i := 0; i < len(candidates) && len(out) < limit; i++ {
		idx := startIdx + i
		if idx >= len(candidates) {
			if !wrap {
				break
			}
			idx -= len(candidates)
		}
		p := candidates[idx]
		if ref != nil && p.ID == ref.ID {
			break
		}
		out = append(out, p)
	}
	return out
}

func playableParts(parts []models.Part) []models.Part {
	out := make([]models.Part, 0, len(parts))
	for _, p := range parts {
		if p.Playable() {
			out = append(out, p)
		}
	}
	return out
}

// indexAfter returns the index of the first candidate after ref. Parts that
// are no longer in the playlist (orphaned instances) are placed by their
// segment and rank.
func indexAfter(m *model.PlayoutModel, ql *quickloop.Service, candidates []models.Part, ref *models.Part) int {
	for i := range candidates {
		if candidates[i].ID == ref.ID {
			return i + 1
		}
	}
	refPos, ok := ql.PartPosition(ref)
	if !ok {
		return len(candidates)
	}
	for i := range candidates {
		if pos, ok := ql.PartPosition(&candidates[i]); ok && quickloop.Compare(pos, refPos) > 0 {
			return i
		}
	}
	return len(candidates)
}

// nextSelection is the outcome of automatic next selection.
type nextSelection struct {
	part                    *models.Part
	consumesQueuedSegmentID bool
}

// selectNextPart picks what follows from (nil means the top of the
// playlist). A running QuickLoop wraps at its end; a queued segment replaces
// the jump to the following segment.
func selectNextPart(m *model.PlayoutModel, ql *quickloop.Service, from *models.Part) nextSelection {
	parts := playableParts(m.GetAllOrderedParts())
	pl := m.Playlist()

	if from == nil {
		if pl.QueuedSegmentID != "" {
			if p := firstPlayableInSegment(m, pl.QueuedSegmentID); p != nil {
				return nextSelection{part: p, consumesQueuedSegmentID: true}
			}
		}
		if len(parts) == 0 {
			return nextSelection{}
		}
		p, _ := m.FindPart(parts[0].ID)
		return nextSelection{part: p}
	}

	var natural *models.Part
	if ql.IsLoopRunning() {
		loop := ql.PartsInLoop()
		if idx := indexAfter(m, ql, loop, from); idx < len(loop) {
			natural, _ = m.FindPart(loop[idx].ID)
		} else if first, ok := ql.FirstPartInLoop(); ok {
			natural = first
		}
	} else {
		if idx := indexAfter(m, ql, parts, from); idx < len(parts) {
			natural, _ = m.FindPart(parts[idx].ID)
		} else if pl.Loop && len(parts) > 0 {
			natural, _ = m.FindPart(parts[0].ID)
		}
	}

	if pl.QueuedSegmentID != "" && (natural == nil || natural.SegmentID != from.SegmentID) {
		if p := firstPlayableInSegment(m, pl.QueuedSegmentID); p != nil {
			return nextSelection{part: p, consumesQueuedSegmentID: true}
		}
	}
	return nextSelection{part: natural}
}

func firstPlayableInSegment(m *model.PlayoutModel, segmentID string) *models.Part {
	for _, p := range m.GetAllOrderedParts() {
		if p.SegmentID == segmentID && p.Playable() {
			part, _ := m.FindPart(p.ID)
			return part
		}
	}
	return nil
}
