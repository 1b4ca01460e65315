/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"sort"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Build generates the timeline objects of a studio. An inactive input gets
// the baseline only.
func Build(in Input) []models.TimelineObject {
	var objs []models.TimelineObject
	for _, o := range in.Settings.Baseline {
		objs = append(objs, o.Clone())
	}
	if !in.Active {
		return objs
	}

	if in.Current != nil {
		cur := in.Current
		curGroup := partGroupID(cur.Instance.ID)
		curStart, hasStart := partStartedAt(cur.Instance)

		if prev := in.Previous; prev != nil {
			if prevStart, ok := partStartedAt(prev.Instance); ok {
				keepalive := int64(0)
				if t := cur.Instance.Part.InTransition; t != nil {
					keepalive = t.PreviousPartKeepaliveDurationMs
				}
				continued := continuedInfinites(cur)
				objs = append(objs, partObjects(&in, prev, models.TimelineEnable{
					Start: models.AtMs(prevStart),
					End:   groupRef(curGroup, "start", keepalive),
				}, prevStart, true, func(pi *models.PieceInstance) bool {
					return continued[pi.InfiniteInstanceID()]
				})...)
			}
		}

		enable := models.TimelineEnable{Start: models.NowTime()}
		if hasStart {
			enable.Start = models.AtMs(curStart)
		}
		if in.CurrentAutoNext != nil {
			d := *in.CurrentAutoNext
			enable.Duration = &d
		}
		objs = append(objs, partObjects(&in, cur, enable, curStart, hasStart, func(pi *models.PieceInstance) bool {
			return pi.Infinite != nil
		})...)
		objs = append(objs, infiniteObjects(&in, cur, curStart, hasStart)...)

		if in.nextTimed() {
			next := in.Next
			objs = append(objs, partObjects(&in, next, models.TimelineEnable{
				Start: groupRef(curGroup, "end", -cur.Instance.Part.AutoNextOverlap),
			}, 0, false, func(pi *models.PieceInstance) bool {
				return pi.Infinite != nil && pi.Infinite.FromPreviousPart
			})...)
		}
	}

	return append(objs, buildLookahead(&in)...)
}

func partStartedAt(pi models.PartInstance) (int64, bool) {
	switch {
	case pi.Timings.PlannedStartedPlayback != nil:
		return *pi.Timings.PlannedStartedPlayback, true
	case pi.Timings.ReportedStartedPlayback != nil:
		return *pi.Timings.ReportedStartedPlayback, true
	default:
		return 0, false
	}
}

func continuedInfinites(cur *PartInstanceInfo) map[string]bool {
	out := make(map[string]bool)
	for i := range cur.Pieces {
		if id := cur.Pieces[i].InfiniteInstanceID(); id != "" && !cur.Pieces[i].Reset {
			out[id] = true
		}
	}
	return out
}

func playable(pi *models.PieceInstance) bool {
	return !pi.Disabled && !pi.Reset && !pi.Piece.Virtual
}

func visibleInHold(in *Input, o models.TimelineObject) bool {
	switch o.HoldMode {
	case models.HoldModeExcept:
		return !in.inHold()
	case models.HoldModeOnly:
		return in.inHold()
	default:
		return true
	}
}

// pieceEnable places a piece within its part group. partStart is absolute
// and only meaningful when hasStart.
func pieceEnable(in *Input, pi *models.PieceInstance, partStart int64, hasStart bool) models.TimelineEnable {
	var e models.TimelineEnable
	switch {
	case pi.Piece.Enable.StartNow && pi.DynamicallyInserted != nil && hasStart:
		rel := *pi.DynamicallyInserted - partStart
		if rel < 0 {
			rel = 0
		}
		e.Start = models.AtMs(rel)
	case pi.Piece.Enable.StartNow:
		e.Start = models.NowTime()
	default:
		e.Start = models.AtMs(pi.Piece.Enable.Start)
	}
	if pi.Piece.Enable.Duration != nil {
		d := *pi.Piece.Enable.Duration
		e.Duration = &d
	}
	if ud := pi.UserDuration; ud != nil {
		switch {
		case ud.EndRelativeToPart != nil:
			e.End = models.AtMs(*ud.EndRelativeToPart)
			e.Duration = nil
		case ud.EndRelativeToNow != nil && hasStart:
			e.End = models.AtMs(in.Now - partStart + *ud.EndRelativeToNow)
			e.Duration = nil
		}
	}
	return e
}

// pieceObjects renders the group of one piece instance and its content.
// idPrefix keys content ids so continuations keep their identity.
func pieceObjects(in *Input, pi *models.PieceInstance, partID, groupID, parentID, idPrefix string, enable models.TimelineEnable) []models.TimelineObject {
	group := models.TimelineObject{
		ID:              groupID,
		Enable:          enable,
		Layer:           pi.Piece.SourceLayerID,
		InGroup:         parentID,
		IsGroup:         true,
		Content:         models.TimelineContent{Kind: models.ContentGroup},
		PartInstanceID:  pi.PartInstanceID,
		PieceInstanceID: pi.ID,
	}
	if pi.Infinite != nil {
		group.InfinitePieceInstanceID = pi.Infinite.InfiniteInstanceID
	}

	out := []models.TimelineObject{group}
	for _, o := range pi.Piece.TimelineObjects {
		if !visibleInHold(in, o) {
			continue
		}
		obj := o.Clone()
		obj.ID = idPrefix + "_" + o.ID
		obj.InGroup = groupID
		obj.PartID = partID
		obj.PartInstanceID = pi.PartInstanceID
		obj.PieceInstanceID = pi.ID
		obj.InfinitePieceInstanceID = group.InfinitePieceInstanceID
		if len(obj.AbSessions) == 0 && len(pi.Piece.AbSessions) > 0 {
			obj.AbSessions = append([]models.AbSessionRef(nil), pi.Piece.AbSessions...)
		}
		out[0].Children = append(out[0].Children, obj.ID)
		out = append(out, obj)
	}
	return out
}

// partObjects renders a part group and the pieces skip does not reject.
func partObjects(in *Input, info *PartInstanceInfo, enable models.TimelineEnable, partStart int64, hasStart bool, skip func(*models.PieceInstance) bool) []models.TimelineObject {
	groupID := partGroupID(info.Instance.ID)
	group := models.TimelineObject{
		ID:             groupID,
		Enable:         enable,
		IsGroup:        true,
		Content:        models.TimelineContent{Kind: models.ContentGroup},
		PartInstanceID: info.Instance.ID,
	}
	out := []models.TimelineObject{group}
	for i := range info.Pieces {
		pi := &info.Pieces[i]
		if !playable(pi) || skip(pi) {
			continue
		}
		pgID := pieceGroupID(pi.ID)
		out[0].Children = append(out[0].Children, pgID)
		out = append(out, pieceObjects(in, pi, info.Instance.Part.ID, pgID, groupID, pi.ID, pieceEnable(in, pi, partStart, hasStart))...)
	}
	return out
}

// infiniteObjects renders infinite pieces of current outside the part group
// so a take does not restart them.
func infiniteObjects(in *Input, cur *PartInstanceInfo, partStart int64, hasStart bool) []models.TimelineObject {
	var out []models.TimelineObject
	for i := range cur.Pieces {
		pi := &cur.Pieces[i]
		if pi.Infinite == nil || !playable(pi) {
			continue
		}
		infID := pi.Infinite.InfiniteInstanceID
		var e models.TimelineEnable
		switch {
		case pi.PlannedStartedPlayback != nil:
			e.Start = models.AtMs(*pi.PlannedStartedPlayback)
		case hasStart:
			e.Start = models.AtMs(partStart + pieceStart(pi.Piece))
		default:
			e.Start = models.NowTime()
		}
		if pi.Piece.Enable.Duration != nil {
			d := *pi.Piece.Enable.Duration
			e.Duration = &d
		}
		if ud := pi.UserDuration; ud != nil && hasStart {
			switch {
			case ud.EndRelativeToPart != nil:
				e.End = models.AtMs(partStart + *ud.EndRelativeToPart)
				e.Duration = nil
			case ud.EndRelativeToNow != nil:
				e.End = models.AtMs(in.Now + *ud.EndRelativeToNow)
				e.Duration = nil
			}
		}
		out = append(out, pieceObjects(in, pi, cur.Instance.Part.ID, infiniteGroupID(infID), "", infID, e)...)
	}
	return out
}

func buildLookahead(in *Input) []models.TimelineObject {
	if !in.Active || len(in.Settings.Mappings) == 0 {
		return nil
	}
	layers := make([]string, 0, len(in.Settings.Mappings))
	for layer, m := range in.Settings.Mappings {
		if m.LookaheadMode == models.LookaheadPreload || m.LookaheadMode == models.LookaheadWhenClear {
			layers = append(layers, layer)
		}
	}
	sort.Strings(layers)

	upcoming := make([]LookaheadPart, 0, len(in.Upcoming))
	for _, c := range in.Upcoming {
		upcoming = append(upcoming, lookaheadPartFromCandidate(c))
	}
	current := lookaheadPartFromInstance(in.Current)
	next := lookaheadPartFromInstance(in.Next)

	var out []models.TimelineObject
	for _, layer := range layers {
		m := in.Settings.Mappings[layer]
		target, distance := mappingLimits(m)
		res := FindLookaheadForLayer(LayerSearch{
			Layer:             layer,
			Current:           current,
			Next:              next,
			NextTimed:         in.nextTimed(),
			NextTimeOffset:    in.NextTimeOffset,
			Upcoming:          upcoming,
			TargetObjects:     target,
			MaxSearchDistance: distance,
		}, nil)
		out = append(out, lookaheadObjects(layer, m.LookaheadMode, res.Future)...)
	}
	return out
}
