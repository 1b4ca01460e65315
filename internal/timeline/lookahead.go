/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"fmt"
	"sort"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

const (
	defaultLookaheadTarget   = 1
	defaultLookaheadDistance = 10

	lookaheadLayerSuffix = "_lookahead"
)

// LookaheadPiece is a piece considered for lookahead. InstanceID is empty
// for pieces of parts that have no instance yet.
type LookaheadPiece struct {
	InstanceID string
	Piece      models.Piece
}

// LookaheadPart is a part, instanced or planned, searched for lookahead.
type LookaheadPart struct {
	PartInstanceID string
	Part           models.Part
	Pieces         []LookaheadPiece
}

// LookaheadObject is one object found for a layer, with the part it came from.
type LookaheadObject struct {
	Object         models.TimelineObject
	PartID         string
	PartInstanceID string
}

// LookaheadResult splits found objects into those already on the timeline
// and those only previewed.
type LookaheadResult struct {
	Timed  []LookaheadObject
	Future []LookaheadObject
}

// LayerSearch is the input of FindLookaheadForLayer.
type LayerSearch struct {
	Layer     string
	Current   *LookaheadPart
	Next      *LookaheadPart
	NextTimed bool
	// NextTimeOffset applies to Next only.
	NextTimeOffset *int64
	Upcoming       []LookaheadPart

	TargetObjects     int
	MaxSearchDistance int
}

// Probe returns the lookahead objects of part on layer.
type Probe func(part *LookaheadPart, layer string, offset *int64) []LookaheadObject

// FindLookaheadForLayer collects objects for one layer from current, next
// and then the upcoming parts. Upcoming parts are searched until
// TargetObjects future objects are found or MaxSearchDistance parts (next
// included) have been passed. Parts without pieces still use up distance.
func FindLookaheadForLayer(s LayerSearch, probe Probe) LookaheadResult {
	if probe == nil {
		probe = FindObjectsForPart
	}
	var res LookaheadResult

	if s.Current != nil {
		res.Timed = append(res.Timed, probe(s.Current, s.Layer, nil)...)
	}
	if s.Next != nil {
		objs := probe(s.Next, s.Layer, s.NextTimeOffset)
		if s.NextTimed {
			res.Timed = append(res.Timed, objs...)
		} else {
			res.Future = append(res.Future, objs...)
		}
	}

	if s.MaxSearchDistance <= 1 || s.TargetObjects <= 0 {
		return res
	}
	limit := s.MaxSearchDistance - 1
	if limit > len(s.Upcoming) {
		limit = len(s.Upcoming)
	}
	for i := 0; i < limit; i++ {
		if len(res.Future) >= s.TargetObjects {
			break
		}
		part := &s.Upcoming[i]
		if len(part.Pieces) == 0 {
			continue
		}
		res.Future = append(res.Future, probe(part, s.Layer, nil)...)
	}
	return res
}

func pieceStart(p models.Piece) int64 {
	if p.Enable.StartNow {
		return 0
	}
	return p.Enable.Start
}

func hasObjectOnLayer(p models.Piece, layer string) bool {
	for _, o := range p.TimelineObjects {
		if o.Layer == layer {
			return true
		}
	}
	return false
}

// objectAnchor is the start of obj within its part, or false when obj has
// no numeric start to pre-roll from.
func objectAnchor(p models.Piece, obj models.TimelineObject) (int64, bool) {
	if obj.Enable.Start != nil {
		v, ok := obj.Enable.Start.Numeric()
		if !ok {
			return 0, false
		}
		return pieceStart(p) + v, true
	}
	if obj.Enable.While != nil {
		v, ok := obj.Enable.While.Numeric()
		if !ok {
			return 0, false
		}
		if v == 1 {
			v = 0
		}
		return pieceStart(p) + v, true
	}
	return 0, false
}

// filterByOffset drops pieces replaced before offset: the latest piece
// starting at or before offset survives along with every later one.
func filterByOffset(pieces []LookaheadPiece, offset int64) []LookaheadPiece {
	last := -1
	for i, p := range pieces {
		if pieceStart(p.Piece) <= offset {
			last = i
		}
	}
	if last <= 0 {
		return pieces
	}
	return pieces[last:]
}

// FindObjectsForPart is the default Probe.
func FindObjectsForPart(part *LookaheadPart, layer string, offset *int64) []LookaheadObject {
	if part == nil {
		return nil
	}
	var pieces []LookaheadPiece
	for _, p := range part.Pieces {
		if hasObjectOnLayer(p.Piece, layer) {
			pieces = append(pieces, p)
		}
	}
	sort.SliceStable(pieces, func(i, j int) bool {
		return pieceStart(pieces[i].Piece) < pieceStart(pieces[j].Piece)
	})
	if offset != nil {
		pieces = filterByOffset(pieces, *offset)
	}

	var out []LookaheadObject
	for _, p := range pieces {
		prefix := p.InstanceID
		if prefix == "" {
			prefix = "piece_" + p.Piece.ID
		}
		for _, o := range p.Piece.TimelineObjects {
			if o.Layer != layer {
				continue
			}
			anchor, ok := objectAnchor(p.Piece, o)
			if !ok {
				continue
			}
			obj := o.Clone()
			obj.ID = prefix + "_" + o.ID
			obj.PartID = part.Part.ID
			obj.PartInstanceID = part.PartInstanceID
			obj.PieceInstanceID = p.InstanceID
			if len(obj.AbSessions) == 0 && len(p.Piece.AbSessions) > 0 {
				obj.AbSessions = append([]models.AbSessionRef(nil), p.Piece.AbSessions...)
			}
			if offset != nil && *offset-anchor > 0 {
				v := *offset - anchor
				obj.LookaheadOffset = &v
			}
			out = append(out, LookaheadObject{Object: obj, PartID: part.Part.ID, PartInstanceID: part.PartInstanceID})
		}
	}
	return out
}

func lookaheadPartFromInstance(info *PartInstanceInfo) *LookaheadPart {
	if info == nil {
		return nil
	}
	lp := &LookaheadPart{PartInstanceID: info.Instance.ID, Part: info.Instance.Part}
	for _, pi := range info.Pieces {
		if pi.Disabled || pi.Reset {
			continue
		}
		lp.Pieces = append(lp.Pieces, LookaheadPiece{InstanceID: pi.ID, Piece: pi.Piece})
	}
	return lp
}

func lookaheadPartFromCandidate(c PartCandidate) LookaheadPart {
	lp := LookaheadPart{Part: c.Part}
	for _, p := range c.Pieces {
		lp.Pieces = append(lp.Pieces, LookaheadPiece{Piece: p})
	}
	return lp
}

// lookaheadObjects renders the future objects of one layer per its mode.
func lookaheadObjects(layer string, mode models.LookaheadMode, future []LookaheadObject) []models.TimelineObject {
	if len(future) == 0 {
		return nil
	}
	switch mode {
	case models.LookaheadPreload:
		out := make([]models.TimelineObject, 0, len(future))
		for i, lo := range future {
			obj := lookaheadBase(lo, layer)
			obj.ID = fmt.Sprintf("%s_lookahead_%d", lo.Object.ID, i)
			obj.Layer = layer + lookaheadLayerSuffix
			obj.Priority = 0.1 - float64(i)*0.001
			out = append(out, obj)
		}
		return out
	case models.LookaheadWhenClear:
		obj := lookaheadBase(future[0], layer)
		obj.ID = future[0].Object.ID + "_lookahead"
		obj.Layer = layer
		obj.Priority = 0
		return []models.TimelineObject{obj}
	default:
		return nil
	}
}

func lookaheadBase(lo LookaheadObject, layer string) models.TimelineObject {
	obj := lo.Object.Clone()
	obj.IsLookahead = true
	obj.LookaheadForLayer = layer
	obj.InGroup = ""
	obj.Enable = models.TimelineEnable{While: models.AtMs(1)}
	return obj
}

func mappingLimits(m models.LayerMapping) (target, distance int) {
	target, distance = m.LookaheadTargetObjects, m.LookaheadMaxSearchDistance
	if target <= 0 {
		target = defaultLookaheadTarget
	}
	if distance <= 0 {
		distance = defaultLookaheadDistance
	}
	return target, distance
}

// MaxSearchDistance is the longest lookahead search over the studio's
// mapped layers, which bounds how many upcoming parts Build can use.
func MaxSearchDistance(settings models.StudioSettings) int {
	longest := 0
	for _, m := range settings.Mappings {
		if m.LookaheadMode != models.LookaheadPreload && m.LookaheadMode != models.LookaheadWhenClear {
			continue
		}
		if _, d := mappingLimits(m); d > longest {
			longest = d
		}
	}
	return longest
}
