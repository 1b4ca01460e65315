/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package quickloop tracks an operator-defined loop region of a playlist.
//
// Markers reduce to a position (rundown, segment, part). The region is the
// inclusive range between the start and end positions. A start position
// after the end position makes the region ambiguous; callers must not read
// that as "outside".
package quickloop

import (
	"math"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// Side selects the start or end marker.
type Side string

const (
	SideNone  Side = ""
	SideStart Side = "start"
	SideEnd   Side = "end"
)

// Membership is the tri-state answer of IsPartWithinQuickLoop.
type Membership int

const (
	Outside Membership = iota
	Inside
	Ambiguous // markers flipped, cannot determine
)

func (m Membership) String() string {
	switch m {
	case Inside:
		return "inside"
	case Ambiguous:
		return "ambiguous"
	default:
		return "outside"
	}
}

// Position orders markers and parts across the playlist.
type Position struct {
	Rundown float64
	Segment float64
	Part    float64
}

var (
	minPosition = Position{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	maxPosition = Position{math.Inf(1), math.Inf(1), math.Inf(1)}
)

// Compare returns -1, 0 or 1 ordering a before, equal to or after b.
func Compare(a, b Position) int {
	for _, pair := range [][2]float64{{a.Rundown, b.Rundown}, {a.Segment, b.Segment}, {a.Part, b.Part}} {
		switch {
		case pair[0] < pair[1]:
			return -1
		case pair[0] > pair[1]:
			return 1
		}
	}
	return 0
}

// Within classifies p against the region [start, end].
func Within(start, end, p Position) Membership {
	if Compare(start, end) > 0 {
		return Ambiguous
	}
	if Compare(start, p) <= 0 && Compare(p, end) <= 0 {
		return Inside
	}
	return Outside
}

// Service evaluates and edits the QuickLoop of one loaded playlist.
type Service struct {
	m *model.PlayoutModel
}

// New binds a service to m.
func New(m *model.PlayoutModel) *Service {
	return &Service{m: m}
}

func (s *Service) props() *models.QuickLoopProps {
	return s.m.Playlist().QuickLoop
}

// MarkerPosition resolves marker for the given side. Unresolvable markers
// fall back to the outermost position of that side.
func (s *Service) MarkerPosition(marker *models.QuickLoopMarker, side Side) Position {
	fallback := minPosition
	edge := math.Inf(-1)
	if side == SideEnd {
		fallback = maxPosition
		edge = math.Inf(1)
	}
	if marker == nil {
		return fallback
	}

	switch marker.Type {
	case models.MarkerPlaylist:
		return fallback
	case models.MarkerRundown:
		rank := s.m.RundownRank(marker.ID)
		if rank < 0 {
			return fallback
		}
		return Position{float64(rank), edge, edge}
	case models.MarkerSegment:
		seg, ok := s.m.FindSegment(marker.ID)
		if !ok {
			return fallback
		}
		rank := s.m.RundownRank(seg.RundownID)
		if rank < 0 {
			return fallback
		}
		return Position{float64(rank), seg.Rank, edge}
	case models.MarkerPart:
		part, ok := s.m.FindPart(marker.ID)
		if !ok {
			return fallback
		}
		pos, ok := s.PartPosition(part)
		if !ok {
			return fallback
		}
		return pos
	}
	return fallback
}

// PartPosition returns the position of a part, or false when its segment or
// rundown is not in the playlist.
func (s *Service) PartPosition(part *models.Part) (Position, bool) {
	seg, ok := s.m.FindSegment(part.SegmentID)
	if !ok {
		return Position{}, false
	}
	rank := s.m.RundownRank(seg.RundownID)
	if rank < 0 {
		return Position{}, false
	}
	return Position{float64(rank), seg.Rank, part.Rank}, true
}

// IsPartWithinQuickLoop classifies part against the current loop region.
func (s *Service) IsPartWithinQuickLoop(part *models.Part) Membership {
	return s.isPartWithin(s.props(), part)
}

func (s *Service) isPartWithin(props *models.QuickLoopProps, part *models.Part) Membership {
	if props == nil || props.Start == nil || props.End == nil || part == nil {
		return Outside
	}
	start := s.MarkerPosition(props.Start, SideStart)
	end := s.MarkerPosition(props.End, SideEnd)
	if Compare(start, end) > 0 {
		return Ambiguous
	}
	pos, ok := s.PartPosition(part)
	if !ok {
		return Outside
	}
	return Within(start, end, pos)
}

// IsLoopRunning reports whether the playhead is inside the loop.
func (s *Service) IsLoopRunning() bool {
	p := s.props()
	return p != nil && p.Running
}

// GetUpdatedProps recomputes the loop state after a playout change. justSet
// names the marker the operator just moved, if any. A loop that was running
// and no longer is gets cleared.
func (s *Service) GetUpdatedProps(justSet Side) *models.QuickLoopProps {
	current := s.props()
	if current == nil {
		return nil
	}
	props := *current
	wasRunning := props.Running

	if props.Start != nil && props.End != nil {
		start := s.MarkerPosition(props.Start, SideStart)
		end := s.MarkerPosition(props.End, SideEnd)
		if Compare(start, end) > 0 {
			switch justSet {
			case SideStart:
				props.End = nil
			case SideEnd:
				props.Start = nil
			}
		}
	}

	props.Running = false
	if s.m.Studio().Settings.EnableQuickLoop && props.Start != nil && props.End != nil {
		if cur := s.m.CurrentPartInstance(); cur != nil {
			props.Running = s.isPartWithin(&props, cur.Part()) == Inside
		}
	}
	props.Locked = props.Running

	if props.Running {
		props.ForceAutoNext = s.m.Studio().Settings.ForceQuickLoopAutoNext
	} else {
		props.ForceAutoNext = models.ForceAutoNextDisabled
	}

	if wasRunning && !props.Running {
		return &models.QuickLoopProps{ForceAutoNext: models.ForceAutoNextDisabled}
	}
	return &props
}

// UpdateProps stores GetUpdatedProps on the playlist and reports a change.
func (s *Service) UpdateProps(justSet Side) bool {
	return s.m.SetQuickLoop(s.GetUpdatedProps(justSet))
}

// SetMarker moves one marker. While the loop is locked the new region must
// still contain the on-air part.
func (s *Service) SetMarker(side Side, marker *models.QuickLoopMarker) error {
	if !s.m.Studio().Settings.EnableQuickLoop {
		return usererror.New(usererror.QuickLoopDisabled, nil)
	}
	if marker != nil {
		if err := s.validateMarker(marker); err != nil {
			return err
		}
	}

	var props models.QuickLoopProps
	if cur := s.props(); cur != nil {
		props = *cur
	} else {
		props.ForceAutoNext = models.ForceAutoNextDisabled
	}
	switch side {
	case SideStart:
		props.Start = marker
	case SideEnd:
		props.End = marker
	default:
		return usererror.New(usererror.ValidationFailed, map[string]any{"side": string(side)})
	}

	if props.Locked {
		cur := s.m.CurrentPartInstance()
		if cur != nil && s.isPartWithin(&props, cur.Part()) != Inside {
			return usererror.New(usererror.QuickLoopLocked, nil)
		}
	}

	s.m.SetQuickLoop(&props)
	s.UpdateProps(side)
	return nil
}

// ClearMarker removes one marker. It fails while the loop is locked; ClearAll
// always succeeds.
func (s *Service) ClearMarker(side Side) error {
	return s.SetMarker(side, nil)
}

// ClearAll removes both markers. Calling it on a playlist without a loop is
// a no-op.
func (s *Service) ClearAll() {
	if s.props() == nil {
		return
	}
	s.m.SetQuickLoop(&models.QuickLoopProps{ForceAutoNext: models.ForceAutoNextDisabled})
}

func (s *Service) validateMarker(marker *models.QuickLoopMarker) error {
	switch marker.Type {
	case models.MarkerPlaylist:
		return nil
	case models.MarkerRundown:
		if s.m.RundownRank(marker.ID) < 0 {
			return usererror.New(usererror.RundownNotFound, map[string]any{"rundownId": marker.ID})
		}
	case models.MarkerSegment:
		if _, ok := s.m.FindSegment(marker.ID); !ok {
			return usererror.New(usererror.SegmentNotFound, map[string]any{"segmentId": marker.ID})
		}
	case models.MarkerPart:
		if _, ok := s.m.FindPart(marker.ID); !ok {
			return usererror.New(usererror.PartNotFound, map[string]any{"partId": marker.ID})
		}
	default:
		return usererror.New(usererror.ValidationFailed, map[string]any{"markerType": string(marker.Type)})
	}
	return nil
}

// ShouldForceAutoNext reports whether the running loop overrides part
// autoNext settings.
func (s *Service) ShouldForceAutoNext() bool {
	p := s.props()
	return p != nil && p.Running && p.ForceAutoNext != "" && p.ForceAutoNext != models.ForceAutoNextDisabled
}

// AutoNextDuration returns how long part plays before advancing on its own,
// and false when it waits for an operator take.
func (s *Service) AutoNextDuration(part *models.Part) (int64, bool) {
	expected := int64(0)
	if part.ExpectedDuration != nil {
		expected = *part.ExpectedDuration
	}

	if !s.ShouldForceAutoNext() {
		return expected, part.AutoNext && expected > 0
	}

	switch s.props().ForceAutoNext {
	case models.ForceAutoNextWhenValidDuration:
		return expected, expected > 0
	case models.ForceAutoNextForcingMinDuration:
		if floor := s.m.Studio().Settings.FallbackPartDurationMs; expected < floor {
			expected = floor
		}
		return expected, expected > 0
	}
	return expected, part.AutoNext && expected > 0
}

// PartsInLoop returns the playable parts inside the region in playout order.
// An ambiguous region contains nothing.
func (s *Service) PartsInLoop() []models.Part {
	var out []models.Part
	for _, p := range s.m.GetAllOrderedParts() {
		p := p
		if p.Playable() && s.IsPartWithinQuickLoop(&p) == Inside {
			out = append(out, p)
		}
	}
	return out
}

// FirstPartInLoop returns the first playable part of the region.
func (s *Service) FirstPartInLoop() (*models.Part, bool) {
	for _, p := range s.m.GetAllOrderedParts() {
		p := p
		if p.Playable() && s.IsPartWithinQuickLoop(&p) == Inside {
			return s.m.FindPart(p.ID)
		}
	}
	return nil, false
}
