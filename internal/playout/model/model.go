/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package model holds the per-job working copy of one playlist.
package model

import (
	"fmt"
	"sort"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Data is everything the store loads for one playout job.
type Data struct {
	Studio         *models.Studio
	Playlist       *models.RundownPlaylist
	Rundowns       []models.Rundown
	Segments       []models.Segment
	Parts          []models.Part
	Pieces         []models.Piece
	PartInstances  []models.PartInstance
	PieceInstances []models.PieceInstance
}

// PlayoutModel is a mutable snapshot of a playlist, loaded fresh per job.
// Mutations go through tracked setters; ChangeSet lists what to write.
type PlayoutModel struct {
	studio   *models.Studio
	playlist models.RundownPlaylist
	tracker  ChangeTracker

	rundowns []models.Rundown
	segments []models.Segment
	parts    []models.Part
	pieces   map[string][]models.Piece // by start part id

	rundownRank map[string]int
	segmentByID map[string]*models.Segment
	partByID    map[string]*models.Part

	instances []*PartInstanceModel

	timelineRequested bool
}

// New builds a model from loaded data. Rundowns follow the playlist's
// RundownIDsInOrder; rundowns missing from that list sort last by id.
func New(d *Data) (*PlayoutModel, error) {
	if d == nil || d.Playlist == nil {
		return nil, fmt.Errorf("playout data has no playlist")
	}
	if d.Studio == nil {
		return nil, fmt.Errorf("playout data for playlist %s has no studio", d.Playlist.ID)
	}

	m := &PlayoutModel{
		studio:      d.Studio,
		playlist:    *d.Playlist,
		pieces:      make(map[string][]models.Piece),
		rundownRank: make(map[string]int),
		segmentByID: make(map[string]*models.Segment),
		partByID:    make(map[string]*models.Part),
	}

	for i, id := range m.playlist.RundownIDsInOrder {
		m.rundownRank[id] = i
	}
	m.rundowns = append([]models.Rundown(nil), d.Rundowns...)
	sort.SliceStable(m.rundowns, func(i, j int) bool {
		ri, iok := m.rundownRank[m.rundowns[i].ID]
		rj, jok := m.rundownRank[m.rundowns[j].ID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return m.rundowns[i].ID < m.rundowns[j].ID
		}
	})
	for i, rd := range m.rundowns {
		m.rundownRank[rd.ID] = i
	}

	m.segments = append([]models.Segment(nil), d.Segments...)
	sort.SliceStable(m.segments, func(i, j int) bool {
		a, b := m.segments[i], m.segments[j]
		if ra, rb := m.rundownRank[a.RundownID], m.rundownRank[b.RundownID]; ra != rb {
			return ra < rb
		}
		return a.Rank < b.Rank
	})
	segmentRank := make(map[string]int, len(m.segments))
	for i := range m.segments {
		segmentRank[m.segments[i].ID] = i
		m.segmentByID[m.segments[i].ID] = &m.segments[i]
	}

	m.parts = make([]models.Part, 0, len(d.Parts))
	for _, p := range d.Parts {
		if _, ok := m.segmentByID[p.SegmentID]; ok {
			m.parts = append(m.parts, p)
		}
	}
	sort.SliceStable(m.parts, func(i, j int) bool {
		a, b := m.parts[i], m.parts[j]
		if sa, sb := segmentRank[a.SegmentID], segmentRank[b.SegmentID]; sa != sb {
			return sa < sb
		}
		return a.Rank < b.Rank
	})
	for i := range m.parts {
		m.partByID[m.parts[i].ID] = &m.parts[i]
	}

	for _, p := range d.Pieces {
		m.pieces[p.StartPartID] = append(m.pieces[p.StartPartID], p)
	}
	for id := range m.pieces {
		list := m.pieces[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Enable.Start < list[j].Enable.Start })
	}

	piecesByInstance := make(map[string][]models.PieceInstance)
	for _, pi := range d.PieceInstances {
		piecesByInstance[pi.PartInstanceID] = append(piecesByInstance[pi.PartInstanceID], pi)
	}
	for _, inst := range d.PartInstances {
		m.instances = append(m.instances, newPartInstanceModel(inst, piecesByInstance[inst.ID], false))
	}

	return m, nil
}

// Studio returns the owning studio.
func (m *PlayoutModel) Studio() *models.Studio { return m.studio }

// Playlist returns the current playlist document. Callers must not mutate it.
func (m *PlayoutModel) Playlist() *models.RundownPlaylist { return &m.playlist }

// Rundowns returns rundowns in playlist order.
func (m *PlayoutModel) Rundowns() []models.Rundown { return m.rundowns }

// RundownRank returns the playlist position of a rundown, or -1.
func (m *PlayoutModel) RundownRank(id string) int {
	if r, ok := m.rundownRank[id]; ok {
		return r
	}
	return -1
}

// OrderedSegments returns segments across rundowns in playout order.
func (m *PlayoutModel) OrderedSegments() []models.Segment { return m.segments }

// GetAllOrderedParts returns every part in playout order, playable or not.
func (m *PlayoutModel) GetAllOrderedParts() []models.Part { return m.parts }

// FindPart looks up a part by id.
func (m *PlayoutModel) FindPart(id string) (*models.Part, bool) {
	p, ok := m.partByID[id]
	return p, ok
}

// FindSegment looks up a segment by id.
func (m *PlayoutModel) FindSegment(id string) (*models.Segment, bool) {
	s, ok := m.segmentByID[id]
	return s, ok
}

// PiecesForPart returns the planned pieces starting in partID.
func (m *PlayoutModel) PiecesForPart(partID string) []models.Piece {
	return m.pieces[partID]
}

// PartInstances returns every loaded part instance, reset or not.
func (m *PlayoutModel) PartInstances() []*PartInstanceModel { return m.instances }

// FindPartInstance looks up a loaded part instance.
func (m *PlayoutModel) FindPartInstance(id string) *PartInstanceModel {
	if id == "" {
		return nil
	}
	for _, inst := range m.instances {
		if inst.doc.ID == id {
			return inst
		}
	}
	return nil
}

func (m *PlayoutModel) instanceFor(info *models.PartInfo) *PartInstanceModel {
	if info == nil {
		return nil
	}
	return m.FindPartInstance(info.PartInstanceID)
}

// CurrentPartInstance returns the on-air instance, if any.
func (m *PlayoutModel) CurrentPartInstance() *PartInstanceModel {
	return m.instanceFor(m.playlist.CurrentPartInfo)
}

// NextPartInstance returns the next instance, if any.
func (m *PlayoutModel) NextPartInstance() *PartInstanceModel {
	return m.instanceFor(m.playlist.NextPartInfo)
}

// PreviousPartInstance returns the instance taken before current, if any.
func (m *PlayoutModel) PreviousPartInstance() *PartInstanceModel {
	return m.instanceFor(m.playlist.PreviousPartInfo)
}

// AddPartInstance registers an instance created during this job.
func (m *PlayoutModel) AddPartInstance(doc models.PartInstance, pieces []models.PieceInstance) *PartInstanceModel {
	inst := newPartInstanceModel(doc, pieces, true)
	m.instances = append(m.instances, inst)
	return inst
}

// RequestTimelineUpdate marks that the job must regenerate the timeline
// before committing.
func (m *PlayoutModel) RequestTimelineUpdate() { m.timelineRequested = true }

// TimelineRequested reports whether RequestTimelineUpdate was called.
func (m *PlayoutModel) TimelineRequested() bool { return m.timelineRequested }

func (m *PlayoutModel) SetActivation(activationID string, rehearsal bool) {
	CompareAndSet(&m.tracker, "activationId", &m.playlist.ActivationID, activationID)
	CompareAndSet(&m.tracker, "rehearsal", &m.playlist.Rehearsal, rehearsal)
}

func (m *PlayoutModel) SetHoldState(v models.HoldState) bool {
	return CompareAndSet(&m.tracker, "holdState", &m.playlist.HoldState, v)
}

func (m *PlayoutModel) SetCurrentPartInfo(v *models.PartInfo) bool {
	return CompareAndSetDeep(&m.tracker, "currentPartInfo", &m.playlist.CurrentPartInfo, v)
}

func (m *PlayoutModel) SetNextPartInfo(v *models.PartInfo) bool {
	return CompareAndSetDeep(&m.tracker, "nextPartInfo", &m.playlist.NextPartInfo, v)
}

func (m *PlayoutModel) SetPreviousPartInfo(v *models.PartInfo) bool {
	return CompareAndSetDeep(&m.tracker, "previousPartInfo", &m.playlist.PreviousPartInfo, v)
}

func (m *PlayoutModel) SetQueuedSegmentID(v string) bool {
	return CompareAndSet(&m.tracker, "queuedSegmentId", &m.playlist.QueuedSegmentID, v)
}

func (m *PlayoutModel) SetNextTimeOffset(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "nextTimeOffset", &m.playlist.NextTimeOffset, v)
}

func (m *PlayoutModel) SetQuickLoop(v *models.QuickLoopProps) bool {
	return CompareAndSetDeep(&m.tracker, "quickLoop", &m.playlist.QuickLoop, v)
}

// SetTTimer stores timer at its 1-based index.
func (m *PlayoutModel) SetTTimer(timer models.RundownTTimer) bool {
	if timer.Index < 1 || timer.Index > len(m.playlist.TTimers) {
		return false
	}
	return CompareAndSetDeep(&m.tracker, "tTimers", &m.playlist.TTimers[timer.Index-1], timer)
}

func (m *PlayoutModel) SetAbSessions(assigned map[string]map[string]models.AbSessionAssignment, tracked []models.TrackedAbSession) {
	CompareAndSetDeep(&m.tracker, "assignedAbSessions", &m.playlist.AssignedAbSessions, assigned)
	CompareAndSetDeep(&m.tracker, "trackedAbSessions", &m.playlist.TrackedAbSessions, tracked)
}

func (m *PlayoutModel) SetLastTakeTime(v int64) {
	SetValue(&m.tracker, "lastTakeTime", &m.playlist.LastTakeTime, &v)
}

func (m *PlayoutModel) SetStartedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "startedPlayback", &m.playlist.StartedPlayback, v)
}

func (m *PlayoutModel) SetResetTime(v int64) {
	SetValue(&m.tracker, "resetTime", &m.playlist.ResetTime, &v)
}

func (m *PlayoutModel) SetLoop(v bool) bool {
	return CompareAndSet(&m.tracker, "loop", &m.playlist.Loop, v)
}

// HasChanges reports whether anything must be written.
func (m *PlayoutModel) HasChanges() bool {
	if m.tracker.HasChanges() {
		return true
	}
	for _, inst := range m.instances {
		if inst.HasChanges() {
			return true
		}
	}
	return false
}

// ChangeSet lists documents touched during the job.
type ChangeSet struct {
	Playlist       *models.RundownPlaylist
	PartInstances  []models.PartInstance
	PieceInstances []models.PieceInstance
}

// Empty reports whether there is nothing to write.
func (c ChangeSet) Empty() bool {
	return c.Playlist == nil && len(c.PartInstances) == 0 && len(c.PieceInstances) == 0
}

// ChangeSet collects the changed documents.
func (m *PlayoutModel) ChangeSet() ChangeSet {
	var cs ChangeSet
	if m.tracker.HasChanges() {
		p := m.playlist
		cs.Playlist = &p
	}
	for _, inst := range m.instances {
		if inst.tracker.HasChanges() {
			cs.PartInstances = append(cs.PartInstances, inst.doc)
		}
		for _, pi := range inst.pieces {
			if pi.HasChanges() {
				cs.PieceInstances = append(cs.PieceInstances, pi.doc)
			}
		}
	}
	return cs
}

// ClearChangedFlag resets tracking after a successful commit.
func (m *PlayoutModel) ClearChangedFlag() {
	m.tracker.ClearChangedFlag()
	for _, inst := range m.instances {
		inst.ClearChangedFlag()
	}
	m.timelineRequested = false
}
