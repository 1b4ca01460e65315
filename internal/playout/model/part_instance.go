/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package model

import (
	"sort"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// PartInstanceModel wraps a PartInstance and its piece instances.
type PartInstanceModel struct {
	doc     models.PartInstance
	pieces  []*PieceInstanceModel
	tracker ChangeTracker
	isNew   bool
}

func newPartInstanceModel(doc models.PartInstance, pieces []models.PieceInstance, isNew bool) *PartInstanceModel {
	m := &PartInstanceModel{doc: doc, isNew: isNew}
	if isNew {
		m.tracker.Mark("*")
	}
	for _, p := range pieces {
		m.pieces = append(m.pieces, newPieceInstanceModel(p, isNew))
	}
	m.sortPieces()
	return m
}

func (m *PartInstanceModel) sortPieces() {
	sort.SliceStable(m.pieces, func(i, j int) bool {
		a, b := m.pieces[i].doc.Piece.Enable, m.pieces[j].doc.Piece.Enable
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return m.pieces[i].doc.ID < m.pieces[j].doc.ID
	})
}

// PartInstance returns the current document. Callers must not mutate it.
func (m *PartInstanceModel) PartInstance() *models.PartInstance { return &m.doc }

func (m *PartInstanceModel) ID() string { return m.doc.ID }

// Part returns the part snapshot held by the instance.
func (m *PartInstanceModel) Part() *models.Part { return &m.doc.Part }

// IsNew reports whether the instance was created during this job.
func (m *PartInstanceModel) IsNew() bool { return m.isNew }

// PieceInstances returns the non-reset piece instances ordered by start.
func (m *PartInstanceModel) PieceInstances() []*PieceInstanceModel {
	out := make([]*PieceInstanceModel, 0, len(m.pieces))
	for _, p := range m.pieces {
		if !p.doc.Reset {
			out = append(out, p)
		}
	}
	return out
}

// PieceInstanceDocs returns copies of the non-reset piece instance documents.
func (m *PartInstanceModel) PieceInstanceDocs() []models.PieceInstance {
	pieces := m.PieceInstances()
	out := make([]models.PieceInstance, len(pieces))
	for i, p := range pieces {
		out[i] = p.doc
	}
	return out
}

// FindPieceInstance returns the piece instance with id.
func (m *PartInstanceModel) FindPieceInstance(id string) *PieceInstanceModel {
	for _, p := range m.pieces {
		if p.doc.ID == id {
			return p
		}
	}
	return nil
}

// InsertPieceInstance adds a new piece instance created during this job.
func (m *PartInstanceModel) InsertPieceInstance(doc models.PieceInstance) *PieceInstanceModel {
	doc.PartInstanceID = m.doc.ID
	p := newPieceInstanceModel(doc, true)
	m.pieces = append(m.pieces, p)
	m.sortPieces()
	return p
}

// HasChanges reports whether the instance or any of its pieces must be written.
func (m *PartInstanceModel) HasChanges() bool {
	if m.tracker.HasChanges() {
		return true
	}
	for _, p := range m.pieces {
		if p.HasChanges() {
			return true
		}
	}
	return false
}

// ClearChangedFlag resets tracking for the instance and its pieces.
func (m *PartInstanceModel) ClearChangedFlag() {
	m.tracker.ClearChangedFlag()
	m.isNew = false
	for _, p := range m.pieces {
		p.ClearChangedFlag()
	}
}

func (m *PartInstanceModel) SetPlannedStartedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "timings.plannedStartedPlayback", &m.doc.Timings.PlannedStartedPlayback, v)
}

func (m *PartInstanceModel) SetPlannedStoppedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "timings.plannedStoppedPlayback", &m.doc.Timings.PlannedStoppedPlayback, v)
}

func (m *PartInstanceModel) SetReportedStartedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "timings.reportedStartedPlayback", &m.doc.Timings.ReportedStartedPlayback, v)
}

func (m *PartInstanceModel) SetReportedStoppedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "timings.reportedStoppedPlayback", &m.doc.Timings.ReportedStoppedPlayback, v)
}

// SetTaken records the take instant and bumps the take count.
func (m *PartInstanceModel) SetTaken(now int64, takeCount int) {
	SetValue(&m.tracker, "timings.take", &m.doc.Timings.Take, &now)
	SetValue(&m.tracker, "isTaken", &m.doc.IsTaken, true)
	CompareAndSet(&m.tracker, "takeCount", &m.doc.TakeCount, takeCount)
}

func (m *PartInstanceModel) SetSetAsNext(now int64) {
	SetValue(&m.tracker, "timings.setAsNext", &m.doc.Timings.SetAsNext, &now)
}

func (m *PartInstanceModel) SetBlockTakeUntil(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "blockTakeUntil", &m.doc.BlockTakeUntil, v)
}

func (m *PartInstanceModel) SetOrphaned(reason models.OrphanedReason) bool {
	return CompareAndSet(&m.tracker, "orphaned", &m.doc.Orphaned, reason)
}

// SetPart replaces the part snapshot, e.g. when an action updates it.
func (m *PartInstanceModel) SetPart(p models.Part) bool {
	return CompareAndSetDeep(&m.tracker, "part", &m.doc.Part, p)
}

// MarkReset resets the instance and all its pieces.
func (m *PartInstanceModel) MarkReset() {
	CompareAndSet(&m.tracker, "reset", &m.doc.Reset, true)
	for _, p := range m.pieces {
		if !p.doc.Reset {
			p.MarkReset()
		}
	}
}
