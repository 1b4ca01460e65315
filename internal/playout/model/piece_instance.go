/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package model

import "github.com/friendsincode/grimnir_rundown/internal/models"

// PieceInstanceModel wraps a PieceInstance with tracked mutators.
type PieceInstanceModel struct {
	doc     models.PieceInstance
	tracker ChangeTracker
	isNew   bool
}

func newPieceInstanceModel(doc models.PieceInstance, isNew bool) *PieceInstanceModel {
	m := &PieceInstanceModel{doc: doc, isNew: isNew}
	if isNew {
		m.tracker.Mark("*")
	}
	return m
}

// PieceInstance returns the current document. Callers must not mutate it.
func (m *PieceInstanceModel) PieceInstance() *models.PieceInstance { return &m.doc }

func (m *PieceInstanceModel) ID() string { return m.doc.ID }

// IsNew reports whether the instance was created during this job.
func (m *PieceInstanceModel) IsNew() bool { return m.isNew }

// HasChanges reports whether the document must be written.
func (m *PieceInstanceModel) HasChanges() bool { return m.tracker.HasChanges() }

// ClearChangedFlag resets tracking after a commit.
func (m *PieceInstanceModel) ClearChangedFlag() {
	m.tracker.ClearChangedFlag()
	m.isNew = false
}

func (m *PieceInstanceModel) SetPlannedStartedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "plannedStartedPlayback", &m.doc.PlannedStartedPlayback, v)
}

func (m *PieceInstanceModel) SetPlannedStoppedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "plannedStoppedPlayback", &m.doc.PlannedStoppedPlayback, v)
}

func (m *PieceInstanceModel) SetReportedStartedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "reportedStartedPlayback", &m.doc.ReportedStartedPlayback, v)
}

func (m *PieceInstanceModel) SetReportedStoppedPlayback(v *int64) bool {
	return CompareAndSetDeep(&m.tracker, "reportedStoppedPlayback", &m.doc.ReportedStoppedPlayback, v)
}

func (m *PieceInstanceModel) SetDisabled(v bool) bool {
	return CompareAndSet(&m.tracker, "disabled", &m.doc.Disabled, v)
}

func (m *PieceInstanceModel) SetUserDuration(v *models.PieceUserDuration) bool {
	return CompareAndSetDeep(&m.tracker, "userDuration", &m.doc.UserDuration, v)
}

func (m *PieceInstanceModel) SetInfinite(v *models.PieceInstanceInfinite) bool {
	return CompareAndSetDeep(&m.tracker, "infinite", &m.doc.Infinite, v)
}

// SetPiece replaces the embedded piece content, e.g. after an action update.
func (m *PieceInstanceModel) SetPiece(p models.Piece) bool {
	return CompareAndSetDeep(&m.tracker, "piece", &m.doc.Piece, p)
}

// MarkReset hides the instance from future loads.
func (m *PieceInstanceModel) MarkReset() {
	SetValue(&m.tracker, "reset", &m.doc.Reset, true)
}
