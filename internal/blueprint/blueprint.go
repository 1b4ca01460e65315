/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package blueprint defines the boundary to show-specific logic. The core
// calls a Blueprint at fixed points and hands it an ActionContext; the
// blueprint never reaches into playout state any other way.
package blueprint

import (
	"context"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/ttimers"
)

// Scope selects one of the playlist's part instances.
type Scope string

const (
	ScopePrevious Scope = "previous"
	ScopeCurrent  Scope = "current"
	ScopeNext     Scope = "next"
)

// Valid reports whether s names a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopePrevious, ScopeCurrent, ScopeNext:
		return true
	}
	return false
}

// PieceUpdate lists the piece instance fields a blueprint may change. Nil
// fields are left alone.
type PieceUpdate struct {
	Name            *string
	Disabled        *bool
	UserDuration    *models.PieceUserDuration
	TimelineObjects []models.TimelineObject
}

// PartUpdate lists the part instance fields a blueprint may change.
type PartUpdate struct {
	Title            *string
	ExpectedDuration *int64
	AutoNext         *bool
	AutoNextOverlap  *int64
}

// Timer is one T-Timer as seen by a blueprint.
type Timer interface {
	Index() int
	State() models.RundownTTimer
	StartCountdown(durationMs int64, opts ttimers.Options) error
	StartFreeRun(opts ttimers.Options) error
	StartTimeOfDay(target string, opts ttimers.Options) error
	Pause() error
	Resume() error
	Restart() (bool, error)
	Clear() error
	SetLabel(label string) error
	CurrentTime() (int64, bool)
}

// ActionContext is the accessor set handed to a blueprint.
type ActionContext interface {
	Now() int64

	GetPartInstance(scope Scope) (*models.PartInstance, bool)
	GetPieceInstances(scope Scope) []models.PieceInstance
	GetUpcomingParts(limit int) []models.Part
	FindLastPieceOnLayer(sourceLayerID string) (*models.PieceInstance, bool)
	Timer(index int) (Timer, error)

	InsertPiece(scope Scope, piece models.Piece) (string, error)
	UpdatePieceInstance(pieceInstanceID string, update PieceUpdate) error
	UpdatePartInstance(scope Scope, update PartUpdate) error
	StopPiecesOnLayers(sourceLayerIDs []string) ([]string, error)
	BlockTakeUntil(unixMs *int64) error
	QueuePartAfterTake(part models.Part, pieces []models.Piece) error
}

// Blueprint is show-specific logic invoked around takes and for actions.
type Blueprint interface {
	Name() string
	Version() string
	OnPreTake(ctx context.Context, ac ActionContext) error
	OnPostTake(ctx context.Context, ac ActionContext) error
	ExecuteAction(ctx context.Context, ac ActionContext, actionID string, userData map[string]any) error
}

// Noop does nothing and knows no actions.
type Noop struct{}

func (Noop) Name() string    { return "noop" }
func (Noop) Version() string { return "0.0.0" }

func (Noop) OnPreTake(context.Context, ActionContext) error  { return nil }
func (Noop) OnPostTake(context.Context, ActionContext) error { return nil }

func (Noop) ExecuteAction(_ context.Context, _ ActionContext, actionID string, _ map[string]any) error {
	return &UnknownActionError{ActionID: actionID}
}

// UnknownActionError is returned for an action the blueprint does not know.
type UnknownActionError struct {
	ActionID string
}

func (e *UnknownActionError) Error() string {
	return "unknown action " + e.ActionID
}
