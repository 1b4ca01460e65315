/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package usererror carries operator-facing failures with a stable code.
package usererror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	InactiveRundown          Code = "inactive_rundown"
	NoActivePlaylist         Code = "no_active_playlist"
	PlaylistNotFound         Code = "playlist_not_found"
	PartNotFound             Code = "part_not_found"
	SegmentNotFound          Code = "segment_not_found"
	RundownNotFound          Code = "rundown_not_found"
	PartNotPlayable          Code = "part_not_playable"
	DuringHold               Code = "during_hold"
	TakeNoNextPart           Code = "take_no_next_part"
	NoCurrentOrNextPart      Code = "no_current_or_next_part"
	TakeFromIncorrectPart    Code = "take_from_incorrect_part"
	TakeRateLimit            Code = "take_rate_limit"
	TakeBlockedDuration      Code = "take_blocked_duration"
	TakeDuringTransition     Code = "take_during_transition"
	HoldNotCancelable        Code = "hold_not_cancelable"
	HoldNeedsNextPart        Code = "hold_needs_next_part"
	HoldIncompatibleParts    Code = "hold_incompatible_parts"
	HoldAfterAdlib           Code = "hold_after_adlib"
	HoldNotAllowed           Code = "hold_not_allowed"
	RundownAlreadyActive     Code = "rundown_already_active"
	RundownResetWhileActive  Code = "rundown_reset_while_active"
	QuickLoopLocked          Code = "quickloop_locked"
	QuickLoopDisabled        Code = "quickloop_disabled"
	ActionNotFound           Code = "action_not_found"
	ActionFailed             Code = "action_failed"
	NoPieceToDisable         Code = "no_piece_to_disable"
	ValidationFailed         Code = "validation_failed"
	StudioNotFound           Code = "studio_not_found"
	StudioNotOwnedByInstance Code = "studio_not_owned"
	WebhookNotFound          Code = "webhook_not_found"
)

var defaultStatus = map[Code]int{
	InactiveRundown:          http.StatusPreconditionFailed,
	NoActivePlaylist:         http.StatusPreconditionFailed,
	PlaylistNotFound:         http.StatusNotFound,
	PartNotFound:             http.StatusNotFound,
	SegmentNotFound:          http.StatusNotFound,
	RundownNotFound:          http.StatusNotFound,
	PartNotPlayable:          http.StatusBadRequest,
	DuringHold:               http.StatusConflict,
	TakeNoNextPart:           http.StatusPreconditionFailed,
	NoCurrentOrNextPart:      http.StatusPreconditionFailed,
	TakeFromIncorrectPart:    http.StatusConflict,
	TakeRateLimit:            http.StatusTooManyRequests,
	TakeBlockedDuration:      http.StatusTooManyRequests,
	TakeDuringTransition:     http.StatusTooManyRequests,
	HoldNotCancelable:        http.StatusConflict,
	HoldNeedsNextPart:        http.StatusPreconditionFailed,
	HoldIncompatibleParts:    http.StatusBadRequest,
	HoldAfterAdlib:           http.StatusBadRequest,
	HoldNotAllowed:           http.StatusBadRequest,
	RundownAlreadyActive:     http.StatusConflict,
	RundownResetWhileActive:  http.StatusConflict,
	QuickLoopLocked:          http.StatusConflict,
	QuickLoopDisabled:        http.StatusPreconditionFailed,
	ActionNotFound:           http.StatusNotFound,
	ActionFailed:             http.StatusInternalServerError,
	NoPieceToDisable:         http.StatusPreconditionFailed,
	ValidationFailed:         http.StatusBadRequest,
	StudioNotFound:           http.StatusNotFound,
	StudioNotOwnedByInstance: http.StatusMisdirectedRequest,
	WebhookNotFound:          http.StatusNotFound,
}

// Error is an operator-facing failure surfaced verbatim by the API.
type Error struct {
	Code   Code
	Status int
	Args   map[string]any
	Cause  error
}

// New returns a user error with the default status for code.
func New(code Code, args map[string]any) *Error {
	return &Error{Code: code, Status: StatusFor(code), Args: args}
}

// Wrap returns a user error that keeps cause for logging.
func Wrap(cause error, code Code, args map[string]any) *Error {
	e := New(code, args)
	e.Cause = cause
	return e
}

// StatusFor returns the HTTP-like status associated with code.
func StatusFor(code Code) int {
	if s, ok := defaultStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if len(e.Args) > 0 {
		keys := make([]string, 0, len(e.Args))
		for k := range e.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Args[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code so errors.Is works against New(code, nil).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	ue, ok := As(err)
	return ok && ue.Code == code
}
