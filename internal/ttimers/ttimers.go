/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ttimers implements the three general-purpose timers of a playlist.
//
// A running timer stores its zero instant; a paused timer stores the distance
// to zero frozen at the pause. Countdown and time-of-day timers display the
// time left, negative once overrun. A free-run's zero is its start, so it
// displays the elapsed time and counts up.
package ttimers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// TimerCount is the number of timers per playlist.
const TimerCount = 3

var (
	ErrInvalidIndex    = errors.New("timer index must be 1, 2 or 3")
	ErrInvalidDuration = errors.New("countdown duration must be positive")
	ErrInvalidTarget   = errors.New("cannot parse time of day target")
	ErrNotConfigured   = errors.New("timer is not configured")
)

// Options are shared by the create functions.
type Options struct {
	StopAtZero  bool
	StartPaused bool
}

// ValidateIndex checks a 1-based timer index.
func ValidateIndex(index int) error {
	if index < 1 || index > TimerCount {
		return fmt.Errorf("%w: got %d", ErrInvalidIndex, index)
	}
	return nil
}

func stateFor(zeroTime, nowMs int64, paused bool) *models.TTimerState {
	if paused {
		return &models.TTimerState{Paused: true, Duration: zeroTime - nowMs}
	}
	return &models.TTimerState{ZeroTime: zeroTime}
}

// CreateCountdown returns a countdown of durationMs.
func CreateCountdown(nowMs, durationMs int64, opts Options) (*models.TTimerMode, *models.TTimerState, error) {
	if durationMs <= 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, durationMs)
	}
	mode := &models.TTimerMode{Type: models.TTimerCountdown, DurationMs: durationMs, StopAtZero: opts.StopAtZero}
	return mode, stateFor(nowMs+durationMs, nowMs, opts.StartPaused), nil
}

// CreateFreeRun returns a timer counting up from now.
func CreateFreeRun(nowMs int64, opts Options) (*models.TTimerMode, *models.TTimerState) {
	mode := &models.TTimerMode{Type: models.TTimerFreeRun}
	return mode, stateFor(nowMs, nowMs, opts.StartPaused)
}

// CreateTimeOfDay returns a timer reaching zero at the next occurrence of
// targetRaw in loc.
func CreateTimeOfDay(nowMs int64, targetRaw string, loc *time.Location, opts Options) (*models.TTimerMode, *models.TTimerState, error) {
	target, err := NextTimeOfDayTarget(targetRaw, nowMs, loc)
	if err != nil {
		return nil, nil, err
	}
	mode := &models.TTimerMode{Type: models.TTimerTimeOfDay, TargetRaw: targetRaw, StopAtZero: opts.StopAtZero}
	return mode, stateFor(target, nowMs, opts.StartPaused), nil
}

// Pause freezes a running timer. A paused timer is returned unchanged.
func Pause(state *models.TTimerState, nowMs int64) *models.TTimerState {
	if state == nil || state.Paused {
		return state
	}
	return &models.TTimerState{Paused: true, Duration: state.ZeroTime - nowMs}
}

// Resume restarts a paused timer where it was frozen. A running timer is
// returned unchanged.
func Resume(state *models.TTimerState, nowMs int64) *models.TTimerState {
	if state == nil || !state.Paused {
		return state
	}
	return &models.TTimerState{ZeroTime: nowMs + state.Duration}
}

// Restart returns the state of a restarted timer, or nil when the timer
// cannot restart or would not change. Countdowns keep their pause state;
// time-of-day timers move to the next occurrence of their target.
func Restart(mode *models.TTimerMode, state *models.TTimerState, nowMs int64, loc *time.Location) (*models.TTimerState, error) {
	if mode == nil || state == nil {
		return nil, nil
	}
	switch mode.Type {
	case models.TTimerCountdown:
		return stateFor(nowMs+mode.DurationMs, nowMs, state.Paused), nil
	case models.TTimerTimeOfDay:
		target, err := NextTimeOfDayTarget(mode.TargetRaw, nowMs, loc)
		if err != nil {
			return nil, err
		}
		next := stateFor(target, nowMs, state.Paused)
		if *next == *state {
			return nil, nil
		}
		return next, nil
	default:
		return nil, nil
	}
}

// CurrentTime returns the displayed value in ms, and false for a cleared
// timer: time left for countdown and time-of-day, elapsed time for free-run.
// Timers with StopAtZero never go below zero.
func CurrentTime(mode *models.TTimerMode, state *models.TTimerState, nowMs int64) (int64, bool) {
	if mode == nil || state == nil {
		return 0, false
	}
	v := state.Duration
	if !state.Paused {
		v = state.ZeroTime - nowMs
	}
	if mode.Type == models.TTimerFreeRun {
		return -v, true
	}
	if mode.StopAtZero && v < 0 {
		v = 0
	}
	return v, true
}

var (
	numericTarget = regexp.MustCompile(`^\d+$`)
	meridiem      = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
	hasDate       = regexp.MustCompile(`\d{4}|/|\d+-\d+`)
)

// NextTimeOfDayTarget resolves raw to unix ms. Digit strings are unix ms
// verbatim. RFC3339 and dated forms are absolute. Time-only forms ("10:30",
// "3pm", "noon", "midnight", optionally prefixed "today" or "tomorrow") are
// read in loc and resolve to their next occurrence after nowMs.
func NextTimeOfDayTarget(raw string, nowMs int64, loc *time.Location) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	if numericTarget.MatchString(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, raw, err)
		}
		return v, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
		return t.UnixMilli(), nil
	}

	if loc == nil {
		loc = time.UTC
	}
	ref := time.UnixMilli(nowMs).In(loc)

	dayOffset := 0
	switch {
	case strings.HasPrefix(s, "tomorrow"):
		dayOffset = 1
		s = strings.TrimSpace(strings.TrimPrefix(s, "tomorrow"))
	case strings.HasPrefix(s, "today"):
		s = strings.TrimSpace(strings.TrimPrefix(s, "today"))
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "at "))

	switch s {
	case "noon":
		s = "12:00"
	case "midnight", "":
		s = "00:00"
		if dayOffset == 0 {
			dayOffset = 1
		}
	}
	if m := meridiem.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
		}
		hour %= 12
		if m[3] == "pm" {
			hour += 12
		}
		minute := m[2]
		if minute == "" {
			minute = "00"
		}
		s = fmt.Sprintf("%d:%s", hour, minute)
	}

	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: loc, TimeFormats: now.TimeFormats}
	t, err := cfg.With(ref).Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}

	if hasDate.MatchString(s) {
		return t.UnixMilli(), nil
	}
	t = t.AddDate(0, 0, dayOffset)
	if dayOffset == 0 && !t.After(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return t.UnixMilli(), nil
}
