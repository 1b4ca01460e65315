/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ttimers

import (
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
)

// Service edits the timers of one loaded playlist.
type Service struct {
	m   *model.PlayoutModel
	loc *time.Location
	now func() time.Time
}

// NewService binds a service to m. now may be nil for the wall clock.
func NewService(m *model.PlayoutModel, loc *time.Location, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{m: m, loc: loc, now: now}
}

func (s *Service) nowMs() int64 { return s.now().UnixMilli() }

// Timer returns a copy of timer index.
func (s *Service) Timer(index int) (models.RundownTTimer, error) {
	if err := ValidateIndex(index); err != nil {
		return models.RundownTTimer{}, err
	}
	t := s.m.Playlist().TTimers[index-1]
	t.Index = index
	return t, nil
}

func (s *Service) store(index int, mutate func(t *models.RundownTTimer)) error {
	t, err := s.Timer(index)
	if err != nil {
		return err
	}
	mutate(&t)
	s.m.SetTTimer(t)
	return nil
}

// StartCountdown configures index as a countdown.
func (s *Service) StartCountdown(index int, durationMs int64, opts Options) error {
	if err := ValidateIndex(index); err != nil {
		return err
	}
	mode, state, err := CreateCountdown(s.nowMs(), durationMs, opts)
	if err != nil {
		return err
	}
	return s.store(index, func(t *models.RundownTTimer) { t.Mode, t.State = mode, state })
}

// StartFreeRun configures index as a free-running timer.
func (s *Service) StartFreeRun(index int, opts Options) error {
	mode, state := CreateFreeRun(s.nowMs(), opts)
	return s.store(index, func(t *models.RundownTTimer) { t.Mode, t.State = mode, state })
}

// StartTimeOfDay configures index to count down to targetRaw.
func (s *Service) StartTimeOfDay(index int, targetRaw string, opts Options) error {
	if err := ValidateIndex(index); err != nil {
		return err
	}
	mode, state, err := CreateTimeOfDay(s.nowMs(), targetRaw, s.loc, opts)
	if err != nil {
		return err
	}
	return s.store(index, func(t *models.RundownTTimer) { t.Mode, t.State = mode, state })
}

// Pause freezes timer index. Pausing a paused or cleared timer does nothing.
func (s *Service) Pause(index int) error {
	nowMs := s.nowMs()
	return s.store(index, func(t *models.RundownTTimer) { t.State = Pause(t.State, nowMs) })
}

// Resume continues timer index. Resuming a running or cleared timer does nothing.
func (s *Service) Resume(index int) error {
	nowMs := s.nowMs()
	return s.store(index, func(t *models.RundownTTimer) { t.State = Resume(t.State, nowMs) })
}

// Restart restarts timer index and reports whether anything changed.
func (s *Service) Restart(index int) (bool, error) {
	t, err := s.Timer(index)
	if err != nil {
		return false, err
	}
	if t.Mode == nil {
		return false, fmt.Errorf("%w: timer %d", ErrNotConfigured, index)
	}
	next, err := Restart(t.Mode, t.State, s.nowMs(), s.loc)
	if err != nil || next == nil {
		return false, err
	}
	t.State = next
	return s.m.SetTTimer(t), nil
}

// Clear removes the mode and state of timer index, keeping its label.
func (s *Service) Clear(index int) error {
	return s.store(index, func(t *models.RundownTTimer) { t.Mode, t.State = nil, nil })
}

// ClearAll clears every timer.
func (s *Service) ClearAll() {
	for i := 1; i <= TimerCount; i++ {
		_ = s.Clear(i)
	}
}

// SetLabel names timer index.
func (s *Service) SetLabel(index int, label string) error {
	return s.store(index, func(t *models.RundownTTimer) { t.Label = label })
}

// CurrentTime returns the value of timer index, false when cleared.
func (s *Service) CurrentTime(index int) (int64, bool, error) {
	t, err := s.Timer(index)
	if err != nil {
		return 0, false, err
	}
	v, ok := CurrentTime(t.Mode, t.State, s.nowMs())
	return v, ok, nil
}
