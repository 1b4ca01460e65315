/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ttimers

import "github.com/friendsincode/grimnir_rundown/internal/models"

// Handle is one timer of a Service.
type Handle struct {
	s     *Service
	index int
}

// Handle returns the accessor for timer index.
func (s *Service) Handle(index int) (*Handle, error) {
	if err := ValidateIndex(index); err != nil {
		return nil, err
	}
	return &Handle{s: s, index: index}, nil
}

func (h *Handle) Index() int { return h.index }

func (h *Handle) State() models.RundownTTimer {
	t, _ := h.s.Timer(h.index)
	return t
}

func (h *Handle) StartCountdown(durationMs int64, opts Options) error {
	return h.s.StartCountdown(h.index, durationMs, opts)
}

func (h *Handle) StartFreeRun(opts Options) error {
	return h.s.StartFreeRun(h.index, opts)
}

func (h *Handle) StartTimeOfDay(target string, opts Options) error {
	return h.s.StartTimeOfDay(h.index, target, opts)
}

func (h *Handle) Pause() error                { return h.s.Pause(h.index) }
func (h *Handle) Resume() error               { return h.s.Resume(h.index) }
func (h *Handle) Restart() (bool, error)      { return h.s.Restart(h.index) }
func (h *Handle) Clear() error                { return h.s.Clear(h.index) }
func (h *Handle) SetLabel(label string) error { return h.s.SetLabel(h.index, label) }

func (h *Handle) CurrentTime() (int64, bool) {
	v, ok, _ := h.s.CurrentTime(h.index)
	return v, ok
}
