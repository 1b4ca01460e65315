/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"time"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/ttimers"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// TimerOp selects what UpdateTTimer does.
type TimerOp string

const (
	TimerCountdown TimerOp = "countdown"
	TimerFreeRun   TimerOp = "free_run"
	TimerTimeOfDay TimerOp = "time_of_day"
	TimerPause     TimerOp = "pause"
	TimerResume    TimerOp = "resume"
	TimerRestart   TimerOp = "restart"
	TimerClear     TimerOp = "clear"
	TimerLabel     TimerOp = "label"
)

// TimerCommand is one operator change to a T-Timer.
type TimerCommand struct {
	Index       int     `json:"index"`
	Op          TimerOp `json:"op"`
	DurationMs  int64   `json:"durationMs,omitempty"`
	Target      string  `json:"target,omitempty"`
	Label       string  `json:"label,omitempty"`
	StopAtZero  bool    `json:"stopAtZero,omitempty"`
	StartPaused bool    `json:"startPaused,omitempty"`
}

// UpdateTTimer applies cmd and returns the resulting timer. Timers do not
// appear on the timeline.
func (s *Service) UpdateTTimer(ctx context.Context, playlistID string, cmd TimerCommand) (models.RundownTTimer, error) {
	check := func(*models.RundownPlaylist) error {
		if err := ttimers.ValidateIndex(cmd.Index); err != nil {
			return usererror.Wrap(err, usererror.ValidationFailed, map[string]any{"index": cmd.Index})
		}
		return nil
	}
	return runJobWithPlayoutModel(ctx, s, "updateTTimer", playlistID, check, func(jc *jobContext, m *model.PlayoutModel) (models.RundownTTimer, error) {
		svc := ttimers.NewService(m, s.loc, func() time.Time { return time.UnixMilli(jc.now) })
		if err := applyTimerCommand(svc, cmd); err != nil {
			if _, ok := usererror.As(err); ok {
				return models.RundownTTimer{}, err
			}
			return models.RundownTTimer{}, usererror.Wrap(err, usererror.ValidationFailed, map[string]any{
				"index": cmd.Index,
				"op":    string(cmd.Op),
			})
		}
		jc.logger.Info().Int("timer", cmd.Index).Str("op", string(cmd.Op)).Msg("t-timer updated")
		return svc.Timer(cmd.Index)
	})
}

func applyTimerCommand(svc *ttimers.Service, cmd TimerCommand) error {
	opts := ttimers.Options{StopAtZero: cmd.StopAtZero, StartPaused: cmd.StartPaused}
	switch cmd.Op {
	case TimerCountdown:
		return svc.StartCountdown(cmd.Index, cmd.DurationMs, opts)
	case TimerFreeRun:
		return svc.StartFreeRun(cmd.Index, opts)
	case TimerTimeOfDay:
		return svc.StartTimeOfDay(cmd.Index, cmd.Target, opts)
	case TimerPause:
		return svc.Pause(cmd.Index)
	case TimerResume:
		return svc.Resume(cmd.Index)
	case TimerRestart:
		_, err := svc.Restart(cmd.Index)
		return err
	case TimerClear:
		return svc.Clear(cmd.Index)
	case TimerLabel:
		return svc.SetLabel(cmd.Index, cmd.Label)
	default:
		return usererror.New(usererror.ValidationFailed, map[string]any{"op": string(cmd.Op)})
	}
}
