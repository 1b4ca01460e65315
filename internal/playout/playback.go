/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"

	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
)

// PlaybackEvent is a gateway report of a part or piece starting or stopping.
type PlaybackEvent struct {
	PartInstanceID  string `json:"partInstanceId"`
	PieceInstanceID string `json:"pieceInstanceId,omitempty"`
	Time            int64  `json:"time"`
}

// OnPartPlaybackStarted records that the gateway started a part instance.
// When that instance is next, the timeline advanced on its own and the take
// is performed here.
func (s *Service) OnPartPlaybackStarted(ctx context.Context, playlistID string, ev PlaybackEvent) error {
	_, err := runJobWithPlayoutModel(ctx, s, "onPartPlaybackStarted", playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if !m.Playlist().IsActive() {
			return struct{}{}, nil
		}
		inst := m.FindPartInstance(ev.PartInstanceID)
		if inst == nil || inst.PartInstance().Reset {
			jc.logger.Warn().Str("part_instance_id", ev.PartInstanceID).Msg("playback report for unknown part instance")
			return struct{}{}, nil
		}

		if next := m.NextPartInstance(); next != nil && next.ID() == inst.ID() {
			if err := s.takeNextPart(jc, m, true); err != nil {
				return struct{}{}, err
			}
			at := ev.Time
			inst.SetPlannedStartedPlayback(&at)
		}

		if inst.PartInstance().Timings.ReportedStartedPlayback == nil {
			at := ev.Time
			inst.SetReportedStartedPlayback(&at)
		}
		if cur := m.CurrentPartInstance(); cur != nil && cur.ID() == inst.ID() && m.Playlist().StartedPlayback == nil {
			at := ev.Time
			m.SetStartedPlayback(&at)
		}
		return struct{}{}, nil
	})
	return err
}

// OnPartPlaybackStopped records that the gateway stopped a part instance.
func (s *Service) OnPartPlaybackStopped(ctx context.Context, playlistID string, ev PlaybackEvent) error {
	_, err := runJobWithPlayoutModel(ctx, s, "onPartPlaybackStopped", playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		inst := m.FindPartInstance(ev.PartInstanceID)
		if inst == nil {
			jc.logger.Warn().Str("part_instance_id", ev.PartInstanceID).Msg("playback report for unknown part instance")
			return struct{}{}, nil
		}
		if inst.PartInstance().Timings.ReportedStoppedPlayback == nil {
			at := ev.Time
			inst.SetReportedStoppedPlayback(&at)
		}
		return struct{}{}, nil
	})
	return err
}

// OnPiecePlaybackStarted records that the gateway started a piece instance.
func (s *Service) OnPiecePlaybackStarted(ctx context.Context, playlistID string, ev PlaybackEvent) error {
	return s.onPiecePlayback(ctx, "onPiecePlaybackStarted", playlistID, ev, true)
}

// OnPiecePlaybackStopped records that the gateway stopped a piece instance.
func (s *Service) OnPiecePlaybackStopped(ctx context.Context, playlistID string, ev PlaybackEvent) error {
	return s.onPiecePlayback(ctx, "onPiecePlaybackStopped", playlistID, ev, false)
}

func (s *Service) onPiecePlayback(ctx context.Context, name, playlistID string, ev PlaybackEvent, started bool) error {
	_, err := runJobWithPlayoutModel(ctx, s, name, playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		inst := m.FindPartInstance(ev.PartInstanceID)
		var pi *model.PieceInstanceModel
		if inst != nil {
			pi = inst.FindPieceInstance(ev.PieceInstanceID)
		}
		if pi == nil {
			jc.logger.Warn().
				Str("part_instance_id", ev.PartInstanceID).
				Str("piece_instance_id", ev.PieceInstanceID).
				Msg("playback report for unknown piece instance")
			return struct{}{}, nil
		}
		at := ev.Time
		if started {
			if pi.PieceInstance().ReportedStartedPlayback == nil {
				pi.SetReportedStartedPlayback(&at)
			}
		} else if pi.PieceInstance().ReportedStoppedPlayback == nil {
			pi.SetReportedStoppedPlayback(&at)
		}
		return struct{}{}, nil
	})
	return err
}
