/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// ActivatePlaylist puts a playlist on air (or in rehearsal). Only one
// playlist per studio may be active.
func (s *Service) ActivatePlaylist(ctx context.Context, playlistID string, rehearsal bool) error {
	check := func(pl *models.RundownPlaylist) error {
		return s.checkNoOtherActive(ctx, pl)
	}
	_, err := runStudioJobWithPlayoutModel(ctx, s, "activatePlaylist", playlistID, check, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		pl := m.Playlist()
		if err := s.checkNoOtherActive(jc.ctx, pl); err != nil {
			return struct{}{}, err
		}
		if pl.IsActive() {
			if pl.Rehearsal != rehearsal {
				m.SetActivation(pl.ActivationID, rehearsal)
				m.RequestTimelineUpdate()
			}
			return struct{}{}, nil
		}

		for _, inst := range m.PartInstances() {
			if !inst.PartInstance().Reset {
				inst.MarkReset()
			}
		}
		m.SetActivation(s.newID(), rehearsal)
		m.SetHoldState(models.HoldNone)
		m.SetCurrentPartInfo(nil)
		m.SetPreviousPartInfo(nil)
		m.SetNextPartInfo(nil)
		m.SetAbSessions(nil, nil)

		ql := quickloop.New(m)
		s.selectAndSetNext(jc, m, ql)
		ql.UpdateProps(quickloop.SideNone)
		m.RequestTimelineUpdate()

		jc.logger.Info().Bool("rehearsal", rehearsal).Msg("playlist activated")
		return struct{}{}, nil
	})
	return err
}

func (s *Service) checkNoOtherActive(ctx context.Context, pl *models.RundownPlaylist) error {
	active, err := s.store.ActivePlaylists(ctx, pl.StudioID)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.ID != pl.ID {
			return usererror.New(usererror.RundownAlreadyActive, map[string]any{"activePlaylistId": other.ID})
		}
	}
	return nil
}

// DeactivatePlaylist takes a playlist off air. Deactivating an inactive
// playlist does nothing.
func (s *Service) DeactivatePlaylist(ctx context.Context, playlistID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "deactivatePlaylist", playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if !m.Playlist().IsActive() {
			return struct{}{}, nil
		}
		if cur := m.CurrentPartInstance(); cur != nil && cur.PartInstance().Timings.PlannedStoppedPlayback == nil {
			cur.SetPlannedStoppedPlayback(&jc.now)
		}
		if next := m.NextPartInstance(); next != nil && !next.PartInstance().IsTaken {
			next.MarkReset()
		}
		clearPlayoutState(m)
		m.SetActivation("", false)
		quickloop.New(m).UpdateProps(quickloop.SideNone)
		m.RequestTimelineUpdate()

		jc.logger.Info().Msg("playlist deactivated")
		return struct{}{}, nil
	})
	return err
}

// ResetPlaylist discards everything played so far. An on-air playlist can
// only be reset when the studio allows it; rehearsals always can.
func (s *Service) ResetPlaylist(ctx context.Context, playlistID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "resetPlaylist", playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		pl := m.Playlist()
		if pl.IsActive() && !pl.Rehearsal && !m.Studio().Settings.AllowRundownResetOnAir {
			return struct{}{}, usererror.New(usererror.RundownResetWhileActive, nil)
		}

		for _, inst := range m.PartInstances() {
			if !inst.PartInstance().Reset {
				inst.MarkReset()
			}
		}
		clearPlayoutState(m)
		m.SetStartedPlayback(nil)
		m.SetResetTime(jc.now)

		ql := quickloop.New(m)
		if m.Playlist().IsActive() {
			s.selectAndSetNext(jc, m, ql)
			m.RequestTimelineUpdate()
		}
		ql.UpdateProps(quickloop.SideNone)

		jc.logger.Info().Bool("active", m.Playlist().IsActive()).Msg("playlist reset")
		return struct{}{}, nil
	})
	return err
}

func clearPlayoutState(m *model.PlayoutModel) {
	m.SetHoldState(models.HoldNone)
	m.SetCurrentPartInfo(nil)
	m.SetPreviousPartInfo(nil)
	m.SetNextPartInfo(nil)
	m.SetNextTimeOffset(nil)
	m.SetQueuedSegmentID("")
	m.SetAbSessions(nil, nil)
}
