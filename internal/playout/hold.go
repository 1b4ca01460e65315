/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// ActivateHold arms a hold: the next take keeps ExtendOnHold pieces of the
// current part running into next, and the take after that ends them.
func (s *Service) ActivateHold(ctx context.Context, playlistID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "activateHold", playlistID, requireActive, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := requireActive(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		if err := checkHoldAllowed(m); err != nil {
			return struct{}{}, err
		}
		m.SetHoldState(models.HoldPending)
		m.RequestTimelineUpdate()
		return struct{}{}, nil
	})
	return err
}

func checkHoldAllowed(m *model.PlayoutModel) error {
	if !m.Studio().Settings.AllowHold {
		return usererror.New(usererror.HoldNotAllowed, nil)
	}
	if hs := m.Playlist().HoldState; hs != models.HoldNone && hs != models.HoldComplete {
		return usererror.New(usererror.DuringHold, map[string]any{"holdState": string(hs)})
	}
	cur, next := m.CurrentPartInstance(), m.NextPartInstance()
	if cur == nil || next == nil {
		return usererror.New(usererror.HoldNeedsNextPart, nil)
	}
	if cur.PartInstance().Orphaned == models.OrphanedAdlib {
		return usererror.New(usererror.HoldAfterAdlib, nil)
	}
	if hasTransition(cur) || hasTransition(next) {
		return usererror.New(usererror.HoldIncompatibleParts, nil)
	}
	return nil
}

func hasTransition(inst *model.PartInstanceModel) bool {
	if inst.Part().InTransition != nil {
		return true
	}
	for _, pi := range inst.PieceInstances() {
		if pi.PieceInstance().Piece.IsTransition {
			return true
		}
	}
	return false
}

// DeactivateHold cancels a hold that has not been taken yet.
func (s *Service) DeactivateHold(ctx context.Context, playlistID string) error {
	check := func(pl *models.RundownPlaylist) error {
		if err := requireActive(pl); err != nil {
			return err
		}
		if pl.HoldState != models.HoldPending {
			return usererror.New(usererror.HoldNotCancelable, map[string]any{"holdState": string(pl.HoldState)})
		}
		return nil
	}
	_, err := runJobWithPlayoutModel(ctx, s, "deactivateHold", playlistID, check, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		if err := check(m.Playlist()); err != nil {
			return struct{}{}, err
		}
		m.SetHoldState(models.HoldNone)
		m.RequestTimelineUpdate()
		return struct{}{}, nil
	})
	return err
}
