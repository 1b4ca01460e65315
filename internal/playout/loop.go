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
)

// SetQuickLoopMarker moves one side of the loop. A nil marker clears that
// side.
func (s *Service) SetQuickLoopMarker(ctx context.Context, playlistID string, side quickloop.Side, marker *models.QuickLoopMarker) (*models.QuickLoopProps, error) {
	return runJobWithPlayoutModel(ctx, s, "setQuickLoopMarker", playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (*models.QuickLoopProps, error) {
		ql := quickloop.New(m)
		if err := ql.SetMarker(side, marker); err != nil {
			return nil, err
		}
		s.reselectAfterLoopChange(jc, m, ql)
		jc.logger.Info().Str("side", string(side)).Bool("running", ql.IsLoopRunning()).Msg("quickloop marker set")
		return m.Playlist().QuickLoop, nil
	})
}

// ClearQuickLoop removes both markers.
func (s *Service) ClearQuickLoop(ctx context.Context, playlistID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "clearQuickLoop", playlistID, nil, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		ql := quickloop.New(m)
		ql.ClearAll()
		ql.UpdateProps(quickloop.SideNone)
		s.reselectAfterLoopChange(jc, m, ql)
		return struct{}{}, nil
	})
	return err
}

// reselectAfterLoopChange recomputes an automatically chosen next part, since
// the loop decides what follows the current part. A manual choice stays.
func (s *Service) reselectAfterLoopChange(jc *jobContext, m *model.PlayoutModel, ql *quickloop.Service) {
	pl := m.Playlist()
	if !pl.IsActive() {
		return
	}
	if m.CurrentPartInstance() != nil && (pl.NextPartInfo == nil || !pl.NextPartInfo.ManuallySelected) {
		s.selectAndSetNext(jc, m, ql)
	}
	m.RequestTimelineUpdate()
}
