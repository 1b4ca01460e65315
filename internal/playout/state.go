/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/publish"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// PlaylistState returns the playout state of a playlist as last committed.
// It does not take the playlist lock.
func (s *Service) PlaylistState(ctx context.Context, playlistID string) (publish.PlaylistSnapshot, error) {
	data, err := s.store.LoadPlayoutData(ctx, playlistID)
	if err != nil {
		if errors.Is(err, store.ErrPlaylistNotFound) {
			return publish.PlaylistSnapshot{}, usererror.New(usererror.PlaylistNotFound, map[string]any{"playlistId": playlistID})
		}
		return publish.PlaylistSnapshot{}, err
	}
	m, err := model.New(data)
	if err != nil {
		return publish.PlaylistSnapshot{}, err
	}
	return snapshot(m, s.now().UnixMilli()), nil
}

// StudioTimeline returns the last timeline written for a studio.
func (s *Service) StudioTimeline(ctx context.Context, studioID string) (*models.TimelineComplete, error) {
	tl, err := s.store.LoadTimeline(ctx, studioID)
	if err != nil {
		if errors.Is(err, store.ErrTimelineNotFound) {
			return nil, usererror.New(usererror.StudioNotFound, map[string]any{"studioId": studioID})
		}
		return nil, err
	}
	return tl, nil
}
