/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/jobs"
	"github.com/friendsincode/grimnir_rundown/internal/lock"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/timeline"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// DisableNextPiece disables the next piece that has not started yet, looking
// at the current part and then the next. With undo it re-enables the last
// piece disabled that way instead.
func (s *Service) DisableNextPiece(ctx context.Context, playlistID string, undo bool) (string, error) {
	return runJobWithPlayoutModel(ctx, s, "disableNextPiece", playlistID, requireActive, func(jc *jobContext, m *model.PlayoutModel) (string, error) {
		if err := requireActive(m.Playlist()); err != nil {
			return "", err
		}
		pi := findPieceToToggle(m, jc.now, undo)
		if pi == nil {
			return "", usererror.New(usererror.NoPieceToDisable, map[string]any{"undo": undo})
		}
		pi.SetDisabled(!undo)
		m.RequestTimelineUpdate()
		jc.logger.Info().Str("piece_instance_id", pi.ID()).Bool("undo", undo).Msg("piece toggled")
		return pi.ID(), nil
	})
}

type pieceCandidate struct {
	pi    *model.PieceInstanceModel
	start int64
}

func findPieceToToggle(m *model.PlayoutModel, now int64, undo bool) *model.PieceInstanceModel {
	cur, next := m.CurrentPartInstance(), m.NextPartInstance()

	if cur != nil {
		partStart := now
		if v := cur.PartInstance().Timings.PlannedStartedPlayback; v != nil {
			partStart = *v
		}
		if pi := pickToggle(cur, partStart, now-partStart, undo); pi != nil {
			return pi
		}
	}
	if next != nil {
		return pickToggle(next, 0, -1, undo)
	}
	return nil
}

// pickToggle orders the pieces of inst that start after elapsed and returns
// the first enabled one, or the last disabled one for undo.
func pickToggle(inst *model.PartInstanceModel, partStart, elapsed int64, undo bool) *model.PieceInstanceModel {
	var candidates []pieceCandidate
	for _, pi := range inst.PieceInstances() {
		doc := pi.PieceInstance()
		if doc.Reset || doc.Piece.Virtual || doc.Piece.Enable.StartNow {
			continue
		}
		if doc.Infinite != nil && doc.Infinite.FromPreviousPart {
			continue
		}
		start := pieceStartInPart(doc, partStart)
		if start <= elapsed {
			continue
		}
		candidates = append(candidates, pieceCandidate{pi: pi, start: start})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].start < candidates[j].start })

	if undo {
		for i := len(candidates) - 1; i >= 0; i-- {
			if candidates[i].pi.PieceInstance().Disabled {
				return candidates[i].pi
			}
		}
		return nil
	}
	for _, c := range candidates {
		if !c.pi.PieceInstance().Disabled {
			return c.pi
		}
	}
	return nil
}

// RegenerateTimeline rebuilds the timeline of an active playlist without
// changing its state.
func (s *Service) RegenerateTimeline(ctx context.Context, playlistID string) error {
	_, err := runJobWithPlayoutModel(ctx, s, "regenerateTimeline", playlistID, requireActive, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
		m.RequestTimelineUpdate()
		return struct{}{}, nil
	})
	return err
}

// UpdateStudioBaseline regenerates the studio timeline after a settings
// change. With an active playlist the playlist owns the timeline; otherwise
// only the baseline objects are written.
func (s *Service) UpdateStudioBaseline(ctx context.Context, studioID string) error {
	if err := s.ensureWorker(studioID); err != nil {
		return err
	}
	job := jobs.Job{
		Name:     "updateStudioBaseline",
		StudioID: studioID,
		LockKey:  lock.StudioKey(studioID),
	}
	_, err := jobs.Do(ctx, s.registry, job, func(ctx context.Context) (struct{}, error) {
		lease, err := s.acquire(ctx, lock.StudioKey(studioID))
		if err != nil {
			return struct{}{}, err
		}
		defer s.release(ctx, lease)

		active, err := s.store.ActivePlaylists(ctx, studioID)
		if err != nil {
			return struct{}{}, err
		}
		if len(active) > 0 {
			_, err := withPlayoutModel(ctx, s, active[0].ID, func(jc *jobContext, m *model.PlayoutModel) (struct{}, error) {
				m.RequestTimelineUpdate()
				return struct{}{}, nil
			})
			return struct{}{}, err
		}
		return struct{}{}, s.writeBaseline(ctx, studioID)
	})
	return err
}

func (s *Service) writeBaseline(ctx context.Context, studioID string) error {
	studio, err := s.store.LoadStudio(ctx, studioID)
	if err != nil {
		if errors.Is(err, store.ErrStudioNotFound) {
			return usererror.Wrap(err, usererror.StudioNotFound, map[string]any{"studioId": studioID})
		}
		return err
	}
	now := s.now().UnixMilli()
	objs := timeline.Build(timeline.Input{
		StudioID:  studio.ID,
		Settings:  studio.Settings,
		HoldState: models.HoldNone,
		Now:       now,
	})
	tl, err := timeline.Finalize(studio.ID, objs, now, s.versions(studio))
	if err != nil {
		return fmt.Errorf("finalize baseline for studio %s: %w", studio.ID, err)
	}
	if err := s.store.SaveTimeline(ctx, tl); err != nil {
		return err
	}
	if err := s.publisher.PublishTimeline(ctx, tl); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("timeline publish incomplete")
	}
	zerolog.Ctx(ctx).Info().Str("hash", tl.TimelineHash).Msg("studio baseline updated")
	return nil
}
