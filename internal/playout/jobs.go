/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/jobs"
	"github.com/friendsincode/grimnir_rundown/internal/lock"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/publish"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

// jobContext is the per-job state handed to command handlers.
type jobContext struct {
	ctx    context.Context
	logger *zerolog.Logger
	now    int64

	// set through the action context, applied by take
	queued *queuedPart
}

type queuedPart struct {
	part   models.Part
	pieces []models.Piece
}

// preCheck validates the playlist before the job is queued. It runs without
// the lock, so the handler must validate again.
type preCheck func(pl *models.RundownPlaylist) error

// runJobWithPlayoutModel queues fn on the playlist's studio worker. Inside
// the job it takes the playlist lock, loads a fresh model, runs fn, then
// regenerates the timeline if fn asked for it and commits everything fn
// changed. An error from fn discards the model.
func runJobWithPlayoutModel[T any](ctx context.Context, s *Service, name, playlistID string, check preCheck, fn func(jc *jobContext, m *model.PlayoutModel) (T, error)) (T, error) {
	var zero T

	pl, err := s.prepare(ctx, playlistID, check)
	if err != nil {
		return zero, err
	}

	job := jobs.Job{
		Name:       name,
		StudioID:   pl.StudioID,
		PlaylistID: playlistID,
		LockKey:    lock.PlaylistKey(playlistID),
	}
	return jobs.Do(ctx, s.registry, job, func(ctx context.Context) (T, error) {
		return withPlayoutModel(ctx, s, playlistID, fn)
	})
}

// runStudioJobWithPlayoutModel is runJobWithPlayoutModel for commands that
// must also exclude other playlists of the studio. The studio lock is taken
// before the playlist lock, always in that order.
func runStudioJobWithPlayoutModel[T any](ctx context.Context, s *Service, name, playlistID string, check preCheck, fn func(jc *jobContext, m *model.PlayoutModel) (T, error)) (T, error) {
	var zero T

	pl, err := s.prepare(ctx, playlistID, check)
	if err != nil {
		return zero, err
	}

	job := jobs.Job{
		Name:       name,
		StudioID:   pl.StudioID,
		PlaylistID: playlistID,
		LockKey:    lock.StudioKey(pl.StudioID),
	}
	return jobs.Do(ctx, s.registry, job, func(ctx context.Context) (T, error) {
		lease, err := s.acquire(ctx, lock.StudioKey(pl.StudioID))
		if err != nil {
			return zero, err
		}
		defer s.release(ctx, lease)
		return withPlayoutModel(ctx, s, playlistID, fn)
	})
}

// prepare runs the unlocked part of a job: the playlist must exist, pass
// check and belong to a studio this instance runs.
func (s *Service) prepare(ctx context.Context, playlistID string, check preCheck) (*models.RundownPlaylist, error) {
	pl, err := s.store.LoadPlaylist(ctx, playlistID)
	if err != nil {
		if errors.Is(err, store.ErrPlaylistNotFound) {
			return nil, usererror.Wrap(err, usererror.PlaylistNotFound, map[string]any{"playlistId": playlistID})
		}
		return nil, err
	}
	if check != nil {
		if err := check(pl); err != nil {
			return nil, err
		}
	}
	if err := s.ensureWorker(pl.StudioID); err != nil {
		return nil, err
	}
	return pl, nil
}

func (s *Service) ensureWorker(studioID string) error {
	if err := s.registry.Ensure(studioID); err != nil {
		if errors.Is(err, jobs.ErrWorkerNotRunning) {
			return usererror.Wrap(err, usererror.StudioNotOwnedByInstance, map[string]any{"studioId": studioID})
		}
		return err
	}
	return nil
}

func (s *Service) acquire(ctx context.Context, key string) (lock.Lease, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locker.Acquire(lockCtx, key)
}

func (s *Service) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", lease.Key()).Msg("failed to release lock")
	}
}

// withPlayoutModel runs fn under the playlist lock. Callers already on the
// studio queue use it directly.
func withPlayoutModel[T any](ctx context.Context, s *Service, playlistID string, fn func(jc *jobContext, m *model.PlayoutModel) (T, error)) (T, error) {
	var zero T

	lease, err := s.acquire(ctx, lock.PlaylistKey(playlistID))
	if err != nil {
		return zero, err
	}
	defer s.release(ctx, lease)

	data, err := s.store.LoadPlayoutData(ctx, playlistID)
	if errors.Is(err, store.ErrPlaylistNotFound) {
		zerolog.Ctx(ctx).Info().Msg("playlist removed before the job ran")
		return zero, nil
	}
	if err != nil {
		return zero, err
	}
	m, err := model.New(data)
	if err != nil {
		return zero, err
	}
	wasActive := m.Playlist().IsActive()

	jc := &jobContext{ctx: ctx, logger: zerolog.Ctx(ctx), now: s.now().UnixMilli()}
	res, err := fn(jc, m)
	if err != nil {
		return zero, err
	}

	// an inactive playlist does not own the studio timeline
	var tl *models.TimelineComplete
	if m.TimelineRequested() && (wasActive || m.Playlist().IsActive()) {
		if tl, err = s.updateTimeline(jc, m); err != nil {
			return zero, err
		}
	}

	select {
	case <-lease.Lost():
		return zero, fmt.Errorf("lease %s lost during job", lease.Key())
	default:
	}

	cs := m.ChangeSet()
	if !cs.Empty() {
		if err := s.store.Commit(ctx, cs); err != nil {
			return zero, err
		}
	}
	if tl != nil {
		if err := s.store.SaveTimeline(ctx, tl); err != nil {
			return zero, err
		}
	}
	m.ClearChangedFlag()

	s.publish(jc, m, cs, tl)
	return res, nil
}

// publish hands the committed result to the publishers. Delivery failures
// never fail the job.
func (s *Service) publish(jc *jobContext, m *model.PlayoutModel, cs model.ChangeSet, tl *models.TimelineComplete) {
	if tl != nil {
		if err := s.publisher.PublishTimeline(jc.ctx, tl); err != nil {
			jc.logger.Debug().Err(err).Msg("timeline publish incomplete")
		}
	}
	if cs.Playlist == nil && len(cs.PartInstances) == 0 && len(cs.PieceInstances) == 0 {
		return
	}
	if err := s.publisher.PublishPlaylist(jc.ctx, snapshot(m, jc.now)); err != nil {
		jc.logger.Debug().Err(err).Msg("playlist publish incomplete")
	}
}

func snapshot(m *model.PlayoutModel, now int64) publish.PlaylistSnapshot {
	snap := publish.PlaylistSnapshot{
		StudioID: m.Studio().ID,
		Playlist: *m.Playlist(),
		Sent:     now,
	}
	if cur := m.CurrentPartInstance(); cur != nil {
		doc := *cur.PartInstance()
		snap.Current = &doc
	}
	if next := m.NextPartInstance(); next != nil {
		doc := *next.PartInstance()
		snap.Next = &doc
	}
	return snap
}

// requireActive is the pre-check shared by most playout commands.
func requireActive(pl *models.RundownPlaylist) error {
	if !pl.IsActive() {
		return usererror.New(usererror.InactiveRundown, map[string]any{"playlistId": pl.ID})
	}
	return nil
}

// requireNotInHold rejects commands that would disturb a pending or active
// hold.
func requireNotInHold(pl *models.RundownPlaylist) error {
	if err := requireActive(pl); err != nil {
		return err
	}
	if pl.HoldState == models.HoldPending || pl.HoldState == models.HoldActive {
		return usererror.New(usererror.DuringHold, nil)
	}
	return nil
}
