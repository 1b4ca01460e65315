/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
)

// Director stands in for a playout gateway. It reports part playback for the
// active playlists of the studios this instance runs: the current part
// starts when taken, and an autonext part starts when the current one ends.
type Director struct {
	svc      *Service
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	reported map[string]time.Time
}

// NewDirector creates a playback director.
func NewDirector(svc *Service, interval time.Duration, logger zerolog.Logger) *Director {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Director{
		svc:      svc,
		interval: interval,
		logger:   logger.With().Str("component", "director").Logger(),
		reported: make(map[string]time.Time),
	}
}

// Run executes the director loop until context cancellation.
func (d *Director) Run(ctx context.Context) error {
	d.logger.Info().Dur("interval", d.interval).Msg("playout director started")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("playout director stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.logger.Error().Err(err).Msg("playout director tick failed")
			}
		}
	}
}

func (d *Director) tick(ctx context.Context) error {
	now := d.svc.now()
	d.pruneReported(now)

	for _, studioID := range d.svc.registry.Studios() {
		active, err := d.svc.store.ActivePlaylists(ctx, studioID)
		if err != nil {
			return err
		}
		for _, pl := range active {
			if err := d.checkPlaylist(ctx, pl.ID, now.UnixMilli()); err != nil {
				d.logger.Warn().Err(err).Str("playlist_id", pl.ID).Msg("failed to report playback")
			}
		}
	}
	return nil
}

// checkPlaylist reads the playlist without the lock; the reports it sends
// are jobs and re-validate everything.
func (d *Director) checkPlaylist(ctx context.Context, playlistID string, nowMs int64) error {
	data, err := d.svc.store.LoadPlayoutData(ctx, playlistID)
	if err != nil {
		return err
	}
	m, err := model.New(data)
	if err != nil {
		return err
	}

	cur := m.CurrentPartInstance()
	if cur == nil {
		return nil
	}
	timings := cur.PartInstance().Timings
	if timings.ReportedStartedPlayback == nil {
		start := nowMs
		if timings.PlannedStartedPlayback != nil {
			start = *timings.PlannedStartedPlayback
		}
		return d.report(ctx, playlistID, cur.ID(), start)
	}

	next := m.NextPartInstance()
	if next == nil || timings.PlannedStartedPlayback == nil {
		return nil
	}
	duration, ok := quickloop.New(m).AutoNextDuration(cur.Part())
	if !ok {
		return nil
	}
	end := *timings.PlannedStartedPlayback + duration
	if end > nowMs {
		return nil
	}
	return d.report(ctx, playlistID, next.ID(), end)
}

func (d *Director) report(ctx context.Context, playlistID, partInstanceID string, at int64) error {
	if d.wasReported(partInstanceID) {
		return nil
	}
	err := d.svc.OnPartPlaybackStarted(ctx, playlistID, PlaybackEvent{PartInstanceID: partInstanceID, Time: at})
	if err != nil {
		return err
	}
	d.markReported(partInstanceID)
	d.logger.Debug().Str("playlist_id", playlistID).Str("part_instance_id", partInstanceID).Msg("playback reported")
	return nil
}

func (d *Director) wasReported(partInstanceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.reported[partInstanceID]
	return ok
}

func (d *Director) markReported(partInstanceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reported[partInstanceID] = d.svc.now()
}

func (d *Director) pruneReported(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, at := range d.reported {
		if at.Add(30 * time.Minute).Before(now) {
			delete(d.reported, id)
		}
	}
}
