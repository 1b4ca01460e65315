/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package publish fans generated timelines and playlist state out to
// whoever drives devices or shows operator screens.
package publish

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
)

// PlaylistSnapshot is the playout state of one playlist after a job.
type PlaylistSnapshot struct {
	StudioID string                 `json:"studioId"`
	Playlist models.RundownPlaylist `json:"playlist"`
	Current  *models.PartInstance   `json:"currentPartInstance,omitempty"`
	Next     *models.PartInstance   `json:"nextPartInstance,omitempty"`
	Sent     int64                  `json:"sent"`
}

// Publisher delivers playout output. Implementations own retries.
type Publisher interface {
	Name() string
	PublishTimeline(ctx context.Context, tl *models.TimelineComplete) error
	PublishPlaylist(ctx context.Context, snap PlaylistSnapshot) error
}

// Multi sends to every publisher. One failing publisher does not stop the
// others; errors are logged, counted and joined.
type Multi struct {
	publishers []Publisher
	logger     zerolog.Logger
}

// NewMulti returns a fan-out over publishers. Nil entries are skipped.
func NewMulti(logger zerolog.Logger, publishers ...Publisher) *Multi {
	m := &Multi{logger: logger.With().Str("component", "publish").Logger()}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Add appends a publisher.
func (m *Multi) Add(p Publisher) {
	if p != nil {
		m.publishers = append(m.publishers, p)
	}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) PublishTimeline(ctx context.Context, tl *models.TimelineComplete) error {
	return m.each(func(p Publisher) error { return p.PublishTimeline(ctx, tl) }, "timeline", tl.ID)
}

func (m *Multi) PublishPlaylist(ctx context.Context, snap PlaylistSnapshot) error {
	return m.each(func(p Publisher) error { return p.PublishPlaylist(ctx, snap) }, "playlist", snap.Playlist.ID)
}

func (m *Multi) each(send func(Publisher) error, kind, id string) error {
	var errs []error
	for _, p := range m.publishers {
		if err := send(p); err != nil {
			telemetry.PublishErrorsTotal.WithLabelValues(p.Name()).Inc()
			m.logger.Warn().Err(err).Str("publisher", p.Name()).Str("kind", kind).Str("id", id).Msg("publish failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Name() string                                                   { return "discard" }
func (Discard) PublishTimeline(context.Context, *models.TimelineComplete) error { return nil }
func (Discard) PublishPlaylist(context.Context, PlaylistSnapshot) error         { return nil }
