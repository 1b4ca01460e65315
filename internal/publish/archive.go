/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/storage"
)

// Archiver keeps a copy of every distinct timeline in object storage so
// that what went to air can be audited afterwards.
type Archiver struct {
	store  storage.ObjectStore
	prefix string
	bus    *events.Bus // optional, announces archived keys
	logger zerolog.Logger

	mu   sync.Mutex
	last map[string]string // studio -> last archived hash
}

// NewArchiver writes timelines under prefix in store.
func NewArchiver(store storage.ObjectStore, prefix string, bus *events.Bus, logger zerolog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		prefix: prefix,
		bus:    bus,
		logger: logger.With().Str("publisher", "archive").Logger(),
		last:   make(map[string]string),
	}
}

func (a *Archiver) Name() string { return "archive" }

// Key returns the object key of a timeline.
func (a *Archiver) Key(tl *models.TimelineComplete) string {
	return path.Join(a.prefix, tl.ID, fmt.Sprintf("%d-%s.json", tl.Generated, tl.TimelineHash))
}

// PublishTimeline stores tl unless its hash matches the last one stored
// for the studio.
func (a *Archiver) PublishTimeline(ctx context.Context, tl *models.TimelineComplete) error {
	a.mu.Lock()
	unchanged := a.last[tl.ID] == tl.TimelineHash
	a.mu.Unlock()
	if unchanged {
		return nil
	}

	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("marshal timeline %s: %w", tl.ID, err)
	}
	key := a.Key(tl)
	if err := a.store.Put(ctx, key, data); err != nil {
		return err
	}

	a.mu.Lock()
	a.last[tl.ID] = tl.TimelineHash
	a.mu.Unlock()

	a.logger.Debug().Str("studio_id", tl.ID).Str("key", key).Msg("timeline archived")
	if a.bus != nil {
		a.bus.Publish(events.EventArchived, events.Payload{"studio_id": tl.ID, "key": key, "hash": tl.TimelineHash})
	}
	return nil
}

func (a *Archiver) PublishPlaylist(context.Context, PlaylistSnapshot) error { return nil }
