/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package publish

import (
	"context"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// BusPublisher hands output to the in-process event bus, where the
// websocket hub and other local consumers pick it up.
type BusPublisher struct {
	bus *events.Bus
}

// NewBusPublisher wraps bus.
func NewBusPublisher(bus *events.Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Name() string { return "bus" }

func (p *BusPublisher) PublishTimeline(_ context.Context, tl *models.TimelineComplete) error {
	p.bus.Publish(events.EventTimeline, timelineSummary(tl))
	return nil
}

func (p *BusPublisher) PublishPlaylist(_ context.Context, snap PlaylistSnapshot) error {
	p.bus.Publish(events.EventPlaylist, playlistPayload(snap))
	return nil
}
