/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
)

// Hub streams bus events to websocket clients. Clients may narrow the
// stream with ?studio=<id> and ?types=timeline.updated,playlist.updated.
type Hub struct {
	bus          *events.Bus
	logger       zerolog.Logger
	pingInterval time.Duration
}

// NewHub returns a websocket handler over bus.
func NewHub(bus *events.Bus, logger zerolog.Logger) *Hub {
	return &Hub{
		bus:          bus,
		logger:       logger.With().Str("component", "ws").Logger(),
		pingInterval: 15 * time.Second,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	studioID := r.URL.Query().Get("studio")
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{events.EventTimeline, events.EventPlaylist}
	}

	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		subscribers = append(subscribers, h.bus.Subscribe(eventType))
	}
	defer func() {
		for i, eventType := range eventTypes {
			h.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	// reads are only needed to notice the client going away
	ctx = conn.CloseRead(ctx)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				h.logger.Debug().Err(err).Msg("websocket ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		default:
			sent := false
			for i, sub := range subscribers {
				select {
				case payload, ok := <-sub:
					if !ok {
						continue
					}
					if !matchesStudio(payload, studioID) {
						continue
					}
					if err := writeEvent(ctx, conn, eventTypes[i], payload); err != nil {
						h.logger.Debug().Err(err).Msg("websocket write failed")
						conn.Close(ws.StatusInternalError, "write failed")
						return
					}
					sent = true
				default:
				}
			}
			if !sent {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, bytes)
}

func matchesStudio(payload events.Payload, studioID string) bool {
	if studioID == "" {
		return true
	}
	id, _ := payload["studio_id"].(string)
	return id == studioID
}

func parseEventTypes(raw string) []events.EventType {
	var out []events.EventType
	for _, part := range strings.Split(raw, ",") {
		switch t := events.EventType(strings.TrimSpace(part)); t {
		case events.EventTimeline, events.EventPlaylist, events.EventArchived, events.EventUserAction:
			out = append(out, t)
		}
	}
	return out
}
