/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Message is the envelope written to brokers.
type Message struct {
	EventType events.EventType `json:"event_type"`
	StudioID  string           `json:"studio_id"`
	Payload   json.RawMessage  `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // for deduplication
}

func marshalMessage(eventType events.EventType, studioID, nodeID string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Message{
		EventType: eventType,
		StudioID:  studioID,
		Payload:   body,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

// UnmarshalMessage parses a broker message.
func UnmarshalMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// DecodeTimeline returns the timeline carried by a timeline message.
func (m *Message) DecodeTimeline() (*models.TimelineComplete, error) {
	if m.EventType != events.EventTimeline {
		return nil, fmt.Errorf("message %s is %s, not a timeline", m.MessageID, m.EventType)
	}
	var tl models.TimelineComplete
	if err := json.Unmarshal(m.Payload, &tl); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return &tl, nil
}

// timelineSummary is what lightweight subscribers see of a timeline.
func timelineSummary(tl *models.TimelineComplete) events.Payload {
	return events.Payload{
		"studio_id": tl.ID,
		"hash":      tl.TimelineHash,
		"generated": tl.Generated,
		"objects":   len(tl.Objects),
		"timeline":  tl,
	}
}

func playlistPayload(snap PlaylistSnapshot) events.Payload {
	return events.Payload{
		"studio_id":   snap.StudioID,
		"playlist_id": snap.Playlist.ID,
		"snapshot":    snap,
	}
}
