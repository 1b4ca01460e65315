/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL    string
	Prefix string // subjects are <prefix>.<studio>.timeline and <prefix>.<studio>.playlist
	NodeID string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Prefix:        "rundown",
		MaxReconnects: -1, // unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher sends timelines to playout gateways over NATS.
type NATSPublisher struct {
	conn   natsConn
	prefix string
	nodeID string
	logger zerolog.Logger
}

// NewNATSPublisher connects to cfg.URL. Reconnects are handled by the client.
func NewNATSPublisher(cfg NATSConfig, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str("publisher", "nats").Logger()
	if cfg.Prefix == "" {
		cfg.Prefix = "rundown"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("grimnir-rundown"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	logger.Info().Str("url", cfg.URL).Str("prefix", cfg.Prefix).Msg("NATS publisher initialized")
	return newNATSPublisher(conn, cfg.Prefix, cfg.NodeID, logger), nil
}

func newNATSPublisher(conn natsConn, prefix, nodeID string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, nodeID: nodeID, logger: logger}
}

func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject used for a studio and event kind.
func (p *NATSPublisher) Subject(studioID, kind string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, studioID, kind)
}

func (p *NATSPublisher) PublishTimeline(_ context.Context, tl *models.TimelineComplete) error {
	data, err := marshalMessage(events.EventTimeline, tl.ID, p.nodeID, tl)
	if err != nil {
		return err
	}
	subject := p.Subject(tl.ID, "timeline")
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Str("hash", tl.TimelineHash).Msg("published timeline")
	return nil
}

func (p *NATSPublisher) PublishPlaylist(_ context.Context, snap PlaylistSnapshot) error {
	data, err := marshalMessage(events.EventPlaylist, snap.StudioID, p.nodeID, snap)
	if err != nil {
		return err
	}
	subject := p.Subject(snap.StudioID, "playlist")
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	p.logger.Info().Msg("closing NATS publisher")
	return p.conn.Drain()
}
