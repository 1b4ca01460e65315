/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// ErrRedisUnavailable is returned while the circuit breaker is open.
var ErrRedisUnavailable = errors.New("redis publisher unavailable")

// RedisConfig contains Redis publisher configuration.
type RedisConfig struct {
	Channel string // prefix; messages go to <channel>:<studio>
	NodeID  string

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis publisher configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Channel:       "grimnir:rundown",
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisPublisher publishes timelines to Redis pub/sub for consumers in
// other processes. After MaxFailures consecutive errors it stops trying
// until CheckInterval has passed and a ping succeeds.
type RedisPublisher struct {
	client *redis.Client
	cfg    RedisConfig
	logger zerolog.Logger

	mu        sync.Mutex
	open      bool
	failCount int
	lastCheck time.Time
}

// NewRedisPublisher wraps client. A failed initial ping opens the breaker.
func NewRedisPublisher(client *redis.Client, cfg RedisConfig, logger zerolog.Logger) *RedisPublisher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	p := &RedisPublisher{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("publisher", "redis").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		p.logger.Warn().Err(err).Msg("Redis connection failed, publisher disabled until reconnect")
		p.open = true
		p.lastCheck = time.Now()
	} else {
		p.logger.Info().Str("channel", cfg.Channel).Msg("Redis publisher initialized")
	}
	return p
}

func (p *RedisPublisher) Name() string { return "redis" }

// Channel returns the pub/sub channel of a studio.
func (p *RedisPublisher) Channel(studioID string) string {
	return p.cfg.Channel + ":" + studioID
}

func (p *RedisPublisher) PublishTimeline(ctx context.Context, tl *models.TimelineComplete) error {
	data, err := marshalMessage(events.EventTimeline, tl.ID, p.cfg.NodeID, tl)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.Channel(tl.ID), data)
}

func (p *RedisPublisher) PublishPlaylist(ctx context.Context, snap PlaylistSnapshot) error {
	data, err := marshalMessage(events.EventPlaylist, snap.StudioID, p.cfg.NodeID, snap)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.Channel(snap.StudioID), data)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, data []byte) error {
	if !p.available(ctx) {
		return ErrRedisUnavailable
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.client.Publish(pubCtx, channel, data).Err(); err != nil {
		p.handleFailure()
		return fmt.Errorf("publish %s: %w", channel, err)
	}

	p.mu.Lock()
	p.failCount = 0
	p.mu.Unlock()
	return nil
}

// available reports whether the breaker is closed, probing Redis when the
// retry interval has passed.
func (p *RedisPublisher) available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return true
	}
	if time.Since(p.lastCheck) < p.cfg.CheckInterval {
		return false
	}
	p.lastCheck = time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Ping(pingCtx).Err(); err != nil {
		p.logger.Debug().Err(err).Msg("Redis still unavailable")
		return false
	}

	p.open = false
	p.failCount = 0
	p.logger.Info().Msg("reconnected to Redis")
	return true
}

func (p *RedisPublisher) handleFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failCount++
	if p.failCount >= p.cfg.MaxFailures && !p.open {
		p.logger.Warn().Int("fail_count", p.failCount).Msg("Redis failure threshold reached, pausing publisher")
		p.open = true
		p.lastCheck = time.Now()
	}
}
