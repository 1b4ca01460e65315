/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based read-through layer for studio settings
// and published timelines.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Default TTL values for different cache types
const (
	DefaultStudioTTL   = 10 * time.Minute
	DefaultTimelineTTL = 1 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyStudio   = "grimnir:cache:studio:"   // + studio_id
	KeyTimeline = "grimnir:cache:timeline:" // + studio_id
)

// Config contains cache configuration.
type Config struct {
	StudioTTL   time.Duration
	TimelineTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		StudioTTL:      DefaultStudioTTL,
		TimelineTTL:    DefaultTimelineTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// and a Cache without a client are valid and never hit.
type Cache struct {
	client redis.UniversalClient
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a cache over an existing client. client may be nil.
func New(client redis.UniversalClient, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.StudioTTL <= 0 {
		cfg.StudioTTL = DefaultStudioTTL
	}
	if cfg.TimelineTTL <= 0 {
		cfg.TimelineTTL = DefaultTimelineTTL
	}
	c := &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}
	if client == nil {
		c.disabled = true
		return c
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		c.disabled = true
	}
	return c
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// GetStudio returns a cached studio.
func (c *Cache) GetStudio(ctx context.Context, studioID string) (*models.Studio, bool) {
	var studio models.Studio
	found, _ := c.get(ctx, KeyStudio+studioID, &studio)
	if !found {
		return nil, false
	}
	return &studio, true
}

// SetStudio caches a studio.
func (c *Cache) SetStudio(ctx context.Context, studio *models.Studio) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, KeyStudio+studio.ID, studio, c.config.StudioTTL)
}

// InvalidateStudio drops a cached studio after its settings changed.
func (c *Cache) InvalidateStudio(ctx context.Context, studioID string) error {
	return c.delete(ctx, KeyStudio+studioID)
}

// GetTimeline returns the last cached timeline of a studio.
func (c *Cache) GetTimeline(ctx context.Context, studioID string) (*models.TimelineComplete, bool) {
	var tl models.TimelineComplete
	found, _ := c.get(ctx, KeyTimeline+studioID, &tl)
	if !found {
		return nil, false
	}
	return &tl, true
}

// SetTimeline caches a freshly saved timeline.
func (c *Cache) SetTimeline(ctx context.Context, tl *models.TimelineComplete) error {
	if c == nil {
		return nil
	}
	return c.set(ctx, KeyTimeline+tl.ID, tl, c.config.TimelineTTL)
}
