/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
)

const (
	defaultKeyPrefix     = "grimnir:lock:"
	defaultLeaseDuration = 15 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
)

// Only touch the key while we still own it.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	renewScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisConfig configures the Redis lease locker.
type RedisConfig struct {
	// KeyPrefix namespaces lock keys in Redis.
	KeyPrefix string

	// LeaseDuration is how long a lease survives without renewal. A crashed
	// holder releases its locks after this long.
	LeaseDuration time.Duration

	// RetryInterval is how often a waiter polls for the key.
	RetryInterval time.Duration

	// InstanceID identifies this process in lease tokens.
	InstanceID string
}

// RedisLocker grants leases shared by every instance talking to one Redis.
type RedisLocker struct {
	client redis.UniversalClient
	logger zerolog.Logger
	config RedisConfig
}

// NewRedisLocker creates a locker on an existing client.
func NewRedisLocker(client redis.UniversalClient, config RedisConfig, logger zerolog.Logger) *RedisLocker {
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = defaultLeaseDuration
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.New().String()
	}

	return &RedisLocker{
		client: client,
		logger: logger.With().Str("component", "redis_locker").Str("instance_id", config.InstanceID).Logger(),
		config: config,
	}
}

// Acquire implements Locker. It polls SET NX until the key is free or ctx is done.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	start := time.Now()
	redisKey := r.config.KeyPrefix + key
	token := r.config.InstanceID + ":" + uuid.New().String()

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.config.LeaseDuration).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			telemetry.LockWaitDuration.WithLabelValues("redis", scope(key)).Observe(time.Since(start).Seconds())
			return r.newLease(key, redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			telemetry.LockTimeoutsTotal.WithLabelValues("redis", scope(key)).Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *RedisLocker) newLease(key, redisKey, token string) *redisLease {
	renewCtx, cancel := context.WithCancel(context.Background())
	l := &redisLease{
		locker:   r,
		key:      key,
		redisKey: redisKey,
		token:    token,
		lost:     make(chan struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.renewLoop(renewCtx)
	return l
}

type redisLease struct {
	locker   *RedisLocker
	key      string
	redisKey string
	token    string

	lost     chan struct{}
	lostOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func (l *redisLease) Key() string { return l.key }

func (l *redisLease) Lost() <-chan struct{} { return l.lost }

// renewLoop extends the lease at a third of its duration until released.
func (l *redisLease) renewLoop(ctx context.Context) {
	defer close(l.done)

	cfg := l.locker.config
	ticker := time.NewTicker(cfg.LeaseDuration / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := renewScript.Run(ctx, l.locker.client, []string{l.redisKey}, l.token, cfg.LeaseDuration.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.locker.logger.Error().Err(err).Str("key", l.key).Msg("failed to renew lease")
				continue
			}
			if res == 0 {
				l.locker.logger.Warn().Str("key", l.key).Msg("lease lost before release")
				l.lostOnce.Do(func() { close(l.lost) })
				return
			}
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	released := false
	l.once.Do(func() {
		released = true
		l.cancel()
		<-l.done

		var res int
		res, err = releaseScript.Run(ctx, l.locker.client, []string{l.redisKey}, l.token).Int()
		if err != nil {
			err = fmt.Errorf("release %s: %w", l.key, err)
			return
		}
		if res == 0 {
			err = fmt.Errorf("release %s: %w", l.key, ErrNotHeld)
		}
	})
	if !released {
		return ErrNotHeld
	}
	return err
}
