/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/friendsincode/grimnir_rundown/internal/api"
	"github.com/friendsincode/grimnir_rundown/internal/audit"
	"github.com/friendsincode/grimnir_rundown/internal/blueprint"
	"github.com/friendsincode/grimnir_rundown/internal/cache"
	"github.com/friendsincode/grimnir_rundown/internal/config"
	"github.com/friendsincode/grimnir_rundown/internal/db"
	"github.com/friendsincode/grimnir_rundown/internal/jobs"
	"github.com/friendsincode/grimnir_rundown/internal/lock"
	"github.com/friendsincode/grimnir_rundown/internal/playout"
	"github.com/friendsincode/grimnir_rundown/internal/publish"
	"github.com/friendsincode/grimnir_rundown/internal/storage"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/version"
	"github.com/friendsincode/grimnir_rundown/internal/webhooks"
)

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if s.cfg.LockBackend == config.LockRedis || s.cfg.RedisPublish {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		client := s.redis
		s.DeferClose(client.Close)
	}

	// A nil interface keeps the cache in its disabled state.
	var cacheClient redis.UniversalClient
	if s.redis != nil {
		cacheClient = s.redis
	}
	s.store = store.New(database, cache.New(cacheClient, cache.DefaultConfig(), s.logger), s.logger)

	var locker lock.Locker
	switch s.cfg.LockBackend {
	case config.LockRedis:
		locker = lock.NewRedisLocker(s.redis, lock.RedisConfig{
			KeyPrefix:     "grimnir:rundown:lock:",
			LeaseDuration: s.cfg.LockTTL,
			RetryInterval: 50 * time.Millisecond,
			InstanceID:    s.cfg.InstanceID,
		}, s.logger)
	default:
		locker = lock.NewMemoryLocker(s.logger)
	}

	publisher, err := s.initPublishers()
	if err != nil {
		return err
	}

	s.registry = jobs.NewRegistry(s.cfg.InstanceID, s.cfg.Instances, jobs.WorkerConfig{
		Lanes:      s.cfg.WorkerLanes,
		QueueSize:  64,
		JobTimeout: s.cfg.JobTimeout,
	}, s.logger)
	registry := s.registry
	s.DeferClose(func() error {
		registry.Stop()
		return nil
	})

	s.playout = playout.NewService(playout.Options{
		Store:       s.store,
		Registry:    s.registry,
		Locker:      locker,
		Publisher:   publisher,
		Blueprint:   blueprint.Standard(),
		Location:    s.cfg.Location(),
		LockTimeout: s.cfg.LockAcquireTimeout,
		CoreVersion: version.Version,
		Logger:      s.logger,
	})

	if s.cfg.SimulatePlayback {
		s.director = playout.NewDirector(s.playout, 100*time.Millisecond, s.logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.cfg.StudioFile != "" {
		if err := s.seedStudios(ctx); err != nil {
			return err
		}
	}
	if err := s.reconcileStudios(ctx); err != nil {
		return fmt.Errorf("reconcile studios: %w", err)
	}
	s.warnNewerTimelines(ctx)

	var jwtSecret []byte
	if s.cfg.JWTSigningKey != "" {
		jwtSecret = []byte(s.cfg.JWTSigningKey)
	} else {
		s.logger.Warn().Msg("no JWT signing key configured, API runs without authentication")
	}

	s.api = api.New(s.playout, s.store, publish.NewHub(s.bus, s.logger), jwtSecret, s.logger)
	if s.logBuffer != nil {
		s.api.SetLogBuffer(s.logBuffer)
	}
	s.audit = audit.NewService(database, s.bus, s.logger)
	s.api.SetActionLog(s.bus, s.audit)
	s.webhooks = webhooks.NewService(database, s.bus, s.logger)
	s.api.SetWebhooks(s.webhooks)

	return nil
}

// initPublishers builds the timeline fan-out. The in-process bus is always
// present; NATS, Redis and S3 are added when configured.
func (s *Server) initPublishers() (*publish.Multi, error) {
	multi := publish.NewMulti(s.logger, publish.NewBusPublisher(s.bus))

	if s.cfg.NATSURL != "" {
		natsCfg := publish.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.NodeID = s.cfg.InstanceID
		if s.cfg.NATSSubject != "" {
			natsCfg.Prefix = s.cfg.NATSSubject
		}
		np, err := publish.NewNATSPublisher(natsCfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		s.DeferClose(np.Close)
		multi.Add(np)
	}

	if s.cfg.RedisPublish {
		redisCfg := publish.DefaultRedisConfig()
		redisCfg.NodeID = s.cfg.InstanceID
		if s.cfg.RedisChannel != "" {
			redisCfg.Channel = s.cfg.RedisChannel
		}
		multi.Add(publish.NewRedisPublisher(s.redis, redisCfg, s.logger))
	}

	if s.cfg.S3Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		objects, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          s.cfg.S3Region,
			Bucket:          s.cfg.S3Bucket,
			Endpoint:        s.cfg.S3Endpoint,
			UsePathStyle:    s.cfg.S3UsePathStyle,
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 archive: %w", err)
		}
		multi.Add(publish.NewArchiver(objects, s.cfg.S3ArchivePrefix, s.bus, s.logger))
	}

	return multi, nil
}

// seedStudios upserts the studios declared in the studio file.
func (s *Server) seedStudios(ctx context.Context) error {
	studios, err := config.LoadStudioFile(s.cfg.StudioFile)
	if err != nil {
		return fmt.Errorf("load studio file: %w", err)
	}
	return SeedStudios(ctx, s.store, studios, s.logger)
}
