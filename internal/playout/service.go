/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout runs operator and gateway commands against a playlist.
// Every command is a job on the studio queue that loads a fresh
// PlayoutModel under the playlist lock, mutates it, regenerates the
// timeline when asked to and commits the result in one transaction.
package playout

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/blueprint"
	"github.com/friendsincode/grimnir_rundown/internal/jobs"
	"github.com/friendsincode/grimnir_rundown/internal/lock"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/publish"
	"github.com/friendsincode/grimnir_rundown/internal/store"
)

// Options wires a Service. Store, Registry and Locker are required.
type Options struct {
	Store       *store.Store
	Registry    *jobs.Registry
	Locker      lock.Locker
	Publisher   publish.Publisher
	Blueprint   blueprint.Blueprint
	Location    *time.Location
	LockTimeout time.Duration
	CoreVersion string
	Now         func() time.Time
	NewID       func() string
	Logger      zerolog.Logger
}

// Service is the playout command surface.
type Service struct {
	store       *store.Store
	registry    *jobs.Registry
	locker      lock.Locker
	publisher   publish.Publisher
	bp          blueprint.Blueprint
	loc         *time.Location
	lockTimeout time.Duration
	coreVersion string
	now         func() time.Time
	newID       func() string
	logger      zerolog.Logger
}

// NewService returns a playout service.
func NewService(opts Options) *Service {
	s := &Service{
		store:       opts.Store,
		registry:    opts.Registry,
		locker:      opts.Locker,
		publisher:   opts.Publisher,
		bp:          opts.Blueprint,
		loc:         opts.Location,
		lockTimeout: opts.LockTimeout,
		coreVersion: opts.CoreVersion,
		now:         opts.Now,
		newID:       opts.NewID,
		logger:      opts.Logger.With().Str("component", "playout").Logger(),
	}
	if s.publisher == nil {
		s.publisher = publish.Discard{}
	}
	if s.bp == nil {
		s.bp = blueprint.Noop{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = 10 * time.Second
	}
	if s.coreVersion == "" {
		s.coreVersion = "dev"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Blueprint returns the blueprint in use.
func (s *Service) Blueprint() blueprint.Blueprint { return s.bp }

func (s *Service) versions(studio *models.Studio) models.GenerationVersions {
	return models.GenerationVersions{
		Core:      s.coreVersion,
		Blueprint: s.bp.Name() + "@" + s.bp.Version(),
		Studio:    studio.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
