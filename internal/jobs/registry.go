/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns the studio workers of this process. It is created at
// startup and passed to whatever needs to submit work.
type Registry struct {
	instanceID string
	instances  *Distributor
	cfg        WorkerConfig
	logger     zerolog.Logger

	mu      sync.RWMutex
	workers map[string]*StudioWorker
	closed  bool
}

// NewRegistry creates a registry for instanceID. peers lists every instance
// sharing the database; an empty list means this instance owns every studio.
func NewRegistry(instanceID string, peers []string, cfg WorkerConfig, logger zerolog.Logger) *Registry {
	instances := NewDistributor(500)
	instances.AddNode(instanceID)
	for _, p := range peers {
		instances.AddNode(p)
	}

	return &Registry{
		instanceID: instanceID,
		instances:  instances,
		cfg:        cfg,
		logger:     logger.With().Str("component", "job_registry").Logger(),
		workers:    make(map[string]*StudioWorker),
	}
}

// Owns reports whether this instance runs the worker for studioID.
func (r *Registry) Owns(studioID string) bool {
	owner, err := r.instances.Owner(studioID)
	return err == nil && owner == r.instanceID
}

// Owner returns the instance responsible for studioID.
func (r *Registry) Owner(studioID string) (string, error) {
	return r.instances.Owner(studioID)
}

// Ensure starts the worker for studioID if this instance owns it.
func (r *Registry) Ensure(studioID string) error {
	if !r.Owns(studioID) {
		owner, _ := r.instances.Owner(studioID)
		return fmt.Errorf("%w: studio %s is owned by %s", ErrWorkerNotRunning, studioID, owner)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: registry stopped", ErrWorkerNotRunning)
	}
	if _, ok := r.workers[studioID]; ok {
		return nil
	}
	w := newStudioWorker(studioID, r.cfg, r.logger)
	w.start()
	r.workers[studioID] = w
	return nil
}

// Reconcile starts workers for owned studios in studioIDs and stops workers
// for studios no longer present or owned.
func (r *Registry) Reconcile(studioIDs []string) {
	wanted := make(map[string]bool, len(studioIDs))
	for _, id := range r.instances.KeysFor(r.instanceID, studioIDs) {
		wanted[id] = true
	}

	var stale []*StudioWorker
	r.mu.Lock()
	for id, w := range r.workers {
		if !wanted[id] {
			stale = append(stale, w)
			delete(r.workers, id)
		}
	}
	r.mu.Unlock()

	for _, w := range stale {
		w.stop()
	}
	for id := range wanted {
		if err := r.Ensure(id); err != nil {
			r.logger.Warn().Err(err).Str("studio_id", id).Msg("failed to start studio worker")
		}
	}

	r.logger.Info().Int("studios", len(wanted)).Int("stopped", len(stale)).Msg("studio workers reconciled")
}

// Studios returns the studio ids with running workers.
func (r *Registry) Studios() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Submit runs job on its studio's queue and returns its result.
func (r *Registry) Submit(ctx context.Context, job Job) (any, error) {
	r.mu.RLock()
	w, ok := r.workers[job.StudioID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotRunning, job.StudioID)
	}
	return w.submit(ctx, job)
}

// Stop drains and stops every worker.
func (r *Registry) Stop() {
	r.mu.Lock()
	r.closed = true
	workers := r.workers
	r.workers = make(map[string]*StudioWorker)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *StudioWorker) {
			defer wg.Done()
			w.stop()
		}(w)
	}
	wg.Wait()
}

// Do submits fn as a job and returns its typed result.
func Do[T any](ctx context.Context, r *Registry, job Job, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	job.Run = func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
	v, err := r.Submit(ctx, job)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("job %s returned %T", job.Name, v)
	}
	return typed, nil
}
