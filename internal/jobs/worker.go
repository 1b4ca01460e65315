/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package jobs runs playout work on per-studio queues.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/logging"
	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

var (
	// ErrWorkerNotRunning is returned when submitting to a stopped or unknown worker.
	ErrWorkerNotRunning = errors.New("studio worker not running")

	// ErrJobSkipped is returned when the submitter gave up before the job started.
	ErrJobSkipped = errors.New("job skipped: caller canceled before start")
)

// Job is one unit of work on a studio queue. Jobs sharing a LockKey run in
// submission order.
type Job struct {
	Name       string
	StudioID   string
	PlaylistID string
	LockKey    string
	Run        func(ctx context.Context) (any, error)
}

type envelope struct {
	job      Job
	ctx      context.Context
	enqueued time.Time
	result   chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// StudioWorker owns the queue of one studio. Each lane is a goroutine with
// its own FIFO; lock keys are hashed onto lanes.
type StudioWorker struct {
	studioID   string
	lanes      []chan *envelope
	router     *Distributor
	jobTimeout time.Duration
	logger     zerolog.Logger

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	pending atomic.Int64
}

// WorkerConfig configures a studio worker.
type WorkerConfig struct {
	Lanes      int
	QueueSize  int
	JobTimeout time.Duration
}

func newStudioWorker(studioID string, cfg WorkerConfig, logger zerolog.Logger) *StudioWorker {
	if cfg.Lanes < 1 {
		cfg.Lanes = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	router := NewDistributor(64)
	lanes := make([]chan *envelope, cfg.Lanes)
	for i := range lanes {
		lanes[i] = make(chan *envelope, cfg.QueueSize)
		router.AddNode(laneName(i))
	}

	return &StudioWorker{
		studioID:   studioID,
		lanes:      lanes,
		router:     router,
		jobTimeout: cfg.JobTimeout,
		logger:     logger.With().Str("component", "studio_worker").Str("studio_id", studioID).Logger(),
	}
}

func laneName(i int) string {
	return fmt.Sprintf("lane-%d", i)
}

func (w *StudioWorker) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	for i, lane := range w.lanes {
		w.wg.Add(1)
		go w.runLane(i, lane)
	}
	w.logger.Info().Int("lanes", len(w.lanes)).Msg("studio worker started")
}

// stop closes the lanes and waits for queued jobs to drain.
func (w *StudioWorker) stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	for _, lane := range w.lanes {
		close(lane)
	}
	w.mu.Unlock()

	w.wg.Wait()
	telemetry.JobQueueDepth.DeleteLabelValues(w.studioID)
	w.logger.Info().Msg("studio worker stopped")
}

func (w *StudioWorker) laneFor(lockKey string) int {
	name, err := w.router.Owner(lockKey)
	if err != nil {
		return 0
	}
	for i := range w.lanes {
		if laneName(i) == name {
			return i
		}
	}
	return 0
}

// submit enqueues job and waits for its result.
func (w *StudioWorker) submit(ctx context.Context, job Job) (any, error) {
	env := &envelope{job: job, ctx: ctx, enqueued: time.Now(), result: make(chan jobResult, 1)}

	w.mu.RLock()
	if !w.running {
		w.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotRunning, w.studioID)
	}
	lane := w.lanes[w.laneFor(job.LockKey)]
	telemetry.JobQueueDepth.WithLabelValues(w.studioID).Set(float64(w.pending.Add(1)))
	// the read lock keeps stop from closing the lane mid-send
	select {
	case lane <- env:
	case <-ctx.Done():
		w.pending.Add(-1)
		w.mu.RUnlock()
		return nil, ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case res := <-env.result:
		return res.value, res.err
	case <-ctx.Done():
		// the lane still runs or skips the job; its result is dropped
		return nil, ctx.Err()
	}
}

func (w *StudioWorker) runLane(index int, lane <-chan *envelope) {
	defer w.wg.Done()
	for env := range lane {
		telemetry.JobQueueDepth.WithLabelValues(w.studioID).Set(float64(w.pending.Add(-1)))

		value, err := w.execute(index, env)
		env.result <- jobResult{value: value, err: err}
	}
}

func (w *StudioWorker) execute(lane int, env *envelope) (value any, err error) {
	job := env.job
	logger := logging.ForJob(w.logger, w.studioID, job.PlaylistID, job.Name).With().Int("lane", lane).Logger()

	if env.ctx.Err() != nil {
		recordOutcome(job.Name, "skipped", time.Since(env.enqueued))
		return nil, ErrJobSkipped
	}

	// keep request values (trace ids) but not the caller's cancellation
	ctx, cancel := context.WithTimeout(context.WithoutCancel(env.ctx), w.jobTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx)

	ctx, span := telemetry.StartJobSpan(ctx, job.Name, w.studioID, job.PlaylistID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
			logger.Error().Interface("panic", r).Msg("job panicked")
		}
		outcome := "ok"
		if err != nil {
			if _, ok := usererror.As(err); ok {
				outcome = "user_error"
				logger.Info().Err(err).Msg("job rejected")
			} else {
				outcome = "error"
				logger.Error().Err(err).Msg("job failed")
			}
		}
		recordOutcome(job.Name, outcome, time.Since(start))
		telemetry.EndSpan(span, err)
		logger.Debug().
			Dur("queued", start.Sub(env.enqueued)).
			Dur("took", time.Since(start)).
			Str("outcome", outcome).
			Msg("job finished")
	}()

	return job.Run(ctx)
}

func recordOutcome(job, outcome string, took time.Duration) {
	telemetry.JobsTotal.WithLabelValues(job, outcome).Inc()
	telemetry.JobDuration.WithLabelValues(job, outcome).Observe(took.Seconds())
}
