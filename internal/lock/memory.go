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

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
)

// MemoryLocker serializes holders of the same key within one process.
// Waiters are served in arrival order.
type MemoryLocker struct {
	mu     sync.Mutex
	keys   map[string]*memoryEntry
	logger zerolog.Logger
}

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker(logger zerolog.Logger) *MemoryLocker {
	return &MemoryLocker{
		keys:   make(map[string]*memoryEntry),
		logger: logger.With().Str("component", "memory_locker").Logger(),
	}
}

// Acquire implements Locker.
func (m *MemoryLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	start := time.Now()

	m.mu.Lock()
	entry, ok := m.keys[key]
	if !ok {
		entry = &memoryEntry{sem: make(chan struct{}, 1)}
		m.keys[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		telemetry.LockWaitDuration.WithLabelValues("memory", scope(key)).Observe(time.Since(start).Seconds())
		return &memoryLease{locker: m, key: key, entry: entry}, nil
	case <-ctx.Done():
		m.unref(key, entry)
		telemetry.LockTimeoutsTotal.WithLabelValues("memory", scope(key)).Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}
}

func (m *MemoryLocker) unref(key string, entry *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.keys, key)
	}
}

// held reports the number of keys with holders or waiters.
func (m *MemoryLocker) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	entry  *memoryEntry
	once   sync.Once
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Lost() <-chan struct{} { return nil }

func (l *memoryLease) Release(context.Context) error {
	released := false
	l.once.Do(func() {
		<-l.entry.sem
		l.locker.unref(l.key, l.entry)
		released = true
	})
	if !released {
		return ErrNotHeld
	}
	return nil
}
