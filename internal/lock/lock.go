/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lock grants mutual-exclusion leases keyed by playlist or studio.
package lock

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrLockTimeout is returned when a lease could not be acquired before the
	// context deadline.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrNotHeld is returned when releasing a lease that is no longer owned.
	ErrNotHeld = errors.New("lock not held")
)

// Locker grants exclusive leases.
type Locker interface {
	// Acquire blocks until the lease for key is held or ctx is done.
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock. A second Release returns ErrNotHeld.
type Lease interface {
	Key() string
	// Lost is closed if the lease expired while held. Nil for leases that
	// cannot be lost.
	Lost() <-chan struct{}
	Release(ctx context.Context) error
}

// PlaylistKey is the lock key serializing playout and ingest jobs of a playlist.
func PlaylistKey(playlistID string) string {
	return "playlist:" + playlistID
}

// StudioKey is the coarser lock key used for studio baseline operations.
func StudioKey(studioID string) string {
	return "studio:" + studioID
}

// scope returns the key family for metrics labels.
func scope(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}
