/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package abplayback assigns pooled players (A/B media players and their
// mixer inputs) to the abstract sessions timeline objects ask for.
package abplayback

import (
	"github.com/google/uuid"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// SessionHelper gives abstract session names ids that stay stable across
// regenerations. Lookup order: infinite instance, part instance, lookahead
// session of the same part, then a fresh id.
type SessionHelper struct {
	previous []models.TrackedAbSession
	claimed  map[int]bool
	used     []models.TrackedAbSession
	newID    func() string
}

// NewSessionHelper starts from the sessions tracked last time. newID may be
// nil for random uuids.
func NewSessionHelper(tracked []models.TrackedAbSession, newID func() string) *SessionHelper {
	if newID == nil {
		newID = uuid.NewString
	}
	return &SessionHelper{
		previous: tracked,
		claimed:  make(map[int]bool),
		newID:    newID,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// find returns the index in used of the first session matching pred,
// claiming it from previous if needed.
func (h *SessionHelper) find(ref models.AbSessionRef, pred func(*models.TrackedAbSession) bool) int {
	for i := range h.used {
		s := &h.used[i]
		if s.PoolName == ref.PoolName && s.SessionName == ref.SessionName && pred(s) {
			return i
		}
	}
	for i := range h.previous {
		if h.claimed[i] {
			continue
		}
		s := &h.previous[i]
		if s.PoolName == ref.PoolName && s.SessionName == ref.SessionName && pred(s) {
			h.claimed[i] = true
			cp := *s
			cp.PartInstanceIDs = append([]string(nil), s.PartInstanceIDs...)
			h.used = append(h.used, cp)
			return len(h.used) - 1
		}
	}
	return -1
}

func (h *SessionHelper) create(s models.TrackedAbSession) string {
	s.ID = h.newID()
	h.used = append(h.used, s)
	return s.ID
}

// SessionID returns the id of the session ref names for obj.
func (h *SessionHelper) SessionID(ref models.AbSessionRef, obj models.TimelineObject) string {
	if infID := obj.InfinitePieceInstanceID; infID != "" {
		if i := h.find(ref, func(s *models.TrackedAbSession) bool { return s.InfiniteInstanceID == infID }); i >= 0 {
			return h.used[i].ID
		}
		return h.create(models.TrackedAbSession{PoolName: ref.PoolName, SessionName: ref.SessionName, InfiniteInstanceID: infID})
	}

	if piID := obj.PartInstanceID; piID != "" {
		if i := h.find(ref, func(s *models.TrackedAbSession) bool { return containsString(s.PartInstanceIDs, piID) }); i >= 0 {
			return h.used[i].ID
		}
		if obj.PartID != "" {
			partID := obj.PartID
			if i := h.find(ref, func(s *models.TrackedAbSession) bool { return s.LookaheadForPartID == partID }); i >= 0 {
				h.used[i].LookaheadForPartID = ""
				h.used[i].PartInstanceIDs = append(h.used[i].PartInstanceIDs, piID)
				return h.used[i].ID
			}
		}
		return h.create(models.TrackedAbSession{PoolName: ref.PoolName, SessionName: ref.SessionName, PartInstanceIDs: []string{piID}})
	}

	partID := obj.PartID
	if i := h.find(ref, func(s *models.TrackedAbSession) bool {
		return partID != "" && s.LookaheadForPartID == partID
	}); i >= 0 {
		return h.used[i].ID
	}
	return h.create(models.TrackedAbSession{PoolName: ref.PoolName, SessionName: ref.SessionName, LookaheadForPartID: partID})
}

// Tracked returns the sessions used since the helper was created. Sessions
// not asked for again are dropped.
func (h *SessionHelper) Tracked() []models.TrackedAbSession {
	return append([]models.TrackedAbSession(nil), h.used...)
}
