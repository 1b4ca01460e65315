/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Hash fingerprints a set of objects so gateways can skip unchanged timelines.
func Hash(objs []models.TimelineObject) (string, error) {
	data, err := json.Marshal(objs)
	if err != nil {
		return "", fmt.Errorf("marshal timeline: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// Finalize validates objs and wraps them in the stored timeline document.
func Finalize(studioID string, objs []models.TimelineObject, now int64, versions models.GenerationVersions) (*models.TimelineComplete, error) {
	seen := make(map[string]bool, len(objs))
	for _, o := range objs {
		if o.ID == "" {
			return nil, fmt.Errorf("timeline object without id on layer %q", o.Layer)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("duplicate timeline object id %q", o.ID)
		}
		seen[o.ID] = true
		if err := o.Content.Validate(); err != nil {
			return nil, fmt.Errorf("timeline object %q: %w", o.ID, err)
		}
	}
	hash, err := Hash(objs)
	if err != nil {
		return nil, err
	}
	if objs == nil {
		objs = []models.TimelineObject{}
	}
	return &models.TimelineComplete{
		ID:                 studioID,
		TimelineHash:       hash,
		Generated:          now,
		GenerationVersions: versions,
		Objects:            objs,
	}, nil
}

// Kind buckets an object for the object-count gauge.
func Kind(o models.TimelineObject) string {
	switch {
	case o.IsLookahead:
		return "lookahead"
	case o.IsGroup:
		return "group"
	default:
		return string(o.Content.Kind)
	}
}
