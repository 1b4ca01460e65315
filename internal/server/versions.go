/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"

	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/version"
)

// newerTimelines returns the studios whose stored timeline was generated by
// a later core than this one. Such studios are mid rolling upgrade or this
// instance was downgraded; the next job here overwrites the newer output.
func newerTimelines(ctx context.Context, st *store.Store) (map[string]string, error) {
	studios, err := st.ListStudios(ctx)
	if err != nil {
		return nil, err
	}
	found := map[string]string{}
	for _, studio := range studios {
		tl, err := st.LoadTimeline(ctx, studio.ID)
		if errors.Is(err, store.ErrTimelineNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if version.Newer(tl.GenerationVersions.Core) {
			found[studio.ID] = tl.GenerationVersions.Core
		}
	}
	return found, nil
}

func (s *Server) warnNewerTimelines(ctx context.Context) {
	found, err := newerTimelines(ctx, s.store)
	if err != nil {
		s.logger.Warn().Err(err).Msg("timeline version check failed")
		return
	}
	for studioID, core := range found {
		s.logger.Warn().
			Str("studio_id", studioID).
			Str("timeline_core", core).
			Str("core", version.Version).
			Msg("stored timeline was generated by a newer core")
	}
}
