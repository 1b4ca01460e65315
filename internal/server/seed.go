/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/store"
)

// SeedStudios upserts studios. Existing rows keep their id and have name and
// settings replaced.
func SeedStudios(ctx context.Context, st *store.Store, studios []models.Studio, logger zerolog.Logger) error {
	for i := range studios {
		studio := studios[i]
		if err := st.SaveStudio(ctx, &studio); err != nil {
			return fmt.Errorf("seed studio %s: %w", studio.ID, err)
		}
		logger.Info().Str("studio_id", studio.ID).Str("name", studio.Name).Msg("studio seeded")
	}
	return nil
}
