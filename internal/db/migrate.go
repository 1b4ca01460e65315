/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Studio{},

		// Ingest-owned planning data
		&models.RundownPlaylist{},
		&models.Rundown{},
		&models.Segment{},
		&models.Part{},
		&models.Piece{},

		// Playout-owned instances
		&models.PartInstance{},
		&models.PieceInstance{},

		&models.TimelineComplete{},

		&models.UserActionLog{},
		&models.WebhookTarget{},
		&models.WebhookLog{},
	); err != nil {
		return err
	}

	if err := applySingleActivePlaylistGuard(database); err != nil {
		return err
	}
	if err := normalizeHoldState(database); err != nil {
		return err
	}

	return nil
}

// applySingleActivePlaylistGuard enforces one active playlist per studio on
// dialects with partial indexes.
func applySingleActivePlaylistGuard(database *gorm.DB) error {
	switch database.Dialector.Name() {
	case "postgres", "sqlite":
	default:
		return nil
	}

	stmt := `CREATE UNIQUE INDEX IF NOT EXISTS idx_rundown_playlists_one_active
ON rundown_playlists (studio_id)
WHERE activation_id IS NOT NULL AND activation_id <> ''`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply single active playlist guard: %w", err)
	}
	return nil
}

// normalizeHoldState fills rows written before hold tracking existed.
func normalizeHoldState(database *gorm.DB) error {
	if err := database.Exec(
		"UPDATE rundown_playlists SET hold_state = ? WHERE hold_state IS NULL OR hold_state = ''", models.HoldNone,
	).Error; err != nil {
		return fmt.Errorf("normalize playlist hold state: %w", err)
	}
	return nil
}
