/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists playlists, instances and timelines with gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/grimnir_rundown/internal/cache"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
)

var (
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrStudioNotFound   = errors.New("studio not found")
	ErrTimelineNotFound = errors.New("timeline not found")
)

// Store is the gorm-backed persistence of the playout core.
type Store struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// New creates a store. c may be nil.
func New(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// LoadStudio returns a studio, preferring the cache.
func (s *Store) LoadStudio(ctx context.Context, id string) (*models.Studio, error) {
	if studio, ok := s.cache.GetStudio(ctx, id); ok {
		return studio, nil
	}

	var studio models.Studio
	err := s.db.WithContext(ctx).First(&studio, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrStudioNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load studio %s: %w", id, err)
	}

	if err := s.cache.SetStudio(ctx, &studio); err != nil {
		s.logger.Debug().Err(err).Str("studio_id", id).Msg("failed to cache studio")
	}
	return &studio, nil
}

// ListStudios returns every studio ordered by id.
func (s *Store) ListStudios(ctx context.Context) ([]models.Studio, error) {
	var studios []models.Studio
	if err := s.db.WithContext(ctx).Order("id").Find(&studios).Error; err != nil {
		return nil, fmt.Errorf("list studios: %w", err)
	}
	return studios, nil
}

// SaveStudio upserts a studio and drops its cached copy.
func (s *Store) SaveStudio(ctx context.Context, studio *models.Studio) error {
	if err := s.db.WithContext(ctx).Save(studio).Error; err != nil {
		return fmt.Errorf("save studio %s: %w", studio.ID, err)
	}
	if err := s.cache.InvalidateStudio(ctx, studio.ID); err != nil {
		s.logger.Debug().Err(err).Str("studio_id", studio.ID).Msg("failed to invalidate cached studio")
	}
	return nil
}

// LoadPlaylist returns a playlist row without its content.
func (s *Store) LoadPlaylist(ctx context.Context, id string) (*models.RundownPlaylist, error) {
	var playlist models.RundownPlaylist
	err := s.db.WithContext(ctx).First(&playlist, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load playlist %s: %w", id, err)
	}
	return &playlist, nil
}

// ListPlaylists returns the playlists of a studio.
func (s *Store) ListPlaylists(ctx context.Context, studioID string) ([]models.RundownPlaylist, error) {
	var playlists []models.RundownPlaylist
	if err := s.db.WithContext(ctx).Where("studio_id = ?", studioID).Order("id").Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("list playlists for studio %s: %w", studioID, err)
	}
	return playlists, nil
}

// ActivePlaylists returns the activated playlists of a studio.
func (s *Store) ActivePlaylists(ctx context.Context, studioID string) ([]models.RundownPlaylist, error) {
	var playlists []models.RundownPlaylist
	err := s.db.WithContext(ctx).
		Where("studio_id = ? AND activation_id IS NOT NULL AND activation_id <> ''", studioID).
		Order("id").
		Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("list active playlists for studio %s: %w", studioID, err)
	}
	return playlists, nil
}

// LoadPlayoutData loads everything a playout job needs for one playlist:
// planning data and the non-reset instances.
func (s *Store) LoadPlayoutData(ctx context.Context, playlistID string) (*model.Data, error) {
	playlist, err := s.LoadPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	studio, err := s.LoadStudio(ctx, playlist.StudioID)
	if err != nil {
		return nil, err
	}

	data := &model.Data{Studio: studio, Playlist: playlist}
	tx := s.db.WithContext(ctx)

	if err := tx.Where("playlist_id = ?", playlistID).Find(&data.Rundowns).Error; err != nil {
		return nil, fmt.Errorf("load rundowns: %w", err)
	}
	rundownIDs := make([]string, len(data.Rundowns))
	for i, rd := range data.Rundowns {
		rundownIDs[i] = rd.ID
	}

	if len(rundownIDs) > 0 {
		if err := tx.Where("rundown_id IN ?", rundownIDs).Find(&data.Segments).Error; err != nil {
			return nil, fmt.Errorf("load segments: %w", err)
		}
		if err := tx.Where("rundown_id IN ?", rundownIDs).Find(&data.Parts).Error; err != nil {
			return nil, fmt.Errorf("load parts: %w", err)
		}
		if err := tx.Where("rundown_id IN ?", rundownIDs).Find(&data.Pieces).Error; err != nil {
			return nil, fmt.Errorf("load pieces: %w", err)
		}
	}

	if err := tx.Where("playlist_id = ? AND reset = ?", playlistID, false).
		Order("created_at").
		Find(&data.PartInstances).Error; err != nil {
		return nil, fmt.Errorf("load part instances: %w", err)
	}
	if err := tx.Where("playlist_id = ? AND reset = ?", playlistID, false).
		Find(&data.PieceInstances).Error; err != nil {
		return nil, fmt.Errorf("load piece instances: %w", err)
	}

	return data, nil
}

// Commit writes a change set in one transaction.
func (s *Store) Commit(ctx context.Context, cs model.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cs.Playlist != nil {
			// the playlist may have been deleted by ingest while the job ran
			res := tx.Model(cs.Playlist).Select("*").Omit("created_at").Updates(cs.Playlist)
			if res.Error != nil {
				return fmt.Errorf("update playlist %s: %w", cs.Playlist.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrPlaylistNotFound, cs.Playlist.ID)
			}
		}
		if len(cs.PartInstances) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cs.PartInstances).Error; err != nil {
				return fmt.Errorf("upsert part instances: %w", err)
			}
		}
		if len(cs.PieceInstances) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cs.PieceInstances).Error; err != nil {
				return fmt.Errorf("upsert piece instances: %w", err)
			}
		}
		return nil
	})
}

// SaveTimeline replaces the stored timeline of a studio.
func (s *Store) SaveTimeline(ctx context.Context, tl *models.TimelineComplete) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(tl).Error
	if err != nil {
		return fmt.Errorf("save timeline for studio %s: %w", tl.ID, err)
	}
	if err := s.cache.SetTimeline(ctx, tl); err != nil {
		s.logger.Debug().Err(err).Str("studio_id", tl.ID).Msg("failed to cache timeline")
	}
	return nil
}

// LoadTimeline returns the stored timeline of a studio.
func (s *Store) LoadTimeline(ctx context.Context, studioID string) (*models.TimelineComplete, error) {
	if tl, ok := s.cache.GetTimeline(ctx, studioID); ok {
		return tl, nil
	}

	var tl models.TimelineComplete
	err := s.db.WithContext(ctx).First(&tl, "id = ?", studioID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTimelineNotFound, studioID)
	}
	if err != nil {
		return nil, fmt.Errorf("load timeline for studio %s: %w", studioID, err)
	}
	return &tl, nil
}

// PlaylistContent is the ingest-owned tree of one playlist.
type PlaylistContent struct {
	Playlist models.RundownPlaylist
	Rundowns []models.Rundown
	Segments []models.Segment
	Parts    []models.Part
	Pieces   []models.Piece
}

// ImportPlaylist upserts a playlist and its planning data. Playout state on
// an existing playlist row is preserved.
func (s *Store) ImportPlaylist(ctx context.Context, content PlaylistContent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pl := content.Playlist
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "studio_id", "rundown_ids_in_order", "loop", "updated_at"}),
		}).Create(&pl).Error
		if err != nil {
			return fmt.Errorf("upsert playlist %s: %w", pl.ID, err)
		}

		upserts := []struct {
			name  string
			value any
			n     int
		}{
			{"rundowns", &content.Rundowns, len(content.Rundowns)},
			{"segments", &content.Segments, len(content.Segments)},
			{"parts", &content.Parts, len(content.Parts)},
			{"pieces", &content.Pieces, len(content.Pieces)},
		}
		for _, u := range upserts {
			if u.n == 0 {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(u.value).Error; err != nil {
				return fmt.Errorf("upsert %s: %w", u.name, err)
			}
		}
		return nil
	})
}

// DeletePlaylist removes a playlist with its planning data and instances.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rundownIDs []string
		if err := tx.Model(&models.Rundown{}).Where("playlist_id = ?", id).Pluck("id", &rundownIDs).Error; err != nil {
			return fmt.Errorf("list rundowns of playlist %s: %w", id, err)
		}
		if len(rundownIDs) > 0 {
			for _, m := range []any{&models.Piece{}, &models.Part{}, &models.Segment{}} {
				if err := tx.Where("rundown_id IN ?", rundownIDs).Delete(m).Error; err != nil {
					return fmt.Errorf("delete planning data of playlist %s: %w", id, err)
				}
			}
		}
		for _, m := range []any{&models.PieceInstance{}, &models.PartInstance{}, &models.Rundown{}} {
			if err := tx.Where("playlist_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("delete playlist %s: %w", id, err)
			}
		}
		return tx.Where("id = ?", id).Delete(&models.RundownPlaylist{}).Error
	})
}
