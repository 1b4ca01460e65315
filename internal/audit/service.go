/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Service stores operator actions published on the event bus.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		now:    time.Now,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start consumes user action events until ctx is done.
func (s *Service) Start(ctx context.Context) {
	actions := s.bus.Subscribe(events.EventUserAction)
	defer s.bus.Unsubscribe(events.EventUserAction, actions)

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case payload, ok := <-actions:
			if !ok {
				return
			}
			s.logAction(ctx, payload)
		}
	}
}

func (s *Service) logAction(ctx context.Context, payload events.Payload) {
	entry := FromPayload(payload)
	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", entry.Action).
			Str("playlist_id", entry.PlaylistID).
			Msg("failed to log user action")
	}
}

// FromPayload maps a user action event onto a log row. Unknown keys land in
// Details.
func FromPayload(payload events.Payload) *models.UserActionLog {
	entry := &models.UserActionLog{Details: make(map[string]any)}
	for k, v := range payload {
		switch k {
		case "user_id":
			entry.UserID, _ = v.(string)
		case "studio_id":
			entry.StudioID, _ = v.(string)
		case "playlist_id":
			entry.PlaylistID, _ = v.(string)
		case "action":
			entry.Action, _ = v.(string)
		case "success":
			entry.Success, _ = v.(bool)
		case "status":
			entry.Status = toInt(v)
		case "error_code":
			entry.ErrorCode, _ = v.(string)
		case "duration_ms":
			entry.DurationMs = int64(toInt(v))
		case "remote_addr":
			entry.RemoteAddr, _ = v.(string)
		case "user_agent":
			entry.UserAgent, _ = v.(string)
		case "timestamp":
			if t, ok := v.(time.Time); ok {
				entry.Timestamp = t
			}
		default:
			entry.Details[k] = v
		}
	}
	return entry
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// Log records an entry directly.
func (s *Service) Log(ctx context.Context, entry *models.UserActionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", entry.Action).
		Str("id", entry.ID).
		Msg("user action logged")

	return nil
}

// QueryFilters defines filters for querying the action log.
type QueryFilters struct {
	StudioID   string
	PlaylistID string
	UserID     string
	Action     string
	FailedOnly bool
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// Query retrieves actions, most recent first, with the unpaginated total.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.UserActionLog, int64, error) {
	var logs []models.UserActionLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.UserActionLog{})

	if filters.StudioID != "" {
		query = query.Where("studio_id = ?", filters.StudioID)
	}
	if filters.PlaylistID != "" {
		query = query.Where("playlist_id = ?", filters.PlaylistID)
	}
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.FailedOnly {
		query = query.Where("success = ?", false)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// Prune deletes entries older than before and returns how many went.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&models.UserActionLog{})
	return res.RowsAffected, res.Error
}
