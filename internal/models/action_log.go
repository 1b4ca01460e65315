/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// UserActionLog records one operator command against a playlist or studio.
type UserActionLog struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Timestamp  time.Time      `gorm:"index:idx_action_timestamp;not null" json:"timestamp"`
	UserID     string         `gorm:"type:varchar(255);index:idx_action_user" json:"userId,omitempty"` // empty when auth is disabled
	StudioID   string         `gorm:"type:varchar(64);index:idx_action_studio" json:"studioId,omitempty"`
	PlaylistID string         `gorm:"type:varchar(64);index:idx_action_playlist" json:"playlistId,omitempty"`
	Action     string         `gorm:"type:varchar(64);index:idx_action_name;not null" json:"action"`
	Success    bool           `json:"success"`
	Status     int            `json:"status"`
	ErrorCode  string         `gorm:"type:varchar(64)" json:"errorCode,omitempty"`
	DurationMs int64          `json:"durationMs"`
	Details    map[string]any `gorm:"serializer:json" json:"details,omitempty"`
	RemoteAddr string         `gorm:"type:varchar(45)" json:"remoteAddr,omitempty"`
	UserAgent  string         `gorm:"type:varchar(512)" json:"userAgent,omitempty"`
}

// TableName returns the table name for GORM.
func (UserActionLog) TableName() string {
	return "user_action_logs"
}
