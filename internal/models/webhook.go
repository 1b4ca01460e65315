/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookTarget stores an HTTP endpoint notified about studio events.
type WebhookTarget struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	StudioID string `gorm:"type:varchar(64);index;not null" json:"studioId"`
	URL      string `gorm:"type:varchar(512);not null" json:"url"`
	Events   string `gorm:"type:varchar(255)" json:"events"` // comma-separated event types, empty means all
	Secret   string `gorm:"type:varchar(255)" json:"-"`      // for HMAC signing
	Active   bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (WebhookTarget) TableName() string {
	return "webhook_targets"
}

// NewWebhookTarget creates a new webhook target with a random secret.
func NewWebhookTarget(studioID, url, events string) *WebhookTarget {
	return &WebhookTarget{
		ID:       uuid.NewString(),
		StudioID: studioID,
		URL:      url,
		Events:   events,
		Secret:   uuid.NewString(),
		Active:   true,
	}
}

// WebhookLog records webhook delivery attempts.
type WebhookLog struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TargetID   string    `gorm:"type:varchar(36);index;not null" json:"targetId"`
	Event      string    `gorm:"type:varchar(64);not null" json:"event"`
	StatusCode int       `json:"statusCode"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Duration   int64     `json:"durationMs"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName returns the table name for GORM.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
