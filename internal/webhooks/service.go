/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
	"github.com/friendsincode/grimnir_rundown/internal/version"
)

var (
	// ErrTargetNotFound is returned for unknown webhook ids.
	ErrTargetNotFound = errors.New("webhook target not found")
	// ErrInvalidTarget wraps url and event list validation failures.
	ErrInvalidTarget = errors.New("invalid webhook target")
)

// Payload is the body sent to webhook endpoints.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	StudioID  string         `json:"studio_id"`
	Data      events.Payload `json:"data,omitempty"`
}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client
	wg     sync.WaitGroup
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start forwards timeline and playlist events to matching targets until ctx
// is done. It returns after in-flight deliveries finish.
func (s *Service) Start(ctx context.Context) {
	timelines := s.bus.Subscribe(events.EventTimeline)
	playlists := s.bus.Subscribe(events.EventPlaylist)
	defer func() {
		s.bus.Unsubscribe(events.EventTimeline, timelines)
		s.bus.Unsubscribe(events.EventPlaylist, playlists)
		s.wg.Wait()
	}()

	s.logger.Info().Msg("webhook service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return
		case payload, ok := <-timelines:
			if ok {
				s.handleEvent(ctx, events.EventTimeline, payload)
			}
		case payload, ok := <-playlists:
			if ok {
				s.handleEvent(ctx, events.EventPlaylist, payload)
			}
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, eventType events.EventType, data events.Payload) {
	studioID, _ := data["studio_id"].(string)
	if studioID == "" {
		return
	}
	s.fireWebhooks(ctx, studioID, string(eventType), data)
}

// fireWebhooks sends webhooks for a given event.
func (s *Service) fireWebhooks(ctx context.Context, studioID, eventType string, data events.Payload) {
	var targets []models.WebhookTarget
	if err := s.db.WithContext(ctx).Where("studio_id = ? AND active = ?", studioID, true).Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Str("studio_id", studioID).Msg("failed to fetch webhooks")
		return
	}

	payload := Payload{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		StudioID:  studioID,
		Data:      data,
	}
	for _, target := range targets {
		if !handlesEvent(target, eventType) {
			continue
		}
		target := target
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			status, err := s.send(ctx, target, payload)
			if err != nil {
				s.logger.Warn().Err(err).Str("webhook", target.ID).Str("event", eventType).Int("status", status).Msg("webhook delivery failed")
				return
			}
			s.logger.Debug().Str("webhook", target.ID).Str("event", eventType).Int("status", status).Msg("webhook delivered")
		}()
	}
}

// handlesEvent checks if a target is subscribed to an event type.
func handlesEvent(target models.WebhookTarget, eventType string) bool {
	if target.Events == "" {
		return true
	}
	for _, e := range strings.Split(target.Events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

// send posts payload to target and records the attempt.
func (s *Service) send(ctx context.Context, target models.WebhookTarget, payload Payload) (int, error) {
	start := time.Now()
	status, err := s.post(ctx, target, payload)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	telemetry.WebhookDeliveriesTotal.WithLabelValues(payload.Event, outcome).Inc()
	s.logDelivery(target, payload.Event, status, err, time.Since(start))
	return status, err
}

func (s *Service) post(ctx context.Context, target models.WebhookTarget, payload Payload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Grimnir-Rundown-Webhook/"+version.Version)
	req.Header.Set("X-Grimnir-Event", payload.Event)
	req.Header.Set("X-Grimnir-Timestamp", fmt.Sprintf("%d", payload.Timestamp.Unix()))

	if target.Secret != "" {
		req.Header.Set("X-Grimnir-Signature", Sign(body, target.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign creates the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) logDelivery(target models.WebhookTarget, event string, statusCode int, deliveryErr error, took time.Duration) {
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      event,
		StatusCode: statusCode,
		Duration:   took.Milliseconds(),
	}
	if deliveryErr != nil {
		entry.Error = deliveryErr.Error()
	}

	// the delivery context may already be cancelled at shutdown
	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// CreateTarget validates and stores a new target.
func (s *Service) CreateTarget(ctx context.Context, studioID, rawURL, eventList string) (*models.WebhookTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q", ErrInvalidTarget, rawURL)
	}
	for _, e := range strings.Split(eventList, ",") {
		switch events.EventType(strings.TrimSpace(e)) {
		case "", events.EventTimeline, events.EventPlaylist:
		default:
			return nil, fmt.Errorf("%w: unsupported event %q", ErrInvalidTarget, strings.TrimSpace(e))
		}
	}

	target := models.NewWebhookTarget(studioID, rawURL, eventList)
	if err := s.db.WithContext(ctx).Create(target).Error; err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return target, nil
}

// ListTargets returns a studio's targets.
func (s *Service) ListTargets(ctx context.Context, studioID string) ([]models.WebhookTarget, error) {
	var targets []models.WebhookTarget
	err := s.db.WithContext(ctx).Where("studio_id = ?", studioID).Order("created_at").Find(&targets).Error
	return targets, err
}

// Target loads one target scoped to its studio.
func (s *Service) Target(ctx context.Context, studioID, id string) (*models.WebhookTarget, error) {
	var target models.WebhookTarget
	err := s.db.WithContext(ctx).Where("studio_id = ? AND id = ?", studioID, id).First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTargetNotFound
	}
	return &target, err
}

// DeleteTarget removes a target and its delivery log.
func (s *Service) DeleteTarget(ctx context.Context, studioID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("studio_id = ? AND id = ?", studioID, id).Delete(&models.WebhookTarget{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTargetNotFound
		}
		return tx.Where("target_id = ?", id).Delete(&models.WebhookLog{}).Error
	})
}

// Deliveries returns the most recent delivery attempts for a target.
func (s *Service) Deliveries(ctx context.Context, targetID string, limit int) ([]models.WebhookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.WebhookLog
	err := s.db.WithContext(ctx).Where("target_id = ?", targetID).Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// TestWebhook sends a test payload to a target.
func (s *Service) TestWebhook(ctx context.Context, target *models.WebhookTarget) error {
	_, err := s.send(ctx, *target, Payload{
		Event:     "test",
		Timestamp: time.Now().UTC(),
		StudioID:  target.StudioID,
		Data:      events.Payload{"message": "This is a test webhook delivery"},
	})
	return err
}
