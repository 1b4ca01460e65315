/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
	"github.com/friendsincode/grimnir_rundown/internal/webhooks"
)

// SetWebhooks enables the webhook target endpoints.
func (a *API) SetWebhooks(svc *webhooks.Service) {
	a.webhooks = svc
}

func (a *API) webhookRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Use(a.requireWebhooks)
	r.Get("/", a.handleWebhookList)
	r.With(admin).Post("/", a.handleWebhookCreate)
	r.Route("/{webhookID}", func(r chi.Router) {
		r.Get("/deliveries", a.handleWebhookDeliveries)
		r.With(admin).Delete("/", a.handleWebhookDelete)
		r.With(admin).Post("/test", a.handleWebhookTest)
	})
}

func (a *API) requireWebhooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.webhooks == nil {
			writeError(w, http.StatusNotFound, "webhooks_disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type webhookCreateRequest struct {
	URL    string `json:"url"`
	Events string `json:"events"`
}

// webhookCreated exposes the signing secret once, at creation.
type webhookCreated struct {
	models.WebhookTarget
	Secret string `json:"secret"`
}

func webhookError(err error, webhookID string) error {
	switch {
	case errors.Is(err, webhooks.ErrInvalidTarget):
		return usererror.Wrap(err, usererror.ValidationFailed, map[string]any{"reason": err.Error()})
	case errors.Is(err, webhooks.ErrTargetNotFound):
		return usererror.Wrap(err, usererror.WebhookNotFound, map[string]any{"webhookId": webhookID})
	}
	return err
}

func (a *API) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	targets, err := a.webhooks.ListTargets(r.Context(), chi.URLParam(r, "studioID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (a *API) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req webhookCreateRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	target, err := a.webhooks.CreateTarget(r.Context(), chi.URLParam(r, "studioID"), req.URL, req.Events)
	if err != nil {
		a.respondError(w, r, webhookError(err, ""))
		return
	}
	writeJSON(w, http.StatusCreated, webhookCreated{WebhookTarget: *target, Secret: target.Secret})
}

func (a *API) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")
	if err := a.webhooks.DeleteTarget(r.Context(), chi.URLParam(r, "studioID"), webhookID); err != nil {
		a.respondError(w, r, webhookError(err, webhookID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")
	target, err := a.webhooks.Target(r.Context(), chi.URLParam(r, "studioID"), webhookID)
	if err != nil {
		a.respondError(w, r, webhookError(err, webhookID))
		return
	}
	if err := a.webhooks.TestWebhook(r.Context(), target); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "delivery_failed", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (a *API) handleWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")
	if _, err := a.webhooks.Target(r.Context(), chi.URLParam(r, "studioID"), webhookID); err != nil {
		a.respondError(w, r, webhookError(err, webhookID))
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	logs, err := a.webhooks.Deliveries(r.Context(), webhookID, limit)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
