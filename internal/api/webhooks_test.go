package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/grimnir_rundown/internal/auth"
	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/webhooks"
)

func TestWebhookEndpoints(t *testing.T) {
	s := newTestServer(t, []byte("secret"))
	s.api.SetWebhooks(webhooks.NewService(s.store.DB(), events.NewBus(), zerolog.Nop()))

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	admin := s.token(t, "", auth.RoleAdmin)
	operator := s.token(t, "", auth.RoleOperator)

	rr := s.do(t, http.MethodPost, "/api/v1/studios/studio-1/webhooks", map[string]string{"url": gateway.URL}, operator)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/studios/studio-1/webhooks", map[string]string{"url": "not a url"}, admin)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_failed", decodeBody(t, rr)["error"])

	rr = s.do(t, http.MethodPost, "/api/v1/studios/studio-1/webhooks", map[string]string{"url": gateway.URL, "events": "timeline.updated"}, admin)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody(t, rr)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.NotEmpty(t, created["secret"])

	rr = s.do(t, http.MethodGet, "/api/v1/studios/studio-1/webhooks", nil, operator)
	require.Equal(t, http.StatusOK, rr.Code)
	var targets []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &targets))
	require.Len(t, targets, 1)
	assert.NotContains(t, targets[0], "secret")

	rr = s.do(t, http.MethodPost, "/api/v1/studios/studio-1/webhooks/"+id+"/test", nil, admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/v1/studios/studio-1/webhooks/"+id+"/deliveries", nil, operator)
	require.Equal(t, http.StatusOK, rr.Code)
	var logs []models.WebhookLog
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)

	rr = s.do(t, http.MethodDelete, "/api/v1/studios/studio-2/webhooks/"+id, nil, admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodDelete, "/api/v1/studios/studio-1/webhooks/"+id, nil, admin)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestWebhooksDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(t, http.MethodGet, "/api/v1/studios/studio-1/webhooks", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "webhooks_disabled", decodeBody(t, rr)["error"])
}
