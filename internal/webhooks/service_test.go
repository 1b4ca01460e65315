package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

type received struct {
	event     string
	signature string
	body      []byte
}

type receiver struct {
	mu     sync.Mutex
	calls  []received
	status int
}

func (rc *receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rc.mu.Lock()
	rc.calls = append(rc.calls, received{
		event:     r.Header.Get("X-Grimnir-Event"),
		signature: r.Header.Get("X-Grimnir-Signature"),
		body:      body,
	})
	status := rc.status
	rc.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (rc *receiver) snapshot() []received {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]received(nil), rc.calls...)
}

func newTestService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(&models.WebhookTarget{}, &models.WebhookLog{}))

	bus := events.NewBus()
	return NewService(database, bus, zerolog.Nop()), bus
}

func TestCreateTargetValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		url     string
		events  string
		wantErr bool
	}{
		{"https", "https://gateway.example/hook", "", false},
		{"filtered", "http://gateway.local/hook", "timeline.updated, playlist.updated", false},
		{"no scheme", "gateway.local/hook", "", true},
		{"ftp", "ftp://gateway.local/hook", "", true},
		{"unknown event", "http://gateway.local/hook", "user.action", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := svc.CreateTarget(ctx, "studio-1", tt.url, tt.events)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, target.Secret)
			assert.True(t, target.Active)
		})
	}

	targets, err := svc.ListTargets(ctx, "studio-1")
	require.NoError(t, err)
	assert.Len(t, targets, 2)
}

func TestStartDeliversSignedEvents(t *testing.T) {
	svc, bus := newTestService(t)
	rc := &receiver{}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	ctx := context.Background()
	all, err := svc.CreateTarget(ctx, "studio-1", srv.URL+"/all", "")
	require.NoError(t, err)
	_, err = svc.CreateTarget(ctx, "studio-1", srv.URL+"/playlists", string(events.EventPlaylist))
	require.NoError(t, err)
	_, err = svc.CreateTarget(ctx, "studio-2", srv.URL+"/other", "")
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		svc.Start(runCtx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return bus.Subscribers(events.EventTimeline) == 1
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.EventTimeline, events.Payload{"studio_id": "studio-1", "hash": "abc"})

	var logs []models.WebhookLog
	require.Eventually(t, func() bool {
		logs, err = svc.Deliveries(ctx, all.ID, 10)
		return err == nil && len(logs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	require.Len(t, rc.snapshot(), 1)
	call := rc.snapshot()[0]
	assert.Equal(t, string(events.EventTimeline), call.event)
	assert.Equal(t, Sign(call.body, all.Secret), call.signature)

	var body Payload
	require.NoError(t, json.Unmarshal(call.body, &body))
	assert.Equal(t, "studio-1", body.StudioID)
	assert.Equal(t, "abc", body.Data["hash"])

	assert.Equal(t, http.StatusNoContent, logs[0].StatusCode)
	assert.Empty(t, logs[0].Error)
}

func TestTestWebhookRecordsFailure(t *testing.T) {
	svc, _ := newTestService(t)
	rc := &receiver{status: http.StatusBadGateway}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	ctx := context.Background()
	target, err := svc.CreateTarget(ctx, "studio-1", srv.URL, "")
	require.NoError(t, err)

	err = svc.TestWebhook(ctx, target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	logs, err := svc.Deliveries(ctx, target.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "test", logs[0].Event)
	assert.Equal(t, http.StatusBadGateway, logs[0].StatusCode)

	require.NoError(t, svc.DeleteTarget(ctx, "studio-1", target.ID))
	assert.ErrorIs(t, svc.DeleteTarget(ctx, "studio-1", target.ID), ErrTargetNotFound)
	_, err = svc.Target(ctx, "studio-1", target.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)
	logs, err = svc.Deliveries(ctx, target.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
