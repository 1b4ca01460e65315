package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/grimnir_rundown/internal/audit"
	"github.com/friendsincode/grimnir_rundown/internal/auth"
	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
)

func TestActionName(t *testing.T) {
	tests := []struct {
		method, pattern, want string
	}{
		{http.MethodPost, "/api/v1/playlists/{playlistID}/take", "take"},
		{http.MethodPost, "/api/v1/playlists/{playlistID}/next/move", "next.move"},
		{http.MethodDelete, "/api/v1/playlists/{playlistID}/hold", "hold.clear"},
		{http.MethodPut, "/api/v1/playlists/{playlistID}/quickloop/{side}", "quickloop"},
		{http.MethodPost, "/api/v1/playlists/{playlistID}/actions/{actionID}", "actions"},
		{http.MethodPost, "/api/v1/playlists/{playlistID}/playback/part-started", "playback.part-started"},
		{http.MethodPut, "/api/v1/playlists/{playlistID}/", "import"},
		{http.MethodDelete, "/api/v1/playlists/{playlistID}/", "delete"},
		{http.MethodPost, "/api/v1/studios/{studioID}/baseline", "baseline"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, actionName(tt.method, tt.pattern), tt.pattern)
	}
}

func TestActionLogRecordsCommands(t *testing.T) {
	s := newTestServer(t, []byte("secret"))
	bus := events.NewBus()
	svc := audit.NewService(s.store.DB(), bus, zerolog.Nop())
	s.api.SetActionLog(bus, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return bus.Subscribers(events.EventUserAction) == 1
	}, time.Second, 5*time.Millisecond)

	operator := s.token(t, "", auth.RoleOperator)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/v1/playlists/pl-1", importBody("studio-1"), operator).Code)
	require.Equal(t, http.StatusPreconditionFailed, s.do(t, http.MethodPost, "/api/v1/playlists/pl-1/take", nil, operator).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/playlists/pl-1/activate", nil, operator).Code)

	var entries []models.UserActionLog
	require.Eventually(t, func() bool {
		rr := s.do(t, http.MethodGet, "/api/v1/studios/studio-1/actions", nil, operator)
		if rr.Code != http.StatusOK {
			return false
		}
		var body struct {
			Entries []models.UserActionLog `json:"entries"`
		}
		if json.Unmarshal(rr.Body.Bytes(), &body) != nil {
			return false
		}
		entries = body.Entries
		return len(entries) == 3
	}, 2*time.Second, 20*time.Millisecond)

	byAction := map[string]models.UserActionLog{}
	for _, e := range entries {
		byAction[e.Action] = e
		assert.Equal(t, "u1", e.UserID)
		assert.Equal(t, "pl-1", e.PlaylistID)
		assert.Equal(t, "studio-1", e.StudioID)
	}
	require.Contains(t, byAction, "import")
	require.Contains(t, byAction, "activate")
	take := byAction["take"]
	assert.False(t, take.Success)
	assert.Equal(t, http.StatusPreconditionFailed, take.Status)
	assert.Equal(t, "inactive_rundown", take.ErrorCode)

	rr := s.do(t, http.MethodGet, "/api/v1/studios/studio-1/actions?failed=true", nil, operator)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":1`)

	rr = s.do(t, http.MethodGet, "/api/v1/studios/studio-1/actions?limit=0", nil, operator)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestActionLogDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(t, http.MethodGet, "/api/v1/studios/studio-1/actions", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
