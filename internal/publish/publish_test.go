package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/grimnir_rundown/internal/events"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    error
}

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Name() string { return "failing" }
func (f *failingPublisher) PublishTimeline(context.Context, *models.TimelineComplete) error {
	f.calls++
	return errors.New("gateway offline")
}
func (f *failingPublisher) PublishPlaylist(context.Context, PlaylistSnapshot) error {
	f.calls++
	return errors.New("gateway offline")
}

type fakeConn struct {
	subjects []string
	data     [][]byte
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subjects = append(c.subjects, subject)
	c.data = append(c.data, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func timeline(studio, hash string, generated int64) *models.TimelineComplete {
	return &models.TimelineComplete{
		ID:           studio,
		TimelineHash: hash,
		Generated:    generated,
		Objects:      []models.TimelineObject{{ID: "obj1", Layer: "cam"}},
	}
}

func TestMultiContinuesPastFailures(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventTimeline)
	failing := &failingPublisher{}
	m := NewMulti(zerolog.Nop(), failing, nil, NewBusPublisher(bus))

	err := m.PublishTimeline(context.Background(), timeline("studio-1", "h1", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway offline")
	assert.Equal(t, 1, failing.calls)

	select {
	case payload := <-sub:
		assert.Equal(t, "studio-1", payload["studio_id"])
		assert.Equal(t, "h1", payload["hash"])
	default:
		t.Fatal("bus publisher was skipped")
	}

	require.NoError(t, NewMulti(zerolog.Nop()).PublishPlaylist(context.Background(), PlaylistSnapshot{}))
}

func TestArchiverSkipsUnchangedHash(t *testing.T) {
	store := &memStore{}
	bus := events.NewBus()
	archived := bus.Subscribe(events.EventArchived)
	a := NewArchiver(store, "timelines", bus, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, a.PublishTimeline(ctx, timeline("studio-1", "h1", 100)))
	require.NoError(t, a.PublishTimeline(ctx, timeline("studio-1", "h1", 200)))
	require.NoError(t, a.PublishTimeline(ctx, timeline("studio-1", "h2", 300)))
	require.NoError(t, a.PublishTimeline(ctx, timeline("studio-2", "h1", 400)))

	assert.Len(t, store.objects, 3)
	data, err := store.Get(ctx, "timelines/studio-1/100-h1.json")
	require.NoError(t, err)

	var tl models.TimelineComplete
	require.NoError(t, json.Unmarshal(data, &tl))
	assert.Equal(t, "h1", tl.TimelineHash)
	require.Len(t, tl.Objects, 1)

	_, err = store.Get(ctx, "timelines/studio-1/200-h1.json")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Len(t, archived, 3)
}

func TestArchiverRetriesAfterFailedPut(t *testing.T) {
	store := &memStore{fail: errors.New("bucket gone")}
	a := NewArchiver(store, "tl", nil, zerolog.Nop())
	ctx := context.Background()

	require.Error(t, a.PublishTimeline(ctx, timeline("studio-1", "h1", 1)))
	store.fail = nil
	require.NoError(t, a.PublishTimeline(ctx, timeline("studio-1", "h1", 1)))
	assert.Contains(t, store.objects, "tl/studio-1/1-h1.json")
}

func TestNATSPublisherSubjectsAndEnvelope(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "rundown", "node-a", zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.PublishTimeline(ctx, timeline("studio-1", "abc", 42)))
	require.NoError(t, p.PublishPlaylist(ctx, PlaylistSnapshot{
		StudioID: "studio-1",
		Playlist: models.RundownPlaylist{ID: "pl-1"},
	}))
	require.NoError(t, p.Close())

	assert.Equal(t, []string{"rundown.studio-1.timeline", "rundown.studio-1.playlist"}, conn.subjects)
	assert.True(t, conn.drained)

	msg, err := UnmarshalMessage(conn.data[0])
	require.NoError(t, err)
	assert.Equal(t, events.EventTimeline, msg.EventType)
	assert.Equal(t, "node-a", msg.NodeID)
	assert.NotEmpty(t, msg.MessageID)

	tl, err := msg.DecodeTimeline()
	require.NoError(t, err)
	assert.Equal(t, "abc", tl.TimelineHash)
	assert.Equal(t, int64(42), tl.Generated)

	other, err := UnmarshalMessage(conn.data[1])
	require.NoError(t, err)
	assert.NotEqual(t, msg.MessageID, other.MessageID)
	_, err = other.DecodeTimeline()
	assert.Error(t, err)
}

func TestRedisPublisherOpensBreakerWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	p := NewRedisPublisher(client, RedisConfig{Channel: "rd", CheckInterval: time.Hour}, zerolog.Nop())
	assert.Equal(t, "rd:studio-1", p.Channel("studio-1"))

	err := p.PublishTimeline(context.Background(), timeline("studio-1", "h", 1))
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}

func TestEventFilters(t *testing.T) {
	assert.Equal(t,
		[]events.EventType{events.EventTimeline, events.EventArchived},
		parseEventTypes("timeline.updated, bogus,timeline.archived"))
	assert.Empty(t, parseEventTypes(""))

	assert.True(t, matchesStudio(events.Payload{"studio_id": "a"}, ""))
	assert.True(t, matchesStudio(events.Payload{"studio_id": "a"}, "a"))
	assert.False(t, matchesStudio(events.Payload{"studio_id": "b"}, "a"))
	assert.False(t, matchesStudio(events.Payload{}, "a"))
}

func TestHubStreamsStudioEvents(t *testing.T) {
	bus := events.NewBus()
	srv := httptest.NewServer(NewHub(bus, zerolog.Nop()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?studio=studio-1&types=timeline.updated"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(ws.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return bus.Subscribers(events.EventTimeline) == 1
	}, 2*time.Second, 10*time.Millisecond)

	pub := NewBusPublisher(bus)
	require.NoError(t, pub.PublishTimeline(ctx, timeline("studio-2", "skip", 1)))
	require.NoError(t, pub.PublishTimeline(ctx, timeline("studio-1", "keep", 2)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, string(events.EventTimeline), msg.Type)
	assert.Equal(t, "studio-1", msg.Payload["studio_id"])
	assert.Equal(t, "keep", msg.Payload["hash"])
}
