package playout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/grimnir_rundown/internal/blueprint"
	"github.com/friendsincode/grimnir_rundown/internal/db"
	"github.com/friendsincode/grimnir_rundown/internal/jobs"
	"github.com/friendsincode/grimnir_rundown/internal/lock"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/publish"
	"github.com/friendsincode/grimnir_rundown/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu        sync.Mutex
	timelines []*models.TimelineComplete
	snapshots []publish.PlaylistSnapshot
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) PublishTimeline(_ context.Context, tl *models.TimelineComplete) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timelines = append(p.timelines, tl)
	return nil
}

func (p *recordingPublisher) PublishPlaylist(_ context.Context, snap publish.PlaylistSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snap)
	return nil
}

func (p *recordingPublisher) lastTimeline() *models.TimelineComplete {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.timelines) == 0 {
		return nil
	}
	return p.timelines[len(p.timelines)-1]
}

type fixture struct {
	svc   *Service
	store *store.Store
	clock *fakeClock
	pub   *recordingPublisher
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// newFixture seeds one studio with playlist pl-1:
//
//	s1: p1 (cam + segment-long gfx), p2 (cam)
//	s2: p3 (cam), p4 (cam, unplayable), p5 (cam)
func newFixture(t *testing.T, bp blueprint.Blueprint, tweak func(*models.StudioSettings)) *fixture {
	t.Helper()
	return newFixtureWith(t, bp, tweak, store.PlaylistContent{
		Playlist: models.RundownPlaylist{ID: "pl-1", StudioID: "studio-1", Name: "Evening", RundownIDsInOrder: []string{"rd-1"}},
		Rundowns: []models.Rundown{{ID: "rd-1", PlaylistID: "pl-1", StudioID: "studio-1"}},
		Segments: []models.Segment{
			{ID: "s1", RundownID: "rd-1", Rank: 1},
			{ID: "s2", RundownID: "rd-1", Rank: 2},
		},
		Parts: []models.Part{
			{ID: "p1", RundownID: "rd-1", SegmentID: "s1", Rank: 1},
			{ID: "p2", RundownID: "rd-1", SegmentID: "s1", Rank: 2},
			{ID: "p3", RundownID: "rd-1", SegmentID: "s2", Rank: 1},
			{ID: "p4", RundownID: "rd-1", SegmentID: "s2", Rank: 2, Invalid: true},
			{ID: "p5", RundownID: "rd-1", SegmentID: "s2", Rank: 3},
		},
		Pieces: []models.Piece{
			camPiece("pc1", "p1", "s1", 1),
			{
				ID: "gfx1", RundownID: "rd-1", StartPartID: "p1", StartSegmentID: "s1",
				SourceLayerID: "gfx", Lifespan: models.LifespanSegmentChange,
				Enable: models.PieceEnable{Start: 1000},
				TimelineObjects: []models.TimelineObject{{
					ID: "gfx1_obj", Layer: "gfx",
					Content: models.TimelineContent{Kind: models.ContentGraphics, Graphics: &models.GraphicsContent{Template: "lower-third"}},
				}},
			},
			camPiece("pc2", "p2", "s1", 2),
			camPiece("pc3", "p3", "s2", 3),
			camPiece("pc4", "p4", "s2", 4),
			camPiece("pc5", "p5", "s2", 5),
		},
	})
}

// newFixtureWith seeds studio-1 and imports content, which must describe
// playlist pl-1.
func newFixtureWith(t *testing.T, bp blueprint.Blueprint, tweak func(*models.StudioSettings), content store.PlaylistContent) *fixture {
	t.Helper()
	st := store.New(setupTestDB(t), nil, zerolog.Nop())

	settings := models.DefaultStudioSettings()
	settings.MinimumTakeSpanMs = 500
	if tweak != nil {
		tweak(&settings)
	}

	ctx := context.Background()
	require.NoError(t, st.SaveStudio(ctx, &models.Studio{ID: "studio-1", Name: "Studio 1", Settings: settings}))
	require.NoError(t, st.ImportPlaylist(ctx, content))

	registry := jobs.NewRegistry("test", nil, jobs.WorkerConfig{Lanes: 2, QueueSize: 16, JobTimeout: 5 * time.Second}, zerolog.Nop())
	t.Cleanup(registry.Stop)

	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	pub := &recordingPublisher{}
	svc := NewService(Options{
		Store:       st,
		Registry:    registry,
		Locker:      lock.NewMemoryLocker(zerolog.Nop()),
		Publisher:   pub,
		Blueprint:   bp,
		LockTimeout: time.Second,
		CoreVersion: "test",
		Now:         clock.Now,
		Logger:      zerolog.Nop(),
	})
	return &fixture{svc: svc, store: st, clock: clock, pub: pub}
}

func camPiece(id, partID, segmentID string, input int) models.Piece {
	return models.Piece{
		ID: id, RundownID: "rd-1", StartPartID: partID, StartSegmentID: segmentID,
		SourceLayerID: "cam",
		TimelineObjects: []models.TimelineObject{{
			ID: id + "_obj", Layer: "pgm",
			Content: models.TimelineContent{Kind: models.ContentVisionMixer, VisionMixer: &models.VisionMixerContent{Input: input}},
		}},
	}
}

func (f *fixture) playlist(t *testing.T) *models.RundownPlaylist {
	t.Helper()
	pl, err := f.store.LoadPlaylist(context.Background(), "pl-1")
	require.NoError(t, err)
	return pl
}

// partOf returns the part id behind a part info, or "" for nil.
func (f *fixture) partOf(t *testing.T, info *models.PartInfo) string {
	t.Helper()
	if info == nil {
		return ""
	}
	inst := f.instance(t, info.PartInstanceID)
	return inst.Part.ID
}

func (f *fixture) instance(t *testing.T, id string) models.PartInstance {
	t.Helper()
	data, err := f.store.LoadPlayoutData(context.Background(), "pl-1")
	require.NoError(t, err)
	for _, inst := range data.PartInstances {
		if inst.ID == id {
			return inst
		}
	}
	t.Fatalf("part instance %s not found", id)
	return models.PartInstance{}
}

func (f *fixture) pieceInstances(t *testing.T, partInstanceID string) []models.PieceInstance {
	t.Helper()
	data, err := f.store.LoadPlayoutData(context.Background(), "pl-1")
	require.NoError(t, err)
	var out []models.PieceInstance
	for _, pi := range data.PieceInstances {
		if pi.PartInstanceID == partInstanceID {
			out = append(out, pi)
		}
	}
	return out
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.ActivatePlaylist(context.Background(), "pl-1", false))
}

func (f *fixture) take(t *testing.T) {
	t.Helper()
	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.Take(context.Background(), "pl-1", ""))
}
