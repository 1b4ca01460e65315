package playout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/store"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

func TestSetNextTakeMoveNextTake(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.activate(t)
	pl := f.playlist(t)
	require.True(t, pl.IsActive())
	assert.Equal(t, "p1", f.partOf(t, pl.NextPartInfo))
	firstNext := pl.NextPartInfo.PartInstanceID

	require.NoError(t, f.svc.SetNextPart(ctx, "pl-1", SetNextRequest{PartID: "p1"}))
	pl = f.playlist(t)
	assert.Equal(t, firstNext, pl.NextPartInfo.PartInstanceID, "same part keeps its instance")
	assert.True(t, pl.NextPartInfo.ManuallySelected)

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, "p1", f.partOf(t, pl.CurrentPartInfo))
	assert.Equal(t, "p2", f.partOf(t, pl.NextPartInfo))
	assert.Nil(t, pl.PreviousPartInfo)
	require.NotNil(t, pl.LastTakeTime)
	require.NotNil(t, pl.StartedPlayback)

	// the segment-long graphic continues into p2
	var continued bool
	for _, pi := range f.pieceInstances(t, pl.NextPartInfo.PartInstanceID) {
		if pi.Piece.ID == "gfx1" {
			require.NotNil(t, pi.Infinite)
			continued = pi.Infinite.FromPreviousPart
		}
	}
	assert.True(t, continued)

	partID, err := f.svc.MoveNextPart(ctx, "pl-1", 1, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "p3", partID)
	pl = f.playlist(t)
	assert.Equal(t, "p3", f.partOf(t, pl.NextPartInfo))
	assert.True(t, pl.NextPartInfo.ManuallySelected)

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, "p1", f.partOf(t, pl.PreviousPartInfo))
	assert.Equal(t, "p3", f.partOf(t, pl.CurrentPartInfo))
	assert.Equal(t, "p5", f.partOf(t, pl.NextPartInfo), "invalid p4 is skipped")
	assert.Equal(t, 1, f.instance(t, pl.CurrentPartInfo.PartInstanceID).TakeCount)

	tl, err := f.store.LoadTimeline(ctx, "studio-1")
	require.NoError(t, err)
	assert.NotEmpty(t, tl.TimelineHash)
	assert.Equal(t, "test", tl.GenerationVersions.Core)

	var onAir, previous bool
	for _, o := range tl.Objects {
		if o.Content.Kind != models.ContentVisionMixer {
			continue
		}
		switch o.PartID {
		case "p3":
			onAir = true
		case "p1":
			previous = true
		}
	}
	assert.True(t, onAir, "current part on the timeline")
	assert.True(t, previous, "previous part kept until the take")

	last := f.pub.lastTimeline()
	require.NotNil(t, last)
	assert.Equal(t, tl.TimelineHash, last.TimelineHash)
}

// Take selects the following part as next on its own, so with two parts the
// second take needs no operator move.
func TestTwoPartTakeSequence(t *testing.T) {
	f := newFixtureWith(t, nil, nil, store.PlaylistContent{
		Playlist: models.RundownPlaylist{ID: "pl-1", StudioID: "studio-1", Name: "Short", RundownIDsInOrder: []string{"rd-1"}},
		Rundowns: []models.Rundown{{ID: "rd-1", PlaylistID: "pl-1", StudioID: "studio-1"}},
		Segments: []models.Segment{{ID: "s1", RundownID: "rd-1", Rank: 1}},
		Parts: []models.Part{
			{ID: "p1", RundownID: "rd-1", SegmentID: "s1", Rank: 1},
			{ID: "p2", RundownID: "rd-1", SegmentID: "s1", Rank: 2},
		},
		Pieces: []models.Piece{
			camPiece("pc1", "p1", "s1", 1),
			camPiece("pc2", "p2", "s1", 2),
		},
	})
	ctx := context.Background()

	f.activate(t)
	require.NoError(t, f.svc.SetNextPart(ctx, "pl-1", SetNextRequest{PartID: "p1"}))

	f.take(t)
	pl := f.playlist(t)
	assert.Equal(t, "p1", f.partOf(t, pl.CurrentPartInfo))
	assert.Equal(t, "p2", f.partOf(t, pl.NextPartInfo))
	assert.False(t, pl.NextPartInfo.ManuallySelected)

	partID, err := f.svc.MoveNextPart(ctx, "pl-1", 1, 0, false)
	require.NoError(t, err)
	assert.Empty(t, partID, "nothing after the last part")
	assert.Equal(t, "p2", f.partOf(t, f.playlist(t).NextPartInfo))

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, "p1", f.partOf(t, pl.PreviousPartInfo))
	assert.Equal(t, "p2", f.partOf(t, pl.CurrentPartInfo))
	assert.Nil(t, pl.NextPartInfo)
}

func TestTakeRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture) (from string)
		code  usererror.Code
	}{
		{
			name:  "inactive playlist",
			setup: func(t *testing.T, f *fixture) string { return "" },
			code:  usererror.InactiveRundown,
		},
		{
			name: "wrong from part",
			setup: func(t *testing.T, f *fixture) string {
				f.activate(t)
				f.take(t)
				return "not-the-current-instance"
			},
			code: usererror.TakeFromIncorrectPart,
		},
		{
			name: "rate limited",
			setup: func(t *testing.T, f *fixture) string {
				f.activate(t)
				f.take(t)
				f.clock.Advance(100 * time.Millisecond)
				return ""
			},
			code: usererror.TakeRateLimit,
		},
		{
			name: "nothing next",
			setup: func(t *testing.T, f *fixture) string {
				f.activate(t)
				for i := 0; i < 4; i++ {
					f.take(t)
				}
				f.clock.Advance(time.Second)
				return ""
			},
			code: usererror.TakeNoNextPart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			from := tt.setup(t, f)
			err := f.svc.Take(context.Background(), "pl-1", from)
			require.Error(t, err)
			assert.True(t, usererror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTakeUnknownPlaylist(t *testing.T) {
	f := newFixture(t, nil, nil)
	err := f.svc.Take(context.Background(), "missing", "")
	assert.True(t, usererror.HasCode(err, usererror.PlaylistNotFound))
}

func TestSetNextPartErrors(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.activate(t)

	tests := []struct {
		name string
		req  SetNextRequest
		code usererror.Code
	}{
		{"unplayable", SetNextRequest{PartID: "p4"}, usererror.PartNotPlayable},
		{"unknown part", SetNextRequest{PartID: "nope"}, usererror.PartNotFound},
		{"no target", SetNextRequest{}, usererror.ValidationFailed},
		{"both targets", SetNextRequest{PartID: "p1", PartInstanceID: "x"}, usererror.ValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.SetNextPart(ctx, "pl-1", tt.req)
			assert.True(t, usererror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSetNextPartWithOffset(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.activate(t)
	offset := int64(2500)
	require.NoError(t, f.svc.SetNextPart(context.Background(), "pl-1", SetNextRequest{PartID: "p2", NextTimeOffset: &offset}))

	pl := f.playlist(t)
	assert.Equal(t, "p2", f.partOf(t, pl.NextPartInfo))
	require.NotNil(t, pl.NextTimeOffset)
	assert.Equal(t, offset, *pl.NextTimeOffset)
}

func TestMoveNextPart(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.svc.MoveNextPart(ctx, "pl-1", 0, 0, false)
	assert.True(t, usererror.HasCode(err, usererror.ValidationFailed))

	f.activate(t)

	partID, err := f.svc.MoveNextPart(ctx, "pl-1", 0, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "p3", partID)

	partID, err = f.svc.MoveNextPart(ctx, "pl-1", -1, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "p2", partID)

	partID, err = f.svc.MoveNextPart(ctx, "pl-1", 10, 0, false)
	require.NoError(t, err)
	assert.Empty(t, partID, "out of range leaves next alone")
	assert.Equal(t, "p2", f.partOf(t, f.playlist(t).NextPartInfo))
}

func TestSetAndQueueNextSegment(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.activate(t)

	err := f.svc.SetNextSegment(ctx, "pl-1", "nope")
	assert.True(t, usererror.HasCode(err, usererror.SegmentNotFound))

	require.NoError(t, f.svc.SetNextSegment(ctx, "pl-1", "s2"))
	assert.Equal(t, "p3", f.partOf(t, f.playlist(t).NextPartInfo))

	require.NoError(t, f.svc.SetNextSegment(ctx, "pl-1", "s1"))
	f.take(t)

	// queuing keeps p2 next: it is still inside the current segment
	require.NoError(t, f.svc.QueueNextSegment(ctx, "pl-1", "s2"))
	pl := f.playlist(t)
	assert.Equal(t, "s2", pl.QueuedSegmentID)
	assert.Equal(t, "p2", f.partOf(t, pl.NextPartInfo))

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, "p3", f.partOf(t, pl.NextPartInfo))
	assert.True(t, pl.NextPartInfo.ConsumesQueuedSegmentID)

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, "p3", f.partOf(t, pl.CurrentPartInfo))
	assert.Empty(t, pl.QueuedSegmentID)
}

func TestActivationIsExclusivePerStudio(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.store.ImportPlaylist(ctx, store.PlaylistContent{
		Playlist: models.RundownPlaylist{ID: "pl-2", StudioID: "studio-1", Name: "Late", RundownIDsInOrder: []string{"rd-2"}},
		Rundowns: []models.Rundown{{ID: "rd-2", PlaylistID: "pl-2", StudioID: "studio-1"}},
		Segments: []models.Segment{{ID: "s9", RundownID: "rd-2", Rank: 1}},
		Parts:    []models.Part{{ID: "p9", RundownID: "rd-2", SegmentID: "s9", Rank: 1}},
	}))

	f.activate(t)
	err := f.svc.ActivatePlaylist(ctx, "pl-2", false)
	assert.True(t, usererror.HasCode(err, usererror.RundownAlreadyActive), "got %v", err)

	// reactivating switches rehearsal without touching next
	next := f.playlist(t).NextPartInfo.PartInstanceID
	require.NoError(t, f.svc.ActivatePlaylist(ctx, "pl-1", true))
	pl := f.playlist(t)
	assert.True(t, pl.Rehearsal)
	assert.Equal(t, next, pl.NextPartInfo.PartInstanceID)

	require.NoError(t, f.svc.DeactivatePlaylist(ctx, "pl-1"))
	require.NoError(t, f.svc.ActivatePlaylist(ctx, "pl-2", false))
}

func TestDeactivateAndReset(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.activate(t)
	f.take(t)

	err := f.svc.ResetPlaylist(ctx, "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.RundownResetWhileActive))

	require.NoError(t, f.svc.DeactivatePlaylist(ctx, "pl-1"))
	pl := f.playlist(t)
	assert.False(t, pl.IsActive())
	assert.Nil(t, pl.CurrentPartInfo)
	assert.Nil(t, pl.NextPartInfo)
	assert.Equal(t, models.HoldNone, pl.HoldState)

	// deactivating twice is harmless
	require.NoError(t, f.svc.DeactivatePlaylist(ctx, "pl-1"))

	require.NoError(t, f.svc.ResetPlaylist(ctx, "pl-1"))
	pl = f.playlist(t)
	assert.Nil(t, pl.StartedPlayback)
	require.NotNil(t, pl.ResetTime)

	data, err := f.store.LoadPlayoutData(ctx, "pl-1")
	require.NoError(t, err)
	assert.Empty(t, data.PartInstances)
}

func TestResetDuringRehearsal(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.ActivatePlaylist(ctx, "pl-1", true))
	f.take(t)

	require.NoError(t, f.svc.ResetPlaylist(ctx, "pl-1"))
	pl := f.playlist(t)
	assert.True(t, pl.IsActive())
	assert.Nil(t, pl.CurrentPartInfo)
	assert.Equal(t, "p1", f.partOf(t, pl.NextPartInfo))
}

func TestPlaybackReportTakesNext(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.activate(t)
	f.take(t)

	pl := f.playlist(t)
	nextID := pl.NextPartInfo.PartInstanceID
	at := f.clock.Now().UnixMilli() + 40

	// rate limiting does not apply to reports from the gateway
	require.NoError(t, f.svc.OnPartPlaybackStarted(ctx, "pl-1", PlaybackEvent{PartInstanceID: nextID, Time: at}))

	pl = f.playlist(t)
	assert.Equal(t, nextID, pl.CurrentPartInfo.PartInstanceID)
	inst := f.instance(t, nextID)
	require.NotNil(t, inst.Timings.PlannedStartedPlayback)
	assert.Equal(t, at, *inst.Timings.PlannedStartedPlayback)
	require.NotNil(t, inst.Timings.ReportedStartedPlayback)
	assert.Equal(t, at, *inst.Timings.ReportedStartedPlayback)

	// unknown instances are ignored
	require.NoError(t, f.svc.OnPartPlaybackStarted(ctx, "pl-1", PlaybackEvent{PartInstanceID: "ghost", Time: at}))
	require.NoError(t, f.svc.OnPartPlaybackStopped(ctx, "pl-1", PlaybackEvent{PartInstanceID: nextID, Time: at + 10}))
	inst = f.instance(t, nextID)
	require.NotNil(t, inst.Timings.ReportedStoppedPlayback)
}
