package playout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/grimnir_rundown/internal/blueprint"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
	"github.com/friendsincode/grimnir_rundown/internal/usererror"
)

func TestHoldLifecycle(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.activate(t)
	err := f.svc.ActivateHold(ctx, "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.HoldNeedsNextPart), "got %v", err)

	f.take(t)
	require.NoError(t, f.svc.ActivateHold(ctx, "pl-1"))
	assert.Equal(t, models.HoldPending, f.playlist(t).HoldState)

	err = f.svc.ActivateHold(ctx, "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.DuringHold))

	_, err = f.svc.MoveNextPart(ctx, "pl-1", 1, 0, false)
	assert.True(t, usererror.HasCode(err, usererror.DuringHold))

	require.NoError(t, f.svc.DeactivateHold(ctx, "pl-1"))
	assert.Equal(t, models.HoldNone, f.playlist(t).HoldState)
	err = f.svc.DeactivateHold(ctx, "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.HoldNotCancelable))

	require.NoError(t, f.svc.ActivateHold(ctx, "pl-1"))
	f.take(t)
	pl := f.playlist(t)
	assert.Equal(t, models.HoldActive, pl.HoldState)
	assert.Equal(t, "p2", f.partOf(t, pl.CurrentPartInfo))
	err = f.svc.DeactivateHold(ctx, "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.HoldNotCancelable))

	// the take during an active hold only ends the hold
	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, models.HoldComplete, pl.HoldState)
	assert.Equal(t, "p2", f.partOf(t, pl.CurrentPartInfo))

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, models.HoldNone, pl.HoldState)
	assert.Equal(t, "p3", f.partOf(t, pl.CurrentPartInfo))
}

func TestHoldNotAllowed(t *testing.T) {
	f := newFixture(t, nil, func(s *models.StudioSettings) { s.AllowHold = false })
	f.activate(t)
	f.take(t)
	err := f.svc.ActivateHold(context.Background(), "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.HoldNotAllowed))
}

func TestDisableNextPiece(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.activate(t)

	first, err := f.svc.DisableNextPiece(ctx, "pl-1", false)
	require.NoError(t, err)
	second, err := f.svc.DisableNextPiece(ctx, "pl-1", false)
	require.NoError(t, err)
	_, err = f.svc.DisableNextPiece(ctx, "pl-1", false)
	assert.True(t, usererror.HasCode(err, usererror.NoPieceToDisable))

	byID := make(map[string]models.PieceInstance)
	for _, pi := range f.pieceInstances(t, f.playlist(t).NextPartInfo.PartInstanceID) {
		byID[pi.ID] = pi
	}
	assert.Equal(t, "pc1", byID[first].Piece.ID, "earliest piece goes first")
	assert.Equal(t, "gfx1", byID[second].Piece.ID)
	assert.True(t, byID[first].Disabled)

	undone, err := f.svc.DisableNextPiece(ctx, "pl-1", true)
	require.NoError(t, err)
	assert.Equal(t, second, undone)
}

func TestUpdateTTimer(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()

	timer, err := f.svc.UpdateTTimer(ctx, "pl-1", TimerCommand{Index: 1, Op: TimerCountdown, DurationMs: 60_000})
	require.NoError(t, err)
	require.NotNil(t, timer.Mode)
	assert.Equal(t, models.TTimerCountdown, timer.Mode.Type)
	require.NotNil(t, timer.State)
	assert.Equal(t, now+60_000, timer.State.ZeroTime)

	f.clock.Advance(10 * time.Second)
	timer, err = f.svc.UpdateTTimer(ctx, "pl-1", TimerCommand{Index: 1, Op: TimerPause})
	require.NoError(t, err)
	assert.True(t, timer.State.Paused)
	assert.Equal(t, int64(50_000), timer.State.Duration)

	_, err = f.svc.UpdateTTimer(ctx, "pl-1", TimerCommand{Index: 2, Op: TimerLabel, Label: "Break"})
	require.NoError(t, err)
	assert.Equal(t, "Break", f.playlist(t).TTimers[1].Label)

	tests := []struct {
		name string
		cmd  TimerCommand
	}{
		{"index out of range", TimerCommand{Index: 4, Op: TimerFreeRun}},
		{"zero countdown", TimerCommand{Index: 1, Op: TimerCountdown}},
		{"bad target", TimerCommand{Index: 3, Op: TimerTimeOfDay, Target: "whenever"}},
		{"unknown op", TimerCommand{Index: 1, Op: "rewind"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateTTimer(ctx, "pl-1", tt.cmd)
			assert.True(t, usererror.HasCode(err, usererror.ValidationFailed), "got %v", err)
		})
	}
}

func TestQuickLoopWrapsNext(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.activate(t)
	f.take(t)

	_, err := f.svc.SetQuickLoopMarker(ctx, "pl-1", quickloop.SideStart, &models.QuickLoopMarker{Type: models.MarkerPart, ID: "p2"})
	require.NoError(t, err)
	props, err := f.svc.SetQuickLoopMarker(ctx, "pl-1", quickloop.SideEnd, &models.QuickLoopMarker{Type: models.MarkerPart, ID: "p3"})
	require.NoError(t, err)
	require.NotNil(t, props)
	assert.False(t, props.Running, "p1 is outside the loop")

	f.take(t)
	pl := f.playlist(t)
	require.NotNil(t, pl.QuickLoop)
	assert.True(t, pl.QuickLoop.Running)
	assert.Equal(t, "p3", f.partOf(t, pl.NextPartInfo))

	f.take(t)
	pl = f.playlist(t)
	assert.Equal(t, "p3", f.partOf(t, pl.CurrentPartInfo))
	assert.Equal(t, "p2", f.partOf(t, pl.NextPartInfo), "next wraps to the loop start")

	require.NoError(t, f.svc.ClearQuickLoop(ctx, "pl-1"))
	pl = f.playlist(t)
	assert.False(t, pl.QuickLoop.Running)
	assert.Equal(t, "p5", f.partOf(t, pl.NextPartInfo))
}

func TestQuickLoopDisabled(t *testing.T) {
	f := newFixture(t, nil, func(s *models.StudioSettings) { s.EnableQuickLoop = false })
	_, err := f.svc.SetQuickLoopMarker(context.Background(), "pl-1", quickloop.SideStart, &models.QuickLoopMarker{Type: models.MarkerPlaylist})
	assert.True(t, usererror.HasCode(err, usererror.QuickLoopDisabled))
}

func TestExecuteAction(t *testing.T) {
	bp := blueprint.Standard().Handle("fail", func(context.Context, blueprint.ActionContext, map[string]any) error {
		return assert.AnError
	})
	f := newFixture(t, bp, nil)
	ctx := context.Background()

	err := f.svc.ExecuteAction(ctx, "pl-1", "block_take", nil)
	assert.True(t, usererror.HasCode(err, usererror.InactiveRundown))

	f.activate(t)
	f.take(t)

	err = f.svc.ExecuteAction(ctx, "pl-1", "nope", nil)
	assert.True(t, usererror.HasCode(err, usererror.ActionNotFound))

	err = f.svc.ExecuteAction(ctx, "pl-1", "fail", nil)
	assert.True(t, usererror.HasCode(err, usererror.ActionFailed))

	require.NoError(t, f.svc.ExecuteAction(ctx, "pl-1", "block_take", map[string]any{"durationMs": float64(60_000)}))
	f.clock.Advance(time.Second)
	err = f.svc.Take(ctx, "pl-1", "")
	assert.True(t, usererror.HasCode(err, usererror.TakeBlockedDuration), "got %v", err)
}

func TestActionInsertPieceAndQueuePart(t *testing.T) {
	bp := blueprint.NewActions("show", "2.0.0").
		Handle("insert", func(_ context.Context, ac blueprint.ActionContext, _ map[string]any) error {
			_, err := ac.InsertPiece(blueprint.ScopeCurrent, models.Piece{
				ID: "adlib-cam", SourceLayerID: "cam",
				TimelineObjects: []models.TimelineObject{{
					ID: "adlib_obj", Layer: "pgm",
					Content: models.TimelineContent{Kind: models.ContentVisionMixer, VisionMixer: &models.VisionMixerContent{Input: 9}},
				}},
			})
			return err
		}).
		Handle("queue", func(_ context.Context, ac blueprint.ActionContext, _ map[string]any) error {
			return ac.QueuePartAfterTake(models.Part{Title: "Breaking"}, []models.Piece{camPiece("", "", "", 7)})
		})
	f := newFixture(t, bp, nil)
	ctx := context.Background()
	f.activate(t)
	f.take(t)

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.svc.ExecuteAction(ctx, "pl-1", "insert", nil))

	pl := f.playlist(t)
	var inserted, stopped bool
	for _, pi := range f.pieceInstances(t, pl.CurrentPartInfo.PartInstanceID) {
		switch pi.Piece.ID {
		case "pc1":
			stopped = pi.UserDuration != nil && pi.UserDuration.EndRelativeToPart != nil
		default:
			if pi.AdlibSourceID == "adlib-cam" {
				inserted = pi.DynamicallyInserted != nil && pi.Piece.Enable.StartNow
			}
		}
	}
	assert.True(t, inserted, "adlib starts now")
	assert.True(t, stopped, "planned camera on the same layer ends")

	require.NoError(t, f.svc.ExecuteAction(ctx, "pl-1", "queue", nil))
	pl = f.playlist(t)
	next := f.instance(t, pl.NextPartInfo.PartInstanceID)
	assert.Equal(t, "Breaking", next.Part.Title)
	assert.Equal(t, models.OrphanedAdlib, next.Orphaned)
	assert.Equal(t, "s1", next.SegmentID)
}

func TestUpdateStudioBaseline(t *testing.T) {
	baseline := models.TimelineObject{
		ID: "baseline_black", Layer: "pgm",
		Content: models.TimelineContent{Kind: models.ContentVisionMixer, VisionMixer: &models.VisionMixerContent{Input: 0}},
	}
	f := newFixture(t, nil, func(s *models.StudioSettings) { s.Baseline = []models.TimelineObject{baseline} })
	ctx := context.Background()

	require.NoError(t, f.svc.UpdateStudioBaseline(ctx, "studio-1"))
	tl, err := f.store.LoadTimeline(ctx, "studio-1")
	require.NoError(t, err)
	require.Len(t, tl.Objects, 1)
	assert.Equal(t, "baseline_black", tl.Objects[0].ID)

	f.activate(t)
	f.take(t)
	require.NoError(t, f.svc.UpdateStudioBaseline(ctx, "studio-1"))
	tl, err = f.store.LoadTimeline(ctx, "studio-1")
	require.NoError(t, err)
	assert.Greater(t, len(tl.Objects), 1, "the active playlist owns the timeline")
}

func TestRegenerateTimelineRequiresActive(t *testing.T) {
	f := newFixture(t, nil, nil)
	err := f.svc.RegenerateTimeline(context.Background(), "pl-1")
	assert.True(t, usererror.HasCode(err, usererror.InactiveRundown))

	f.activate(t)
	require.NoError(t, f.svc.RegenerateTimeline(context.Background(), "pl-1"))
}
