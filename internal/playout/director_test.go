package playout

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/store"
)

func TestDirectorReportsAutoNext(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	// re-ingest with p1 set to autonext after five seconds
	data, err := f.store.LoadPlayoutData(ctx, "pl-1")
	require.NoError(t, err)
	for i := range data.Parts {
		if data.Parts[i].ID == "p1" {
			d := int64(5000)
			data.Parts[i].AutoNext = true
			data.Parts[i].ExpectedDuration = &d
		}
	}
	require.NoError(t, f.store.ImportPlaylist(ctx, store.PlaylistContent{
		Playlist: *data.Playlist,
		Rundowns: data.Rundowns,
		Segments: data.Segments,
		Parts:    data.Parts,
		Pieces:   data.Pieces,
	}))

	f.activate(t)
	f.take(t)
	d := NewDirector(f.svc, time.Second, zerolog.Nop())

	pl := f.playlist(t)
	currentID := pl.CurrentPartInfo.PartInstanceID
	nextID := pl.NextPartInfo.PartInstanceID
	started := *f.instance(t, currentID).Timings.PlannedStartedPlayback

	require.NoError(t, d.tick(ctx))
	require.NotNil(t, f.instance(t, currentID).Timings.ReportedStartedPlayback)

	// not due yet
	f.clock.Advance(2 * time.Second)
	require.NoError(t, d.tick(ctx))
	assert.Equal(t, currentID, f.playlist(t).CurrentPartInfo.PartInstanceID)

	f.clock.Advance(4 * time.Second)
	require.NoError(t, d.tick(ctx))
	pl = f.playlist(t)
	assert.Equal(t, nextID, pl.CurrentPartInfo.PartInstanceID)
	assert.Equal(t, "p2", f.partOf(t, pl.CurrentPartInfo))

	inst := f.instance(t, nextID)
	require.NotNil(t, inst.Timings.PlannedStartedPlayback)
	assert.Equal(t, started+5000, *inst.Timings.PlannedStartedPlayback)
	assert.Equal(t, models.HoldNone, pl.HoldState)
}

func TestDirectorIgnoresIdleStudios(t *testing.T) {
	f := newFixture(t, nil, nil)
	d := NewDirector(f.svc, 0, zerolog.Nop())
	assert.Equal(t, 250*time.Millisecond, d.interval)
	require.NoError(t, d.tick(context.Background()))
}
