package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

func ms(v int64) *int64 { return &v }

func pieceInstance(id, partInstanceID string, p models.Piece) models.PieceInstance {
	return models.PieceInstance{ID: id, PartInstanceID: partInstanceID, Piece: p}
}

func instance(id string, started *int64, part models.Part) models.PartInstance {
	part.ID = "part_" + id
	return models.PartInstance{ID: id, Part: part, Timings: models.PartInstanceTimings{PlannedStartedPlayback: started}}
}

func byID(objs []models.TimelineObject) map[string]models.TimelineObject {
	out := make(map[string]models.TimelineObject, len(objs))
	for _, o := range objs {
		out[o.ID] = o
	}
	return out
}

func baseInput() Input {
	settings := models.DefaultStudioSettings()
	settings.Baseline = []models.TimelineObject{mixerObj("baseline_black", "pgm", models.TimelineEnable{While: models.AtMs(1)})}
	return Input{StudioID: "st", Settings: settings, Active: true, HoldState: models.HoldNone, Now: 50000}
}

func TestBuildInactiveIsBaselineOnly(t *testing.T) {
	in := baseInput()
	in.Active = false
	in.Current = &PartInstanceInfo{Instance: instance("ci", ms(1000), models.Part{})}

	objs := Build(in)
	require.Len(t, objs, 1)
	assert.Equal(t, "baseline_black", objs[0].ID)
}

func TestBuildCurrentPartGroup(t *testing.T) {
	in := baseInput()
	in.Current = &PartInstanceInfo{
		Instance: instance("ci", ms(10000), models.Part{}),
		Pieces: []models.PieceInstance{
			pieceInstance("pi1", "ci", planned("cam1", 0, mixerObj("cut", "pgm", startAt(0)))),
			{ID: "pi2", PartInstanceID: "ci", Disabled: true, Piece: planned("cam2", 0, mixerObj("cut", "pgm", startAt(0)))},
		},
	}

	objs := byID(Build(in))
	group, ok := objs["part_group_ci"]
	require.True(t, ok)
	assert.True(t, group.IsGroup)
	n, _ := group.Enable.Start.Numeric()
	assert.Equal(t, int64(10000), n)
	assert.Nil(t, group.Enable.Duration)
	assert.Equal(t, []string{"piece_group_pi1"}, group.Children)

	content, ok := objs["pi1_cut"]
	require.True(t, ok)
	assert.Equal(t, "piece_group_pi1", content.InGroup)
	assert.Equal(t, "ci", content.PartInstanceID)

	_, ok = objs["pi2_cut"]
	assert.False(t, ok, "disabled pieces are not played")
}

func TestBuildUnstartedCurrentStartsNow(t *testing.T) {
	in := baseInput()
	in.Current = &PartInstanceInfo{Instance: instance("ci", nil, models.Part{})}

	objs := byID(Build(in))
	assert.True(t, objs["part_group_ci"].Enable.Start.Now)
}

func TestBuildAutoNextTimesNext(t *testing.T) {
	in := baseInput()
	in.Current = &PartInstanceInfo{Instance: instance("ci", ms(10000), models.Part{AutoNext: true, AutoNextOverlap: 500})}
	in.Next = &PartInstanceInfo{
		Instance: instance("ni", nil, models.Part{}),
		Pieces:   []models.PieceInstance{pieceInstance("npi", "ni", planned("n", 0, mixerObj("cut", "pgm", startAt(0))))},
	}

	objs := byID(Build(in))
	_, ok := objs["part_group_ni"]
	assert.False(t, ok, "next waits for a take")

	in.CurrentAutoNext = ms(8000)
	objs = byID(Build(in))
	cur := objs["part_group_ci"]
	require.NotNil(t, cur.Enable.Duration)
	assert.Equal(t, int64(8000), *cur.Enable.Duration)

	next, ok := objs["part_group_ni"]
	require.True(t, ok)
	assert.Equal(t, "#part_group_ci.end - 500", next.Enable.Start.Expr)
	_, ok = objs["npi_cut"]
	assert.True(t, ok)
}

func TestBuildPreviousKeepalive(t *testing.T) {
	in := baseInput()
	in.Previous = &PartInstanceInfo{
		Instance: instance("pi", ms(1000), models.Part{}),
		Pieces:   []models.PieceInstance{pieceInstance("ppi", "pi", planned("p", 0, mixerObj("cut", "pgm", startAt(0))))},
	}
	in.Current = &PartInstanceInfo{Instance: instance("ci", ms(9000), models.Part{
		InTransition: &models.PartInTransition{PreviousPartKeepaliveDurationMs: 400},
	})}

	objs := byID(Build(in))
	prev, ok := objs["part_group_pi"]
	require.True(t, ok)
	assert.Equal(t, "#part_group_ci.start + 400", prev.Enable.End.Expr)
	_, ok = objs["ppi_cut"]
	assert.True(t, ok)
}

func TestBuildHoldModes(t *testing.T) {
	except := mixerObj("except", "pgm", startAt(0))
	except.HoldMode = models.HoldModeExcept
	only := mixerObj("only", "pgm", startAt(0))
	only.HoldMode = models.HoldModeOnly
	normal := mixerObj("normal", "pgm", startAt(0))

	in := baseInput()
	in.Current = &PartInstanceInfo{
		Instance: instance("ci", ms(1000), models.Part{}),
		Pieces:   []models.PieceInstance{pieceInstance("pi", "ci", planned("p", 0, except, only, normal))},
	}

	tests := []struct {
		state models.HoldState
		want  []string
		not   []string
	}{
		{models.HoldNone, []string{"pi_except", "pi_normal"}, []string{"pi_only"}},
		{models.HoldPending, []string{"pi_except", "pi_normal"}, []string{"pi_only"}},
		{models.HoldActive, []string{"pi_only", "pi_normal"}, []string{"pi_except"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			in.HoldState = tt.state
			objs := byID(Build(in))
			for _, id := range tt.want {
				assert.Contains(t, objs, id)
			}
			for _, id := range tt.not {
				assert.NotContains(t, objs, id)
			}
		})
	}
}

func TestBuildInfiniteKeepsIdentityAcrossTake(t *testing.T) {
	infinite := planned("logo", 0, mixerObj("gfx", "dsk", startAt(0)))
	infinite.Lifespan = models.LifespanRundownEnd

	origin := pieceInstance("origin", "a", infinite)
	origin.Infinite = &models.PieceInstanceInfinite{InfiniteInstanceID: "inf1", InfinitePieceID: "logo"}
	origin.PlannedStartedPlayback = ms(1000)

	in := baseInput()
	in.Current = &PartInstanceInfo{Instance: instance("a", ms(1000), models.Part{}), Pieces: []models.PieceInstance{origin}}
	before := byID(Build(in))

	cont := pieceInstance("cont", "b", infinite)
	cont.Infinite = &models.PieceInstanceInfinite{InfiniteInstanceID: "inf1", InfinitePieceID: "logo", FromPreviousPart: true}
	cont.PlannedStartedPlayback = ms(1000)

	in.Previous = in.Current
	in.Current = &PartInstanceInfo{Instance: instance("b", ms(20000), models.Part{}), Pieces: []models.PieceInstance{cont}}
	after := byID(Build(in))

	for _, objs := range []map[string]models.TimelineObject{before, after} {
		group, ok := objs["infinite_group_inf1"]
		require.True(t, ok)
		assert.Empty(t, group.InGroup)
		n, _ := group.Enable.Start.Numeric()
		assert.Equal(t, int64(1000), n, "an infinite is never restarted")
		content, ok := objs["inf1_gfx"]
		require.True(t, ok)
		assert.Equal(t, "inf1", content.InfinitePieceInstanceID)
	}
	assert.NotContains(t, after, "origin_gfx", "the continued piece is not repeated in previous")
	assert.NotContains(t, after, "piece_group_origin")
}

func TestBuildLookaheadFromUpcoming(t *testing.T) {
	in := baseInput()
	in.Settings.Mappings = map[string]models.LayerMapping{
		"pgm": {LookaheadMode: models.LookaheadPreload, LookaheadTargetObjects: 1, LookaheadMaxSearchDistance: 5},
		"aux": {LookaheadMode: models.LookaheadNone},
	}
	in.Current = &PartInstanceInfo{Instance: instance("ci", ms(1000), models.Part{})}
	in.Upcoming = []PartCandidate{
		{Part: models.Part{ID: "u1"}, Pieces: []models.Piece{planned("cam", 0, mixerObj("cut", "pgm", startAt(0)), mixerObj("aux", "aux", startAt(0)))}},
	}

	var lookahead []models.TimelineObject
	for _, o := range Build(in) {
		if o.IsLookahead {
			lookahead = append(lookahead, o)
		}
	}
	require.Len(t, lookahead, 1)
	assert.Equal(t, "pgm_lookahead", lookahead[0].Layer)
	assert.Equal(t, "piece_cam_cut_lookahead_0", lookahead[0].ID)
	assert.Empty(t, lookahead[0].InGroup)
}

func TestFinalize(t *testing.T) {
	in := baseInput()
	in.Current = &PartInstanceInfo{
		Instance: instance("ci", ms(1000), models.Part{}),
		Pieces:   []models.PieceInstance{pieceInstance("pi", "ci", planned("p", 0, mixerObj("cut", "pgm", startAt(0))))},
	}
	versions := models.GenerationVersions{Core: "test"}

	a, err := Finalize("st", Build(in), 1, versions)
	require.NoError(t, err)
	b, err := Finalize("st", Build(in), 2, versions)
	require.NoError(t, err)
	assert.Equal(t, a.TimelineHash, b.TimelineHash)
	assert.Len(t, a.TimelineHash, 16)
	assert.Equal(t, "st", a.ID)

	in.Current.Instance.Timings.PlannedStartedPlayback = ms(2000)
	c, err := Finalize("st", Build(in), 3, versions)
	require.NoError(t, err)
	assert.NotEqual(t, a.TimelineHash, c.TimelineHash)
}

func TestFinalizeRejectsBadObjects(t *testing.T) {
	ok := mixerObj("a", "pgm", startAt(0))
	missing := models.TimelineObject{ID: "b", Content: models.TimelineContent{Kind: models.ContentMediaPlayer}}

	_, err := Finalize("st", []models.TimelineObject{ok, ok}, 0, models.GenerationVersions{})
	assert.Error(t, err)
	_, err = Finalize("st", []models.TimelineObject{ok, missing}, 0, models.GenerationVersions{})
	assert.Error(t, err)

	empty, err := Finalize("st", nil, 0, models.GenerationVersions{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Objects)
}
