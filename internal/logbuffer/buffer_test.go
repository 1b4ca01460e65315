package logbuffer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWrapsAtCapacity(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(LogEntry{Message: msg})
	}
	all := b.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Message)
	assert.Equal(t, "d", all[2].Message)

	b.Clear()
	assert.Empty(t, b.GetAll())
}

func TestWriterCapturesJobFields(t *testing.T) {
	b := New(100)
	logger := zerolog.New(NewWriter(b, nil))

	logger.Info().Str("component", "playout").Str("studio_id", "studio-1").Str("playlist_id", "pl-1").Str("job", "take").Msg("part taken")
	logger.Warn().Str("component", "publish").Str("studio_id", "studio-1").Msg("publish failed")
	logger.Info().Str("component", "playout").Str("studio_id", "studio-2").Str("job", "take").Msg("part taken")

	tests := []struct {
		name   string
		params QueryParams
		want   int
	}{
		{"all", QueryParams{}, 3},
		{"studio", QueryParams{StudioID: "studio-1"}, 2},
		{"playlist", QueryParams{PlaylistID: "pl-1"}, 1},
		{"job", QueryParams{Job: "take"}, 2},
		{"level", QueryParams{Level: "warn"}, 1},
		{"search", QueryParams{Search: "TAKEN"}, 2},
		{"limit", QueryParams{Limit: 1, Descending: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, b.Query(tt.params), tt.want)
		})
	}

	newest := b.Query(QueryParams{Limit: 1, Descending: true})
	assert.Equal(t, "studio-2", newest[0].Fields["studio_id"])

	assert.Equal(t, []string{"playout", "publish"}, b.ComponentsForStudio("studio-1"))
	stats := b.StatsForStudio("studio-1")
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.LevelCount["warn"])
	assert.Equal(t, 3, b.Stats().Count)
}
