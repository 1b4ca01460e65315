/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_rundown/internal/abplayback"
	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/playout/model"
	"github.com/friendsincode/grimnir_rundown/internal/quickloop"
	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
	"github.com/friendsincode/grimnir_rundown/internal/timeline"
)

// updateTimeline builds, AB-resolves and finalizes the studio timeline from
// the model. Planned start times that are still open are fixed to now so the
// timeline only carries absolute starts for what is on air.
func (s *Service) updateTimeline(jc *jobContext, m *model.PlayoutModel) (*models.TimelineComplete, error) {
	started := time.Now()
	studio := m.Studio()
	pl := m.Playlist()

	in := timeline.Input{
		StudioID:  studio.ID,
		Settings:  studio.Settings,
		Active:    pl.IsActive(),
		HoldState: pl.HoldState,
		Now:       jc.now,
	}

	if in.Active {
		ql := quickloop.New(m)
		cur := m.CurrentPartInstance()
		if cur != nil {
			fixStartTimes(cur, jc.now)
		}
		in.Previous = instanceInfo(m.PreviousPartInstance())
		in.Current = instanceInfo(cur)
		in.Next = instanceInfo(m.NextPartInstance())
		in.NextTimeOffset = pl.NextTimeOffset
		if cur != nil && in.Next != nil {
			if d, ok := ql.AutoNextDuration(cur.Part()); ok {
				in.CurrentAutoNext = &d
			}
		}
		if dist := timeline.MaxSearchDistance(studio.Settings); dist > 0 {
			for _, p := range GetOrderedPartsAfterPlayhead(m, ql, dist) {
				in.Upcoming = append(in.Upcoming, timeline.PartCandidate{Part: p, Pieces: m.PiecesForPart(p.ID)})
			}
		}
	}

	objs := timeline.Build(in)

	if in.Active {
		out := abplayback.Resolve(abplayback.Params{
			StudioID: studio.ID,
			Settings: studio.Settings,
			Objects:  objs,
			Tracked:  pl.TrackedAbSessions,
			Previous: pl.AssignedAbSessions,
			Ranges:   playbackRanges(&in),
			Now:      jc.now,
			NewID:    s.newID,
		}, *jc.logger)
		objs = out.Objects
		m.SetAbSessions(out.Assigned, out.Tracked)
	}

	tl, err := timeline.Finalize(studio.ID, objs, jc.now, s.versions(studio))
	if err != nil {
		return nil, fmt.Errorf("finalize timeline for studio %s: %w", studio.ID, err)
	}

	telemetry.TimelineGenerationDuration.WithLabelValues(studio.ID).Observe(time.Since(started).Seconds())
	counts := make(map[string]int)
	for _, o := range tl.Objects {
		counts[timeline.Kind(o)]++
	}
	for _, kind := range []string{"group", "lookahead", string(models.ContentVisionMixer), string(models.ContentMediaPlayer), string(models.ContentGraphics), string(models.ContentAudio)} {
		telemetry.TimelineObjects.WithLabelValues(studio.ID, kind).Set(float64(counts[kind]))
	}

	jc.logger.Debug().
		Str("hash", tl.TimelineHash).
		Int("objects", len(tl.Objects)).
		Msg("timeline generated")
	return tl, nil
}

func instanceInfo(inst *model.PartInstanceModel) *timeline.PartInstanceInfo {
	if inst == nil {
		return nil
	}
	return &timeline.PartInstanceInfo{Instance: *inst.PartInstance(), Pieces: inst.PieceInstanceDocs()}
}

// fixStartTimes pins the on-air instance and its pieces to absolute starts.
func fixStartTimes(cur *model.PartInstanceModel, now int64) {
	doc := cur.PartInstance()
	if doc.Timings.PlannedStartedPlayback == nil {
		start := now
		if doc.Timings.ReportedStartedPlayback != nil {
			start = *doc.Timings.ReportedStartedPlayback
		}
		cur.SetPlannedStartedPlayback(&start)
	}
	partStart := *doc.Timings.PlannedStartedPlayback

	for _, pi := range cur.PieceInstances() {
		p := pi.PieceInstance()
		if p.PlannedStartedPlayback != nil || p.Disabled {
			continue
		}
		var start int64
		switch {
		case p.Piece.Enable.StartNow && p.DynamicallyInserted != nil:
			start = *p.DynamicallyInserted
		case p.Piece.Enable.StartNow:
			start = now
		default:
			start = partStart + p.Piece.Enable.Start
		}
		pi.SetPlannedStartedPlayback(&start)
	}
}

// playbackRanges estimates when each part instance plays, so the AB
// resolver can tell which sessions overlap.
func playbackRanges(in *timeline.Input) abplayback.RangeFunc {
	ranges := make(map[string]abplayback.TimeRange)

	curStart := in.Now
	curEnd := abplayback.Open
	if in.Current != nil {
		if v := in.Current.Instance.Timings.PlannedStartedPlayback; v != nil {
			curStart = *v
		}
		if in.CurrentAutoNext != nil {
			curEnd = curStart + *in.CurrentAutoNext
		}
		ranges[in.Current.Instance.ID] = abplayback.TimeRange{Start: curStart, End: curEnd}
	}

	if in.Previous != nil {
		prevStart := curStart
		if v := in.Previous.Instance.Timings.PlannedStartedPlayback; v != nil {
			prevStart = *v
		}
		end := curStart
		if in.Current != nil && in.Current.Instance.Part.InTransition != nil {
			end += in.Current.Instance.Part.InTransition.PreviousPartKeepaliveDurationMs
		}
		ranges[in.Previous.Instance.ID] = abplayback.TimeRange{Start: prevStart, End: end}
	}

	if in.Next != nil {
		r := abplayback.TimeRange{Start: in.Now, End: abplayback.Open}
		if in.CurrentAutoNext != nil && curEnd != abplayback.Open {
			r.Start = curEnd - in.Current.Instance.Part.AutoNextOverlap
		}
		ranges[in.Next.Instance.ID] = r
	}

	return func(obj models.TimelineObject) abplayback.TimeRange {
		r, ok := ranges[obj.PartInstanceID]
		if !ok {
			return abplayback.TimeRange{Start: in.Now, End: abplayback.Open}
		}
		if obj.InfinitePieceInstanceID != "" {
			r.End = abplayback.Open
		}
		return r
	}
}
