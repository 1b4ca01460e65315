/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package abplayback

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_rundown/internal/models"
	"github.com/friendsincode/grimnir_rundown/internal/telemetry"
)

// RangeFunc returns the interval an object plays in.
type RangeFunc func(obj models.TimelineObject) TimeRange

// Collected holds the session requests of a timeline.
type Collected struct {
	Pools   map[string][]*Request
	objects map[string]map[string]string
}

// SessionFor returns the session objID uses in pool.
func (c *Collected) SessionFor(objID, pool string) (string, bool) {
	id, ok := c.objects[objID][pool]
	return id, ok
}

// CollectRequests gathers one request per session. A session is required
// when any object on it belongs to a part instance; sessions only seen on
// lookahead of planned parts are optional.
func CollectRequests(objs []models.TimelineObject, helper *SessionHelper, ranges RangeFunc) *Collected {
	c := &Collected{
		Pools:   make(map[string][]*Request),
		objects: make(map[string]map[string]string),
	}
	byID := make(map[string]*Request)
	for _, o := range objs {
		for _, ref := range o.AbSessions {
			sid := helper.SessionID(ref, o)
			if c.objects[o.ID] == nil {
				c.objects[o.ID] = make(map[string]string)
			}
			c.objects[o.ID][ref.PoolName] = sid

			optional := o.IsLookahead && o.PartInstanceID == ""
			r := ranges(o)
			if req, ok := byID[sid]; ok {
				if r.Start < req.Start {
					req.Start = r.Start
				}
				if r.End > req.End {
					req.End = r.End
				}
				req.Optional = req.Optional && optional
				continue
			}
			req := &Request{
				SessionID:   sid,
				PoolName:    ref.PoolName,
				SessionName: ref.SessionName,
				TimeRange:   r,
				Optional:    optional,
			}
			byID[sid] = req
			c.Pools[ref.PoolName] = append(c.Pools[ref.PoolName], req)
		}
	}
	return c
}

func findPlayer(pool models.AbPool, id string) (models.AbPlayer, bool) {
	for _, p := range pool.Players {
		if p.ID == id {
			return p, true
		}
	}
	return models.AbPlayer{}, false
}

// ApplyAssignments writes assigned players into object content: the media
// server channel for media player content, the mixer input for vision mixer
// content. Lookahead objects whose session got no player are dropped.
func ApplyAssignments(objs []models.TimelineObject, pools map[string]models.AbPool, c *Collected, results map[string]Result) []models.TimelineObject {
	out := make([]models.TimelineObject, 0, len(objs))
	for _, o := range objs {
		if len(o.AbSessions) == 0 {
			out = append(out, o)
			continue
		}
		obj := o.Clone()
		drop := false
		for _, ref := range o.AbSessions {
			sid, ok := c.SessionFor(o.ID, ref.PoolName)
			if !ok {
				continue
			}
			req, ok := results[ref.PoolName].Find(sid)
			if !ok || req.PlayerID == "" {
				drop = drop || o.IsLookahead
				continue
			}
			player, ok := findPlayer(pools[ref.PoolName], req.PlayerID)
			if !ok {
				continue
			}
			switch {
			case obj.Content.MediaPlayer != nil:
				obj.Content.MediaPlayer.PlayerID = player.MediaPlayerID
				if obj.Content.MediaPlayer.PlayerID == "" {
					obj.Content.MediaPlayer.PlayerID = player.ID
				}
			case obj.Content.VisionMixer != nil:
				obj.Content.VisionMixer.Input = player.MixerInput
			}
		}
		if !drop {
			out = append(out, obj)
		}
	}
	return out
}

// Params is the input of Resolve.
type Params struct {
	StudioID string
	Settings models.StudioSettings
	Objects  []models.TimelineObject
	Tracked  []models.TrackedAbSession
	Previous map[string]map[string]models.AbSessionAssignment
	Ranges   RangeFunc
	Now      int64
	NewID    func() string
}

// Outcome is what Resolve hands back for the timeline and the playlist.
type Outcome struct {
	Objects  []models.TimelineObject
	Assigned map[string]map[string]models.AbSessionAssignment
	Tracked  []models.TrackedAbSession
}

// Resolve runs a full AB pass over a generated timeline. Sessions that get
// no player are logged and counted but never fail the caller.
func Resolve(p Params, logger zerolog.Logger) Outcome {
	ranges := p.Ranges
	if ranges == nil {
		now := p.Now
		ranges = func(models.TimelineObject) TimeRange { return TimeRange{Start: now, End: Open} }
	}
	helper := NewSessionHelper(p.Tracked, p.NewID)
	collected := CollectRequests(p.Objects, helper, ranges)

	poolNames := make([]string, 0, len(collected.Pools))
	for name := range collected.Pools {
		poolNames = append(poolNames, name)
	}
	sort.Strings(poolNames)

	results := make(map[string]Result, len(poolNames))
	assigned := make(map[string]map[string]models.AbSessionAssignment)
	for _, name := range poolNames {
		if _, ok := p.Settings.AbPools[name]; !ok {
			logger.Warn().Str("pool", name).Msg("timeline references unknown ab pool")
		}
		res := ResolveAssignments(AvailablePlayers(p.Settings, name), collected.Pools[name], p.Previous[name], p.Now)
		results[name] = res

		for _, req := range res.Requests {
			if req.PlayerID == "" {
				continue
			}
			if assigned[name] == nil {
				assigned[name] = make(map[string]models.AbSessionAssignment)
			}
			assigned[name][req.SessionID] = models.AbSessionAssignment{
				SessionID: req.SessionID,
				PlayerID:  req.PlayerID,
				Lookahead: req.Optional,
			}
		}
		if len(res.FailedRequired) > 0 {
			telemetry.AbAssignmentFailures.WithLabelValues(name, "required").Add(float64(len(res.FailedRequired)))
			logger.Warn().
				Str("studio_id", p.StudioID).
				Str("pool", name).
				Strs("sessions", res.FailedRequired).
				Msg("not enough players for required ab sessions")
		}
		if len(res.FailedOptional) > 0 {
			telemetry.AbAssignmentFailures.WithLabelValues(name, "optional").Add(float64(len(res.FailedOptional)))
			logger.Debug().
				Str("studio_id", p.StudioID).
				Str("pool", name).
				Strs("sessions", res.FailedOptional).
				Msg("no player left for lookahead ab sessions")
		}
	}

	return Outcome{
		Objects:  ApplyAssignments(p.Objects, p.Settings.AbPools, collected, results),
		Assigned: assigned,
		Tracked:  helper.Tracked(),
	}
}
