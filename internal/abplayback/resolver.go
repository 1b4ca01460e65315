/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package abplayback

import (
	"math"
	"sort"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// Open is the end of a session with no known end.
const Open int64 = math.MaxInt64

// TimeRange is a half-open [Start, End) interval in unix ms.
type TimeRange struct {
	Start int64
	End   int64
}

func (r TimeRange) overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Request asks for one player of a pool for the lifetime of a session.
type Request struct {
	SessionID   string
	PoolName    string
	SessionName string
	TimeRange
	// Optional requests only serve lookahead.
	Optional bool

	PreviousPlayerID string
	PlayerID         string
}

// Result is the outcome of resolving one pool.
type Result struct {
	Requests       []*Request
	FailedRequired []string
	FailedOptional []string
}

// Find returns the request for sessionID.
func (r Result) Find(sessionID string) (*Request, bool) {
	for _, req := range r.Requests {
		if req.SessionID == sessionID {
			return req, true
		}
	}
	return nil, false
}

// AvailablePlayers lists the players of poolName that are usable. A player
// named by route sets is usable only while one of them is active.
func AvailablePlayers(settings models.StudioSettings, poolName string) []string {
	pool, ok := settings.AbPools[poolName]
	if !ok {
		return nil
	}
	gated := make(map[string]bool)
	enabled := make(map[string]bool)
	for _, rs := range settings.RouteSets {
		for _, p := range rs.AbPlayers {
			if p.PoolName != poolName {
				continue
			}
			gated[p.PlayerID] = true
			if rs.Active {
				enabled[p.PlayerID] = true
			}
		}
	}
	var out []string
	for _, p := range pool.Players {
		if gated[p.ID] && !enabled[p.ID] {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

// ResolveAssignments gives each request a player so that no player holds
// two overlapping sessions. Required requests are placed before optional
// ones, so a required session takes a player an optional one held before.
// Within each class a session keeps its previous player when that player is
// still free. Requests that ended before now need no player.
func ResolveAssignments(players []string, requests []*Request, previous map[string]models.AbSessionAssignment, now int64) Result {
	var res Result
	var live []*Request
	for _, r := range requests {
		r.PlayerID = ""
		if prev, ok := previous[r.SessionID]; ok {
			r.PreviousPlayerID = prev.PlayerID
		}
		if r.End <= now {
			continue
		}
		live = append(live, r)
	}
	res.Requests = live

	sort.SliceStable(live, func(i, j int) bool {
		a, b := live[i], live[j]
		if a.Optional != b.Optional {
			return !a.Optional
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.SessionID < b.SessionID
	})

	known := make(map[string]bool, len(players))
	for _, p := range players {
		known[p] = true
	}
	held := make(map[string][]TimeRange, len(players))
	free := func(player string, r TimeRange) bool {
		for _, h := range held[player] {
			if h.overlaps(r) {
				return false
			}
		}
		return true
	}
	assign := func(req *Request, player string) {
		req.PlayerID = player
		held[player] = append(held[player], req.TimeRange)
	}

	for _, optional := range []bool{false, true} {
		for _, req := range live {
			if req.Optional != optional {
				continue
			}
			if p := req.PreviousPlayerID; p != "" && known[p] && free(p, req.TimeRange) {
				assign(req, p)
			}
		}
		for _, req := range live {
			if req.Optional != optional || req.PlayerID != "" {
				continue
			}
			for _, p := range players {
				if free(p, req.TimeRange) {
					assign(req, p)
					break
				}
			}
			if req.PlayerID == "" {
				if optional {
					res.FailedOptional = append(res.FailedOptional, req.SessionID)
				} else {
					res.FailedRequired = append(res.FailedRequired, req.SessionID)
				}
			}
		}
	}
	return res
}
