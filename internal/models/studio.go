/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// LookaheadMode selects how a layer pre-rolls upcoming content.
type LookaheadMode string

const (
	LookaheadNone      LookaheadMode = "none"
	LookaheadPreload   LookaheadMode = "preload"    // future objects go to a parallel lookahead layer
	LookaheadWhenClear LookaheadMode = "when_clear" // first future object fills the layer when idle
)

// ForceQuickLoopAutoNext controls auto-advance while a QuickLoop is running.
type ForceQuickLoopAutoNext string

const (
	ForceAutoNextDisabled           ForceQuickLoopAutoNext = "disabled"
	ForceAutoNextWhenValidDuration  ForceQuickLoopAutoNext = "enabled_when_valid_duration"
	ForceAutoNextForcingMinDuration ForceQuickLoopAutoNext = "enabled_forcing_min_duration"
)

// LayerMapping describes one output layer of the studio.
type LayerMapping struct {
	Device                     string        `json:"device" yaml:"device"`
	LookaheadMode              LookaheadMode `json:"lookaheadMode" yaml:"lookaheadMode"`
	LookaheadTargetObjects     int           `json:"lookaheadTargetObjects" yaml:"lookaheadTargetObjects"`
	LookaheadMaxSearchDistance int           `json:"lookaheadMaxSearchDistance" yaml:"lookaheadMaxSearchDistance"`
}

// AbPlayer is one physical player in an AB pool.
type AbPlayer struct {
	ID            string `json:"id" yaml:"id"`
	MixerInput    int    `json:"mixerInput" yaml:"mixerInput"`
	MediaPlayerID string `json:"mediaPlayerId" yaml:"mediaPlayerId"`
}

// AbPool is a bounded set of interchangeable players.
type AbPool struct {
	Players []AbPlayer `json:"players" yaml:"players"`
}

// RouteSetAbPlayer links a route set to a pool player it enables.
type RouteSetAbPlayer struct {
	PoolName string `json:"poolName" yaml:"poolName"`
	PlayerID string `json:"playerId" yaml:"playerId"`
}

// RouteSet is an operator-switchable group of routes.
type RouteSet struct {
	Name      string             `json:"name" yaml:"name"`
	Active    bool               `json:"active" yaml:"active"`
	AbPlayers []RouteSetAbPlayer `json:"abPlayers" yaml:"abPlayers"`
}

// StudioSettings are the playout-relevant studio settings.
type StudioSettings struct {
	MinimumTakeSpanMs      int64                   `json:"minimumTakeSpanMs" yaml:"minimumTakeSpanMs"`
	AllowHold              bool                    `json:"allowHold" yaml:"allowHold"`
	EnableQuickLoop        bool                    `json:"enableQuickLoop" yaml:"enableQuickLoop"`
	ForceQuickLoopAutoNext ForceQuickLoopAutoNext  `json:"forceQuickLoopAutoNext" yaml:"forceQuickLoopAutoNext"`
	FallbackPartDurationMs int64                   `json:"fallbackPartDurationMs" yaml:"fallbackPartDurationMs"`
	AllowRundownResetOnAir bool                    `json:"allowRundownResetOnAir" yaml:"allowRundownResetOnAir"`
	Mappings               map[string]LayerMapping `json:"mappings" yaml:"mappings"`
	AbPools                map[string]AbPool       `json:"abPools" yaml:"abPools"`
	RouteSets              map[string]RouteSet     `json:"routeSets" yaml:"routeSets"`
	Baseline               []TimelineObject        `json:"baseline,omitempty" yaml:"-"`
}

// Studio is a physical control room; every playlist belongs to one.
type Studio struct {
	ID        string         `gorm:"primaryKey" yaml:"id"`
	Name      string         `yaml:"name"`
	Settings  StudioSettings `gorm:"serializer:json" yaml:"settings"`
	CreatedAt time.Time      `yaml:"-"`
	UpdatedAt time.Time      `yaml:"-"`
}

func (Studio) TableName() string {
	return "studios"
}

// DefaultStudioSettings returns settings suitable for a fresh studio.
func DefaultStudioSettings() StudioSettings {
	return StudioSettings{
		MinimumTakeSpanMs:      1000,
		AllowHold:              true,
		EnableQuickLoop:        true,
		ForceQuickLoopAutoNext: ForceAutoNextDisabled,
		FallbackPartDurationMs: 3000,
		Mappings:               map[string]LayerMapping{},
		AbPools:                map[string]AbPool{},
		RouteSets:              map[string]RouteSet{},
	}
}
