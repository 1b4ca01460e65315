/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeValue is one side of a timeline enable expression. Exactly one of the
// three forms is set: the literal "now", a millisecond number, or a reference
// expression such as "#part_group_x.end".
type TimeValue struct {
	Now  bool
	Ms   *int64
	Expr string
}

// NowTime returns the "now" time value.
func NowTime() *TimeValue { return &TimeValue{Now: true} }

// AtMs returns a numeric time value.
func AtMs(ms int64) *TimeValue { return &TimeValue{Ms: &ms} }

// Ref returns a reference expression time value.
func Ref(expr string) *TimeValue { return &TimeValue{Expr: expr} }

// Numeric reports the millisecond value, treating "now" as 0. References
// have no numeric value.
func (v *TimeValue) Numeric() (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch {
	case v.Now:
		return 0, true
	case v.Ms != nil:
		return *v.Ms, true
	default:
		return 0, false
	}
}

func (v TimeValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Now:
		return []byte(`"now"`), nil
	case v.Ms != nil:
		return json.Marshal(*v.Ms)
	default:
		return json.Marshal(v.Expr)
	}
}

func (v *TimeValue) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = TimeValue{Ms: &n}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		ms := int64(f)
		*v = TimeValue{Ms: &ms}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timeline time value: %w", err)
	}
	if s == "now" {
		*v = TimeValue{Now: true}
		return nil
	}
	*v = TimeValue{Expr: s}
	return nil
}

// TimelineEnable controls when a timeline object is active.
type TimelineEnable struct {
	Start    *TimeValue `json:"start,omitempty"`
	While    *TimeValue `json:"while,omitempty"`
	End      *TimeValue `json:"end,omitempty"`
	Duration *int64     `json:"duration,omitempty"`
}

// HoldMode controls object visibility while a hold is active.
type HoldMode string

const (
	HoldModeNormal HoldMode = "normal"
	HoldModeExcept HoldMode = "except" // hidden while holding
	HoldModeOnly   HoldMode = "only"   // only shown while holding
)

// ContentKind tags the device family a timeline object addresses.
type ContentKind string

const (
	ContentGroup       ContentKind = "group"
	ContentVisionMixer ContentKind = "vision_mixer"
	ContentMediaPlayer ContentKind = "media_player"
	ContentGraphics    ContentKind = "graphics"
	ContentAudio       ContentKind = "audio"
)

// TimelineContent is a tagged union: Kind selects which pointer is set.
type TimelineContent struct {
	Kind        ContentKind         `json:"kind"`
	VisionMixer *VisionMixerContent `json:"visionMixer,omitempty"`
	MediaPlayer *MediaPlayerContent `json:"mediaPlayer,omitempty"`
	Graphics    *GraphicsContent    `json:"graphics,omitempty"`
	Audio       *AudioContent       `json:"audio,omitempty"`
}

// VisionMixerContent cuts or transitions a mixer bus to an input.
type VisionMixerContent struct {
	Input      int    `json:"input"`
	Transition string `json:"transition,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// MediaPlayerContent plays a clip on a media server channel.
type MediaPlayerContent struct {
	File     string `json:"file"`
	Loop     bool   `json:"loop,omitempty"`
	SeekMs   int64  `json:"seekMs,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// GraphicsContent loads a template with data on a graphics renderer.
type GraphicsContent struct {
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// AudioContent drives an audio mixer channel.
type AudioContent struct {
	Channel    int     `json:"channel"`
	FaderLevel float64 `json:"faderLevel"`
	Muted      bool    `json:"muted,omitempty"`
}

// Validate checks that the pointer matching Kind is set.
func (c TimelineContent) Validate() error {
	var ok bool
	switch c.Kind {
	case ContentGroup:
		ok = true
	case ContentVisionMixer:
		ok = c.VisionMixer != nil
	case ContentMediaPlayer:
		ok = c.MediaPlayer != nil
	case ContentGraphics:
		ok = c.Graphics != nil
	case ContentAudio:
		ok = c.Audio != nil
	default:
		return fmt.Errorf("unknown timeline content kind %q", c.Kind)
	}
	if !ok {
		return fmt.Errorf("timeline content %q missing payload", c.Kind)
	}
	return nil
}

// Clone returns a deep copy so assignments can be applied per regeneration.
func (c TimelineContent) Clone() TimelineContent {
	out := TimelineContent{Kind: c.Kind}
	if c.VisionMixer != nil {
		v := *c.VisionMixer
		out.VisionMixer = &v
	}
	if c.MediaPlayer != nil {
		v := *c.MediaPlayer
		out.MediaPlayer = &v
	}
	if c.Graphics != nil {
		v := *c.Graphics
		if c.Graphics.Data != nil {
			v.Data = make(map[string]string, len(c.Graphics.Data))
			for k, d := range c.Graphics.Data {
				v.Data[k] = d
			}
		}
		out.Graphics = &v
	}
	if c.Audio != nil {
		v := *c.Audio
		out.Audio = &v
	}
	return out
}

// AbSessionRef names an abstract pooled-player session an object needs.
type AbSessionRef struct {
	PoolName    string `json:"poolName"`
	SessionName string `json:"sessionName"`
}

// TimelineObject is the declarative node consumed by device gateways.
type TimelineObject struct {
	ID       string          `json:"id"`
	Enable   TimelineEnable  `json:"enable"`
	Layer    string          `json:"layer"`
	Priority float64         `json:"priority"`
	HoldMode HoldMode        `json:"holdMode,omitempty"`
	InGroup  string          `json:"inGroup,omitempty"`
	IsGroup  bool            `json:"isGroup,omitempty"`
	Children []string        `json:"children,omitempty"`
	Content  TimelineContent `json:"content"`

	AbSessions []AbSessionRef `json:"abSessions,omitempty"`

	PartID                  string `json:"partId,omitempty"`
	PartInstanceID          string `json:"partInstanceId,omitempty"`
	PieceInstanceID         string `json:"pieceInstanceId,omitempty"`
	InfinitePieceInstanceID string `json:"infinitePieceInstanceId,omitempty"`

	IsLookahead       bool   `json:"isLookahead,omitempty"`
	LookaheadForLayer string `json:"lookaheadForLayer,omitempty"`
	LookaheadOffset   *int64 `json:"lookaheadOffset,omitempty"`
}

// Clone copies the object including its content.
func (o TimelineObject) Clone() TimelineObject {
	out := o
	out.Content = o.Content.Clone()
	if o.Children != nil {
		out.Children = append([]string(nil), o.Children...)
	}
	if o.AbSessions != nil {
		out.AbSessions = append([]AbSessionRef(nil), o.AbSessions...)
	}
	if o.LookaheadOffset != nil {
		v := *o.LookaheadOffset
		out.LookaheadOffset = &v
	}
	return out
}

// GenerationVersions records what produced a timeline.
type GenerationVersions struct {
	Core      string `json:"core"`
	Studio    string `json:"studio"`
	Blueprint string `json:"blueprint"`
}

// TimelineComplete is the full device timeline for one studio.
type TimelineComplete struct {
	ID                 string             `gorm:"primaryKey"` // studio id
	TimelineHash       string             `gorm:"type:varchar(32)"`
	Generated          int64
	GenerationVersions GenerationVersions `gorm:"serializer:json"`
	Objects            []TimelineObject   `gorm:"serializer:json"`
	UpdatedAt          time.Time
}

func (TimelineComplete) TableName() string {
	return "timelines"
}
