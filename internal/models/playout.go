/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// HoldState tracks the hold sub-state of an active playlist.
type HoldState string

const (
	HoldNone     HoldState = "none"
	HoldPending  HoldState = "pending"
	HoldActive   HoldState = "active"
	HoldComplete HoldState = "complete"
)

// PartInfo identifies one of the previous/current/next part instances.
type PartInfo struct {
	PartInstanceID          string `json:"partInstanceId"`
	RundownID               string `json:"rundownId"`
	SegmentID               string `json:"segmentId"`
	SegmentPlayoutID        string `json:"segmentPlayoutId"`
	ManuallySelected        bool   `json:"manuallySelected"`
	ConsumesQueuedSegmentID bool   `json:"consumesQueuedSegmentId,omitempty"`
}

// QuickLoopMarkerType is the scope a QuickLoop marker points at.
type QuickLoopMarkerType string

const (
	MarkerPlaylist QuickLoopMarkerType = "playlist"
	MarkerRundown  QuickLoopMarkerType = "rundown"
	MarkerSegment  QuickLoopMarkerType = "segment"
	MarkerPart     QuickLoopMarkerType = "part"
)

// QuickLoopMarker bounds a loop region. ID is empty for playlist markers.
type QuickLoopMarker struct {
	Type QuickLoopMarkerType `json:"type"`
	ID   string              `json:"id,omitempty"`
}

// QuickLoopProps is the persisted loop state of a playlist.
type QuickLoopProps struct {
	Start         *QuickLoopMarker       `json:"start,omitempty"`
	End           *QuickLoopMarker       `json:"end,omitempty"`
	Running       bool                   `json:"running"`
	Locked        bool                   `json:"locked"`
	ForceAutoNext ForceQuickLoopAutoNext `json:"forceAutoNext"`
}

// TTimerModeType selects how a T-Timer counts.
type TTimerModeType string

const (
	TTimerCountdown TTimerModeType = "countdown"
	TTimerFreeRun   TTimerModeType = "free_run"
	TTimerTimeOfDay TTimerModeType = "time_of_day"
)

// TTimerMode is a tagged union over the three timer kinds.
type TTimerMode struct {
	Type       TTimerModeType `json:"type"`
	DurationMs int64          `json:"durationMs,omitempty"` // countdown
	TargetRaw  string         `json:"targetRaw,omitempty"`  // time of day, unix ms or a date/time phrase
	StopAtZero bool           `json:"stopAtZero,omitempty"`
}

// TTimerState is running ({Paused:false, ZeroTime}) or paused
// ({Paused:true, Duration}). Duration is the distance to ZeroTime frozen at
// the pause instant.
type TTimerState struct {
	Paused   bool  `json:"paused"`
	ZeroTime int64 `json:"zeroTime,omitempty"`
	Duration int64 `json:"duration,omitempty"`
}

// RundownTTimer is one of the three timers of a playlist. A cleared timer
// has nil Mode and State.
type RundownTTimer struct {
	Index int          `json:"index"`
	Label string       `json:"label,omitempty"`
	Mode  *TTimerMode  `json:"mode"`
	State *TTimerState `json:"state"`
}

// AbSessionAssignment is the player a session was given on the last regeneration.
type AbSessionAssignment struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Lookahead bool   `json:"lookahead"`
}

// TrackedAbSession maps an abstract session name to a stable id across
// regenerations.
type TrackedAbSession struct {
	ID                 string   `json:"id"`
	PoolName           string   `json:"poolName"`
	SessionName        string   `json:"sessionName"`
	PartInstanceIDs    []string `json:"partInstanceIds,omitempty"`
	InfiniteInstanceID string   `json:"infiniteInstanceId,omitempty"`
	LookaheadForPartID string   `json:"lookaheadForPartId,omitempty"`
}

// RundownPlaylist is one on-air show spanning one or more rundowns.
type RundownPlaylist struct {
	ID           string `gorm:"primaryKey"`
	StudioID     string `gorm:"index"`
	Name         string
	ActivationID string // empty when inactive
	Rehearsal    bool
	HoldState    HoldState

	CurrentPartInfo  *PartInfo `gorm:"serializer:json"`
	NextPartInfo     *PartInfo `gorm:"serializer:json"`
	PreviousPartInfo *PartInfo `gorm:"serializer:json"`
	QueuedSegmentID  string
	NextTimeOffset   *int64

	QuickLoop          *QuickLoopProps                           `gorm:"serializer:json"`
	TTimers            [3]RundownTTimer                          `gorm:"serializer:json"`
	AssignedAbSessions map[string]map[string]AbSessionAssignment `gorm:"serializer:json"`
	TrackedAbSessions  []TrackedAbSession                        `gorm:"serializer:json"`
	RundownIDsInOrder  []string                                  `gorm:"serializer:json"`

	Loop            bool
	LastTakeTime    *int64
	StartedPlayback *int64
	ResetTime       *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RundownPlaylist) TableName() string {
	return "rundown_playlists"
}

// IsActive reports whether the playlist has an activation.
func (p *RundownPlaylist) IsActive() bool {
	return p != nil && p.ActivationID != ""
}

// Rundown is one ingest-owned rundown of a playlist.
type Rundown struct {
	ID         string `gorm:"primaryKey"`
	PlaylistID string `gorm:"index"`
	StudioID   string `gorm:"index"`
	ExternalID string
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Rundown) TableName() string {
	return "rundowns"
}

// Segment groups parts within a rundown.
type Segment struct {
	ID         string `gorm:"primaryKey"`
	RundownID  string `gorm:"index"`
	ExternalID string
	Name       string
	Rank       float64
	IsHidden   bool
}

func (Segment) TableName() string {
	return "segments"
}

// PartInTransition describes the transition played when a part is taken.
type PartInTransition struct {
	BlockTakeDurationMs             int64 `json:"blockTakeDurationMs"`
	PreviousPartKeepaliveDurationMs int64 `json:"previousPartKeepaliveDurationMs"`
	PartContentDelayDurationMs      int64 `json:"partContentDelayDurationMs"`
}

// Part is the planned, ingest-owned unit of a rundown.
type Part struct {
	ID         string  `gorm:"primaryKey" json:"id"`
	RundownID  string  `gorm:"index" json:"rundownId"`
	SegmentID  string  `gorm:"index" json:"segmentId"`
	ExternalID string  `json:"externalId"`
	Title      string  `json:"title"`
	Rank       float64 `json:"rank"`

	ExpectedDuration               *int64 `json:"expectedDuration,omitempty"`
	ExpectedDurationWithTransition *int64 `json:"expectedDurationWithTransition,omitempty"`
	AutoNext                       bool   `json:"autoNext,omitempty"`
	AutoNextOverlap                int64  `json:"autoNextOverlap,omitempty"`

	Invalid       bool   `json:"invalid,omitempty"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Floated       bool   `json:"floated,omitempty"`
	Untimed       bool   `json:"untimed,omitempty"`

	InTransition            *PartInTransition `gorm:"serializer:json" json:"inTransition,omitempty"`
	DisableNextInTransition bool              `json:"disableNextInTransition,omitempty"`
}

func (Part) TableName() string {
	return "parts"
}

// Playable reports whether the part may be set as next or taken.
func (p Part) Playable() bool {
	return !p.Invalid && !p.Floated
}

// PieceLifespan controls how long an infinite piece continues.
type PieceLifespan string

const (
	LifespanWithinPart    PieceLifespan = "within_part"
	LifespanSegmentChange PieceLifespan = "segment_change"
	LifespanSegmentEnd    PieceLifespan = "segment_end"
	LifespanRundownChange PieceLifespan = "rundown_change"
	LifespanRundownEnd    PieceLifespan = "rundown_end"
	LifespanShowStyleEnd  PieceLifespan = "showstyle_end"
)

// PieceEnable is a piece's timing relative to its part.
type PieceEnable struct {
	Start    int64  `json:"start"`
	StartNow bool   `json:"startNow,omitempty"` // start at the moment the piece is inserted
	Duration *int64 `json:"duration,omitempty"`
}

// Piece is a playable item planned on a part.
type Piece struct {
	ID             string        `gorm:"primaryKey" json:"id"`
	RundownID      string        `gorm:"index" json:"rundownId"`
	StartSegmentID string        `json:"startSegmentId"`
	StartPartID    string        `gorm:"index" json:"startPartId"`
	Name           string        `json:"name"`
	SourceLayerID  string        `json:"sourceLayerId"`
	OutputLayerID  string        `json:"outputLayerId"`
	Enable         PieceEnable   `gorm:"serializer:json" json:"enable"`
	Lifespan       PieceLifespan `json:"lifespan"`
	IsTransition   bool          `json:"isTransition,omitempty"`
	ExtendOnHold   bool          `json:"extendOnHold,omitempty"`
	Virtual        bool          `json:"virtual,omitempty"`

	TimelineObjects []TimelineObject `gorm:"serializer:json" json:"timelineObjects,omitempty"`
	AbSessions      []AbSessionRef   `gorm:"serializer:json" json:"abSessions,omitempty"`
}

func (Piece) TableName() string {
	return "pieces"
}

// IsInfinite reports whether the piece outlives its part.
func (p Piece) IsInfinite() bool {
	return p.Lifespan != "" && p.Lifespan != LifespanWithinPart
}

// OrphanedReason explains why a PartInstance has no backing Part.
type OrphanedReason string

const (
	NotOrphaned     OrphanedReason = ""
	OrphanedAdlib   OrphanedReason = "adlib_part"
	OrphanedDeleted OrphanedReason = "deleted"
)

// PartInstanceTimings are planned and reported playback instants (unix ms).
type PartInstanceTimings struct {
	SetAsNext               *int64 `json:"setAsNext,omitempty"`
	Take                    *int64 `json:"take,omitempty"`
	PlannedStartedPlayback  *int64 `json:"plannedStartedPlayback,omitempty"`
	PlannedStoppedPlayback  *int64 `json:"plannedStoppedPlayback,omitempty"`
	ReportedStartedPlayback *int64 `json:"reportedStartedPlayback,omitempty"`
	ReportedStoppedPlayback *int64 `json:"reportedStoppedPlayback,omitempty"`
}

// PartInstance is one playback occurrence of a Part.
type PartInstance struct {
	ID                   string `gorm:"primaryKey"`
	PlaylistID           string `gorm:"index"`
	RundownID            string `gorm:"index"`
	SegmentID            string
	SegmentPlayoutID     string
	PlaylistActivationID string `gorm:"index"`
	TakeCount            int
	Rehearsal            bool
	Reset                bool
	IsTaken              bool
	Orphaned             OrphanedReason

	Part           Part                `gorm:"serializer:json"`
	Timings        PartInstanceTimings `gorm:"serializer:json"`
	BlockTakeUntil *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PartInstance) TableName() string {
	return "part_instances"
}

// PieceInstanceInfinite links continuations of one infinite piece.
type PieceInstanceInfinite struct {
	InfiniteInstanceID   string `json:"infiniteInstanceId"`
	InfinitePieceID      string `json:"infinitePieceId"`
	FromPreviousPart     bool   `json:"fromPreviousPart"`
	FromPreviousPlayhead bool   `json:"fromPreviousPlayhead,omitempty"`
}

// PieceUserDuration is an operator or action imposed end for a piece.
type PieceUserDuration struct {
	EndRelativeToPart *int64 `json:"endRelativeToPart,omitempty"`
	EndRelativeToNow  *int64 `json:"endRelativeToNow,omitempty"`
}

// PieceInstance is one playable item within a PartInstance.
type PieceInstance struct {
	ID                   string `gorm:"primaryKey"`
	PlaylistID           string `gorm:"index"`
	RundownID            string
	PartInstanceID       string `gorm:"index"`
	PlaylistActivationID string
	Reset                bool
	Disabled             bool
	AdlibSourceID        string
	DynamicallyInserted  *int64

	Piece        Piece                  `gorm:"serializer:json"`
	Infinite     *PieceInstanceInfinite `gorm:"serializer:json"`
	UserDuration *PieceUserDuration     `gorm:"serializer:json"`

	PlannedStartedPlayback  *int64
	PlannedStoppedPlayback  *int64
	ReportedStartedPlayback *int64
	ReportedStoppedPlayback *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PieceInstance) TableName() string {
	return "piece_instances"
}

// InfiniteInstanceID returns the continuation id, or "" for a plain piece.
func (p *PieceInstance) InfiniteInstanceID() string {
	if p == nil || p.Infinite == nil {
		return ""
	}
	return p.Infinite.InfiniteInstanceID
}
