/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeline turns the playout state of a studio into the device
// timeline. Everything here is a pure function of its input.
package timeline

import (
	"fmt"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// PartInstanceInfo is a part instance with the piece instances it plays.
type PartInstanceInfo struct {
	Instance models.PartInstance
	Pieces   []models.PieceInstance
}

// PartCandidate is an upcoming planned part considered for lookahead.
type PartCandidate struct {
	Part   models.Part
	Pieces []models.Piece
}

// Input is everything Build reads.
type Input struct {
	StudioID  string
	Settings  models.StudioSettings
	Active    bool
	HoldState models.HoldState

	Previous *PartInstanceInfo
	Current  *PartInstanceInfo
	Next     *PartInstanceInfo

	// CurrentAutoNext is how long current plays before next starts on its
	// own, nil when next waits for a take.
	CurrentAutoNext *int64
	NextTimeOffset  *int64

	// Upcoming are the playable parts after next in playout order.
	Upcoming []PartCandidate

	Now int64
}

func (in *Input) inHold() bool {
	return in.HoldState == models.HoldActive
}

// nextTimed reports whether next is scheduled on the timeline rather than
// only previewed.
func (in *Input) nextTimed() bool {
	return in.Current != nil && in.Next != nil && in.CurrentAutoNext != nil
}

func partGroupID(partInstanceID string) string { return "part_group_" + partInstanceID }

func pieceGroupID(pieceInstanceID string) string { return "piece_group_" + pieceInstanceID }

func infiniteGroupID(infiniteInstanceID string) string { return "infinite_group_" + infiniteInstanceID }

func groupRef(groupID, edge string, offset int64) *models.TimeValue {
	switch {
	case offset > 0:
		return models.Ref(fmt.Sprintf("#%s.%s + %d", groupID, edge, offset))
	case offset < 0:
		return models.Ref(fmt.Sprintf("#%s.%s - %d", groupID, edge, -offset))
	default:
		return models.Ref(fmt.Sprintf("#%s.%s", groupID, edge))
	}
}
