/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

// StudioFile is the on-disk shape of a studio seed file.
type StudioFile struct {
	Studios []models.Studio `yaml:"studios"`
}

// LoadStudioFile reads studio definitions from a YAML file. Missing settings
// fall back to models.DefaultStudioSettings.
func LoadStudioFile(path string) ([]models.Studio, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read studio file: %w", err)
	}
	return ParseStudioFile(raw)
}

// ParseStudioFile decodes and validates studio YAML.
func ParseStudioFile(raw []byte) ([]models.Studio, error) {
	var doc struct {
		Studios []struct {
			ID       string    `yaml:"id"`
			Name     string    `yaml:"name"`
			Settings yaml.Node `yaml:"settings"`
		} `yaml:"studios"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse studio file: %w", err)
	}

	studios := make([]models.Studio, 0, len(doc.Studios))
	seen := make(map[string]bool, len(doc.Studios))
	for i, s := range doc.Studios {
		if s.ID == "" {
			return nil, fmt.Errorf("studio %d: id is required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("studio %q defined twice", s.ID)
		}
		seen[s.ID] = true

		settings := models.DefaultStudioSettings()
		if !s.Settings.IsZero() {
			if err := s.Settings.Decode(&settings); err != nil {
				return nil, fmt.Errorf("studio %q settings: %w", s.ID, err)
			}
		}
		if err := validateSettings(settings); err != nil {
			return nil, fmt.Errorf("studio %q: %w", s.ID, err)
		}
		studios = append(studios, models.Studio{ID: s.ID, Name: s.Name, Settings: settings})
	}
	return studios, nil
}

func validateSettings(s models.StudioSettings) error {
	if s.MinimumTakeSpanMs < 0 {
		return fmt.Errorf("minimumTakeSpanMs must not be negative")
	}
	switch s.ForceQuickLoopAutoNext {
	case "", models.ForceAutoNextDisabled, models.ForceAutoNextWhenValidDuration, models.ForceAutoNextForcingMinDuration:
	default:
		return fmt.Errorf("unknown forceQuickLoopAutoNext %q", s.ForceQuickLoopAutoNext)
	}
	for layer, m := range s.Mappings {
		switch m.LookaheadMode {
		case "", models.LookaheadNone, models.LookaheadPreload, models.LookaheadWhenClear:
		default:
			return fmt.Errorf("mapping %q: unknown lookahead mode %q", layer, m.LookaheadMode)
		}
		if m.LookaheadTargetObjects < 0 || m.LookaheadMaxSearchDistance < 0 {
			return fmt.Errorf("mapping %q: lookahead limits must not be negative", layer)
		}
	}
	for pool, p := range s.AbPools {
		ids := make(map[string]bool, len(p.Players))
		for _, player := range p.Players {
			if player.ID == "" {
				return fmt.Errorf("ab pool %q: player id is required", pool)
			}
			if ids[player.ID] {
				return fmt.Errorf("ab pool %q: duplicate player %q", pool, player.ID)
			}
			ids[player.ID] = true
		}
	}
	for id, rs := range s.RouteSets {
		for _, ref := range rs.AbPlayers {
			if _, ok := s.AbPools[ref.PoolName]; !ok {
				return fmt.Errorf("route set %q references unknown ab pool %q", id, ref.PoolName)
			}
		}
	}
	return nil
}
