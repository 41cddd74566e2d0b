package player

import (
	"fmt"
	"strings"
	"time"
)

// Position represents football position categories shared by both sources.
type Position string

const (
	PositionGoalkeeper Position = "GK"
	PositionDefender   Position = "DEF"
	PositionMidfielder Position = "MID"
	PositionForward    Position = "FWD"
	PositionUnknown    Position = ""
)

var AllPositions = map[Position]struct{}{
	PositionGoalkeeper: {},
	PositionDefender:   {},
	PositionMidfielder: {},
	PositionForward:    {},
}

// Player is the canonical identity of one real-world athlete across both
// data sources and all time. Players are created on first sight and never
// deleted; aliases accumulate as the sources spell the name differently.
type Player struct {
	ID            string
	CanonicalName string
	KnownAliases  []string
	CurrentTeam   string
	Position      Position
	// TeamChangedAt records when CurrentTeam last changed. It widens the
	// identity-matching candidate set during a transfer window, when one
	// source may still report the old club.
	TeamChangedAt time.Time
	CreatedAt     time.Time
}

func (p Player) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(p.CanonicalName) == "" {
		return fmt.Errorf("player canonical name is required")
	}
	if p.Position != PositionUnknown {
		if _, ok := AllPositions[p.Position]; !ok {
			return fmt.Errorf("invalid player position: %s", p.Position)
		}
	}
	return nil
}

// HasAlias reports whether the exact alias string has already been observed.
func (p Player) HasAlias(alias string) bool {
	for _, known := range p.KnownAliases {
		if known == alias {
			return true
		}
	}
	return false
}

// WithAlias returns a copy with the alias recorded once.
func (p Player) WithAlias(alias string) Player {
	alias = strings.TrimSpace(alias)
	if alias == "" || p.HasAlias(alias) {
		return p
	}
	out := p
	out.KnownAliases = append(append([]string(nil), p.KnownAliases...), alias)
	return out
}

func ParsePosition(value string) Position {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "GK", "GOALKEEPER":
		return PositionGoalkeeper
	case "DEF", "DEFENDER":
		return PositionDefender
	case "MID", "MIDFIELDER":
		return PositionMidfielder
	case "FWD", "FORWARD", "ST":
		return PositionForward
	default:
		return PositionUnknown
	}
}
