package aliascache

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies one raw sighting of a player name in one source.
type Key struct {
	RawName string
	RawTeam string
	Source  string
}

func NewKey(rawName, rawTeam, source string) Key {
	return Key{
		RawName: strings.TrimSpace(rawName),
		RawTeam: strings.TrimSpace(rawTeam),
		Source:  strings.ToLower(strings.TrimSpace(source)),
	}
}

func (k Key) Validate() error {
	if k.RawName == "" {
		return fmt.Errorf("alias raw name is required")
	}
	if k.Source == "" {
		return fmt.Errorf("alias source is required")
	}
	return nil
}

// How records the way a cache entry was confirmed.
const (
	ConfirmedExact  = "exact"
	ConfirmedFuzzy  = "fuzzy"
	ConfirmedNew    = "new_player"
	ConfirmedManual = "manual"
)

// Entry maps a confirmed raw sighting to a canonical player. Entries are
// never silently overwritten; remapping happens only through an explicit
// correction event which preserves the previous player id.
type Entry struct {
	Key        Key
	PlayerID   string
	Confirmed  string
	Score      float64
	ResolvedAt time.Time
	// CorrectedFrom is the previously mapped player id when this entry is
	// the result of a manual correction, empty otherwise.
	CorrectedFrom string
}

func (e Entry) Validate() error {
	if err := e.Key.Validate(); err != nil {
		return err
	}
	if e.PlayerID == "" {
		return fmt.Errorf("alias entry player id is required")
	}
	switch e.Confirmed {
	case ConfirmedExact, ConfirmedFuzzy, ConfirmedNew, ConfirmedManual:
	default:
		return fmt.Errorf("invalid alias confirmation kind: %q", e.Confirmed)
	}
	return nil
}
