package statline

import (
	"fmt"
	"time"
)

// Metric names unioned from the source categories that the deriver and
// tests reference by key. Any other metric key flows through untouched.
const (
	MetricGoals   = "goals"
	MetricAssists = "assists"
	MetricShots   = "shots"
	MetricXG      = "xg"
	MetricXAG     = "xag"
)

// Line is one player's merged performance in one match. Metrics holds the
// union of all category values; a key that is absent means the category did
// not report it (not applicable), which is distinct from a reported zero.
type Line struct {
	PlayerID      string
	MatchID       string
	MinutesPlayed int
	IsHome        bool
	Metrics       map[string]float64
}

func (l Line) Validate() error {
	if l.PlayerID == "" {
		return fmt.Errorf("stat line player id is required")
	}
	if l.MatchID == "" {
		return fmt.Errorf("stat line match id is required")
	}
	if l.MinutesPlayed < 0 {
		return fmt.Errorf("stat line minutes played cannot be negative")
	}
	return nil
}

// Key identifies a line uniquely within the store.
type Key struct {
	PlayerID string
	MatchID  string
}

func (l Line) Key() Key {
	return Key{PlayerID: l.PlayerID, MatchID: l.MatchID}
}

// Metric returns the value and whether the metric was reported at all.
func (l Line) Metric(name string) (float64, bool) {
	v, ok := l.Metrics[name]
	return v, ok
}

// Equal reports whether two lines carry identical field values, used to
// decide between an unchanged re-ingest and a correction.
func (l Line) Equal(other Line) bool {
	if l.PlayerID != other.PlayerID || l.MatchID != other.MatchID {
		return false
	}
	if l.MinutesPlayed != other.MinutesPlayed || l.IsHome != other.IsHome {
		return false
	}
	if len(l.Metrics) != len(other.Metrics) {
		return false
	}
	for name, value := range l.Metrics {
		got, ok := other.Metrics[name]
		if !ok || got != value {
			return false
		}
	}
	return true
}

// CloneMetrics returns a defensive copy of the metric map.
func (l Line) CloneMetrics() map[string]float64 {
	if l.Metrics == nil {
		return nil
	}
	out := make(map[string]float64, len(l.Metrics))
	for name, value := range l.Metrics {
		out[name] = value
	}
	return out
}

// AuditEntry records one corrected field with its before and after values.
// Late source revisions (post-review xG, corrected distances) are expected,
// so corrections are first-class and always observable.
type AuditEntry struct {
	PlayerID   string
	MatchID    string
	Field      string
	OldValue   *float64
	NewValue   *float64
	RecordedAt time.Time
}
