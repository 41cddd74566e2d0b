package match

import (
	"fmt"
	"strings"
	"time"
)

// Match is one fixture. The ID is derived deterministically from
// (home, away, date) so both sources and repeat runs agree on it.
type Match struct {
	ID       string
	Date     time.Time
	HomeTeam string
	AwayTeam string
	// Gameweek is nil when the source row does not carry it.
	Gameweek *int
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if strings.TrimSpace(m.HomeTeam) == "" || strings.TrimSpace(m.AwayTeam) == "" {
		return fmt.Errorf("match home and away teams are required")
	}
	if m.Date.IsZero() {
		return fmt.Errorf("match date is required")
	}
	if m.Gameweek != nil && *m.Gameweek <= 0 {
		return fmt.Errorf("match gameweek must be greater than zero")
	}
	return nil
}

// DeriveID builds the stable match identifier Home_Away_YYYYMMDD with
// whitespace stripped from team names.
func DeriveID(homeTeam, awayTeam string, date time.Time) string {
	return strings.Join([]string{
		stripSpaces(homeTeam),
		stripSpaces(awayTeam),
		date.Format("20060102"),
	}, "_")
}

func stripSpaces(value string) string {
	return strings.Join(strings.Fields(value), "")
}
