package rawstat

import (
	"strings"
	"time"
)

// Category is one of the per-match stat tables the scraped site exposes.
type Category string

const (
	CategorySummary       Category = "summary"
	CategoryPassing       Category = "passing"
	CategoryPassingTypes  Category = "passing_types"
	CategoryDefensive     Category = "defensive_actions"
	CategoryPossession    Category = "possession"
	CategoryMiscellaneous Category = "miscellaneous"
	CategoryGoalkeeper    Category = "goalkeeper"
)

// AllCategories lists every category in the order the site renders them.
var AllCategories = []Category{
	CategorySummary,
	CategoryPassing,
	CategoryPassingTypes,
	CategoryDefensive,
	CategoryPossession,
	CategoryMiscellaneous,
	CategoryGoalkeeper,
}

func ParseCategory(value string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllCategories {
		if c == known {
			return known, true
		}
	}
	return "", false
}

// Source identifiers distinguishing where a raw row came from.
const (
	SourceStatsSite  = "stats_site"
	SourceFantasyAPI = "fantasy_api"
)

// StatRow is one raw row of one category table for one match, exactly as
// the source reported it. The identity fields are validated before merging;
// a row missing any of them is a schema mismatch and is skipped, not fatal.
type StatRow struct {
	RawPlayerName string             `validate:"required"`
	RawTeamName   string             `validate:"required"`
	MatchDate     time.Time          `validate:"required"`
	Opponent      string             `validate:"required"`
	IsHome        bool               `validate:"-"`
	MinutesPlayed int                `validate:"gte=0"`
	Metrics       map[string]float64 `validate:"-"`
	Gameweek      *int               `validate:"omitempty,gt=0"`
}

// HomeTeam and AwayTeam derive the fixture sides from the row's own team
// plus the opponent and home flag.
func (r StatRow) HomeTeam() string {
	if r.IsHome {
		return r.RawTeamName
	}
	return r.Opponent
}

func (r StatRow) AwayTeam() string {
	if r.IsHome {
		return r.Opponent
	}
	return r.RawTeamName
}

// FixtureRef points at one played match on the stats site. The URL is
// opaque to everything but the scraper itself.
type FixtureRef struct {
	HomeTeam string
	AwayTeam string
	Date     time.Time
	URL      string
}

// FantasyRow is one raw row from the fantasy platform's player feed.
type FantasyRow struct {
	RawPlayerName string    `validate:"required"`
	RawTeamName   string    `validate:"required"`
	Price         float64   `validate:"gte=0"`
	Position      string    `validate:"required"`
	AsOfDate      time.Time `validate:"required"`
}
