package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/prasetyadi/statmerge/internal/domain/player"
	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
	"github.com/prasetyadi/statmerge/internal/domain/statline"
	"github.com/prasetyadi/statmerge/internal/infrastructure/repository/memory"
	"github.com/prasetyadi/statmerge/internal/platform/id"
)

func newTestMerger(t *testing.T, players []player.Player) (*CategoryMerger, *memory.MatchRegistry) {
	t.Helper()
	playerRepo := memory.NewPlayerRepository(players)
	aliasRepo := memory.NewAliasCacheRepository()
	resolver := NewIdentityResolver(playerRepo, aliasRepo, nil, id.NewRandomGenerator("pl"), ResolverConfig{}, nil)
	matches := memory.NewMatchRegistry()
	return NewCategoryMerger(resolver, matches, nil), matches
}

func TestMergeUnionsCategoriesIntoOneLine(t *testing.T) {
	merger, matches := newTestMerger(t, nil)
	ctx := context.Background()
	matchDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	gw := 28
	rows := map[rawstat.Category][]rawstat.StatRow{
		rawstat.CategorySummary: {{
			RawPlayerName: "Kylian Mbappé",
			RawTeamName:   "Real Madrid",
			MatchDate:     matchDate,
			Opponent:      "FC Barcelona",
			IsHome:        true,
			MinutesPlayed: 90,
			Gameweek:      &gw,
			Metrics: map[string]float64{
				statline.MetricGoals: 2,
				statline.MetricShots: 5,
				statline.MetricXG:    1.4,
			},
		}},
		rawstat.CategoryDefensive: {{
			RawPlayerName: "Kylian Mbappé",
			RawTeamName:   "Real Madrid",
			MatchDate:     matchDate,
			Opponent:      "FC Barcelona",
			IsHome:        true,
			MinutesPlayed: 90,
			Metrics:       map[string]float64{"tackles": 1, "interceptions": 0},
		}},
		rawstat.CategoryPassing: {{
			RawPlayerName: "Kylian Mbappé",
			RawTeamName:   "Real Madrid",
			MatchDate:     matchDate,
			Opponent:      "FC Barcelona",
			IsHome:        true,
			MinutesPlayed: 90,
			Metrics:       map[string]float64{"passes_completed": 31, statline.MetricXAG: 0.6},
		}},
	}

	outcome, err := merger.Merge(ctx, rows)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(outcome.Lines) != 1 {
		t.Fatalf("lines = %d, want 1 merged line", len(outcome.Lines))
	}

	line := outcome.Lines[0]
	wantMatchID := "RealMadrid_FCBarcelona_20260314"
	if line.MatchID != wantMatchID {
		t.Fatalf("match id = %s, want %s", line.MatchID, wantMatchID)
	}
	if line.MinutesPlayed != 90 || !line.IsHome {
		t.Fatalf("line carried minutes=%d home=%v, want 90/true", line.MinutesPlayed, line.IsHome)
	}

	want := map[string]float64{
		statline.MetricGoals: 2,
		statline.MetricShots: 5,
		statline.MetricXG:    1.4,
		statline.MetricXAG:   0.6,
		"tackles":            1,
		"interceptions":      0,
		"passes_completed":   31,
	}
	if len(line.Metrics) != len(want) {
		t.Fatalf("metrics = %v, want %v", line.Metrics, want)
	}
	for name, value := range want {
		got, ok := line.Metric(name)
		if !ok || got != value {
			t.Fatalf("metric %s = %v (reported=%v), want %v", name, got, ok, value)
		}
	}

	// All three sightings of the same raw name resolve to one player.
	if outcome.Bands.Created != 1 || outcome.Bands.Exact != 2 {
		t.Fatalf("bands = %+v, want 1 created + 2 exact", outcome.Bands)
	}

	stored, err := matches.GetByID(ctx, wantMatchID)
	if err != nil {
		t.Fatalf("match not registered: %v", err)
	}
	if stored.Gameweek == nil || *stored.Gameweek != 28 {
		t.Fatalf("gameweek = %v, want 28", stored.Gameweek)
	}
	if stored.HomeTeam != "Real Madrid" || stored.AwayTeam != "FC Barcelona" {
		t.Fatalf("fixture sides = %s vs %s", stored.HomeTeam, stored.AwayTeam)
	}
}

func TestMergeSkipsRowsMissingIdentityFields(t *testing.T) {
	merger, _ := newTestMerger(t, nil)
	matchDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	rows := map[rawstat.Category][]rawstat.StatRow{
		rawstat.CategorySummary: {
			{
				// Missing team name: schema mismatch, skipped not fatal.
				RawPlayerName: "Martin Ødegaard",
				MatchDate:     matchDate,
				Opponent:      "Chelsea",
				Metrics:       map[string]float64{statline.MetricGoals: 1},
			},
			{
				RawPlayerName: "Bukayo Saka",
				RawTeamName:   "Arsenal",
				MatchDate:     matchDate,
				Opponent:      "Chelsea",
				IsHome:        true,
				MinutesPlayed: 88,
				Metrics:       map[string]float64{statline.MetricGoals: 1},
			},
		},
	}

	outcome, err := merger.Merge(context.Background(), rows)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome.SkippedRows != 1 {
		t.Fatalf("skipped = %d, want 1", outcome.SkippedRows)
	}
	if len(outcome.Lines) != 1 {
		t.Fatalf("lines = %d, want the valid row only", len(outcome.Lines))
	}
}

func TestMergeLaterCategoryWinsOnMetricConflict(t *testing.T) {
	merger, _ := newTestMerger(t, nil)
	matchDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	row := rawstat.StatRow{
		RawPlayerName: "Rodri",
		RawTeamName:   "Manchester City",
		MatchDate:     matchDate,
		Opponent:      "Liverpool",
		MinutesPlayed: 90,
	}
	summary := row
	summary.Metrics = map[string]float64{"touches": 80}
	possession := row
	possession.Metrics = map[string]float64{"touches": 82}

	outcome, err := merger.Merge(context.Background(), map[rawstat.Category][]rawstat.StatRow{
		rawstat.CategorySummary:    {summary},
		rawstat.CategoryPossession: {possession},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome.MetricConflicts != 1 {
		t.Fatalf("conflicts = %d, want 1", outcome.MetricConflicts)
	}
	got, _ := outcome.Lines[0].Metric("touches")
	if got != 82 {
		t.Fatalf("touches = %v, want later category value 82", got)
	}
}

func TestMergeQueuesAmbiguousRowsWithoutFailing(t *testing.T) {
	seeds := []player.Player{
		{ID: "pl_ward", CanonicalName: "James Ward", CurrentTeam: "Leeds United", CreatedAt: time.Now()},
		{ID: "pl_wood", CanonicalName: "James Wood", CurrentTeam: "Leeds United", CreatedAt: time.Now()},
	}
	merger, _ := newTestMerger(t, seeds)
	matchDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	rows := map[rawstat.Category][]rawstat.StatRow{
		rawstat.CategorySummary: {{
			RawPlayerName: "Jimmy Ward",
			RawTeamName:   "Leeds United",
			MatchDate:     matchDate,
			Opponent:      "Everton",
			MinutesPlayed: 45,
			Metrics:       map[string]float64{statline.MetricGoals: 0},
		}},
	}

	outcome, err := merger.Merge(context.Background(), rows)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(outcome.Ambiguous) != 1 {
		t.Fatalf("ambiguous = %d, want 1", len(outcome.Ambiguous))
	}
	queued := outcome.Ambiguous[0]
	if queued.RawName != "Jimmy Ward" || queued.Source != rawstat.SourceStatsSite {
		t.Fatalf("queued row = %+v", queued)
	}
	if len(outcome.Lines) != 0 {
		t.Fatalf("ambiguous row produced a line: %+v", outcome.Lines)
	}
}
