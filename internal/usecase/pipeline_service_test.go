package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prasetyadi/statmerge/internal/domain/player"
	"github.com/prasetyadi/statmerge/internal/domain/rawpayload"
	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
	"github.com/prasetyadi/statmerge/internal/domain/statline"
	"github.com/prasetyadi/statmerge/internal/infrastructure/repository/memory"
	"github.com/prasetyadi/statmerge/internal/platform/id"
)

type stubStatsSource struct {
	fixtures       []rawstat.FixtureRef
	rowsByCategory map[rawstat.Category][]rawstat.StatRow
	failCategories map[rawstat.Category]error
}

func (s *stubStatsSource) FetchFixtures(context.Context) ([]rawstat.FixtureRef, []rawpayload.Payload, error) {
	payload := rawpayload.Payload{
		Source:      rawstat.SourceStatsSite,
		EntityType:  "fixtures",
		EntityKey:   "2026-03-14",
		PayloadJSON: `{"fixtures":1}`,
		PayloadHash: "fixhash",
		FetchedAt:   time.Now(),
	}
	return s.fixtures, []rawpayload.Payload{payload}, nil
}

func (s *stubStatsSource) FetchCategory(_ context.Context, category rawstat.Category, _ []rawstat.FixtureRef) ([]rawstat.StatRow, []rawpayload.Payload, error) {
	if err, ok := s.failCategories[category]; ok {
		return nil, nil, err
	}
	payload := rawpayload.Payload{
		Source:      rawstat.SourceStatsSite,
		EntityType:  "category",
		EntityKey:   string(category),
		PayloadJSON: fmt.Sprintf(`{"category":%q}`, category),
		PayloadHash: "hash-" + string(category),
		FetchedAt:   time.Now(),
	}
	return s.rowsByCategory[category], []rawpayload.Payload{payload}, nil
}

type stubFantasySource struct {
	rows []rawstat.FantasyRow
}

func (s *stubFantasySource) FetchPlayers(context.Context) ([]rawstat.FantasyRow, []rawpayload.Payload, error) {
	payload := rawpayload.Payload{
		Source:      rawstat.SourceFantasyAPI,
		EntityType:  "players",
		EntityKey:   "snapshot",
		PayloadJSON: `{"players":true}`,
		PayloadHash: "fantasyhash",
		FetchedAt:   time.Now(),
	}
	return s.rows, []rawpayload.Payload{payload}, nil
}

type pipelineFixture struct {
	service     *PipelineService
	players     *memory.PlayerRepository
	lines       *memory.StatLineRepository
	fantasy     *memory.FantasyRecordRepository
	rawPayloads *memory.RawPayloadRepository
}

func newPipelineFixture(t *testing.T, stats StatsSource, fantasy FantasySource, seeds []player.Player) pipelineFixture {
	t.Helper()

	playerRepo := memory.NewPlayerRepository(seeds)
	aliasRepo := memory.NewAliasCacheRepository()
	lineRepo := memory.NewStatLineRepository()
	fantasyRepo := memory.NewFantasyRecordRepository()
	rawRepo := memory.NewRawPayloadRepository()
	matches := memory.NewMatchRegistry()

	resolver := NewIdentityResolver(playerRepo, aliasRepo, nil, id.NewRandomGenerator("pl"), ResolverConfig{}, nil)
	merger := NewCategoryMerger(resolver, matches, nil)
	store := NewIncrementalStore(lineRepo, nil)

	service := NewPipelineService(stats, fantasy, resolver, merger, store,
		playerRepo, fantasyRepo, rawRepo, PipelineConfig{Workers: 3}, nil)

	return pipelineFixture{
		service:     service,
		players:     playerRepo,
		lines:       lineRepo,
		fantasy:     fantasyRepo,
		rawPayloads: rawRepo,
	}
}

func statsRowsForMbappe(matchDate time.Time) map[rawstat.Category][]rawstat.StatRow {
	base := rawstat.StatRow{
		RawPlayerName: "Kylian Mbappé",
		RawTeamName:   "Real Madrid",
		MatchDate:     matchDate,
		Opponent:      "FC Barcelona",
		IsHome:        true,
		MinutesPlayed: 90,
	}
	summary := base
	summary.Metrics = map[string]float64{statline.MetricGoals: 2, statline.MetricShots: 5}
	defensive := base
	defensive.Metrics = map[string]float64{"tackles": 1}
	return map[rawstat.Category][]rawstat.StatRow{
		rawstat.CategorySummary:   {summary},
		rawstat.CategoryDefensive: {defensive},
	}
}

func TestIngestStatsEndToEnd(t *testing.T) {
	matchDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	stats := &stubStatsSource{
		fixtures: []rawstat.FixtureRef{{
			HomeTeam: "Real Madrid", AwayTeam: "FC Barcelona", Date: matchDate, URL: "/matches/rm-fcb",
		}},
		rowsByCategory: statsRowsForMbappe(matchDate),
	}
	fx := newPipelineFixture(t, stats, &stubFantasySource{}, nil)
	ctx := context.Background()

	report, err := fx.service.IngestStats(ctx)
	if err != nil {
		t.Fatalf("IngestStats() error = %v", err)
	}
	if report.Inserted != 1 || report.Corrected != 0 {
		t.Fatalf("report = %+v, want 1 insert", report)
	}
	if len(report.FailedCategories) != 0 {
		t.Fatalf("failed categories = %v, want none", report.FailedCategories)
	}

	payloads, err := fx.rawPayloads.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// Fixtures snapshot plus one per fetched category.
	if len(payloads) != 1+len(rawstat.AllCategories) {
		t.Fatalf("archived payloads = %d, want %d", len(payloads), 1+len(rawstat.AllCategories))
	}

	// A repeat run changes nothing.
	again, err := fx.service.IngestStats(ctx)
	if err != nil {
		t.Fatalf("repeat IngestStats() error = %v", err)
	}
	if again.Inserted != 0 || again.Corrected != 0 || again.Unchanged != 1 {
		t.Fatalf("repeat report = %+v, want 1 unchanged", again)
	}
}

func TestIngestStatsPartialCategoryFailure(t *testing.T) {
	matchDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	stats := &stubStatsSource{
		fixtures: []rawstat.FixtureRef{{
			HomeTeam: "Real Madrid", AwayTeam: "FC Barcelona", Date: matchDate, URL: "/matches/rm-fcb",
		}},
		rowsByCategory: statsRowsForMbappe(matchDate),
		failCategories: map[rawstat.Category]error{
			rawstat.CategoryGoalkeeper: errors.New("table missing"),
		},
	}
	fx := newPipelineFixture(t, stats, &stubFantasySource{}, nil)

	report, err := fx.service.IngestStats(context.Background())
	if err != nil {
		t.Fatalf("IngestStats() error = %v, want partial success", err)
	}
	if len(report.FailedCategories) != 1 || report.FailedCategories[0] != string(rawstat.CategoryGoalkeeper) {
		t.Fatalf("failed categories = %v, want [goalkeeper]", report.FailedCategories)
	}
	if report.Inserted != 1 {
		t.Fatalf("inserted = %d, want the remaining categories merged", report.Inserted)
	}
	if !report.Partial() {
		t.Fatalf("report.Partial() = false, want true")
	}
}

func TestIngestStatsAllCategoriesFailed(t *testing.T) {
	failAll := make(map[rawstat.Category]error, len(rawstat.AllCategories))
	for _, category := range rawstat.AllCategories {
		failAll[category] = errors.New("upstream down")
	}
	stats := &stubStatsSource{
		fixtures: []rawstat.FixtureRef{{
			HomeTeam: "Real Madrid", AwayTeam: "FC Barcelona",
			Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), URL: "/matches/rm-fcb",
		}},
		failCategories: failAll,
	}
	fx := newPipelineFixture(t, stats, &stubFantasySource{}, nil)

	_, err := fx.service.IngestStats(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("IngestStats() error = %v, want ErrFetch", err)
	}
}

func TestIngestFantasyAppendsAndBackfillsPosition(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	seed := player.Player{
		ID:            "pl_mbappe",
		CanonicalName: "Kylian Mbappé",
		CurrentTeam:   "Real Madrid",
		CreatedAt:     time.Now(),
	}
	fantasy := &stubFantasySource{rows: []rawstat.FantasyRow{{
		RawPlayerName: "Kylian Mbappé",
		RawTeamName:   "Real Madrid",
		Price:         12.5,
		Position:      "FWD",
		AsOfDate:      asOf,
	}}}
	fx := newPipelineFixture(t, &stubStatsSource{}, fantasy, []player.Player{seed})
	ctx := context.Background()

	report, err := fx.service.IngestFantasy(ctx)
	if err != nil {
		t.Fatalf("IngestFantasy() error = %v", err)
	}
	if report.FantasyAppended != 1 {
		t.Fatalf("appended = %d, want 1", report.FantasyAppended)
	}

	records, err := fx.fantasy.ListByPlayer(ctx, "pl_mbappe")
	if err != nil {
		t.Fatalf("ListByPlayer() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	got := records[0]
	if got.Price != 12.5 || got.Position != player.PositionForward || !got.AsOfDate.Equal(asOf) {
		t.Fatalf("record = %+v", got)
	}

	updated, err := fx.players.GetByID(ctx, "pl_mbappe")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if updated.Position != player.PositionForward {
		t.Fatalf("position = %q, want backfilled FWD", updated.Position)
	}

	// Same snapshot again appends nothing.
	again, err := fx.service.IngestFantasy(ctx)
	if err != nil {
		t.Fatalf("repeat IngestFantasy() error = %v", err)
	}
	if again.FantasyAppended != 0 || again.FantasyUnchanged != 1 {
		t.Fatalf("repeat report = %+v, want 0 appended / 1 unchanged", again)
	}
}

func TestIngestFantasySkipsInvalidRows(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	fantasy := &stubFantasySource{rows: []rawstat.FantasyRow{
		{RawPlayerName: "", RawTeamName: "Real Madrid", Price: 12.5, Position: "FWD", AsOfDate: asOf},
		{RawPlayerName: "Vinicius Junior", RawTeamName: "Real Madrid", Price: 11.0, Position: "MID", AsOfDate: asOf},
	}}
	fx := newPipelineFixture(t, &stubStatsSource{}, fantasy, nil)

	report, err := fx.service.IngestFantasy(context.Background())
	if err != nil {
		t.Fatalf("IngestFantasy() error = %v", err)
	}
	if report.SkippedRows != 1 {
		t.Fatalf("skipped = %d, want 1", report.SkippedRows)
	}
	if report.FantasyAppended != 1 {
		t.Fatalf("appended = %d, want the valid row only", report.FantasyAppended)
	}
}
