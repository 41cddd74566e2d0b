package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"

	"github.com/prasetyadi/statmerge/internal/domain/fantasyrec"
	"github.com/prasetyadi/statmerge/internal/domain/player"
	"github.com/prasetyadi/statmerge/internal/domain/rawpayload"
	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
)

// StatsSource is the external collaborator producing raw tabular rows from
// the scraped stats site, one table per category per match.
type StatsSource interface {
	FetchFixtures(ctx context.Context) ([]rawstat.FixtureRef, []rawpayload.Payload, error)
	FetchCategory(ctx context.Context, category rawstat.Category, fixtures []rawstat.FixtureRef) ([]rawstat.StatRow, []rawpayload.Payload, error)
}

// FantasySource produces raw per-player rows from the fantasy platform.
type FantasySource interface {
	FetchPlayers(ctx context.Context) ([]rawstat.FantasyRow, []rawpayload.Payload, error)
}

// RunReport is the structured summary of one pipeline run. Nothing is
// ingested silently: every skip, correction, conflict and ambiguity lands
// here.
type RunReport struct {
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Inserted         int            `json:"inserted"`
	Corrected        int            `json:"corrected"`
	Unchanged        int            `json:"unchanged"`
	SkippedRows      int            `json:"skipped_rows"`
	MetricConflicts  int            `json:"metric_conflicts"`
	FailedCategories []string       `json:"failed_categories,omitempty"`
	Ambiguous        []AmbiguousRow `json:"ambiguous,omitempty"`
	Bands            BandCounts     `json:"confidence_bands"`
	FantasyAppended  int            `json:"fantasy_appended,omitempty"`
	FantasyUnchanged int            `json:"fantasy_unchanged,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
}

// Partial reports whether the run completed with gaps worth reviewing.
func (r RunReport) Partial() bool {
	return len(r.FailedCategories) > 0 || len(r.Ambiguous) > 0 || r.SkippedRows > 0
}

type PipelineConfig struct {
	// Workers bounds the concurrent per-category fetches.
	Workers int
}

// PipelineService drives one batch run end to end: fetch raw rows,
// reconcile identities, merge categories, upsert incrementally. One run
// per process; concurrent runs must be serialized by the scheduler.
type PipelineService struct {
	statsSource   StatsSource
	fantasySource FantasySource
	resolver      *IdentityResolver
	merger        *CategoryMerger
	store         *IncrementalStore
	playerRepo    player.Repository
	fantasyRepo   fantasyrec.Repository
	rawRepo       rawpayload.Repository
	validate      *validator.Validate
	workers       int
	logger        *logging.Logger
}

func NewPipelineService(
	statsSource StatsSource,
	fantasySource FantasySource,
	resolver *IdentityResolver,
	merger *CategoryMerger,
	store *IncrementalStore,
	playerRepo player.Repository,
	fantasyRepo fantasyrec.Repository,
	rawRepo rawpayload.Repository,
	cfg PipelineConfig,
	logger *logging.Logger,
) *PipelineService {
	if logger == nil {
		logger = logging.Default()
	}
	workers := cfg.Workers
	if workers <= 0 || workers > len(rawstat.AllCategories) {
		workers = len(rawstat.AllCategories)
	}
	return &PipelineService{
		statsSource:   statsSource,
		fantasySource: fantasySource,
		resolver:      resolver,
		merger:        merger,
		store:         store,
		playerRepo:    playerRepo,
		fantasyRepo:   fantasyRepo,
		rawRepo:       rawRepo,
		validate:      validator.New(),
		workers:       workers,
		logger:        logger,
	}
}

type categoryResult struct {
	category rawstat.Category
	rows     []rawstat.StatRow
	payloads []rawpayload.Payload
	err      error
}

// IngestStats runs one stats-site snapshot through the full pipeline.
// Categories fetch concurrently and are merged only once every fetch has
// finished, so a partially fetched match set is never merged.
func (s *PipelineService) IngestStats(ctx context.Context) (RunReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PipelineService.IngestStats")
	defer span.End()

	report := RunReport{StartedAt: time.Now()}

	fixtures, payloads, err := s.statsSource.FetchFixtures(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: fixtures: %v", ErrFetch, err)
	}
	if len(fixtures) == 0 {
		report.FinishedAt = time.Now()
		s.logger.InfoContext(ctx, "no fixtures to ingest")
		return report, nil
	}

	results, err := s.fetchCategories(ctx, fixtures)
	if err != nil {
		return report, err
	}

	rowsByCategory := make(map[rawstat.Category][]rawstat.StatRow, len(results))
	for _, result := range results {
		if result.err != nil {
			// A failed category degrades to a partial run; remaining
			// categories still merge. Absent fields stay absent.
			report.FailedCategories = append(report.FailedCategories, string(result.category))
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("category %s failed after retries: %v", result.category, result.err))
			s.logger.WarnContext(ctx, "category fetch failed",
				"category", string(result.category), "error", result.err)
			continue
		}
		rowsByCategory[result.category] = result.rows
		payloads = append(payloads, result.payloads...)
	}
	sort.Strings(report.FailedCategories)

	if len(rowsByCategory) == 0 {
		return report, fmt.Errorf("%w: all %d categories failed", ErrFetch, len(results))
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	outcome, err := s.merger.Merge(ctx, rowsByCategory)
	if err != nil {
		return report, fmt.Errorf("merge categories: %w", err)
	}
	report.SkippedRows += outcome.SkippedRows
	report.MetricConflicts = outcome.MetricConflicts
	report.Ambiguous = outcome.Ambiguous
	report.Bands = outcome.Bands

	upserted, err := s.store.Upsert(ctx, outcome.Lines)
	if err != nil {
		return report, fmt.Errorf("upsert stat lines: %w", err)
	}
	report.Inserted = upserted.Inserted
	report.Corrected = upserted.Corrected
	report.Unchanged = upserted.Unchanged

	s.archivePayloads(ctx, payloads)

	report.FinishedAt = time.Now()
	s.logger.InfoContext(ctx, "stats ingestion finished",
		"inserted", report.Inserted, "corrected", report.Corrected,
		"unchanged", report.Unchanged, "skipped_rows", report.SkippedRows,
		"ambiguous", len(report.Ambiguous), "failed_categories", len(report.FailedCategories))
	return report, nil
}

func (s *PipelineService) fetchCategories(ctx context.Context, fixtures []rawstat.FixtureRef) ([]categoryResult, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("create fetch worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan categoryResult, len(rawstat.AllCategories))
	var workers sync.WaitGroup

	for _, category := range rawstat.AllCategories {
		category := category
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			rows, payloads, fetchErr := s.statsSource.FetchCategory(ctx, category, fixtures)
			results <- categoryResult{
				category: category,
				rows:     rows,
				payloads: payloads,
				err:      fetchErr,
			}
		}); err != nil {
			workers.Done()
			return nil, fmt.Errorf("submit category fetch: %w", err)
		}
	}

	workers.Wait()
	close(results)

	out := make([]categoryResult, 0, len(rawstat.AllCategories))
	for result := range results {
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].category < out[j].category
	})
	return out, nil
}

// IngestFantasy appends one fantasy-platform snapshot to the price
// history. Re-running the same snapshot is a no-op.
func (s *PipelineService) IngestFantasy(ctx context.Context) (RunReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PipelineService.IngestFantasy")
	defer span.End()

	report := RunReport{StartedAt: time.Now()}

	rows, payloads, err := s.fantasySource.FetchPlayers(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: fantasy players: %v", ErrFetch, err)
	}

	records := make([]fantasyrec.Record, 0, len(rows))
	for _, row := range rows {
		if err := s.validate.StructCtx(ctx, row); err != nil {
			report.SkippedRows++
			s.logger.WarnContext(ctx, "fantasy row skipped",
				"player", row.RawPlayerName,
				"error", fmt.Errorf("%w: %v", ErrSchemaMismatch, err))
			continue
		}

		playerID, band, err := s.resolver.Resolve(ctx, row.RawPlayerName, row.RawTeamName, rawstat.SourceFantasyAPI)
		if err != nil {
			if errors.Is(err, ErrAmbiguousMatch) {
				report.Ambiguous = append(report.Ambiguous, AmbiguousRow{
					RawName: row.RawPlayerName,
					RawTeam: row.RawTeamName,
					Source:  rawstat.SourceFantasyAPI,
					Detail:  err.Error(),
				})
				continue
			}
			return report, fmt.Errorf("resolve fantasy identity %q: %w", row.RawPlayerName, err)
		}
		report.Bands.observe(band)

		if position := player.ParsePosition(row.Position); position != player.PositionUnknown {
			if err := s.backfillPosition(ctx, playerID, position); err != nil {
				return report, err
			}
		}

		records = append(records, fantasyrec.Record{
			PlayerID: playerID,
			Price:    row.Price,
			Position: player.ParsePosition(row.Position),
			AsOfDate: row.AsOfDate,
		})
	}

	appended, err := s.appendFantasyRecords(ctx, records)
	if err != nil {
		return report, err
	}
	report.FantasyAppended = appended
	report.FantasyUnchanged = len(records) - appended

	s.archivePayloads(ctx, payloads)

	report.FinishedAt = time.Now()
	s.logger.InfoContext(ctx, "fantasy ingestion finished",
		"appended", report.FantasyAppended, "unchanged", report.FantasyUnchanged,
		"skipped_rows", report.SkippedRows, "ambiguous", len(report.Ambiguous))
	return report, nil
}

// backfillPosition fills a player's position the first time the fantasy
// source reports it; the stats site does not carry one.
func (s *PipelineService) backfillPosition(ctx context.Context, playerID string, position player.Position) error {
	current, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("load player for position backfill: %w", err)
	}
	if current.Position != player.PositionUnknown {
		return nil
	}
	current.Position = position
	if err := s.playerRepo.Update(ctx, current); err != nil {
		return fmt.Errorf("backfill player position: %w", err)
	}
	return nil
}

func (s *PipelineService) appendFantasyRecords(ctx context.Context, records []fantasyrec.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	fresh := make([]fantasyrec.Record, 0, len(records))
	for _, record := range records {
		history, err := s.fantasyRepo.ListByPlayer(ctx, record.PlayerID)
		if err != nil {
			return 0, fmt.Errorf("load fantasy history: %w", err)
		}
		duplicate := false
		for _, existing := range history {
			if sameDay(existing.AsOfDate, record.AsOfDate) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			fresh = append(fresh, record)
		}
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.fantasyRepo.Append(ctx, fresh); err != nil {
		return 0, fmt.Errorf("append fantasy records: %w", err)
	}
	return len(fresh), nil
}

func (s *PipelineService) archivePayloads(ctx context.Context, payloads []rawpayload.Payload) {
	if s.rawRepo == nil || len(payloads) == 0 {
		return
	}

	cleaned := make([]rawpayload.Payload, 0, len(payloads))
	for _, item := range payloads {
		item.Source = strings.ToLower(strings.TrimSpace(item.Source))
		item.EntityType = strings.ToLower(strings.TrimSpace(item.EntityType))
		item.EntityKey = strings.TrimSpace(item.EntityKey)
		if item.Source == "" || item.EntityType == "" || item.EntityKey == "" || item.PayloadJSON == "" {
			continue
		}
		hash := sha256.Sum256([]byte(item.PayloadJSON))
		item.PayloadHash = hex.EncodeToString(hash[:])
		cleaned = append(cleaned, item)
	}

	if err := s.rawRepo.UpsertMany(ctx, cleaned); err != nil {
		// Archival is best effort; losing a snapshot never fails the run.
		s.logger.WarnContext(ctx, "raw payload archive failed", "error", err, "count", len(cleaned))
	}
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Truncate(24 * time.Hour).Equal(b.UTC().Truncate(24 * time.Hour))
}
