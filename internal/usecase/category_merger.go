package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/prasetyadi/statmerge/internal/domain/match"
	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
	"github.com/prasetyadi/statmerge/internal/domain/statline"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
)

// AmbiguousRow is one raw sighting excluded from the run because its
// identity could not be auto-resolved. It waits in the report for a human.
type AmbiguousRow struct {
	RawName string
	RawTeam string
	Source  string
	Detail  string
}

// BandCounts tallies how resolutions fell across confidence bands.
type BandCounts struct {
	Exact    int
	Accepted int
	Created  int
}

func (b *BandCounts) observe(band Band) {
	switch band {
	case BandExact:
		b.Exact++
	case BandAccepted:
		b.Accepted++
	case BandCreated:
		b.Created++
	}
}

// MergeOutcome is the merger's structured result: the lines plus everything
// that was skipped, queued, or overwritten along the way.
type MergeOutcome struct {
	Lines           []statline.Line
	SkippedRows     int
	MetricConflicts int
	Ambiguous       []AmbiguousRow
	Bands           BandCounts
}

// CategoryMerger joins the per-category raw tables into one line per
// (player, match) key, resolving identities and fixtures on the way.
type CategoryMerger struct {
	resolver *IdentityResolver
	matches  match.Registry
	validate *validator.Validate
	logger   *logging.Logger
}

func NewCategoryMerger(resolver *IdentityResolver, matches match.Registry, logger *logging.Logger) *CategoryMerger {
	if logger == nil {
		logger = logging.Default()
	}
	return &CategoryMerger{
		resolver: resolver,
		matches:  matches,
		validate: validator.New(),
		logger:   logger,
	}
}

// Merge processes categories in their canonical order so the "later
// category wins" conflict policy is deterministic across runs.
func (m *CategoryMerger) Merge(ctx context.Context, rowsByCategory map[rawstat.Category][]rawstat.StatRow) (MergeOutcome, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CategoryMerger.Merge")
	defer span.End()

	outcome := MergeOutcome{}
	linesByKey := make(map[statline.Key]*statline.Line)

	for _, category := range rawstat.AllCategories {
		rows, ok := rowsByCategory[category]
		if !ok {
			continue
		}
		for _, row := range rows {
			if err := m.mergeRow(ctx, category, row, linesByKey, &outcome); err != nil {
				return MergeOutcome{}, err
			}
		}
	}

	outcome.Lines = make([]statline.Line, 0, len(linesByKey))
	for _, line := range linesByKey {
		outcome.Lines = append(outcome.Lines, *line)
	}
	sort.Slice(outcome.Lines, func(i, j int) bool {
		if outcome.Lines[i].MatchID != outcome.Lines[j].MatchID {
			return outcome.Lines[i].MatchID < outcome.Lines[j].MatchID
		}
		return outcome.Lines[i].PlayerID < outcome.Lines[j].PlayerID
	})
	return outcome, nil
}

func (m *CategoryMerger) mergeRow(
	ctx context.Context,
	category rawstat.Category,
	row rawstat.StatRow,
	linesByKey map[statline.Key]*statline.Line,
	outcome *MergeOutcome,
) error {
	if err := m.validate.StructCtx(ctx, row); err != nil {
		outcome.SkippedRows++
		m.logger.WarnContext(ctx, "raw row skipped",
			"category", string(category), "player", row.RawPlayerName,
			"error", fmt.Errorf("%w: %v", ErrSchemaMismatch, err))
		return nil
	}

	fixture, err := m.matches.Ensure(ctx, match.Match{
		ID:       match.DeriveID(row.HomeTeam(), row.AwayTeam(), row.MatchDate),
		Date:     row.MatchDate,
		HomeTeam: row.HomeTeam(),
		AwayTeam: row.AwayTeam(),
		Gameweek: row.Gameweek,
	})
	if err != nil {
		return fmt.Errorf("ensure match for row %q/%q: %w", row.RawPlayerName, row.RawTeamName, err)
	}

	playerID, band, err := m.resolver.Resolve(ctx, row.RawPlayerName, row.RawTeamName, rawstat.SourceStatsSite)
	if err != nil {
		if errors.Is(err, ErrAmbiguousMatch) {
			outcome.Ambiguous = append(outcome.Ambiguous, AmbiguousRow{
				RawName: row.RawPlayerName,
				RawTeam: row.RawTeamName,
				Source:  rawstat.SourceStatsSite,
				Detail:  err.Error(),
			})
			return nil
		}
		return fmt.Errorf("resolve identity for row %q/%q: %w", row.RawPlayerName, row.RawTeamName, err)
	}
	outcome.Bands.observe(band)

	key := statline.Key{PlayerID: playerID, MatchID: fixture.ID}
	line, ok := linesByKey[key]
	if !ok {
		line = &statline.Line{
			PlayerID: playerID,
			MatchID:  fixture.ID,
			IsHome:   row.IsHome,
			Metrics:  make(map[string]float64),
		}
		linesByKey[key] = line
	}

	if row.MinutesPlayed > 0 && line.MinutesPlayed == 0 {
		line.MinutesPlayed = row.MinutesPlayed
	}

	for name, value := range row.Metrics {
		if existing, reported := line.Metrics[name]; reported && existing != value {
			// Categories should be disjoint; when they disagree the later
			// category wins and the clash is a data-quality warning.
			outcome.MetricConflicts++
			m.logger.WarnContext(ctx, "metric conflict across categories",
				"category", string(category), "player_id", playerID,
				"match_id", fixture.ID, "metric", name,
				"previous", existing, "incoming", value)
		}
		line.Metrics[name] = value
	}
	return nil
}
