package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prasetyadi/statmerge/internal/domain/match"
	qb "github.com/prasetyadi/statmerge/internal/platform/querybuilder"
)

type MatchRegistry struct {
	db *sqlx.DB
}

var matchSelectColumns = []string{
	"id",
	"match_date",
	"home_team",
	"away_team",
	"gameweek",
}

type matchTableModel struct {
	ID       string        `db:"id"`
	Date     time.Time     `db:"match_date"`
	HomeTeam string        `db:"home_team"`
	AwayTeam string        `db:"away_team"`
	Gameweek sql.NullInt64 `db:"gameweek"`
}

func NewMatchRegistry(db *sqlx.DB) *MatchRegistry {
	return &MatchRegistry{db: db}
}

func (r *MatchRegistry) GetByID(ctx context.Context, matchID string) (match.Match, error) {
	query, args, err := qb.Select(matchSelectColumns...).From("matches").
		Where(qb.Eq("id", matchID)).
		ToSQL()
	if err != nil {
		return match.Match{}, fmt.Errorf("build select match query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, match.ErrNotFound
		}
		return match.Match{}, fmt.Errorf("select match: %w", err)
	}
	return mapMatchRow(row), nil
}

func (r *MatchRegistry) Ensure(ctx context.Context, m match.Match) (match.Match, error) {
	if err := m.Validate(); err != nil {
		return match.Match{}, err
	}

	query, args, err := qb.InsertInto("matches").
		Columns("id", "match_date", "home_team", "away_team", "gameweek").
		Values(m.ID, m.Date, m.HomeTeam, m.AwayTeam, nullableInt(m.Gameweek)).
		Suffix(`ON CONFLICT (id)
DO UPDATE SET gameweek = COALESCE(matches.gameweek, EXCLUDED.gameweek)`).
		ToSQL()
	if err != nil {
		return match.Match{}, fmt.Errorf("build upsert match query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return match.Match{}, fmt.Errorf("upsert match %s: %w", m.ID, err)
	}

	return r.GetByID(ctx, m.ID)
}

func (r *MatchRegistry) List(ctx context.Context) ([]match.Match, error) {
	query, args, err := qb.Select(matchSelectColumns...).From("matches").
		OrderBy("match_date", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapMatchRow(row))
	}
	return out, nil
}

func mapMatchRow(row matchTableModel) match.Match {
	out := match.Match{
		ID:       row.ID,
		Date:     row.Date,
		HomeTeam: row.HomeTeam,
		AwayTeam: row.AwayTeam,
	}
	if row.Gameweek.Valid {
		gw := int(row.Gameweek.Int64)
		out.Gameweek = &gw
	}
	return out
}
