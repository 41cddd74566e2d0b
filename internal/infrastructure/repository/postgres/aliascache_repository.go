package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prasetyadi/statmerge/internal/domain/aliascache"
	qb "github.com/prasetyadi/statmerge/internal/platform/querybuilder"
)

type AliasCacheRepository struct {
	db *sqlx.DB
}

var aliasSelectColumns = []string{
	"raw_name",
	"raw_team",
	"source",
	"player_id",
	"confirmed",
	"score",
	"resolved_at",
	"corrected_from",
}

type aliasTableModel struct {
	RawName       string         `db:"raw_name"`
	RawTeam       string         `db:"raw_team"`
	Source        string         `db:"source"`
	PlayerID      string         `db:"player_id"`
	Confirmed     string         `db:"confirmed"`
	Score         float64        `db:"score"`
	ResolvedAt    time.Time      `db:"resolved_at"`
	CorrectedFrom sql.NullString `db:"corrected_from"`
}

func NewAliasCacheRepository(db *sqlx.DB) *AliasCacheRepository {
	return &AliasCacheRepository{db: db}
}

func (r *AliasCacheRepository) Get(ctx context.Context, key aliascache.Key) (aliascache.Entry, bool, error) {
	query, args, err := qb.Select(aliasSelectColumns...).From("alias_cache").
		Where(
			qb.Eq("raw_name", key.RawName),
			qb.Eq("raw_team", key.RawTeam),
			qb.Eq("source", key.Source),
		).
		ToSQL()
	if err != nil {
		return aliascache.Entry{}, false, fmt.Errorf("build select alias query: %w", err)
	}

	var row aliasTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return aliascache.Entry{}, false, nil
		}
		return aliascache.Entry{}, false, fmt.Errorf("select alias: %w", err)
	}
	return mapAliasRow(row), true, nil
}

// Put inserts a new mapping. An insert that collides with an existing key
// is left untouched; when the stored mapping points at a different player
// the write is a conflict, because remapping must be an explicit
// correction.
func (r *AliasCacheRepository) Put(ctx context.Context, entry aliascache.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	query, args, err := qb.InsertInto("alias_cache").
		Columns("raw_name", "raw_team", "source", "player_id", "confirmed", "score", "resolved_at", "corrected_from").
		Values(entry.Key.RawName, entry.Key.RawTeam, entry.Key.Source,
			entry.PlayerID, entry.Confirmed, entry.Score, entry.ResolvedAt,
			nullableString(entry.CorrectedFrom)).
		Suffix("ON CONFLICT (raw_name, raw_team, source) DO NOTHING").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert alias query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert alias %q/%q/%q: %w", entry.Key.RawName, entry.Key.RawTeam, entry.Key.Source, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert alias rows affected: %w", err)
	}
	if affected == 0 {
		existing, found, err := r.Get(ctx, entry.Key)
		if err != nil {
			return err
		}
		if found && existing.PlayerID != entry.PlayerID {
			return aliascache.ErrMappingConflict
		}
	}
	return nil
}

func (r *AliasCacheRepository) Correct(ctx context.Context, entry aliascache.Entry) (aliascache.Entry, error) {
	if err := entry.Validate(); err != nil {
		return aliascache.Entry{}, err
	}

	previous, _, err := r.Get(ctx, entry.Key)
	if err != nil {
		return aliascache.Entry{}, err
	}

	query, args, err := qb.InsertInto("alias_cache").
		Columns("raw_name", "raw_team", "source", "player_id", "confirmed", "score", "resolved_at", "corrected_from").
		Values(entry.Key.RawName, entry.Key.RawTeam, entry.Key.Source,
			entry.PlayerID, entry.Confirmed, entry.Score, entry.ResolvedAt,
			nullableString(entry.CorrectedFrom)).
		Suffix(`ON CONFLICT (raw_name, raw_team, source)
DO UPDATE SET
    player_id = EXCLUDED.player_id,
    confirmed = EXCLUDED.confirmed,
    score = EXCLUDED.score,
    resolved_at = EXCLUDED.resolved_at,
    corrected_from = EXCLUDED.corrected_from`).
		ToSQL()
	if err != nil {
		return aliascache.Entry{}, fmt.Errorf("build correct alias query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return aliascache.Entry{}, fmt.Errorf("correct alias %q/%q/%q: %w",
			entry.Key.RawName, entry.Key.RawTeam, entry.Key.Source, err)
	}
	return previous, nil
}

func (r *AliasCacheRepository) List(ctx context.Context) ([]aliascache.Entry, error) {
	query, args, err := qb.Select(aliasSelectColumns...).From("alias_cache").
		OrderBy("source", "raw_team", "raw_name").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select aliases query: %w", err)
	}

	var rows []aliasTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select aliases: %w", err)
	}

	out := make([]aliascache.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAliasRow(row))
	}
	return out, nil
}

func mapAliasRow(row aliasTableModel) aliascache.Entry {
	entry := aliascache.Entry{
		Key: aliascache.Key{
			RawName: row.RawName,
			RawTeam: row.RawTeam,
			Source:  row.Source,
		},
		PlayerID:   row.PlayerID,
		Confirmed:  row.Confirmed,
		Score:      row.Score,
		ResolvedAt: row.ResolvedAt,
	}
	if row.CorrectedFrom.Valid {
		entry.CorrectedFrom = row.CorrectedFrom.String
	}
	return entry
}
