package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prasetyadi/statmerge/internal/domain/player"
	qb "github.com/prasetyadi/statmerge/internal/platform/querybuilder"
)

type PlayerRepository struct {
	db *sqlx.DB
}

var playerSelectColumns = []string{
	"id",
	"canonical_name",
	"known_aliases",
	"current_team",
	"position",
	"team_changed_at",
	"created_at",
}

type playerTableModel struct {
	ID            string       `db:"id"`
	CanonicalName string       `db:"canonical_name"`
	KnownAliases  string       `db:"known_aliases"`
	CurrentTeam   string       `db:"current_team"`
	Position      string       `db:"position"`
	TeamChangedAt sql.NullTime `db:"team_changed_at"`
	CreatedAt     time.Time    `db:"created_at"`
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (player.Player, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.Eq("id", playerID)).
		ToSQL()
	if err != nil {
		return player.Player{}, fmt.Errorf("build select player query: %w", err)
	}

	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Player{}, player.ErrNotFound
		}
		return player.Player{}, fmt.Errorf("select player: %w", err)
	}
	return mapPlayerRow(row)
}

func (r *PlayerRepository) ListByTeams(ctx context.Context, teams []string) ([]player.Player, error) {
	if len(teams) == 0 {
		return []player.Player{}, nil
	}

	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.In("current_team", stringSliceToAny(teams))).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players by team query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select players by team: %w", err)
	}
	return mapPlayerRows(rows)
}

func (r *PlayerRepository) ListTeamChangedSince(ctx context.Context, since time.Time) ([]player.Player, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.Expr("team_changed_at >= ?", since)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select transferred players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select transferred players: %w", err)
	}
	return mapPlayerRows(rows)
}

func (r *PlayerRepository) Create(ctx context.Context, p player.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}

	aliases, err := encodeStringSlice(p.KnownAliases)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertInto("players").
		Columns("id", "canonical_name", "known_aliases", "current_team", "position", "team_changed_at", "created_at").
		Values(p.ID, p.CanonicalName, aliases, p.CurrentTeam, string(p.Position), nullableTime(p.TeamChangedAt), p.CreatedAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert player query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert player %s: %w", p.ID, err)
	}
	return nil
}

func (r *PlayerRepository) Update(ctx context.Context, p player.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}

	aliases, err := encodeStringSlice(p.KnownAliases)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("players").
		Set("canonical_name", p.CanonicalName).
		Set("known_aliases", aliases).
		Set("current_team", p.CurrentTeam).
		Set("position", string(p.Position)).
		Set("team_changed_at", nullableTime(p.TeamChangedAt)).
		Where(qb.Eq("id", p.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update player query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update player %s: %w", p.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player rows affected: %w", err)
	}
	if affected == 0 {
		return player.ErrNotFound
	}
	return nil
}

func mapPlayerRows(rows []playerTableModel) ([]player.Player, error) {
	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		mapped, err := mapPlayerRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

func mapPlayerRow(row playerTableModel) (player.Player, error) {
	aliases, err := decodeStringSlice(row.KnownAliases)
	if err != nil {
		return player.Player{}, fmt.Errorf("player %s aliases: %w", row.ID, err)
	}
	out := player.Player{
		ID:            row.ID,
		CanonicalName: row.CanonicalName,
		KnownAliases:  aliases,
		CurrentTeam:   row.CurrentTeam,
		Position:      player.Position(row.Position),
		CreatedAt:     row.CreatedAt,
	}
	if row.TeamChangedAt.Valid {
		out.TeamChangedAt = row.TeamChangedAt.Time
	}
	return out, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func stringSliceToAny(items []string) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
