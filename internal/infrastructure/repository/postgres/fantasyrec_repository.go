package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prasetyadi/statmerge/internal/domain/fantasyrec"
	"github.com/prasetyadi/statmerge/internal/domain/player"
	qb "github.com/prasetyadi/statmerge/internal/platform/querybuilder"
)

type FantasyRecordRepository struct {
	db *sqlx.DB
}

type fantasyRecordTableModel struct {
	PlayerID string    `db:"player_id"`
	Price    float64   `db:"price"`
	Position string    `db:"position"`
	AsOfDate time.Time `db:"as_of_date"`
}

func NewFantasyRecordRepository(db *sqlx.DB) *FantasyRecordRepository {
	return &FantasyRecordRepository{db: db}
}

func (r *FantasyRecordRepository) Append(ctx context.Context, records []fantasyrec.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx append fantasy records: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, record := range records {
		query, args, err := qb.InsertInto("fantasy_records").
			Columns("player_id", "price", "position", "as_of_date").
			Values(record.PlayerID, record.Price, string(record.Position), record.AsOfDate).
			Suffix("ON CONFLICT (player_id, as_of_date) DO NOTHING").
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert fantasy record query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert fantasy record player=%s: %w", record.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append fantasy records tx: %w", err)
	}
	return nil
}

func (r *FantasyRecordRepository) ListByPlayer(ctx context.Context, playerID string) ([]fantasyrec.Record, error) {
	query, args, err := qb.Select("player_id", "price", "position", "as_of_date").
		From("fantasy_records").
		Where(qb.Eq("player_id", playerID)).
		OrderBy("as_of_date").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select fantasy records query: %w", err)
	}

	var rows []fantasyRecordTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select fantasy records: %w", err)
	}

	out := make([]fantasyrec.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fantasyrec.Record{
			PlayerID: row.PlayerID,
			Price:    row.Price,
			Position: player.Position(row.Position),
			AsOfDate: row.AsOfDate,
		})
	}
	return out, nil
}
