package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prasetyadi/statmerge/internal/domain/statline"
	qb "github.com/prasetyadi/statmerge/internal/platform/querybuilder"
)

type StatLineRepository struct {
	db *sqlx.DB
}

var statLineSelectColumns = []string{
	"player_id",
	"match_id",
	"minutes_played",
	"is_home",
	"metrics",
}

type statLineTableModel struct {
	PlayerID      string `db:"player_id"`
	MatchID       string `db:"match_id"`
	MinutesPlayed int    `db:"minutes_played"`
	IsHome        bool   `db:"is_home"`
	Metrics       string `db:"metrics"`
}

type statAuditTableModel struct {
	PlayerID   string          `db:"player_id"`
	MatchID    string          `db:"match_id"`
	Field      string          `db:"field"`
	OldValue   sql.NullFloat64 `db:"old_value"`
	NewValue   sql.NullFloat64 `db:"new_value"`
	RecordedAt time.Time       `db:"recorded_at"`
}

func NewStatLineRepository(db *sqlx.DB) *StatLineRepository {
	return &StatLineRepository{db: db}
}

func (r *StatLineRepository) Get(ctx context.Context, key statline.Key) (statline.Line, bool, error) {
	query, args, err := qb.Select(statLineSelectColumns...).From("match_stat_lines").
		Where(
			qb.Eq("player_id", key.PlayerID),
			qb.Eq("match_id", key.MatchID),
		).
		ToSQL()
	if err != nil {
		return statline.Line{}, false, fmt.Errorf("build select stat line query: %w", err)
	}

	var row statLineTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return statline.Line{}, false, nil
		}
		return statline.Line{}, false, fmt.Errorf("select stat line: %w", err)
	}

	line, err := mapStatLineRow(row)
	if err != nil {
		return statline.Line{}, false, err
	}
	return line, true, nil
}

func (r *StatLineRepository) ListByPlayer(ctx context.Context, playerID string) ([]statline.Line, error) {
	query, args, err := qb.Select(statLineSelectColumns...).From("match_stat_lines").
		Where(qb.Eq("player_id", playerID)).
		OrderBy("match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select stat lines query: %w", err)
	}

	var rows []statLineTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select stat lines by player: %w", err)
	}

	out := make([]statline.Line, 0, len(rows))
	for _, row := range rows {
		line, err := mapStatLineRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// ApplyBatch upserts every line and appends every audit entry inside
// one transaction; a failure mid-batch rolls back the whole apply.
func (r *StatLineRepository) ApplyBatch(ctx context.Context, lines []statline.Line, audit []statline.AuditEntry) error {
	if len(lines) == 0 && len(audit) == 0 {
		return nil
	}

	type lineInsert struct {
		line    statline.Line
		metrics string
	}
	inserts := make([]lineInsert, 0, len(lines))
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
		metrics, err := encodeJSONMap(line.Metrics)
		if err != nil {
			return err
		}
		inserts = append(inserts, lineInsert{line: line, metrics: metrics})
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx apply stat line batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updatedAt := time.Now()
	for _, ins := range inserts {
		query, args, err := qb.InsertInto("match_stat_lines").
			Columns("player_id", "match_id", "minutes_played", "is_home", "metrics", "updated_at").
			Values(ins.line.PlayerID, ins.line.MatchID, ins.line.MinutesPlayed, ins.line.IsHome, ins.metrics, updatedAt).
			Suffix(`ON CONFLICT (player_id, match_id)
DO UPDATE SET
    minutes_played = EXCLUDED.minutes_played,
    is_home = EXCLUDED.is_home,
    metrics = EXCLUDED.metrics,
    updated_at = EXCLUDED.updated_at`).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert stat line query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert stat line player=%s match=%s: %w", ins.line.PlayerID, ins.line.MatchID, err)
		}
	}

	for _, entry := range audit {
		query, args, err := qb.InsertInto("stat_audit").
			Columns("player_id", "match_id", "field", "old_value", "new_value", "recorded_at").
			Values(entry.PlayerID, entry.MatchID, entry.Field,
				nullableFloat(entry.OldValue), nullableFloat(entry.NewValue), entry.RecordedAt).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert stat audit query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert stat audit player=%s field=%s: %w", entry.PlayerID, entry.Field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stat line batch tx: %w", err)
	}
	return nil
}

func (r *StatLineRepository) ListAuditByKey(ctx context.Context, key statline.Key) ([]statline.AuditEntry, error) {
	query, args, err := qb.Select("player_id", "match_id", "field", "old_value", "new_value", "recorded_at").
		From("stat_audit").
		Where(
			qb.Eq("player_id", key.PlayerID),
			qb.Eq("match_id", key.MatchID),
		).
		OrderBy("recorded_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select stat audit query: %w", err)
	}

	var rows []statAuditTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select stat audit: %w", err)
	}

	out := make([]statline.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, statline.AuditEntry{
			PlayerID:   row.PlayerID,
			MatchID:    row.MatchID,
			Field:      row.Field,
			OldValue:   nullFloatToPtr(row.OldValue),
			NewValue:   nullFloatToPtr(row.NewValue),
			RecordedAt: row.RecordedAt,
		})
	}
	return out, nil
}

func mapStatLineRow(row statLineTableModel) (statline.Line, error) {
	metrics, err := decodeJSONMap(row.Metrics)
	if err != nil {
		return statline.Line{}, fmt.Errorf("stat line player=%s match=%s metrics: %w", row.PlayerID, row.MatchID, err)
	}
	return statline.Line{
		PlayerID:      row.PlayerID,
		MatchID:       row.MatchID,
		MinutesPlayed: row.MinutesPlayed,
		IsHome:        row.IsHome,
		Metrics:       metrics,
	}, nil
}
