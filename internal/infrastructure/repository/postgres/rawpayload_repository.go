package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prasetyadi/statmerge/internal/domain/rawpayload"
	qb "github.com/prasetyadi/statmerge/internal/platform/querybuilder"
)

type RawPayloadRepository struct {
	db *sqlx.DB
}

func NewRawPayloadRepository(db *sqlx.DB) *RawPayloadRepository {
	return &RawPayloadRepository{db: db}
}

func (r *RawPayloadRepository) UpsertMany(ctx context.Context, items []rawpayload.Payload) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert raw payloads: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		query, args, err := qb.InsertInto("raw_payloads").
			Columns("source", "entity_type", "entity_key", "payload", "payload_hash", "fetched_at").
			Values(item.Source, item.EntityType, item.EntityKey, item.PayloadJSON, item.PayloadHash, item.FetchedAt).
			Suffix(`ON CONFLICT (source, entity_type, entity_key)
DO UPDATE SET
    payload = EXCLUDED.payload,
    payload_hash = EXCLUDED.payload_hash,
    fetched_at = EXCLUDED.fetched_at
WHERE raw_payloads.payload_hash IS DISTINCT FROM EXCLUDED.payload_hash`).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert raw payload query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert raw payload entity=%s key=%s: %w", item.EntityType, item.EntityKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert raw payloads tx: %w", err)
	}
	return nil
}
