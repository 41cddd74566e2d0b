package statline

import "context"

// Repository is the append-only stat line dataset plus its audit trail.
// The upsert decision (insert vs correction vs unchanged) belongs to the
// use case; the repository only stores what it is told.
type Repository interface {
	Get(ctx context.Context, key Key) (Line, bool, error)
	ListByPlayer(ctx context.Context, playerID string) ([]Line, error)
	// ApplyBatch writes every line and audit entry, or none of them.
	// A batch interrupted mid-apply must not persist a prefix.
	ApplyBatch(ctx context.Context, lines []Line, audit []AuditEntry) error
	ListAuditByKey(ctx context.Context, key Key) ([]AuditEntry, error)
}
