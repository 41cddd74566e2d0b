package fantasyrec

import "context"

// Repository is the append-log of fantasy records, never overwritten.
type Repository interface {
	Append(ctx context.Context, records []Record) error
	ListByPlayer(ctx context.Context, playerID string) ([]Record, error)
}
