package memory

import (
	"context"
	"sync"

	"github.com/prasetyadi/statmerge/internal/domain/fantasyrec"
)

type FantasyRecordRepository struct {
	mu       sync.RWMutex
	byPlayer map[string][]fantasyrec.Record
}

func NewFantasyRecordRepository() *FantasyRecordRepository {
	return &FantasyRecordRepository{byPlayer: make(map[string][]fantasyrec.Record)}
}

func (r *FantasyRecordRepository) Append(_ context.Context, records []fantasyrec.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		r.byPlayer[record.PlayerID] = append(r.byPlayer[record.PlayerID], record)
	}
	return nil
}

func (r *FantasyRecordRepository) ListByPlayer(_ context.Context, playerID string) ([]fantasyrec.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.byPlayer[playerID]
	out := make([]fantasyrec.Record, 0, len(records))
	out = append(out, records...)
	return out, nil
}
