package memory

import (
	"context"
	"sync"

	"github.com/prasetyadi/statmerge/internal/domain/aliascache"
)

type AliasCacheRepository struct {
	mu      sync.RWMutex
	entries map[aliascache.Key]aliascache.Entry
}

func NewAliasCacheRepository() *AliasCacheRepository {
	return &AliasCacheRepository{entries: make(map[aliascache.Key]aliascache.Entry)}
}

func (r *AliasCacheRepository) Get(_ context.Context, key aliascache.Key) (aliascache.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[key]
	return entry, ok, nil
}

func (r *AliasCacheRepository) Put(_ context.Context, entry aliascache.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[entry.Key]; ok && existing.PlayerID != entry.PlayerID {
		return aliascache.ErrMappingConflict
	}
	r.entries[entry.Key] = entry
	return nil
}

func (r *AliasCacheRepository) Correct(_ context.Context, entry aliascache.Entry) (aliascache.Entry, error) {
	if err := entry.Validate(); err != nil {
		return aliascache.Entry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.entries[entry.Key]
	r.entries[entry.Key] = entry
	return previous, nil
}

func (r *AliasCacheRepository) List(_ context.Context) ([]aliascache.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]aliascache.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out, nil
}
