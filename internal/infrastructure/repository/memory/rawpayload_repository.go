package memory

import (
	"context"
	"sync"

	"github.com/prasetyadi/statmerge/internal/domain/rawpayload"
)

type rawPayloadKey struct {
	source     string
	entityType string
	entityKey  string
}

type RawPayloadRepository struct {
	mu    sync.RWMutex
	items map[rawPayloadKey]rawpayload.Payload
}

func NewRawPayloadRepository() *RawPayloadRepository {
	return &RawPayloadRepository{items: make(map[rawPayloadKey]rawpayload.Payload)}
}

func (r *RawPayloadRepository) UpsertMany(_ context.Context, items []rawpayload.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		key := rawPayloadKey{source: item.Source, entityType: item.EntityType, entityKey: item.EntityKey}
		if existing, ok := r.items[key]; ok && existing.PayloadHash == item.PayloadHash {
			continue
		}
		r.items[key] = item
	}
	return nil
}

func (r *RawPayloadRepository) List(_ context.Context) ([]rawpayload.Payload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]rawpayload.Payload, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, nil
}
