// Package cache provides a TTL map with singleflight loading, used to
// share one download of a scraped page across concurrent readers.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prasetyadi/statmerge/internal/platform/resilience"
)

type item struct {
	value    any
	deadline time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.deadline.IsZero() && !it.deadline.After(now)
}

type Store struct {
	mu     sync.RWMutex
	items  map[string]item
	ttl    time.Duration
	flight resilience.SingleFlight
	now    func() time.Time
}

// NewStore builds a store whose entries expire after ttl. A zero or
// negative ttl keeps entries for the life of the store.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		items: make(map[string]item),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if it.expired(s.now()) {
		s.Delete(context.Background(), key)
		return nil, false
	}
	return it.value, true
}

func (s *Store) Set(_ context.Context, key string, value any) {
	if key == "" {
		return
	}

	it := item{value: value}
	if s.ttl > 0 {
		it.deadline = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
}

func (s *Store) Delete(_ context.Context, key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// GetOrLoad returns the cached value for key, running loader at most
// once across concurrent callers on a miss.
func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("cache: nil loader")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		// A waiter released just after the leader stored may load again
		// without this re-check.
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.Set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
