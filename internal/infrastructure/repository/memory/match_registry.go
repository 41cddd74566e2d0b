package memory

import (
	"context"
	"sync"

	"github.com/prasetyadi/statmerge/internal/domain/match"
)

type MatchRegistry struct {
	mu      sync.RWMutex
	byID    map[string]match.Match
	ordered []string
}

func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{byID: make(map[string]match.Match)}
}

func (r *MatchRegistry) GetByID(_ context.Context, matchID string) (match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[matchID]
	if !ok {
		return match.Match{}, match.ErrNotFound
	}
	return cloneMatch(m), nil
}

func (r *MatchRegistry) Ensure(_ context.Context, m match.Match) (match.Match, error) {
	if err := m.Validate(); err != nil {
		return match.Match{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok {
		r.byID[m.ID] = cloneMatch(m)
		r.ordered = append(r.ordered, m.ID)
		return cloneMatch(m), nil
	}
	if existing.Gameweek == nil && m.Gameweek != nil {
		existing.Gameweek = cloneGameweek(m.Gameweek)
		r.byID[m.ID] = existing
	}
	return cloneMatch(existing), nil
}

func (r *MatchRegistry) List(_ context.Context) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Match, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, cloneMatch(r.byID[id]))
	}
	return out, nil
}

func cloneMatch(m match.Match) match.Match {
	out := m
	out.Gameweek = cloneGameweek(m.Gameweek)
	return out
}

func cloneGameweek(gw *int) *int {
	if gw == nil {
		return nil
	}
	v := *gw
	return &v
}
