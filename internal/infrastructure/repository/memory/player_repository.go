package memory

import (
	"context"
	"sync"
	"time"

	"github.com/prasetyadi/statmerge/internal/domain/player"
)

type PlayerRepository struct {
	mu      sync.RWMutex
	byID    map[string]player.Player
	ordered []string
}

func NewPlayerRepository(players []player.Player) *PlayerRepository {
	byID := make(map[string]player.Player, len(players))
	ordered := make([]string, 0, len(players))
	for _, p := range players {
		if _, ok := byID[p.ID]; !ok {
			ordered = append(ordered, p.ID)
		}
		byID[p.ID] = clonePlayer(p)
	}
	return &PlayerRepository{byID: byID, ordered: ordered}
}

func (r *PlayerRepository) GetByID(_ context.Context, playerID string) (player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[playerID]
	if !ok {
		return player.Player{}, player.ErrNotFound
	}
	return clonePlayer(p), nil
}

func (r *PlayerRepository) ListByTeams(_ context.Context, teams []string) ([]player.Player, error) {
	wanted := make(map[string]struct{}, len(teams))
	for _, team := range teams {
		wanted[team] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(r.ordered))
	for _, id := range r.ordered {
		p := r.byID[id]
		if _, ok := wanted[p.CurrentTeam]; ok {
			out = append(out, clonePlayer(p))
		}
	}
	return out, nil
}

func (r *PlayerRepository) ListTeamChangedSince(_ context.Context, since time.Time) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0)
	for _, id := range r.ordered {
		p := r.byID[id]
		if !p.TeamChangedAt.IsZero() && !p.TeamChangedAt.Before(since) {
			out = append(out, clonePlayer(p))
		}
	}
	return out, nil
}

func (r *PlayerRepository) Create(_ context.Context, p player.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		r.ordered = append(r.ordered, p.ID)
	}
	r.byID[p.ID] = clonePlayer(p)
	return nil
}

func (r *PlayerRepository) Update(_ context.Context, p player.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return player.ErrNotFound
	}
	r.byID[p.ID] = clonePlayer(p)
	return nil
}

func clonePlayer(p player.Player) player.Player {
	out := p
	out.KnownAliases = append([]string(nil), p.KnownAliases...)
	return out
}
