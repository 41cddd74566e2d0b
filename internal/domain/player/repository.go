package player

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("player not found")

// Repository describes canonical player persistence needs from use cases.
// Players are append-and-mutate only; there is no delete.
type Repository interface {
	GetByID(ctx context.Context, playerID string) (Player, error)
	// ListByTeams returns players whose CurrentTeam is one of teams.
	ListByTeams(ctx context.Context, teams []string) ([]Player, error)
	// ListTeamChangedSince returns players whose team changed at or after
	// the given instant, regardless of current team. Used to widen the
	// matching candidate set during a transfer-window grace period.
	ListTeamChangedSince(ctx context.Context, since time.Time) ([]Player, error)
	Create(ctx context.Context, p Player) error
	Update(ctx context.Context, p Player) error
}
