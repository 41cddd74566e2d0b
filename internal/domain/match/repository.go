package match

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("match not found")

// Registry resolves and records fixtures as they are first seen in raw rows.
type Registry interface {
	GetByID(ctx context.Context, matchID string) (Match, error)
	// Ensure stores the match when it is new and returns the stored copy.
	// A later sighting that carries a gameweek fills a previously nil one;
	// the identifying fields never change.
	Ensure(ctx context.Context, m Match) (Match, error)
	List(ctx context.Context) ([]Match, error)
}
