package aliascache

import (
	"context"
	"errors"
)

// ErrMappingConflict is returned by Put when the key already maps to a
// different player. Remapping must go through Correct.
var ErrMappingConflict = errors.New("alias mapping conflict")

// Repository persists confirmed alias mappings. Put must reject a write
// that would change an existing mapping unless the entry is an explicit
// manual correction carrying the previous player id.
type Repository interface {
	Get(ctx context.Context, key Key) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	// Correct replaces the mapping for key with entry and returns the
	// superseded entry. It is the only legal remapping path.
	Correct(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
}
