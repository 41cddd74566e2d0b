package usecase

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")

	// ErrFetch marks a source fetch that stayed broken after bounded
	// retries. A single failed category degrades to a partial-run warning;
	// all categories failing makes the run unrecoverable.
	ErrFetch = errors.New("source fetch failed")

	// ErrAmbiguousMatch means several known players scored above the
	// acceptance threshold with no clear leader. Never auto-resolved; the
	// affected rows are queued for manual review and excluded from the run.
	ErrAmbiguousMatch = errors.New("ambiguous identity match")

	// ErrNoCandidate is returned in strict mode instead of creating a new
	// player when nothing clears the floor threshold.
	ErrNoCandidate = errors.New("no identity candidate")

	// ErrSchemaMismatch marks a raw row missing an identifying field. The
	// row is skipped and counted, never fatal.
	ErrSchemaMismatch = errors.New("raw row schema mismatch")

	// ErrCorruptAliasCache means the cache holds contradictory confirmed
	// mappings. Fatal for the run; picking one silently would misattribute
	// historical stats.
	ErrCorruptAliasCache = errors.New("alias cache is corrupt")
)
