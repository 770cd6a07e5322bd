package engine

import "errors"

// Sentinel kinds for engine errors. All are raised before any persistence
// occurs; a failed match never leaves a partial rating change behind.
var (
	// ErrInvalidMatchData covers bad or insufficient scores, self-play,
	// non-distinct doubles players, and a winner who is not actually ahead.
	// Always caller-correctable, never retried.
	ErrInvalidMatchData = errors.New("invalid match data")

	// ErrPlayerNotFound is returned by lookups that bypass get-or-create.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrMatchAlreadyRated rejects a second forward processing of a match
	// that already produced rating movement.
	ErrMatchAlreadyRated = errors.New("match already rated")
)
