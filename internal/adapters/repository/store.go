// Package repository defines the rating store boundary and its errors.
//
// The store owns atomicity and isolation: every match apply and every
// reversal is one unit of work, and concurrent writes touching the same
// rating row serialize on that row. The engine holds no locks of its own.
package repository

import (
	"context"
	"time"

	"github.com/rallyrank/rallyrank/internal/domain/model"
)

// Seed describes the starting values for a lazily created rating row.
type Seed struct {
	Rating          float64
	RatingDeviation float64
	Volatility      float64
	// Note annotates the INITIAL_PLACEMENT history row, e.g. the seed source.
	Note string
}

// RatingUpdate pairs a mutated rating row with the history entry recording
// the movement. The store assigns history IDs and timestamps.
type RatingUpdate struct {
	Rating  *model.PlayerRating
	History model.RatingHistory
}

// RatingRestore returns one rating row to its pre-match values during a
// reversal, keyed by the history row that recorded the original movement.
type RatingRestore struct {
	PlayerRatingID  string
	HistoryID       string
	Rating          float64
	RatingDeviation float64
}

// Store provides access to player ratings and their history ledger.
type Store interface {
	// GetOrCreate returns the rating row for key, creating it from seed on
	// first use. A created row gets an INITIAL_PLACEMENT history entry in
	// the same unit of work. The bool reports whether a row was created.
	GetOrCreate(ctx context.Context, key model.RatingKey, seed Seed) (*model.PlayerRating, bool, error)

	// Get returns the rating row for key or ErrNotFound.
	Get(ctx context.Context, key model.RatingKey) (*model.PlayerRating, error)

	// ApplyMatch persists all of a match's rating rows and history entries
	// atomically: either every participant moves or none do.
	ApplyMatch(ctx context.Context, updates []RatingUpdate) error

	// MatchHistory returns the ledger rows written for a match, oldest first.
	MatchHistory(ctx context.Context, matchID string) ([]model.RatingHistory, error)

	// ApplyReversal atomically restores the given rows to their before
	// values, decrements their matches-played counters, and appends marker
	// to each affected history row's note.
	ApplyReversal(ctx context.Context, matchID string, restores []RatingRestore, marker string) error

	// ListInactive returns rows last updated before the cutoff whose
	// deviation is still below maxRD. An empty seasonID matches all seasons.
	ListInactive(ctx context.Context, seasonID string, before time.Time, maxRD float64) ([]*model.PlayerRating, error)

	// UpdateDeviation overwrites a row's rating deviation, used by the
	// inactivity sweep. The row's last-updated timestamp is left alone so
	// elapsed inactivity keeps accruing from the last match.
	UpdateDeviation(ctx context.Context, playerRatingID string, rd float64) error

	// TopN returns the highest-rated rows for a season, sport and game type.
	TopN(ctx context.Context, seasonID string, sport model.Sport, gameType model.GameType, n int) ([]*model.PlayerRating, error)

	// Count returns the number of rating rows tracked.
	Count(ctx context.Context) (int, error)
}
