package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/domain/model"
)

// GetRating looks up an existing rating row without creating one.
// Returns ErrPlayerNotFound when the player has no rating yet.
func (e *Engine) GetRating(ctx context.Context, key model.RatingKey) (*model.PlayerRating, error) {
	row, err := e.store.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s in season %s", ErrPlayerNotFound, key.PlayerID, key.SeasonID)
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Leaderboard returns the highest-rated players for a season, sport and
// game type, best first.
func (e *Engine) Leaderboard(ctx context.Context, seasonID string, sport model.Sport, gameType model.GameType, n int) ([]*model.PlayerRating, error) {
	return e.store.TopN(ctx, seasonID, sport, gameType, n)
}

// MatchHistory returns the ledger rows a match wrote, oldest first.
func (e *Engine) MatchHistory(ctx context.Context, matchID string) ([]model.RatingHistory, error) {
	return e.store.MatchHistory(ctx, matchID)
}
