package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/domain/model"
	"github.com/rallyrank/rallyrank/pkg/logger"
	"github.com/rallyrank/rallyrank/pkg/metrics"
)

// reversedMarker annotates history rows whose effects were rolled back.
const reversedMarker = "[REVERSED]"

// ReverseMatchRatings undoes a voided match: every affected player's rating
// and deviation return to their before values and matches played decrements.
// History rows are kept for audit and annotated, never deleted. A match with
// no history (unknown, or already reversed) is a logged no-op.
func (e *Engine) ReverseMatchRatings(ctx context.Context, matchID string) error {
	rows, err := e.store.MatchHistory(ctx, matchID)
	if err != nil {
		metrics.RecordStoreError("match_history")
		return fmt.Errorf("load history for match %s: %w", matchID, err)
	}

	restores := make([]repository.RatingRestore, 0, len(rows))
	for _, h := range rows {
		if h.Reason == model.ReasonInitialPlacement {
			continue
		}
		if strings.Contains(h.Note, reversedMarker) {
			continue
		}
		restores = append(restores, repository.RatingRestore{
			PlayerRatingID:  h.PlayerRatingID,
			HistoryID:       h.ID,
			Rating:          h.RatingBefore,
			RatingDeviation: h.RDBefore,
		})
	}
	if len(restores) == 0 {
		e.log.Warn(ctx, "no reversible history for match, nothing to do",
			logger.String("match_id", matchID))
		return nil
	}

	if err := e.store.ApplyReversal(ctx, matchID, restores, reversedMarker); err != nil {
		metrics.RecordStoreError("apply_reversal")
		return fmt.Errorf("reverse match %s: %w", matchID, err)
	}

	// Let a corrected resubmission of this match through the guard.
	e.unrecord(ctx, matchID)

	metrics.RecordMatchReversed()
	e.log.Info(ctx, "reversed match ratings",
		logger.String("match_id", matchID),
		logger.Int("players_restored", len(restores)))
	return nil
}
