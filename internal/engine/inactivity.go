package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rallyrank/rallyrank/pkg/logger"
	"github.com/rallyrank/rallyrank/pkg/metrics"
)

const hoursPerDay = 24

// AdjustForInactivity widens the rating deviation of players who have not
// competed within the configured threshold window, modeling growing
// uncertainty. An empty seasonID sweeps every season. Returns the number of
// rows adjusted. Intended to run on a recurring schedule.
func (e *Engine) AdjustForInactivity(ctx context.Context, seasonID string) (int, error) {
	start := e.now()
	threshold := time.Duration(e.cfg.InactivityThresholdDays) * hoursPerDay * time.Hour
	cutoff := start.Add(-threshold)

	rows, err := e.store.ListInactive(ctx, seasonID, cutoff, e.cfg.MaxDeviation)
	if err != nil {
		metrics.RecordStoreError("list_inactive")
		return 0, fmt.Errorf("list inactive ratings: %w", err)
	}

	adjusted := 0
	for _, row := range rows {
		days := start.Sub(*row.LastUpdatedAt).Hours() / hoursPerDay
		periods := days / float64(e.cfg.InactivityThresholdDays)

		increase := math.Max(e.cfg.MinRDIncrease, row.RatingDeviation*e.cfg.RDIncreaseRate*periods)
		newRD := math.Min(row.RatingDeviation+increase, e.cfg.MaxDeviation)
		if newRD <= row.RatingDeviation {
			continue
		}

		if err := e.store.UpdateDeviation(ctx, row.ID, newRD); err != nil {
			metrics.RecordStoreError("update_deviation")
			return adjusted, fmt.Errorf("widen deviation for %s: %w", row.PlayerID, err)
		}
		adjusted++
	}

	metrics.RecordInactivityAdjusted(adjusted)
	metrics.RecordSweepDuration(e.now().Sub(start).Seconds())
	e.log.Info(ctx, "inactivity sweep complete",
		logger.String("season_id", seasonID),
		logger.Int("candidates", len(rows)),
		logger.Int("adjusted", adjusted))
	return adjusted, nil
}
