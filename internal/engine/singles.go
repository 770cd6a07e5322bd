package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/domain/glicko"
	"github.com/rallyrank/rallyrank/internal/domain/model"
	"github.com/rallyrank/rallyrank/internal/domain/score"
	"github.com/rallyrank/rallyrank/pkg/logger"
	"github.com/rallyrank/rallyrank/pkg/metrics"
)

// SinglesMatch describes one completed 1v1 match. Score1 in every set is the
// winner's column.
type SinglesMatch struct {
	MatchID    string
	WinnerID   string
	LoserID    string
	SeasonID   string
	Sport      model.Sport
	Sets       []model.SetScore
	MatchDate  time.Time
	IsWalkover bool
}

// SinglesResult reports both players' movement and the applied score factor.
type SinglesResult struct {
	Winner      model.PlayerUpdate
	Loser       model.PlayerUpdate
	ScoreFactor float64
}

// ProcessSinglesMatch validates the match, updates both players' ratings via
// the Glicko-2 core, and persists the movement atomically. All validation
// runs before any write.
func (e *Engine) ProcessSinglesMatch(ctx context.Context, m SinglesMatch) (*SinglesResult, error) {
	if m.WinnerID == m.LoserID {
		metrics.RecordMatchRejected("self_play")
		return nil, fmt.Errorf("%w: winner and loser are the same player", ErrInvalidMatchData)
	}

	wSets, lSets, wPoints, lPoints := tallySets(m.Sets)
	if !m.IsWalkover {
		if err := score.ForSport(m.Sport).Validate(m.Sets); err != nil {
			metrics.RecordMatchRejected("invalid_score")
			return nil, fmt.Errorf("%w: %w", ErrInvalidMatchData, err)
		}
		if wSets <= lSets {
			metrics.RecordMatchRejected("winner_not_ahead")
			return nil, fmt.Errorf("%w: reported winner took %d of %d sets", ErrInvalidMatchData, wSets, len(m.Sets))
		}
	}

	if m.MatchID != "" && e.guard.SeenAndRecord(ctx, m.MatchID) {
		metrics.RecordMatchRejected("duplicate")
		return nil, fmt.Errorf("%w: match %s", ErrMatchAlreadyRated, m.MatchID)
	}

	winner, err := e.getOrCreateRating(ctx, model.RatingKey{
		PlayerID: m.WinnerID, SeasonID: m.SeasonID, Sport: m.Sport, GameType: model.GameTypeSingles,
	})
	if err != nil {
		e.unrecord(ctx, m.MatchID)
		return nil, err
	}
	loser, err := e.getOrCreateRating(ctx, model.RatingKey{
		PlayerID: m.LoserID, SeasonID: m.SeasonID, Sport: m.Sport, GameType: model.GameTypeSingles,
	})
	if err != nil {
		e.unrecord(ctx, m.MatchID)
		return nil, err
	}

	scoreFactor := 1.0
	if !m.IsWalkover {
		scoreFactor = e.factor.Factor(wSets, lSets, wPoints, lPoints, len(m.Sets))
	}

	winnerOut := glicko.Update(
		glicko.Rating{Rating: winner.Rating, Deviation: winner.RatingDeviation, Volatility: winner.Volatility},
		[]glicko.Outcome{{OpponentRating: loser.Rating, OpponentDeviation: loser.RatingDeviation, Score: 1.0}},
		e.cfg.Tau, e.cfg.Epsilon,
	)
	loserOut := glicko.Update(
		glicko.Rating{Rating: loser.Rating, Deviation: loser.RatingDeviation, Volatility: loser.Volatility},
		[]glicko.Outcome{{OpponentRating: winner.Rating, OpponentDeviation: winner.RatingDeviation, Score: 0.0}},
		e.cfg.Tau, e.cfg.Epsilon,
	)

	newWinnerRating := roundRating(winner.Rating + e.shapeDelta(winnerOut.Rating-winner.Rating, winner.RatingDeviation, scoreFactor))
	newLoserRating := roundRating(loser.Rating + e.shapeDelta(loserOut.Rating-loser.Rating, loser.RatingDeviation, scoreFactor))

	date := e.matchDate(m.MatchDate)
	result := &SinglesResult{
		Winner: model.PlayerUpdate{
			PlayerID: m.WinnerID, OldRating: winner.Rating, NewRating: newWinnerRating,
			Delta: newWinnerRating - winner.Rating, OldRD: winner.RatingDeviation, Won: true,
		},
		Loser: model.PlayerUpdate{
			PlayerID: m.LoserID, OldRating: loser.Rating, NewRating: newLoserRating,
			Delta: newLoserRating - loser.Rating, OldRD: loser.RatingDeviation, Won: false,
		},
		ScoreFactor: scoreFactor,
	}

	winnerHistory := e.applyMovement(winner, m.MatchID, newWinnerRating, winnerOut.Deviation, winnerOut.Volatility, true, date)
	loserHistory := e.applyMovement(loser, m.MatchID, newLoserRating, loserOut.Deviation, loserOut.Volatility, false, date)
	result.Winner.NewRD = winner.RatingDeviation
	result.Loser.NewRD = loser.RatingDeviation

	err = e.store.ApplyMatch(ctx, []repository.RatingUpdate{
		{Rating: winner, History: winnerHistory},
		{Rating: loser, History: loserHistory},
	})
	if err != nil {
		e.unrecord(ctx, m.MatchID)
		metrics.RecordStoreError("apply_match")
		return nil, fmt.Errorf("persist singles match: %w", err)
	}

	metrics.RecordMatchProcessed(string(model.GameTypeSingles))
	metrics.RecordScoreFactor(scoreFactor)
	metrics.RecordRatingDelta(result.Winner.Delta)
	metrics.RecordRatingDelta(result.Loser.Delta)
	e.log.Info(ctx, "processed singles match",
		logger.String("match_id", m.MatchID),
		logger.String("winner_id", m.WinnerID),
		logger.String("loser_id", m.LoserID),
		logger.Float64("score_factor", scoreFactor),
		logger.Float64("winner_delta", result.Winner.Delta),
		logger.Float64("loser_delta", result.Loser.Delta),
		logger.Bool("walkover", m.IsWalkover))

	return result, nil
}

// tallySets totals sets won and points scored, reading Score1 as the first
// column (winner for singles, team one for doubles).
func tallySets(sets []model.SetScore) (sets1, sets2, points1, points2 int) {
	for _, s := range sets {
		if s.Score1 > s.Score2 {
			sets1++
		} else if s.Score2 > s.Score1 {
			sets2++
		}
		points1 += s.Score1
		points2 += s.Score2
	}
	return sets1, sets2, points1, points2
}

func (e *Engine) unrecord(ctx context.Context, matchID string) {
	if matchID != "" {
		e.guard.Unrecord(ctx, matchID)
	}
}
