// Package engine computes and persists Glicko-2 skill ratings for racquet
// sport matches: singles and doubles updates, margin-of-victory weighting,
// inactivity decay, and reversible match outcomes.
//
// One Engine is constructed per configuration at process start and passed to
// callers; there is no ambient default instance. The engine holds no locks of
// its own — atomicity and per-row isolation are the store's contract.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/config"
	"github.com/rallyrank/rallyrank/internal/domain/dedupe"
	"github.com/rallyrank/rallyrank/internal/domain/glicko"
	"github.com/rallyrank/rallyrank/internal/domain/model"
	"github.com/rallyrank/rallyrank/internal/domain/score"
	"github.com/rallyrank/rallyrank/pkg/logger"
)

// SeedSource supplies an externally computed initial rating (e.g. from a
// skill questionnaire). It is consulted only when a rating row is first
// created; a nil result falls back to system defaults.
type SeedSource interface {
	InitialRating(ctx context.Context, playerID string, sport model.Sport) (*model.InitialRating, error)
}

// Engine orchestrates rating updates against a store.
type Engine struct {
	store  repository.Store
	cfg    config.Engine
	factor *score.FactorCalculator
	guard  dedupe.Guard
	seeds  SeedSource
	log    logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithGuard sets the match idempotency guard.
func WithGuard(g dedupe.Guard) Option {
	return func(e *Engine) {
		if g != nil {
			e.guard = g
		}
	}
}

// WithSeedSource sets the external initial-rating source.
func WithSeedSource(s SeedSource) Option {
	return func(e *Engine) {
		e.seeds = s
	}
}

// WithClock overrides the engine's time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Engine bound to one immutable parameter bundle.
func New(store repository.Store, cfg config.Engine, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		factor: score.NewFactorCalculator(
			score.WithSetWeight(cfg.SetWeight),
			score.WithPointWeight(cfg.PointWeight),
		),
		guard: dedupe.NewMatchGuard(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = noopLogger{}
	}
	return e
}

// WinProbability reports the chance that player A beats player B. The
// expectation weighs the opponent's uncertainty, so the two directions do
// not generally sum to one unless the deviations match.
func (e *Engine) WinProbability(ratingA, rdA, ratingB, rdB float64) float64 {
	return glicko.ExpectedScore(ratingA, ratingB, rdB)
}

// ConfidenceInterval returns the two-deviation band around a rating.
func (e *Engine) ConfidenceInterval(rating, rd float64) (low, high float64) {
	return rating - 2*rd, rating + 2*rd
}

// getOrCreateRating loads a player's rating row, creating it lazily from the
// seed source or system defaults.
func (e *Engine) getOrCreateRating(ctx context.Context, key model.RatingKey) (*model.PlayerRating, error) {
	seed := repository.Seed{
		Rating:          e.cfg.DefaultRating,
		RatingDeviation: e.cfg.DefaultDeviation,
		Volatility:      e.cfg.DefaultVolatility,
		Note:            "system defaults",
	}
	if e.seeds != nil {
		init, err := e.seeds.InitialRating(ctx, key.PlayerID, key.Sport)
		if err != nil {
			return nil, fmt.Errorf("initial rating for %s: %w", key.PlayerID, err)
		}
		if init != nil {
			seed.Rating = init.Rating
			seed.RatingDeviation = e.clampRD(init.RatingDeviation)
			seed.Note = "seeded from external placement"
		}
	}

	row, created, err := e.store.GetOrCreate(ctx, key, seed)
	if err != nil {
		return nil, err
	}
	if created {
		e.log.Info(ctx, "created rating row",
			logger.String("player_id", key.PlayerID),
			logger.String("season_id", key.SeasonID),
			logger.Float64("rating", row.Rating))
	}
	return row, nil
}

// shapeDelta applies the score factor and dampening to a raw Glicko delta,
// then caps it against the player's deviation.
func (e *Engine) shapeDelta(rawDelta, rd, scoreFactor float64) float64 {
	f := scoreFactor
	if e.cfg.SoftenScoreFactor {
		f = math.Sqrt(scoreFactor)
	}
	return e.capRatingChange(rawDelta*f*e.cfg.Dampening, rd)
}

// capRatingChange clamps delta to min(capK·rd, maxRatingChange) in both
// directions so one match cannot blow up a rating.
func (e *Engine) capRatingChange(delta, rd float64) float64 {
	limit := math.Min(e.cfg.CapDeviationK*rd, e.cfg.MaxRatingChange)
	return math.Max(-limit, math.Min(limit, delta))
}

func (e *Engine) clampRD(rd float64) float64 {
	return math.Max(e.cfg.MinDeviation, math.Min(e.cfg.MaxDeviation, rd))
}

// applyMovement folds one player's post-match values into their rating row
// and returns the matching history entry.
func (e *Engine) applyMovement(row *model.PlayerRating, matchID string, newRating, newRD, newVol float64, won bool, matchDate time.Time) model.RatingHistory {
	before := row.Rating
	rdBefore := row.RatingDeviation

	row.Rating = newRating
	row.RatingDeviation = e.clampRD(newRD)
	row.Volatility = newVol
	row.MatchesPlayed++
	row.IsProvisional = row.MatchesPlayed < e.cfg.ProvisionalThreshold

	if newRating > row.PeakRating {
		row.PeakRating = newRating
		d := matchDate
		row.PeakRatingDate = &d
	}
	if newRating < row.LowestRating {
		row.LowestRating = newRating
	}
	d := matchDate
	row.LastUpdatedAt = &d

	reason := model.ReasonMatchLoss
	if won {
		reason = model.ReasonMatchWin
	}
	return model.RatingHistory{
		PlayerRatingID: row.ID,
		MatchID:        matchID,
		RatingBefore:   before,
		RatingAfter:    newRating,
		Delta:          newRating - before,
		RDBefore:       rdBefore,
		RDAfter:        row.RatingDeviation,
		Reason:         reason,
	}
}

// roundRating snaps a rating to whole points, the unit shown to players.
func roundRating(r float64) float64 {
	return math.Round(r)
}

// matchDate normalizes a possibly zero match timestamp.
func (e *Engine) matchDate(t time.Time) time.Time {
	if t.IsZero() {
		return e.now()
	}
	return t
}

// noopLogger drops everything; used when no logger is injected.
type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...logger.Field) {}
func (noopLogger) Info(context.Context, string, ...logger.Field)  {}
func (noopLogger) Warn(context.Context, string, ...logger.Field)  {}
func (noopLogger) Error(context.Context, string, ...logger.Field) {}
func (noopLogger) Named(string) logger.Logger                     { return noopLogger{} }
