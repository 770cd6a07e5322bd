package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/domain/glicko"
	"github.com/rallyrank/rallyrank/internal/domain/model"
	"github.com/rallyrank/rallyrank/internal/domain/score"
	"github.com/rallyrank/rallyrank/pkg/logger"
	"github.com/rallyrank/rallyrank/pkg/metrics"
)

// DoublesMatch describes one completed 2v2 match. Score1 in every set is
// team one's column; the winning team is derived from the sets.
type DoublesMatch struct {
	MatchID    string
	Team1      [2]string
	Team2      [2]string
	SeasonID   string
	Sport      model.Sport
	Sets       []model.SetScore
	MatchDate  time.Time
	IsWalkover bool
}

// DoublesResult reports every player's movement keyed by player ID.
type DoublesResult struct {
	RatingChanges map[string]model.PlayerUpdate
	WinnerIDs     []string
	LoserIDs      []string
	ScoreFactor   float64
}

// teamComposite is the virtual player a doubles team presents to Glicko-2:
// mean rating, root-mean-square deviation, mean volatility.
type teamComposite struct {
	rating     float64
	deviation  float64
	volatility float64
}

func compositeOf(a, b *model.PlayerRating) teamComposite {
	return teamComposite{
		rating:     (a.Rating + b.Rating) / 2,
		deviation:  math.Sqrt((a.RatingDeviation*a.RatingDeviation + b.RatingDeviation*b.RatingDeviation) / 2),
		volatility: (a.Volatility + b.Volatility) / 2,
	}
}

// ProcessDoublesMatch runs a team-level Glicko-2 update and redistributes the
// team movement to the individual players weighted by their share of the
// team's deviation. All four players move in one atomic unit of work.
func (e *Engine) ProcessDoublesMatch(ctx context.Context, m DoublesMatch) (*DoublesResult, error) {
	if err := validateTeams(m.Team1, m.Team2); err != nil {
		metrics.RecordMatchRejected("bad_teams")
		return nil, err
	}
	if len(m.Sets) == 0 {
		metrics.RecordMatchRejected("invalid_score")
		return nil, fmt.Errorf("%w: no sets provided", ErrInvalidMatchData)
	}
	if !m.IsWalkover {
		if err := score.ForSport(m.Sport).Validate(m.Sets); err != nil {
			metrics.RecordMatchRejected("invalid_score")
			return nil, fmt.Errorf("%w: %w", ErrInvalidMatchData, err)
		}
	}

	sets1, sets2, points1, points2 := tallySets(m.Sets)
	team1Won, err := decideWinner(sets1, sets2, points1, points2)
	if err != nil {
		metrics.RecordMatchRejected("no_winner")
		return nil, err
	}

	if m.MatchID != "" && e.guard.SeenAndRecord(ctx, m.MatchID) {
		metrics.RecordMatchRejected("duplicate")
		return nil, fmt.Errorf("%w: match %s", ErrMatchAlreadyRated, m.MatchID)
	}

	players := make([]*model.PlayerRating, 0, 4)
	for _, id := range []string{m.Team1[0], m.Team1[1], m.Team2[0], m.Team2[1]} {
		row, err := e.getOrCreateRating(ctx, model.RatingKey{
			PlayerID: id, SeasonID: m.SeasonID, Sport: m.Sport, GameType: model.GameTypeDoubles,
		})
		if err != nil {
			e.unrecord(ctx, m.MatchID)
			return nil, err
		}
		players = append(players, row)
	}
	team1 := players[:2]
	team2 := players[2:]

	winners, losers := team1, team2
	winnerSets, loserSets := sets1, sets2
	winnerPoints, loserPoints := points1, points2
	if !team1Won {
		winners, losers = team2, team1
		winnerSets, loserSets = sets2, sets1
		winnerPoints, loserPoints = points2, points1
	}

	scoreFactor := 1.0
	if !m.IsWalkover {
		scoreFactor = e.factor.Factor(winnerSets, loserSets, winnerPoints, loserPoints, len(m.Sets))
	}

	date := e.matchDate(m.MatchDate)
	result := &DoublesResult{
		RatingChanges: make(map[string]model.PlayerUpdate, 4),
		WinnerIDs:     []string{winners[0].PlayerID, winners[1].PlayerID},
		LoserIDs:      []string{losers[0].PlayerID, losers[1].PlayerID},
		ScoreFactor:   scoreFactor,
	}

	updates := make([]repository.RatingUpdate, 0, 4)
	updates = append(updates, e.updateTeam(winners, losers, true, scoreFactor, m, date, result)...)
	updates = append(updates, e.updateTeam(losers, winners, false, scoreFactor, m, date, result)...)

	if err := e.store.ApplyMatch(ctx, updates); err != nil {
		e.unrecord(ctx, m.MatchID)
		metrics.RecordStoreError("apply_match")
		return nil, fmt.Errorf("persist doubles match: %w", err)
	}

	metrics.RecordMatchProcessed(string(model.GameTypeDoubles))
	metrics.RecordScoreFactor(scoreFactor)
	for _, u := range result.RatingChanges {
		metrics.RecordRatingDelta(u.Delta)
	}
	e.log.Info(ctx, "processed doubles match",
		logger.String("match_id", m.MatchID),
		logger.Any("winner_ids", result.WinnerIDs),
		logger.Any("loser_ids", result.LoserIDs),
		logger.Float64("score_factor", scoreFactor),
		logger.Bool("walkover", m.IsWalkover))

	return result, nil
}

// updateTeam runs the team-level Glicko-2 update for one side and folds the
// movement back into both players' rows.
func (e *Engine) updateTeam(team, opponents []*model.PlayerRating, won bool, scoreFactor float64, m DoublesMatch, date time.Time, result *DoublesResult) []repository.RatingUpdate {
	own := compositeOf(team[0], team[1])
	opp := compositeOf(opponents[0], opponents[1])

	outcome := 0.0
	if won {
		outcome = 1.0
	}
	out := glicko.Update(
		glicko.Rating{Rating: own.rating, Deviation: own.deviation, Volatility: own.volatility},
		[]glicko.Outcome{{OpponentRating: opp.rating, OpponentDeviation: opp.deviation, Score: outcome}},
		e.cfg.Tau, e.cfg.Epsilon,
	)

	f := scoreFactor
	if e.cfg.SoftenScoreFactor {
		f = math.Sqrt(scoreFactor)
	}
	teamDelta := (out.Rating - own.rating) * f * e.cfg.Dampening

	// The team's RD reduction is the information the match carried; a
	// walkover carries none and falls back to a plain linear blend.
	infoGained := !m.IsWalkover && out.Deviation < own.deviation

	rdSum := team[0].RatingDeviation + team[1].RatingDeviation
	updates := make([]repository.RatingUpdate, 0, 2)
	for _, p := range team {
		// Higher-uncertainty teammates absorb a larger share. Scaled by
		// two so equal-deviation partners each carry the full team delta.
		share := p.RatingDeviation / rdSum
		delta := e.capRatingChange(teamDelta*2*share, p.RatingDeviation)
		newRating := roundRating(p.Rating + delta)

		newRD := e.blendDeviation(p.RatingDeviation, own.deviation, out.Deviation, infoGained)
		newVol := (1-e.cfg.DoublesVolatilityBlend)*p.Volatility + e.cfg.DoublesVolatilityBlend*out.Volatility

		update := model.PlayerUpdate{
			PlayerID:  p.PlayerID,
			OldRating: p.Rating,
			NewRating: newRating,
			Delta:     newRating - p.Rating,
			OldRD:     p.RatingDeviation,
			Won:       won,
		}

		history := e.applyMovement(p, m.MatchID, newRating, newRD, newVol, won, date)
		update.NewRD = p.RatingDeviation
		result.RatingChanges[p.PlayerID] = update
		updates = append(updates, repository.RatingUpdate{Rating: p, History: history})
	}
	return updates
}

// blendDeviation derives a player's post-match deviation from the team's.
// When the team's composite RD shrank, the gained precision is added to the
// player's prior in Bayesian fashion, scaled by the blend factor; otherwise
// the player's RD is blended linearly toward the team's post-match RD.
func (e *Engine) blendDeviation(playerRD, teamRDBefore, teamRDAfter float64, infoGained bool) float64 {
	blend := e.cfg.DoublesRDBlend
	if infoGained {
		gainedPrecision := 1/(teamRDAfter*teamRDAfter) - 1/(teamRDBefore*teamRDBefore)
		posterior := 1/(playerRD*playerRD) + blend*gainedPrecision
		return 1 / math.Sqrt(posterior)
	}
	return (1-blend)*playerRD + blend*teamRDAfter
}

func validateTeams(team1, team2 [2]string) error {
	ids := []string{team1[0], team1[1], team2[0], team2[1]}
	seen := make(map[string]struct{}, 4)
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty player id", ErrInvalidMatchData)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: player %s appears more than once", ErrInvalidMatchData, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// decideWinner picks the winning side by sets, falling back to total points.
func decideWinner(sets1, sets2, points1, points2 int) (team1Won bool, err error) {
	switch {
	case sets1 != sets2:
		return sets1 > sets2, nil
	case points1 != points2:
		return points1 > points2, nil
	default:
		return false, fmt.Errorf("%w: match has no decidable winner", ErrInvalidMatchData)
	}
}
