// Package score holds the sport-specific score rules: set validation and the
// margin-of-victory factor applied to rating movement.
package score

import (
	"fmt"

	"github.com/rallyrank/rallyrank/internal/domain/model"
)

// Validation bounds shared across sports.
const (
	maxSets          = 5
	maxPlausibleGame = 50
)

// pickleballCeilings are the recognized game-ending scores.
var pickleballCeilings = []int{11, 15, 21}

// Validator validates raw set scores for one sport.
type Validator interface {
	// Sport reports which sport this validator covers.
	Sport() model.Sport
	// Validate returns an ErrInvalidScore-wrapped error when the set list
	// is not a plausible completed match for this sport.
	Validate(sets []model.SetScore) error
}

// ForSport returns the validator for a sport. Sports without dedicated rules
// fall back to baseline validation.
func ForSport(sport model.Sport) Validator {
	switch sport {
	case model.SportPickleball:
		return &pickleballValidator{}
	default:
		return &baselineValidator{sport: sport}
	}
}

// validateCommon enforces the bounds every sport shares.
func validateCommon(sets []model.SetScore) error {
	if len(sets) == 0 {
		return fmt.Errorf("%w: no sets provided", ErrInvalidScore)
	}
	if len(sets) > maxSets {
		return fmt.Errorf("%w: %d sets exceeds maximum of %d", ErrInvalidScore, len(sets), maxSets)
	}
	for i, s := range sets {
		if s.Score1 < 0 || s.Score2 < 0 {
			return fmt.Errorf("%w: set %d has a negative score", ErrInvalidScore, i+1)
		}
		if s.Score1 == s.Score2 {
			return fmt.Errorf("%w: set %d is tied %d-%d", ErrInvalidScore, i+1, s.Score1, s.Score2)
		}
		if s.Score1 > maxPlausibleGame || s.Score2 > maxPlausibleGame {
			return fmt.Errorf("%w: set %d score exceeds %d", ErrInvalidScore, i+1, maxPlausibleGame)
		}
	}
	return nil
}

// pickleballValidator enforces rally-scoring rules: a game ends at a
// recognized ceiling won by two, or runs past the ceiling with the margin
// held at exactly two.
type pickleballValidator struct{}

func (v *pickleballValidator) Sport() model.Sport { return model.SportPickleball }

func (v *pickleballValidator) Validate(sets []model.SetScore) error {
	if err := validateCommon(sets); err != nil {
		return err
	}
	for i, s := range sets {
		if !validPickleballGame(s) {
			return fmt.Errorf("%w: set %d score %d-%d is not a valid pickleball game",
				ErrInvalidScore, i+1, s.Score1, s.Score2)
		}
	}
	return nil
}

func validPickleballGame(s model.SetScore) bool {
	winner, loser := s.Score1, s.Score2
	if loser > winner {
		winner, loser = loser, winner
	}
	for _, ceiling := range pickleballCeilings {
		// Standard finish: game point reached with the required margin.
		if winner == ceiling && winner-loser >= 2 {
			return true
		}
		// Extended play: past the ceiling the margin is exactly two and the
		// loser was within one of game point when deuce began.
		if winner > ceiling && winner-loser == 2 && loser >= ceiling-1 {
			return true
		}
	}
	return false
}

// baselineValidator covers sports without dedicated rules yet: no negatives,
// no ties, plausible totals.
type baselineValidator struct {
	sport model.Sport
}

func (v *baselineValidator) Sport() model.Sport { return v.sport }

func (v *baselineValidator) Validate(sets []model.SetScore) error {
	return validateCommon(sets)
}
