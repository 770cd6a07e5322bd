// Package glicko implements the Glicko-2 rating math on which the engine is
// built. Values cross the package boundary on the public scale (ratings
// centered at 1500); conversion to the internal mu/phi scale happens here.
//
// Variable names follow Glickman's paper: mu is the scaled rating, phi the
// scaled deviation, sigma the volatility, tau the volatility change
// constraint. See https://www.glicko.net/glicko/glicko2.pdf.
package glicko

import "math"

// scale converts between the public rating scale and mu/phi.
const scale = 173.7178

// Default solver bounds.
const (
	maxSolverIterations = 100
	maxBracketSteps     = 100
)

// Rating is a player's strength estimate on the public scale.
type Rating struct {
	Rating     float64
	Deviation  float64
	Volatility float64
}

// Outcome is a single observed result against one opponent.
// Score is 1.0 for a win and 0.0 for a loss.
type Outcome struct {
	OpponentRating    float64
	OpponentDeviation float64
	Score             float64
}

func toMu(r float64) float64    { return (r - 1500.0) / scale }
func toPhi(rd float64) float64  { return rd / scale }
func fromMu(mu float64) float64 { return mu*scale + 1500.0 }

func sq(x float64) float64 { return x * x }

// g dampens the influence of opponents with uncertain ratings.
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*sq(phi)/sq(math.Pi))
}

// e is the expected score against an opponent at mu_j with deviation phi_j.
func e(mu, muj, phij float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phij)*(mu-muj)))
}

// ExpectedScore reports the probability that a player at (rating, _) beats an
// opponent at (oppRating, oppDeviation). Equal ratings yield exactly 0.5.
func ExpectedScore(rating, oppRating, oppDeviation float64) float64 {
	return e(toMu(rating), toMu(oppRating), toPhi(oppDeviation))
}

// Decay applies the no-games step: deviation grows with volatility while the
// rating and volatility stay put. The caller clamps the result to its RD
// bounds after de-scaling.
func Decay(cur Rating) Rating {
	phi := toPhi(cur.Deviation)
	phiStar := math.Sqrt(sq(phi) + sq(cur.Volatility))
	return Rating{
		Rating:     cur.Rating,
		Deviation:  phiStar * scale,
		Volatility: cur.Volatility,
	}
}

// Update runs one full Glicko-2 rating-period update over the outcomes.
// An empty outcome list degenerates to Decay. All returned values are finite.
func Update(cur Rating, outcomes []Outcome, tau, epsilon float64) Rating {
	if len(outcomes) == 0 {
		return Decay(cur)
	}

	mu := toMu(cur.Rating)
	phi := toPhi(cur.Deviation)

	var varSum float64 // Σ g² · E · (1-E)
	var scoreSum float64
	for _, o := range outcomes {
		muj := toMu(o.OpponentRating)
		phij := toPhi(o.OpponentDeviation)
		gj := g(phij)
		ej := e(mu, muj, phij)
		varSum += sq(gj) * ej * (1.0 - ej)
		scoreSum += gj * (o.Score - ej)
	}
	if varSum < epsilon {
		varSum = epsilon
	}
	v := 1.0 / varSum
	delta := v * scoreSum

	sigma := newVolatility(cur.Volatility, delta, phi, v, tau, epsilon)

	phiStar := math.Sqrt(sq(phi) + sq(sigma))
	phiNew := 1.0 / math.Sqrt(1.0/sq(phiStar)+1.0/v)
	muNew := mu + sq(phiNew)*scoreSum

	return Rating{
		Rating:     fromMu(muNew),
		Deviation:  phiNew * scale,
		Volatility: sigma,
	}
}

// newVolatility solves f(x) = 0 for the new volatility using the Illinois
// variant of regula falsi, per the paper's step 5. The search is bounded at
// maxSolverIterations regardless of epsilon.
func newVolatility(sigma, delta, phi, v, tau, epsilon float64) float64 {
	a := math.Log(sq(sigma))
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (sq(delta) - sq(phi) - v - ex)
		den := 2.0 * sq(sq(phi)+v+ex)
		return num/den - (x-a)/sq(tau)
	}

	// Initial bracket: direct log when delta dominates, otherwise expand
	// downward in steps of tau until f turns positive.
	bigA := a
	var bigB float64
	if sq(delta) > sq(phi)+v {
		bigB = math.Log(sq(delta) - sq(phi) - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 && k < maxBracketSteps {
			k++
		}
		bigB = a - k*tau
	}

	fA := f(bigA)
	fB := f(bigB)
	for i := 0; i < maxSolverIterations && math.Abs(bigB-bigA) > epsilon; i++ {
		c := bigA + (bigA-bigB)*fA/(fB-fA)
		fC := f(c)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			break
		}
		if fC*fB <= 0 {
			bigA = bigB
			fA = fB
		} else {
			// Illinois step: halve the retained side to guarantee progress.
			fA /= 2.0
		}
		bigB = c
		fB = fC
	}
	return math.Exp(bigA / 2.0)
}
