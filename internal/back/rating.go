package back

import (
	"math"

	glicko "github.com/zelenin/go-glicko2"
)

// Rating is the opaque skill pair handed to the RatingFunction. What Mu and
// Sigma mean exactly is the RatingFunction's business, the rest of the code
// only stores and forwards them.
type Rating struct {
	Mu    float64
	Sigma float64
}

// RatingFunction computes new ratings from old ones. Groups are ordered by
// result, winner first. An optional parallel priors slice gives a secondary
// rating to blend in for each group member (used by the team pass to mix
// roster continuity with current player strength).
//
// Ordinal reduces a rating to a single monotonic scalar for display and
// visible-diff computation.
type RatingFunction interface {
	Rate(groups [][]Rating, priors [][]Rating) [][]Rating
	Ordinal(r Rating) float64
}

// glickoRatingFunction adapts the Glicko-2 implementation to group-vs-group
// updates: each group is reduced to a composite player, the composite delta
// is then applied to every member.
type glickoRatingFunction struct{}

func NewGlickoRatingFunction() RatingFunction {
	return glickoRatingFunction{}
}

// DefaultRating is the rating assumed for any user or roster never seen
// before.
func DefaultRating() Rating {
	return Rating{
		Mu:    glicko.RATING_BASE_R,
		Sigma: glicko.RATING_BASE_RD,
	}
}

func (glickoRatingFunction) Ordinal(r Rating) float64 {
	// Conservative estimate, unseen players start well below established ones.
	return r.Mu - 2*r.Sigma
}

func (glickoRatingFunction) Rate(groups [][]Rating, priors [][]Rating) [][]Rating {
	composites := make([]*glicko.Player, len(groups))
	before := make([]Rating, len(groups))

	for k := range groups {
		var p []Rating
		if k < len(priors) {
			p = priors[k]
		}

		before[k] = composite(groups[k], p)
		composites[k] = glicko.NewPlayer(glicko.NewRating(
			before[k].Mu, before[k].Sigma, glicko.RATING_BASE_SIGMA,
		))
	}

	period := glicko.NewRatingPeriod()
	for k := range composites {
		period.AddPlayer(composites[k])
	}

	// Groups are ordered by result: every group beat every group below it.
	for i := 0; i < len(composites); i++ {
		for j := i + 1; j < len(composites); j++ {
			period.AddMatch(composites[i], composites[j], glicko.MATCH_RESULT_WIN)
		}
	}

	period.Calculate()

	ret := make([][]Rating, len(groups))
	for k := range groups {
		after := composites[k].Rating()
		muDelta := after.R() - before[k].Mu
		sigmaScale := after.Rd() / before[k].Sigma

		ret[k] = make([]Rating, len(groups[k]))
		for i := range groups[k] {
			ret[k][i] = Rating{
				Mu:    groups[k][i].Mu + muDelta,
				Sigma: clampSigma(groups[k][i].Sigma * sigmaScale),
			}
		}
	}

	return ret
}

// composite averages a group into a single rating, blending in the matching
// prior when one is given.
func composite(group []Rating, prior []Rating) Rating {
	if len(group) == 0 {
		return DefaultRating()
	}

	var mu, sigma float64
	for k := range group {
		m, s := group[k].Mu, group[k].Sigma
		if k < len(prior) {
			m = (m + prior[k].Mu) / 2
			s = (s + prior[k].Sigma) / 2
		}

		mu += m
		sigma += s
	}

	return Rating{
		Mu:    mu / float64(len(group)),
		Sigma: sigma / float64(len(group)),
	}
}

func clampSigma(v float64) float64 {
	return math.Max(30.0, math.Min(v, glicko.RATING_BASE_RD))
}
