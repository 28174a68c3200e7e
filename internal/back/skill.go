package back

import (
	"fmt"
	"math"

	"gopkg.in/guregu/null.v4"
)

// skillVisibilityMinMatches is how much prior ladder history a user needs
// before rating changes become visible as an SP diff. Below it the rating
// still updates, silently.
const skillVisibilityMinMatches = 7

type SkillSnapshot struct {
	Rating       Rating
	MatchesCount int
}

// RatingLookups supply the current rating for a key the first time the
// calculator meets it. A nil snapshot means "never rated", the default
// rating applies.
type RatingLookups struct {
	User func(userID int64) (*SkillSnapshot, error)
	Team func(identifier RosterIdentifier) (*SkillSnapshot, error)
}

// SkillDelta is one flat output row of a summarization pass. Exactly one of
// UserID and Identifier is set. MatchesCount is the number of matches played
// within this pass, persistence adds it on top of the all-season maximum.
type SkillDelta struct {
	UserID       null.Int
	Identifier   null.String
	Mu           float64
	Sigma        float64
	MatchesCount int
}

type SeedingType string

const (
	SeedingRanked   SeedingType = "RANKED"
	SeedingUnranked SeedingType = "UNRANKED"
)

// SeedingDelta feeds tournament seeding only, never the ladder.
type SeedingDelta struct {
	UserID       int64
	Type         SeedingType
	Mu           float64
	Sigma        float64
	MatchesCount int
}

type skillState struct {
	initial Rating
	current Rating

	// priorMatches is the history the key had before this pass,
	// passMatches what it accumulated during it.
	priorMatches int
	passMatches  int
	everRated    bool
}

// skillCalculator applies the rating function match by match, in
// chronological order, for one summarization pass. Its caches are scoped to
// that single pass and must not be shared across tournaments or requests.
type skillCalculator struct {
	rating  RatingFunction
	lookups RatingLookups

	users map[int64]*skillState
	teams map[RosterIdentifier]*skillState
}

func newSkillCalculator(fn RatingFunction, lookups RatingLookups) *skillCalculator {
	return &skillCalculator{
		rating:  fn,
		lookups: lookups,
		users:   map[int64]*skillState{},
		teams:   map[RosterIdentifier]*skillState{},
	}
}

func (c *skillCalculator) userState(userID int64) (*skillState, error) {
	if state, ok := c.users[userID]; ok {
		return state, nil
	}

	state := &skillState{initial: DefaultRating(), current: DefaultRating()}
	if c.lookups.User != nil {
		snapshot, err := c.lookups.User(userID)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch rating of user %d: %w", userID, err)
		}

		if snapshot != nil {
			state.initial = snapshot.Rating
			state.current = snapshot.Rating
			state.priorMatches = snapshot.MatchesCount
			state.everRated = true
		}
	}

	c.users[userID] = state
	return state, nil
}

func (c *skillCalculator) teamState(identifier RosterIdentifier) (*skillState, error) {
	if state, ok := c.teams[identifier]; ok {
		return state, nil
	}

	state := &skillState{initial: DefaultRating(), current: DefaultRating()}
	if c.lookups.Team != nil {
		snapshot, err := c.lookups.Team(identifier)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch rating of roster %s: %w", identifier, err)
		}

		if snapshot != nil {
			state.initial = snapshot.Rating
			state.current = snapshot.Rating
			state.priorMatches = snapshot.MatchesCount
			state.everRated = true
		}
	}

	c.teams[identifier] = state
	return state, nil
}

// process updates ratings with one match. Sets that ended early with no
// dropout are skipped wholesale: they affect neither individual nor team
// ratings. Team identifiers are resolved once per match by the caller and
// shared with every other consumer of the pass, a nil teams pair runs the
// individual pass only.
func (c *skillCalculator) process(match *MatchResult, teams *[2]RosterIdentifier) error {
	if !match.countsForSkill() {
		return nil
	}

	winners := resolvePlayedRoster(match.Opponents[match.winnerIndex()], match.Maps)
	losers := resolvePlayedRoster(match.Opponents[match.loserIndex()], match.Maps)

	if err := c.processIndividual(winners, losers); err != nil {
		return err
	}

	if teams == nil {
		return nil
	}

	return c.processTeams(teams[0], teams[1])
}

func (c *skillCalculator) processIndividual(winners, losers []int64) error {
	groups := make([][]Rating, 2)
	states := make([][]*skillState, 2)

	for k, roster := range [][]int64{winners, losers} {
		groups[k] = make([]Rating, len(roster))
		states[k] = make([]*skillState, len(roster))

		for i, userID := range roster {
			state, err := c.userState(userID)
			if err != nil {
				return err
			}

			groups[k][i] = state.current
			states[k][i] = state
		}
	}

	rated := c.rating.Rate(groups, nil)
	for k := range states {
		for i := range states[k] {
			states[k][i].current = rated[k][i]
			states[k][i].passMatches++
		}
	}

	return nil
}

// processTeams rates the two roster identifiers against each other, blending
// the roster's own rating with the average of its members' current ratings
// so that a freshly formed roster does not start from scratch.
func (c *skillCalculator) processTeams(winner, loser RosterIdentifier) error {
	groups := make([][]Rating, 2)
	priors := make([][]Rating, 2)
	states := make([]*skillState, 2)

	for k, identifier := range []RosterIdentifier{winner, loser} {
		state, err := c.teamState(identifier)
		if err != nil {
			return err
		}

		prior, err := c.playerAverage(identifier.memberIDs())
		if err != nil {
			return err
		}

		groups[k] = []Rating{state.current}
		priors[k] = []Rating{prior}
		states[k] = state
	}

	rated := c.rating.Rate(groups, priors)
	for k := range states {
		states[k].current = rated[k][0]
		states[k].passMatches++
	}

	return nil
}

func (c *skillCalculator) playerAverage(userIDs []int64) (Rating, error) {
	if len(userIDs) == 0 {
		return DefaultRating(), nil
	}

	var mu, sigma float64
	for _, userID := range userIDs {
		state, err := c.userState(userID)
		if err != nil {
			return Rating{}, err
		}

		mu += state.current.Mu
		sigma += state.current.Sigma
	}

	return Rating{
		Mu:    mu / float64(len(userIDs)),
		Sigma: sigma / float64(len(userIDs)),
	}, nil
}

// deltas flattens the pass into persistable rows, only keys that actually
// played a match in this pass are emitted.
func (c *skillCalculator) deltas() []SkillDelta {
	ret := make([]SkillDelta, 0, len(c.users)+len(c.teams))

	for userID, state := range c.users {
		if state.passMatches == 0 {
			continue
		}

		ret = append(ret, SkillDelta{
			UserID:       null.IntFrom(userID),
			Mu:           state.current.Mu,
			Sigma:        state.current.Sigma,
			MatchesCount: state.passMatches,
		})
	}

	for identifier, state := range c.teams {
		if state.passMatches == 0 {
			continue
		}

		ret = append(ret, SkillDelta{
			Identifier:   null.StringFrom(string(identifier)),
			Mu:           state.current.Mu,
			Sigma:        state.current.Sigma,
			MatchesCount: state.passMatches,
		})
	}

	return ret
}

// spDiffs computes the visible rating movement per user. Users below the
// visibility threshold get a silent update and a null diff.
func (c *skillCalculator) spDiffs() map[int64]null.Int {
	ret := make(map[int64]null.Int, len(c.users))

	for userID, state := range c.users {
		if state.passMatches == 0 {
			continue
		}

		if !state.everRated || state.priorMatches < skillVisibilityMinMatches {
			ret[userID] = null.Int{}
			continue
		}

		diff := c.rating.Ordinal(state.current) - c.rating.Ordinal(state.initial)
		ret[userID] = null.IntFrom(int64(math.Round(diff)))
	}

	return ret
}

// computeSeedingDeltas reruns the individual pass against a separate rating
// source,
// tagged by queue type. The result feeds tournament seeding, not the ladder.
func computeSeedingDeltas(
	fn RatingFunction,
	lookups RatingLookups,
	matches []MatchResult,
	seedingType SeedingType,
) ([]SeedingDelta, error) {
	calc := newSkillCalculator(fn, lookups)

	for k := range matches {
		if err := calc.process(&matches[k], nil); err != nil {
			return nil, err
		}
	}

	ret := make([]SeedingDelta, 0, len(calc.users))
	for userID, state := range calc.users {
		if state.passMatches == 0 {
			continue
		}

		ret = append(ret, SeedingDelta{
			UserID:       userID,
			Type:         seedingType,
			Mu:           state.current.Mu,
			Sigma:        state.current.Sigma,
			MatchesCount: state.priorMatches + state.passMatches,
		})
	}

	return ret, nil
}
