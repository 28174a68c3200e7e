package back

import (
	"sort"

	"gopkg.in/guregu/null.v4"
)

type Relationship string

const (
	RelationshipMate  Relationship = "MATE"
	RelationshipEnemy Relationship = "ENEMY"
)

type MapResultKey struct {
	UserID  int64
	StageID int64
	Mode    string
}

type MapResultDelta struct {
	MapResultKey
	Wins   int
	Losses int
}

type PlayerResultKey struct {
	OwnerID      int64
	OtherID      int64
	Relationship Relationship
}

type PlayerResultDelta struct {
	PlayerResultKey
	MapWins   int
	MapLosses int
	SetWins   int
	SetLosses int
}

// resultAggregator accumulates win/loss statistics in memory over one
// summarization pass, flushed later as additive deltas.
type resultAggregator struct {
	mapResults    map[MapResultKey]*MapResultDelta
	playerResults map[PlayerResultKey]*PlayerResultDelta

	// setResults has one ordered entry per match for every roster member:
	// "W", "L", or null for members outside the resolved playing roster.
	setResults map[int64][]null.String
}

func newResultAggregator() *resultAggregator {
	return &resultAggregator{
		mapResults:    map[MapResultKey]*MapResultDelta{},
		playerResults: map[PlayerResultKey]*PlayerResultDelta{},
		setResults:    map[int64][]null.String{},
	}
}

func (a *resultAggregator) mapResult(key MapResultKey) *MapResultDelta {
	if ret, ok := a.mapResults[key]; ok {
		return ret
	}

	ret := &MapResultDelta{MapResultKey: key}
	a.mapResults[key] = ret
	return ret
}

func (a *resultAggregator) playerResult(key PlayerResultKey) *PlayerResultDelta {
	if ret, ok := a.playerResults[key]; ok {
		return ret
	}

	ret := &PlayerResultDelta{PlayerResultKey: key}
	a.playerResults[key] = ret
	return ret
}

// process accumulates one match. Excluded matches (early end, no dropout)
// contribute nothing at all, the match is wholly in or wholly out. The teams
// pair is the winner-first identifiers resolved once per match by the caller,
// the same pair the skill pass sees, so one summary can never disagree with
// itself on a tie-break.
func (a *resultAggregator) process(match *MatchResult, teams *[2]RosterIdentifier) {
	if !match.countsForSkill() {
		return
	}

	for k := range match.Maps {
		a.processMap(&match.Maps[k])
	}

	a.processSet(match, *teams)
}

// processMap counts per-user stage/mode results and map-level pair results
// for everyone who showed up, single-map substitutes included.
func (a *resultAggregator) processMap(play *MapPlay) {
	for _, p := range play.Participants {
		result := a.mapResult(MapResultKey{
			UserID:  p.UserID,
			StageID: play.StageID,
			Mode:    play.Mode,
		})

		if p.GroupID == play.WinnerGroupID {
			result.Wins++
		} else {
			result.Losses++
		}
	}

	for _, owner := range play.Participants {
		for _, other := range play.Participants {
			if owner.UserID == other.UserID {
				continue
			}

			relationship := RelationshipEnemy
			if owner.GroupID == other.GroupID {
				relationship = RelationshipMate
			}

			result := a.playerResult(PlayerResultKey{
				OwnerID:      owner.UserID,
				OtherID:      other.UserID,
				Relationship: relationship,
			})

			if owner.GroupID == play.WinnerGroupID {
				result.MapWins++
			} else {
				result.MapLosses++
			}
		}
	}
}

// processSet counts set-level pair results among the resolved rosters only
// and writes one set result entry for every roster member of both sides.
func (a *resultAggregator) processSet(match *MatchResult, teams [2]RosterIdentifier) {
	winnerIdx, loserIdx := match.winnerIndex(), match.loserIndex()

	winners := teams[0].memberIDs()
	losers := teams[1].memberIDs()

	a.countSetPairs(winners, losers, true)
	a.countSetPairs(losers, winners, false)

	winnerRoster := resolvePlayedRoster(match.Opponents[winnerIdx], match.Maps)
	loserRoster := resolvePlayedRoster(match.Opponents[loserIdx], match.Maps)

	a.recordSetResults(match.Opponents[winnerIdx].Members, winnerRoster, "W")
	a.recordSetResults(match.Opponents[loserIdx].Members, loserRoster, "L")
}

func (a *resultAggregator) countSetPairs(owners, enemies []int64, won bool) {
	count := func(key PlayerResultKey) {
		result := a.playerResult(key)
		if won {
			result.SetWins++
		} else {
			result.SetLosses++
		}
	}

	for _, owner := range owners {
		for _, mate := range owners {
			if owner == mate {
				continue
			}

			count(PlayerResultKey{OwnerID: owner, OtherID: mate, Relationship: RelationshipMate})
		}

		for _, enemy := range enemies {
			count(PlayerResultKey{OwnerID: owner, OtherID: enemy, Relationship: RelationshipEnemy})
		}
	}
}

// recordSetResults appends exactly one entry per member: the outcome letter
// for resolved players, null for members who sat the set out. A substitute
// who made it into the resolved roster gets an entry too.
func (a *resultAggregator) recordSetResults(members, resolved []int64, outcome string) {
	inResolved := make(map[int64]struct{}, len(resolved))
	for _, userID := range resolved {
		inResolved[userID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(members)+len(resolved))
	for _, userID := range append(sortedCopy(members), resolved...) {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}

		if _, ok := inResolved[userID]; ok {
			a.setResults[userID] = append(a.setResults[userID], null.StringFrom(outcome))
		} else {
			a.setResults[userID] = append(a.setResults[userID], null.String{})
		}
	}
}

func (a *resultAggregator) mapDeltas() []MapResultDelta {
	ret := make([]MapResultDelta, 0, len(a.mapResults))
	for _, v := range a.mapResults {
		ret = append(ret, *v)
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].UserID != ret[j].UserID {
			return ret[i].UserID < ret[j].UserID
		}
		if ret[i].StageID != ret[j].StageID {
			return ret[i].StageID < ret[j].StageID
		}
		return ret[i].Mode < ret[j].Mode
	})

	return ret
}

func (a *resultAggregator) playerDeltas() []PlayerResultDelta {
	ret := make([]PlayerResultDelta, 0, len(a.playerResults))
	for _, v := range a.playerResults {
		ret = append(ret, *v)
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].OwnerID != ret[j].OwnerID {
			return ret[i].OwnerID < ret[j].OwnerID
		}
		if ret[i].OtherID != ret[j].OtherID {
			return ret[i].OtherID < ret[j].OtherID
		}
		return ret[i].Relationship < ret[j].Relationship
	})

	return ret
}
