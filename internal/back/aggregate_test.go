package back // nolint:testpackage

import (
	"math/rand"
	"reflect"
	"testing"

	"gopkg.in/guregu/null.v4"
)

func fourVFourMatch(winners []int64, bestOf int) MatchResult {
	ret := MatchResult{
		BestOf: bestOf,
		Opponents: [2]Opponent{
			{GroupID: 100, Members: []int64{1, 2, 3, 4}},
			{GroupID: 200, Members: []int64{5, 6, 7, 8}},
		},
		Maps: fourVFourMaps([]int64{1, 2, 3, 4}, []int64{5, 6, 7, 8}, winners),
	}

	for _, winner := range winners {
		if winner == 100 {
			ret.Opponents[0].Score++
		} else {
			ret.Opponents[1].Score++
		}
	}

	needed := bestOf/2 + 1
	ret.Opponents[0].Win = ret.Opponents[0].Score >= needed ||
		ret.Opponents[0].Score > ret.Opponents[1].Score
	ret.Opponents[1].Win = !ret.Opponents[0].Win

	return ret
}

// resolvedTeams mirrors the per-match identifier resolution of the
// summarization loop, with pinned randomness.
func resolvedTeams(match *MatchResult) *[2]RosterIdentifier {
	if !match.countsForSkill() {
		return nil
	}

	rng := rand.New(rand.NewSource(0))

	return &[2]RosterIdentifier{
		resolveTeamIdentifier(rng, match.Opponents[match.winnerIndex()], match.Maps),
		resolveTeamIdentifier(rng, match.Opponents[match.loserIndex()], match.Maps),
	}
}

func TestAggregateFourVFourSweep(t *testing.T) {
	// A 4v4, 2-map match where side A wins both maps.
	match := fourVFourMatch([]int64{100, 100}, 3)

	agg := newResultAggregator()
	agg.process(&match, resolvedTeams(&match))

	for _, userID := range []int64{1, 2, 3, 4} {
		expected := []null.String{null.StringFrom("W")}
		if !reflect.DeepEqual(agg.setResults[userID], expected) {
			t.Errorf("user %d: expected [W], got %v", userID, agg.setResults[userID])
		}
	}
	for _, userID := range []int64{5, 6, 7, 8} {
		expected := []null.String{null.StringFrom("L")}
		if !reflect.DeepEqual(agg.setResults[userID], expected) {
			t.Errorf("user %d: expected [L], got %v", userID, agg.setResults[userID])
		}
	}

	mate := agg.playerResults[PlayerResultKey{OwnerID: 1, OtherID: 2, Relationship: RelationshipMate}]
	if mate == nil || mate.MapWins != 2 || mate.SetWins != 1 || mate.MapLosses != 0 {
		t.Errorf("unexpected mate delta for (1, 2): %+v", mate)
	}

	enemy := agg.playerResults[PlayerResultKey{OwnerID: 1, OtherID: 5, Relationship: RelationshipEnemy}]
	if enemy == nil || enemy.MapWins != 2 || enemy.SetWins != 1 {
		t.Errorf("unexpected enemy delta for (1, 5): %+v", enemy)
	}

	reverse := agg.playerResults[PlayerResultKey{OwnerID: 5, OtherID: 1, Relationship: RelationshipEnemy}]
	if reverse == nil || reverse.MapLosses != 2 || reverse.SetLosses != 1 {
		t.Errorf("unexpected enemy delta for (5, 1): %+v", reverse)
	}

	stage := agg.mapResults[MapResultKey{UserID: 1, StageID: 1, Mode: "SZ"}]
	if stage == nil || stage.Wins != 1 || stage.Losses != 0 {
		t.Errorf("unexpected map result for user 1 on stage 1: %+v", stage)
	}
}

func TestAggregateSetResultCountsMatchRosterSizes(t *testing.T) {
	match := fourVFourMatch([]int64{100, 200, 100}, 3)

	agg := newResultAggregator()
	agg.process(&match, resolvedTeams(&match))

	var wins, losses int
	for _, entries := range agg.setResults {
		for _, v := range entries {
			switch v.String {
			case "W":
				wins++
			case "L":
				losses++
			}
		}
	}

	winnerRoster := resolvePlayedRoster(match.Opponents[0], match.Maps)
	loserRoster := resolvePlayedRoster(match.Opponents[1], match.Maps)

	if wins != len(winnerRoster) {
		t.Errorf("expected %d W entries, got %d", len(winnerRoster), wins)
	}
	if losses != len(loserRoster) {
		t.Errorf("expected %d L entries, got %d", len(loserRoster), losses)
	}
}

func TestAggregateExcludesEarlyEndedMatches(t *testing.T) {
	// Best of 5 stopped at 1-0 with nobody flagged as dropped out.
	match := fourVFourMatch([]int64{100}, 5)

	agg := newResultAggregator()
	agg.process(&match, resolvedTeams(&match))

	if len(agg.mapResults) != 0 {
		t.Errorf("expected zero map result deltas, got %d", len(agg.mapResults))
	}
	if len(agg.playerResults) != 0 {
		t.Errorf("expected zero player result deltas, got %d", len(agg.playerResults))
	}
	if len(agg.setResults) != 0 {
		t.Errorf("expected zero set results, got %d", len(agg.setResults))
	}
}

func TestAggregateIncludesDropoutEarlyEnds(t *testing.T) {
	match := fourVFourMatch([]int64{100}, 5)
	match.Opponents[1].DroppedOut = true

	agg := newResultAggregator()
	agg.process(&match, resolvedTeams(&match))

	if len(agg.mapResults) == 0 {
		t.Error("expected map result deltas for a dropout early end")
	}
}

func TestAggregateSubstituteGetsNullEntry(t *testing.T) {
	// 20 is on the roster but only subs in on the last map: 2 keeps its
	// majority spot, 20 sits outside the resolved four and gets a null entry.
	match := MatchResult{
		BestOf: 3,
		Opponents: [2]Opponent{
			{GroupID: 100, Members: []int64{1, 2, 3, 4, 20}, Score: 2, Win: true},
			{GroupID: 200, Members: []int64{5, 6, 7, 8}, Score: 1},
		},
	}
	match.Maps = fourVFourMaps([]int64{1, 2, 3, 4}, []int64{5, 6, 7, 8}, []int64{100, 100})
	match.Maps = append(match.Maps, fourVFourMaps([]int64{1, 20, 3, 4}, []int64{5, 6, 7, 8}, []int64{200})...)

	agg := newResultAggregator()
	agg.process(&match, resolvedTeams(&match))

	if entries := agg.setResults[20]; len(entries) != 1 || entries[0].Valid {
		t.Errorf("expected a single null entry for the substitute, got %v", entries)
	}
	if entries := agg.setResults[2]; len(entries) != 1 || entries[0].String != "W" {
		t.Errorf("expected [W] for user 2, got %v", entries)
	}
}
