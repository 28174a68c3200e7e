package back // nolint:testpackage

import (
	"testing"
)

func newTestSkillCalculator(lookups RatingLookups) *skillCalculator {
	return newSkillCalculator(NewGlickoRatingFunction(), lookups)
}

func TestSkillCalculatorRatesBothSides(t *testing.T) {
	calc := newTestSkillCalculator(RatingLookups{})

	match := fourVFourMatch([]int64{100, 100}, 3)
	if err := calc.process(&match, resolvedTeams(&match)); err != nil {
		t.Fatal(err)
	}

	deltas := calc.deltas()
	if len(deltas) != 10 { // 8 users, 2 rosters
		t.Fatalf("expected 10 deltas, got %d", len(deltas))
	}

	base := DefaultRating()
	for _, delta := range deltas {
		if delta.MatchesCount != 1 {
			t.Errorf("expected a single pass match, got %d for %+v", delta.MatchesCount, delta)
		}

		if delta.UserID.Valid {
			winner := delta.UserID.Int64 <= 4
			if winner && delta.Mu <= base.Mu {
				t.Errorf("winner %d did not gain rating: %f", delta.UserID.Int64, delta.Mu)
			}
			if !winner && delta.Mu >= base.Mu {
				t.Errorf("loser %d did not lose rating: %f", delta.UserID.Int64, delta.Mu)
			}
		}
	}
}

func TestSkillCalculatorSkipsEarlyEnds(t *testing.T) {
	calc := newTestSkillCalculator(RatingLookups{})

	match := fourVFourMatch([]int64{100}, 5)
	if err := calc.process(&match, resolvedTeams(&match)); err != nil {
		t.Fatal(err)
	}

	if deltas := calc.deltas(); len(deltas) != 0 {
		t.Errorf("expected no deltas for an early end, got %d", len(deltas))
	}

	match.Opponents[1].DroppedOut = true
	if err := calc.process(&match, resolvedTeams(&match)); err != nil {
		t.Fatal(err)
	}

	if deltas := calc.deltas(); len(deltas) == 0 {
		t.Error("expected deltas once the loser is flagged as dropped out")
	}
}

func TestSkillCalculatorWithoutTeams(t *testing.T) {
	calc := newTestSkillCalculator(RatingLookups{})

	match := fourVFourMatch([]int64{100, 100}, 3)
	if err := calc.process(&match, nil); err != nil {
		t.Fatal(err)
	}

	for _, delta := range calc.deltas() {
		if delta.Identifier.Valid {
			t.Errorf("unexpected team delta: %+v", delta)
		}
	}
}

func TestSPDiffVisibilityThreshold(t *testing.T) {
	lookups := RatingLookups{
		User: func(userID int64) (*SkillSnapshot, error) {
			switch {
			case userID == 1:
				// Established player, past the visibility threshold.
				return &SkillSnapshot{Rating: DefaultRating(), MatchesCount: skillVisibilityMinMatches}, nil
			case userID == 2:
				// Rated before but not enough history yet.
				return &SkillSnapshot{Rating: DefaultRating(), MatchesCount: skillVisibilityMinMatches - 1}, nil
			default:
				return nil, nil
			}
		},
	}
	calc := newTestSkillCalculator(lookups)

	match := fourVFourMatch([]int64{100, 100}, 3)
	if err := calc.process(&match, nil); err != nil {
		t.Fatal(err)
	}

	diffs := calc.spDiffs()
	if len(diffs) != 8 {
		t.Fatalf("expected 8 diffs, got %d", len(diffs))
	}

	if diff := diffs[1]; !diff.Valid || diff.Int64 <= 0 {
		t.Errorf("expected a visible positive diff for user 1, got %v", diff)
	}
	if diffs[2].Valid {
		t.Errorf("expected a hidden diff for user 2, got %v", diffs[2])
	}
	if diffs[3].Valid {
		t.Errorf("expected a hidden diff for the never-rated user 3, got %v", diffs[3])
	}
}

func TestSkillCalculatorUsesLookupPriors(t *testing.T) {
	strong := Rating{Mu: 3000, Sigma: 100}

	calc := newTestSkillCalculator(RatingLookups{
		User: func(userID int64) (*SkillSnapshot, error) {
			if userID == 5 {
				return &SkillSnapshot{Rating: strong, MatchesCount: 20}, nil
			}
			return nil, nil
		},
	})

	match := fourVFourMatch([]int64{100, 100}, 3)
	if err := calc.process(&match, nil); err != nil {
		t.Fatal(err)
	}

	state := calc.users[5]
	if state.initial != strong {
		t.Errorf("expected the lookup rating as initial state, got %+v", state.initial)
	}
	if state.current.Mu >= strong.Mu {
		t.Errorf("expected the strong loser to lose rating, got %f", state.current.Mu)
	}
	if state.priorMatches != 20 {
		t.Errorf("expected 20 prior matches, got %d", state.priorMatches)
	}
}

func TestComputeSeedingDeltas(t *testing.T) {
	matches := []MatchResult{
		fourVFourMatch([]int64{100, 100}, 3),
		fourVFourMatch([]int64{200, 200}, 3),
	}

	lookups := RatingLookups{
		User: func(userID int64) (*SkillSnapshot, error) {
			if userID == 1 {
				return &SkillSnapshot{Rating: DefaultRating(), MatchesCount: 3}, nil
			}
			return nil, nil
		},
	}

	deltas, err := computeSeedingDeltas(NewGlickoRatingFunction(), lookups, matches, SeedingRanked)
	if err != nil {
		t.Fatal(err)
	}

	if len(deltas) != 8 {
		t.Fatalf("expected 8 seeding deltas, got %d", len(deltas))
	}

	for _, delta := range deltas {
		if delta.Type != SeedingRanked {
			t.Errorf("expected type RANKED, got %s", delta.Type)
		}

		expected := 2
		if delta.UserID == 1 {
			expected = 5 // 3 prior matches plus the 2 in this pass
		}
		if delta.MatchesCount != expected {
			t.Errorf("user %d: expected %d matches, got %d", delta.UserID, expected, delta.MatchesCount)
		}
	}
}
