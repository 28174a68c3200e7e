package back // nolint:testpackage

import (
	"testing"

	"gopkg.in/guregu/null.v4"
)

func TestBuildStandingRowsExpandsPerPlayer(t *testing.T) {
	standings := []Standing{
		{GroupID: 10, Placement: 1, Members: []int64{1, 2, 3, 4}},
		{GroupID: 20, Placement: 2, Members: []int64{5, 6, 7, 8}},
	}

	rows := buildStandingRows(standings, nil)
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(rows))
	}

	for _, row := range rows {
		expected := 1
		if row.GroupID == 20 {
			expected = 2
		}
		if row.Placement != expected {
			t.Errorf("user %d: expected placement %d, got %d", row.UserID, expected, row.Placement)
		}

		if row.DivisionLabel.Valid {
			t.Errorf("user %d: unexpected division label %s", row.UserID, row.DivisionLabel.String)
		}
		if row.ParticipantCount != 2 {
			t.Errorf("user %d: expected 2 participants, got %d", row.UserID, row.ParticipantCount)
		}
	}
}

func TestBuildStandingRowsMultiDivision(t *testing.T) {
	progression := []Division{{Name: "X"}, {Name: "Gold"}}

	standings := []Standing{
		{GroupID: 10, Placement: 1, Members: []int64{1, 2}, StartingBracketIdx: null.IntFrom(0)},
		{GroupID: 20, Placement: 2, Members: []int64{3, 4}, StartingBracketIdx: null.IntFrom(0)},
		{GroupID: 30, Placement: 1, Members: []int64{5, 6}, StartingBracketIdx: null.IntFrom(1)},
	}

	rows := buildStandingRows(standings, progression)
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}

	for _, row := range rows {
		switch row.GroupID {
		case 10, 20:
			if row.DivisionLabel.String != "X" {
				t.Errorf("group %d: expected division X, got %v", row.GroupID, row.DivisionLabel)
			}
			if row.ParticipantCount != 2 {
				t.Errorf("group %d: expected 2 participants in X, got %d", row.GroupID, row.ParticipantCount)
			}
		case 30:
			if row.DivisionLabel.String != "Gold" {
				t.Errorf("group %d: expected division Gold, got %v", row.GroupID, row.DivisionLabel)
			}
			if row.ParticipantCount != 1 {
				t.Errorf("group %d: expected 1 participant in Gold, got %d", row.GroupID, row.ParticipantCount)
			}
		}
	}
}

func TestBuildStandingRowsIgnoresLoneBracketIndex(t *testing.T) {
	// A single winner means a single division, the leftover bracket index must
	// not produce a label.
	progression := []Division{{Name: "X"}}

	standings := []Standing{
		{GroupID: 10, Placement: 1, Members: []int64{1}, StartingBracketIdx: null.IntFrom(0)},
		{GroupID: 20, Placement: 2, Members: []int64{2}, StartingBracketIdx: null.IntFrom(0)},
	}

	for _, row := range buildStandingRows(standings, progression) {
		if row.DivisionLabel.Valid {
			t.Errorf("group %d: unexpected division label %s", row.GroupID, row.DivisionLabel.String)
		}
		if row.ParticipantCount != 2 {
			t.Errorf("group %d: expected total participant count, got %d", row.GroupID, row.ParticipantCount)
		}
	}
}

func TestBuildStandingRowsOutOfRangeBracketIndex(t *testing.T) {
	progression := []Division{{Name: "X"}}

	standings := []Standing{
		{GroupID: 10, Placement: 1, Members: []int64{1}, StartingBracketIdx: null.IntFrom(0)},
		{GroupID: 20, Placement: 1, Members: []int64{2}, StartingBracketIdx: null.IntFrom(5)},
	}

	rows := buildStandingRows(standings, progression)
	for _, row := range rows {
		if row.GroupID == 20 && row.DivisionLabel.Valid {
			t.Errorf("expected no label for an out-of-range bracket index, got %s", row.DivisionLabel.String)
		}
	}
}
