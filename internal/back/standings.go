package back

import (
	"gopkg.in/guregu/null.v4"
)

// Standing is one row of the deduplicated final placement standings, one per
// physical team.
type Standing struct {
	GroupID   int64
	Placement int
	Members   []int64

	// StartingBracketIdx indexes into the bracket progression for events
	// split into divisions.
	StartingBracketIdx null.Int
}

// Division is one named sub-bracket of a multi-division event, given in
// bracket order.
type Division struct {
	Name string
}

// StandingRow is the per-player placement emitted by the builder: a 4-player
// team placing 2nd emits four rows, all with placement 2.
type StandingRow struct {
	UserID           int64
	GroupID          int64
	Placement        int
	DivisionLabel    null.String
	ParticipantCount int
}

// buildStandingRows expands team standings into per-player rows with their
// division context. Divisions only become visible when more than one team
// finished 1st, a lone bracket index on a single-division event is ignored.
func buildStandingRows(standings []Standing, progression []Division) []StandingRow {
	firstPlaces := 0
	for k := range standings {
		if standings[k].Placement == 1 {
			firstPlaces++
		}
	}
	divisionsActive := firstPlaces > 1

	perBracket := make(map[int64]int, len(progression))
	if divisionsActive {
		for k := range standings {
			if standings[k].StartingBracketIdx.Valid {
				perBracket[standings[k].StartingBracketIdx.Int64]++
			}
		}
	}

	var ret []StandingRow
	for k := range standings {
		label := null.String{}
		count := len(standings)

		if divisionsActive && standings[k].StartingBracketIdx.Valid {
			idx := standings[k].StartingBracketIdx.Int64
			if idx >= 0 && idx < int64(len(progression)) {
				label = null.StringFrom(progression[idx].Name)
			}
			count = perBracket[idx]
		}

		for _, userID := range standings[k].Members {
			ret = append(ret, StandingRow{
				UserID:           userID,
				GroupID:          standings[k].GroupID,
				Placement:        standings[k].Placement,
				DivisionLabel:    label,
				ParticipantCount: count,
			})
		}
	}

	return ret
}
