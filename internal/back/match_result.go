package back

import (
	"fmt"

	"tentatek/internal/util"

	"github.com/jmoiron/sqlx"
)

// MatchResult is the read-only view of one finished set the summarization
// pass works on, assembled once from storage when a tournament concludes.
type MatchResult struct {
	MatchID util.UUIDAsBlob
	BestOf  int

	Opponents [2]Opponent
	Maps      []MapPlay
}

type Opponent struct {
	GroupID    int64
	Score      int
	Win        bool
	DroppedOut bool

	// ActiveRoster is an optional override used when the match was voided
	// before any map completed, Members is the full group roster.
	ActiveRoster []int64
	Members      []int64
}

type MapPlay struct {
	StageID       int64
	Mode          string
	WinnerGroupID int64
	Participants  []MapParticipant
}

type MapParticipant struct {
	UserID  int64
	GroupID int64
	Weapon  string
}

func (m *MatchResult) winnerIndex() int {
	if m.Opponents[1].Win {
		return 1
	}

	return 0
}

func (m *MatchResult) loserIndex() int {
	return 1 - m.winnerIndex()
}

func (m *MatchResult) winsNeeded() int {
	return m.BestOf/2 + 1
}

// EndedEarly returns true when the set stopped before either side
// mathematically won it.
func (m *MatchResult) EndedEarly() bool {
	return m.Opponents[0].Score < m.winsNeeded() &&
		m.Opponents[1].Score < m.winsNeeded()
}

func (m *MatchResult) hasDropout() bool {
	return m.Opponents[0].DroppedOut || m.Opponents[1].DroppedOut
}

// countsForSkill implements the whole-match inclusion rule: a set that ended
// early is excluded, unless the early end was caused by a dropout.
func (m *MatchResult) countsForSkill() bool {
	return !m.EndedEarly() || m.hasDropout()
}

// getTournamentMatchResults loads every confirmed match of a tournament in
// chronological order. Matches without a confirmed outcome (no map rows and
// no score) are skipped; malformed participant data is fatal and leaves the
// tournament un-finalized so the summarization can be retried after a fix.
func getTournamentMatchResults(tx *sqlx.Tx, tournamentID util.UUIDAsBlob) ([]MatchResult, error) {
	var matches []Match
	query := `SELECT * FROM Match WHERE Match.TournamentID = ? ORDER BY Ordering ASC, CreatedAt ASC`
	if err := tx.Select(&matches, query, tournamentID); err != nil {
		return nil, err
	}

	ret := make([]MatchResult, 0, len(matches))
	for k := range matches {
		result, ok, err := loadMatchResult(tx, &matches[k])
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", matches[k].ID, err)
		}
		if !ok {
			continue
		}

		ret = append(ret, result)
	}

	return ret, nil
}

func loadMatchResult(tx *sqlx.Tx, match *Match) (MatchResult, bool, error) {
	var sides []MatchSide
	query := `SELECT * FROM MatchSide WHERE MatchSide.MatchID = ? ORDER BY Position ASC`
	if err := tx.Select(&sides, query, match.ID); err != nil {
		return MatchResult{}, false, err
	}
	if len(sides) != 2 {
		return MatchResult{}, false, fmt.Errorf("found %d sides, expected 2", len(sides))
	}

	ret := MatchResult{
		MatchID: match.ID,
		BestOf:  match.BestOf,
	}

	for k := range sides {
		members, err := getGroupMemberIDs(tx, sides[k].GroupID)
		if err != nil {
			return MatchResult{}, false, err
		}
		if len(members) == 0 {
			return MatchResult{}, false, fmt.Errorf("group %d has no members", sides[k].GroupID)
		}

		ret.Opponents[k] = Opponent{
			GroupID:      sides[k].GroupID,
			Score:        sides[k].Score,
			Win:          sides[k].Win,
			DroppedOut:   sides[k].DroppedOut,
			ActiveRoster: sides[k].ActiveRosterUserIDs.Array.Slice(),
			Members:      members,
		}
	}

	maps, err := loadMatchMaps(tx, match.ID, ret.Opponents[0].GroupID, ret.Opponents[1].GroupID)
	if err != nil {
		return MatchResult{}, false, err
	}
	ret.Maps = maps

	// Never reported, voided without a cancellation: nothing to summarize.
	if len(maps) == 0 && !sides[0].Win && !sides[1].Win {
		return MatchResult{}, false, nil
	}

	return ret, true, nil
}

func loadMatchMaps(tx *sqlx.Tx, matchID util.UUIDAsBlob, groupA, groupB int64) ([]MapPlay, error) {
	var rows []MatchMap
	query := `SELECT * FROM MatchMap WHERE MatchMap.MatchID = ? ORDER BY Position ASC`
	if err := tx.Select(&rows, query, matchID); err != nil {
		return nil, err
	}

	var players []MatchMapPlayer
	query = `SELECT * FROM MatchMapPlayer WHERE MatchMapPlayer.MatchID = ? ORDER BY Position ASC, UserID ASC`
	if err := tx.Select(&players, query, matchID); err != nil {
		return nil, err
	}

	byPosition := make(map[int][]MapParticipant, len(rows))
	for k := range players {
		if players[k].GroupID != groupA && players[k].GroupID != groupB {
			return nil, fmt.Errorf(
				"map player %d belongs to group %d which is not part of the match",
				players[k].UserID, players[k].GroupID,
			)
		}

		byPosition[players[k].Position] = append(byPosition[players[k].Position], MapParticipant{
			UserID:  players[k].UserID,
			GroupID: players[k].GroupID,
			Weapon:  players[k].Weapon,
		})
	}

	ret := make([]MapPlay, 0, len(rows))
	for k := range rows {
		if rows[k].WinnerGroupID != groupA && rows[k].WinnerGroupID != groupB {
			return nil, fmt.Errorf(
				"map %d won by group %d which is not part of the match",
				rows[k].Position, rows[k].WinnerGroupID,
			)
		}

		participants := byPosition[rows[k].Position]
		if len(participants) == 0 {
			return nil, fmt.Errorf("map %d has no participants", rows[k].Position)
		}

		ret = append(ret, MapPlay{
			StageID:       rows[k].StageID,
			Mode:          rows[k].Mode,
			WinnerGroupID: rows[k].WinnerGroupID,
			Participants:  participants,
		})
	}

	return ret, nil
}

func getGroupMemberIDs(tx *sqlx.Tx, groupID int64) ([]int64, error) {
	var ret []int64
	query := `SELECT UserID FROM LadderGroupMember WHERE GroupID = ? ORDER BY UserID ASC`
	if err := tx.Select(&ret, query, groupID); err != nil {
		return nil, err
	}

	return ret, nil
}
