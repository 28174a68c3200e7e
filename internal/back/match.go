package back

import (
	"fmt"
	"time"

	"tentatek/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type Match struct {
	ID           util.UUIDAsBlob
	TournamentID util.UUIDAsBlob
	CreatedAt    util.TimeAsTimestamp

	// BestOf is the round configuration, a set mathematically ends as soon as
	// one side gets more than half of it.
	BestOf   int
	Ordering int

	Sides [2]MatchSide `db:"-"`
}

// MatchSide holds one opponent's outcome for a match. Score, Win and
// DroppedOut stay zero until the report protocol confirms a result.
type MatchSide struct {
	MatchID  util.UUIDAsBlob
	GroupID  int64
	Position int
	Score    int
	Win      bool

	// DroppedOut marks a side that left mid-set, such matches still count for
	// skill even though they ended early.
	DroppedOut bool

	// ActiveRosterUserIDs overrides the played-roster fallback for matches
	// voided before any map completed.
	ActiveRosterUserIDs util.NullInt64ArrayAsJSON
}

type MatchMap struct {
	MatchID       util.UUIDAsBlob
	Position      int
	StageID       int64
	Mode          string
	WinnerGroupID int64
}

type MatchMapPlayer struct {
	MatchID  util.UUIDAsBlob
	Position int
	UserID   int64
	GroupID  int64
	Weapon   string
}

func NewMatch(tournamentID util.UUIDAsBlob, bestOf, ordering int) Match {
	return Match{
		ID:           util.NewUUIDAsBlob(),
		TournamentID: tournamentID,
		CreatedAt:    util.TimeAsTimestamp(time.Now()),
		BestOf:       bestOf,
		Ordering:     ordering,
	}
}

func (m *Match) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("Match").SetMap(squirrel.Eq{
		"ID":           m.ID,
		"TournamentID": m.TournamentID,
		"CreatedAt":    m.CreatedAt,
		"BestOf":       m.BestOf,
		"Ordering":     m.Ordering,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	for k := range m.Sides {
		if err := m.Sides[k].insert(tx); err != nil {
			return err
		}
	}

	return nil
}

func (s *MatchSide) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("MatchSide").SetMap(squirrel.Eq{
		"MatchID":             s.MatchID,
		"GroupID":             s.GroupID,
		"Position":            s.Position,
		"Score":               s.Score,
		"Win":                 s.Win,
		"DroppedOut":          s.DroppedOut,
		"ActiveRosterUserIDs": s.ActiveRosterUserIDs,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}

func (s *MatchSide) update(tx *sqlx.Tx) error {
	query, args, err := squirrel.Update("MatchSide").SetMap(squirrel.Eq{
		"Score":               s.Score,
		"Win":                 s.Win,
		"DroppedOut":          s.DroppedOut,
		"ActiveRosterUserIDs": s.ActiveRosterUserIDs,
	}).Where(squirrel.Eq{
		"MatchSide.MatchID":  s.MatchID,
		"MatchSide.Position": s.Position,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}

func (m *MatchMap) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("MatchMap").SetMap(squirrel.Eq{
		"MatchID":       m.MatchID,
		"Position":      m.Position,
		"StageID":       m.StageID,
		"Mode":          m.Mode,
		"WinnerGroupID": m.WinnerGroupID,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}

func (p *MatchMapPlayer) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("MatchMapPlayer").SetMap(squirrel.Eq{
		"MatchID":  p.MatchID,
		"Position": p.Position,
		"UserID":   p.UserID,
		"GroupID":  p.GroupID,
		"Weapon":   p.Weapon,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}

// CreateMatch registers a new match between two groups. Both groups must be
// fully staffed, a short-handed group can never enter a match (it can still
// finish one short-handed, that shows up later as a dropout or substitution).
func (b *Back) CreateMatch(
	tournamentID util.UUIDAsBlob,
	groupIDs [2]int64,
	bestOf, ordering int,
) (Match, error) {
	match := NewMatch(tournamentID, bestOf, ordering)

	if err := b.transaction(func(tx *sqlx.Tx) error {
		for k, groupID := range groupIDs {
			group, err := getGroupByID(tx, groupID)
			if err != nil {
				return fmt.Errorf("unable to fetch group %d: %w", groupID, err)
			}

			if !group.IsStaffed() {
				return util.ErrPublic(fmt.Sprintf(
					"group %s has %d members but needs %d to play",
					group.Name, len(group.Members), group.Size,
				))
			}

			match.Sides[k] = MatchSide{
				MatchID:  match.ID,
				GroupID:  groupID,
				Position: k,
			}
		}

		return match.insert(tx)
	}); err != nil {
		return Match{}, err
	}

	return match, nil
}

// GetMatch fetches a match and its two sides.
func (b *Back) GetMatch(id util.UUIDAsBlob) (Match, error) {
	var ret Match
	if err := b.transaction(func(tx *sqlx.Tx) (err error) {
		ret, err = getMatchByID(tx, id)
		return err
	}); err != nil {
		return Match{}, err
	}

	return ret, nil
}

func getMatchByID(tx *sqlx.Tx, id util.UUIDAsBlob) (Match, error) {
	var ret Match
	query := `SELECT * FROM Match WHERE Match.ID = ? LIMIT 1`
	if err := tx.Get(&ret, query, id); err != nil {
		return Match{}, err
	}

	var sides []MatchSide
	query = `SELECT * FROM MatchSide WHERE MatchSide.MatchID = ? ORDER BY Position ASC`
	if err := tx.Select(&sides, query, id); err != nil {
		return Match{}, err
	}
	if len(sides) != 2 {
		return Match{}, fmt.Errorf("match %s has %d sides, expected 2", id, len(sides))
	}

	copy(ret.Sides[:], sides)

	return ret, nil
}

func (m *Match) groupIDs() [2]int64 {
	return [2]int64{m.Sides[0].GroupID, m.Sides[1].GroupID}
}

func (m *Match) sideOfGroup(groupID int64) (*MatchSide, *MatchSide) {
	if m.Sides[0].GroupID == groupID {
		return &m.Sides[0], &m.Sides[1]
	}

	return &m.Sides[1], &m.Sides[0]
}
