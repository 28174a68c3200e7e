package back

import (
	"fmt"
	"time"

	"tentatek/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// A Group is one side of a match: a team lineup that queues, plays and
// reports as a unit. Members can change between matches, the roster that
// actually played a given set is resolved after the fact from map
// participations.
type Group struct {
	ID        int64
	Name      string
	Size      int
	Active    bool
	CreatedAt util.TimeAsTimestamp

	Members []int64 `db:"-"`
}

func NewGroup(name string, size int, members ...int64) Group {
	return Group{
		Name:      name,
		Size:      size,
		Active:    true,
		CreatedAt: util.TimeAsTimestamp(time.Now()),
		Members:   members,
	}
}

// IsStaffed returns true when the group has enough members to start a match.
func (g *Group) IsStaffed() bool {
	return len(g.Members) >= g.Size
}

func (g *Group) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("LadderGroup").SetMap(squirrel.Eq{
		"Name":      g.Name,
		"Size":      g.Size,
		"Active":    g.Active,
		"CreatedAt": g.CreatedAt,
	}).ToSql()
	if err != nil {
		return err
	}

	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}

	if g.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for _, userID := range g.Members {
		if _, err := tx.Exec(
			`INSERT INTO LadderGroupMember (GroupID, UserID) VALUES (?, ?)`,
			g.ID, userID,
		); err != nil {
			return err
		}
	}

	return nil
}

func getGroupByID(tx *sqlx.Tx, id int64) (Group, error) {
	var ret Group
	query := `SELECT * FROM LadderGroup WHERE LadderGroup.ID = ? LIMIT 1`
	if err := tx.Get(&ret, query, id); err != nil {
		return Group{}, err
	}

	if err := tx.Select(
		&ret.Members,
		`SELECT UserID FROM LadderGroupMember WHERE GroupID = ? ORDER BY UserID ASC`,
		id,
	); err != nil {
		return Group{}, err
	}

	return ret, nil
}

// getGroupIDOfUser finds which of the two given groups the user belongs to,
// reporting is always done on behalf of your own side.
func getGroupIDOfUser(tx *sqlx.Tx, userID int64, groupIDs [2]int64) (int64, error) {
	var ret []int64
	query := `SELECT GroupID FROM LadderGroupMember WHERE UserID = ? AND GroupID IN (?, ?)`
	if err := tx.Select(&ret, query, userID, groupIDs[0], groupIDs[1]); err != nil {
		return 0, err
	}

	if len(ret) == 0 {
		return 0, util.ErrPublic("you are not part of this match")
	}
	if len(ret) > 1 {
		return 0, fmt.Errorf("user %d is a member of both sides of a match", userID)
	}

	return ret[0], nil
}
