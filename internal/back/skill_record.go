package back

import (
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"tentatek/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

// RosterIdentifier is the canonical string for one specific team lineup,
// invariant under permutation of the member IDs.
type RosterIdentifier string

func NewRosterIdentifier(userIDs []int64) RosterIdentifier {
	sorted := make([]int64, len(userIDs))
	copy(sorted, userIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for k := range sorted {
		parts[k] = strconv.FormatInt(sorted[k], 10)
	}

	return RosterIdentifier(strings.Join(parts, "-"))
}

func parseRosterIdentifier(v string) []int64 {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, "-")
	ret := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ret = append(ret, id)
	}

	return ret
}

// A SkillRecord is an append-only skill snapshot, keyed by either a user ID
// or a roster identifier, never both. A Locked record carries no rating at
// all: it only marks its match as closed with no skill effect, preserving
// the "any record for a match means the match is closed" contract.
type SkillRecord struct {
	ID           int64
	MatchID      util.NullUUIDAsBlob
	TournamentID util.NullUUIDAsBlob
	UserID       null.Int
	Identifier   null.String
	Mu           float64
	Sigma        float64
	MatchesCount int
	Season       null.Int
	Locked       bool
	CreatedAt    util.TimeAsTimestamp
}

func (r SkillRecord) Rating() Rating {
	return Rating{Mu: r.Mu, Sigma: r.Sigma}
}

// newLockRecord builds the record that closes a match without any rating
// change (confirmed cancellation or administrative lock).
func newLockRecord(matchID util.UUIDAsBlob) SkillRecord {
	return SkillRecord{
		MatchID:   util.NewNullUUIDAsBlob(matchID),
		Locked:    true,
		CreatedAt: util.TimeAsTimestamp(time.Now()),
	}
}

func (r *SkillRecord) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("SkillRecord").SetMap(squirrel.Eq{
		"MatchID":      r.MatchID,
		"TournamentID": r.TournamentID,
		"UserID":       r.UserID,
		"Identifier":   r.Identifier,
		"Mu":           r.Mu,
		"Sigma":        r.Sigma,
		"MatchesCount": r.MatchesCount,
		"Season":       r.Season,
		"Locked":       r.Locked,
		"CreatedAt":    r.CreatedAt,
	}).ToSql()
	if err != nil {
		return err
	}

	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}

	if r.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	return nil
}

// matchHasSkillRecord tells whether a match is closed, either through a
// summarized result or a lock record.
func matchHasSkillRecord(tx *sqlx.Tx, matchID util.UUIDAsBlob) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM SkillRecord WHERE MatchID = ?`
	if err := tx.Get(&count, query, matchID); err != nil {
		return false, err
	}

	return count > 0, nil
}

// getCurrentUserSkill returns the latest skill snapshot of a user for a
// season, sql.ErrNoRows if the user has no ladder history yet.
func getCurrentUserSkill(tx *sqlx.Tx, userID int64, season int) (SkillRecord, error) {
	var ret SkillRecord
	query := `
        SELECT * FROM SkillRecord
        WHERE UserID = ? AND Season = ? AND Locked = 0
        ORDER BY ID DESC
        LIMIT 1`
	if err := tx.Get(&ret, query, userID, season); err != nil {
		return SkillRecord{}, err
	}

	return ret, nil
}

func getCurrentTeamSkill(tx *sqlx.Tx, identifier RosterIdentifier, season int) (SkillRecord, error) {
	var ret SkillRecord
	query := `
        SELECT * FROM SkillRecord
        WHERE Identifier = ? AND Season = ? AND Locked = 0
        ORDER BY ID DESC
        LIMIT 1`
	if err := tx.Get(&ret, query, string(identifier), season); err != nil {
		return SkillRecord{}, err
	}

	return ret, nil
}

// getMaxMatchesCountForUser returns the highest matches count ever recorded
// for a user, across all seasons. The running total never resets.
func getMaxMatchesCountForUser(tx *sqlx.Tx, userID int64) (int, error) {
	var ret int
	query := `SELECT COALESCE(MAX(MatchesCount), 0) FROM SkillRecord WHERE UserID = ? AND Locked = 0`
	if err := tx.Get(&ret, query, userID); err != nil {
		return 0, err
	}

	return ret, nil
}

func getMaxMatchesCountForTeam(tx *sqlx.Tx, identifier RosterIdentifier) (int, error) {
	var ret int
	query := `SELECT COALESCE(MAX(MatchesCount), 0) FROM SkillRecord WHERE Identifier = ? AND Locked = 0`
	if err := tx.Get(&ret, query, string(identifier)); err != nil {
		return 0, err
	}

	return ret, nil
}

// ratingLookupsForSeason builds the per-pass lookup callbacks handed to the
// skill calculator, sourcing current ratings from the ladder history.
func ratingLookupsForSeason(tx *sqlx.Tx, season int) RatingLookups {
	return RatingLookups{
		User: func(userID int64) (*SkillSnapshot, error) {
			record, err := getCurrentUserSkill(tx, userID, season)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, nil
				}
				return nil, err
			}

			return &SkillSnapshot{
				Rating:       record.Rating(),
				MatchesCount: record.MatchesCount,
			}, nil
		},
		Team: func(identifier RosterIdentifier) (*SkillSnapshot, error) {
			record, err := getCurrentTeamSkill(tx, identifier, season)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, nil
				}
				return nil, err
			}

			return &SkillSnapshot{
				Rating:       record.Rating(),
				MatchesCount: record.MatchesCount,
			}, nil
		},
	}
}
