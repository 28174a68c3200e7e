package back

import (
	"sort"

	"github.com/jmoiron/sqlx"
)

type LeaderboardEntry struct {
	UserID       int64
	Mu           float64
	Sigma        float64
	MatchesCount int
	Ordinal      float64
}

// GetLeaderboard returns the current season ladder, one entry per user with
// enough history to be visible, best ordinal first.
func (b *Back) GetLeaderboard(season int) ([]LeaderboardEntry, error) {
	var ret []LeaderboardEntry

	if err := b.transaction(func(tx *sqlx.Tx) error {
		var records []SkillRecord
		query := `
            SELECT * FROM SkillRecord AS s
            WHERE s.Season = ? AND s.Locked = 0 AND s.UserID IS NOT NULL
              AND s.MatchesCount >= ?
              AND s.ID = (
                SELECT MAX(ID) FROM SkillRecord
                WHERE UserID = s.UserID AND Season = ? AND Locked = 0
              )`
		if err := tx.Select(&records, query, season, skillVisibilityMinMatches, season); err != nil {
			return err
		}

		ret = make([]LeaderboardEntry, 0, len(records))
		for k := range records {
			ret = append(ret, LeaderboardEntry{
				UserID:       records[k].UserID.Int64,
				Mu:           records[k].Mu,
				Sigma:        records[k].Sigma,
				MatchesCount: records[k].MatchesCount,
				Ordinal:      b.rating.Ordinal(records[k].Rating()),
			})
		}

		return nil
	}); err != nil {
		return nil, err
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i].Ordinal > ret[j].Ordinal })

	return ret, nil
}
