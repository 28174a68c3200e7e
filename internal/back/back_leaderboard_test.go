package back // nolint:testpackage

import (
	"testing"
	"time"

	"tentatek/internal/util"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

func insertTestSkillRecord(t *testing.T, b *Back, userID int64, season, matches int, mu, sigma float64) {
	t.Helper()

	if err := b.transaction(func(tx *sqlx.Tx) error {
		record := SkillRecord{
			UserID:       null.IntFrom(userID),
			Mu:           mu,
			Sigma:        sigma,
			MatchesCount: matches,
			Season:       null.IntFrom(int64(season)),
			CreatedAt:    util.TimeAsTimestamp(time.Now()),
		}
		return record.insert(tx)
	}); err != nil {
		t.Fatal(err)
	}
}

func TestLeaderboardHidesLowHistoryUsers(t *testing.T) {
	back := createFixturedTestBack(t)

	insertTestSkillRecord(t, back, 1, 1, skillVisibilityMinMatches, 1800, 100)
	insertTestSkillRecord(t, back, 2, 1, skillVisibilityMinMatches-1, 2500, 100)

	leaderboard, err := back.GetLeaderboard(1)
	if err != nil {
		t.Fatal(err)
	}

	if len(leaderboard) != 1 {
		t.Fatalf("expected a single visible entry, got %d", len(leaderboard))
	}
	if leaderboard[0].UserID != 1 {
		t.Errorf("expected user 1 on the ladder, got %d", leaderboard[0].UserID)
	}
}

func TestLeaderboardUsesLatestRecordAndSortsByOrdinal(t *testing.T) {
	back := createFixturedTestBack(t)

	insertTestSkillRecord(t, back, 1, 1, 10, 1500, 100)
	insertTestSkillRecord(t, back, 1, 1, 11, 2000, 100)
	insertTestSkillRecord(t, back, 2, 1, 10, 2400, 100)
	// Another season does not leak into the requested one.
	insertTestSkillRecord(t, back, 3, 2, 10, 3000, 100)

	leaderboard, err := back.GetLeaderboard(1)
	if err != nil {
		t.Fatal(err)
	}

	if len(leaderboard) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(leaderboard))
	}
	if leaderboard[0].UserID != 2 {
		t.Errorf("expected user 2 first, got %d", leaderboard[0].UserID)
	}
	if leaderboard[1].UserID != 1 || leaderboard[1].Mu != 2000 {
		t.Errorf("expected the latest record of user 1, got %+v", leaderboard[1])
	}
}
