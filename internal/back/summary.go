package back

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"tentatek/internal/util"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

// TournamentSummary is everything a concluded tournament writes back:
// computed fresh in one pass, persisted in one transaction, never partially.
type TournamentSummary struct {
	SkillDeltas   []SkillDelta
	SPDiffs       map[int64]null.Int
	SeedingDeltas []SeedingDelta
	MapDeltas     []MapResultDelta
	PlayerDeltas  []PlayerResultDelta
	SetResults    map[int64][]null.String
	Standings     []StandingRow
}

// ComputeTournamentSummary turns the confirmed match results of a tournament
// into skill deltas, head-to-head statistics and placement rows. It touches
// no storage besides the supplied lookup callbacks; rng drives the roster
// tie-break and is injectable for deterministic tests.
func ComputeTournamentSummary(
	fn RatingFunction,
	rng *rand.Rand,
	matches []MatchResult,
	standings []Standing,
	progression []Division,
	lookups RatingLookups,
	seedingLookups RatingLookups,
	seedingType SeedingType,
) (TournamentSummary, error) {
	calc := newSkillCalculator(fn, lookups)
	agg := newResultAggregator()

	for k := range matches {
		match := &matches[k]

		// Resolve each side's identifier exactly once per match: the skill
		// row and the set-level counts must land on the same lineup when the
		// tie-break has to flip a coin.
		var teams *[2]RosterIdentifier
		if match.countsForSkill() {
			teams = &[2]RosterIdentifier{
				resolveTeamIdentifier(rng, match.Opponents[match.winnerIndex()], match.Maps),
				resolveTeamIdentifier(rng, match.Opponents[match.loserIndex()], match.Maps),
			}
		}

		if err := calc.process(match, teams); err != nil {
			return TournamentSummary{}, fmt.Errorf("skill pass: %w", err)
		}

		agg.process(match, teams)
	}

	seeding, err := computeSeedingDeltas(fn, seedingLookups, matches, seedingType)
	if err != nil {
		return TournamentSummary{}, fmt.Errorf("seeding pass: %w", err)
	}

	return TournamentSummary{
		SkillDeltas:   calc.deltas(),
		SPDiffs:       calc.spDiffs(),
		SeedingDeltas: seeding,
		MapDeltas:     agg.mapDeltas(),
		PlayerDeltas:  agg.playerDeltas(),
		SetResults:    agg.setResults,
		Standings:     buildStandingRows(standings, progression),
	}, nil
}

// SummarizeTournament loads the confirmed results of a tournament, computes
// its summary and persists it, all inside one transaction. Any failure rolls
// everything back and leaves the tournament un-finalized for a retry.
func (b *Back) SummarizeTournament(
	tournamentID util.UUIDAsBlob,
	season int,
	seedingType SeedingType,
	standings []Standing,
	progression []Division,
	badgeReceivers map[int64][]int64,
) error {
	start := time.Now()

	if err := b.transaction(func(tx *sqlx.Tx) error {
		tournament, err := getTournamentByID(tx, tournamentID)
		if err != nil {
			return fmt.Errorf("unable to fetch tournament: %w", err)
		}
		if tournament.FinalizedAt.Valid {
			return util.ErrPublic("this tournament has already been finalized")
		}

		matches, err := getTournamentMatchResults(tx, tournamentID)
		if err != nil {
			return fmt.Errorf("unable to read match results: %w", err)
		}

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		summary, err := ComputeTournamentSummary(
			b.rating, rng, matches, standings, progression,
			ratingLookupsForSeason(tx, season),
			seedingLookupsForType(tx, seedingType),
			seedingType,
		)
		if err != nil {
			return err
		}

		return addSummaryTx(tx, &tournament, summary, season, badgeReceivers)
	}); err != nil {
		return err
	}

	log.Printf("info: summarized tournament %s in %s", tournamentID, time.Since(start))

	return nil
}

// AddSummary persists an already computed summary and finalizes the
// tournament, atomically.
func (b *Back) AddSummary(
	tournamentID util.UUIDAsBlob,
	summary TournamentSummary,
	season int,
	badgeReceivers map[int64][]int64,
) error {
	return b.transaction(func(tx *sqlx.Tx) error {
		tournament, err := getTournamentByID(tx, tournamentID)
		if err != nil {
			return fmt.Errorf("unable to fetch tournament: %w", err)
		}
		if tournament.FinalizedAt.Valid {
			return util.ErrPublic("this tournament has already been finalized")
		}

		return addSummaryTx(tx, &tournament, summary, season, badgeReceivers)
	})
}

func addSummaryTx(
	tx *sqlx.Tx,
	tournament *Tournament,
	summary TournamentSummary,
	season int,
	badgeReceivers map[int64][]int64,
) error {
	now := time.Now()

	if err := insertSkillRows(tx, tournament.ID, summary.SkillDeltas, season, now); err != nil {
		return fmt.Errorf("unable to insert skill rows: %w", err)
	}

	for _, v := range summary.SeedingDeltas {
		if err := upsertSeedingSkill(tx, v); err != nil {
			return fmt.Errorf("unable to upsert seeding skill: %w", err)
		}
	}

	for _, v := range summary.MapDeltas {
		if err := upsertMapResult(tx, v); err != nil {
			return fmt.Errorf("unable to upsert map result: %w", err)
		}
	}

	for _, v := range summary.PlayerDeltas {
		if err := upsertPlayerResult(tx, v); err != nil {
			return fmt.Errorf("unable to upsert player result: %w", err)
		}
	}

	for badgeID, userIDs := range badgeReceivers {
		for _, userID := range userIDs {
			if _, err := tx.Exec(
				`INSERT INTO TournamentBadgeOwner (TournamentID, BadgeID, UserID) VALUES (?, ?, ?)`,
				tournament.ID, badgeID, userID,
			); err != nil {
				return fmt.Errorf("unable to insert badge owner: %w", err)
			}
		}
	}

	if err := insertPlacements(tx, tournament.ID, summary); err != nil {
		return fmt.Errorf("unable to insert placements: %w", err)
	}

	return tournament.finalize(tx, now)
}

// insertSkillRows appends one SkillRecord per delta. The written matches
// count is the pass delta on top of the highest count ever recorded for that
// key, across all seasons: a true running total that never resets.
func insertSkillRows(
	tx *sqlx.Tx,
	tournamentID util.UUIDAsBlob,
	deltas []SkillDelta,
	season int,
	now time.Time,
) error {
	for _, delta := range deltas {
		record := SkillRecord{
			TournamentID: util.NewNullUUIDAsBlob(tournamentID),
			UserID:       delta.UserID,
			Identifier:   delta.Identifier,
			Mu:           delta.Mu,
			Sigma:        delta.Sigma,
			Season:       null.IntFrom(int64(season)),
			CreatedAt:    util.TimeAsTimestamp(now),
		}

		var (
			max int
			err error
		)
		switch {
		case delta.UserID.Valid:
			max, err = getMaxMatchesCountForUser(tx, delta.UserID.Int64)
		case delta.Identifier.Valid:
			max, err = getMaxMatchesCountForTeam(tx, RosterIdentifier(delta.Identifier.String))
		default:
			return errors.New("skill delta with neither user nor identifier")
		}
		if err != nil {
			return err
		}

		record.MatchesCount = delta.MatchesCount + max
		if err := record.insert(tx); err != nil {
			return err
		}

		if delta.Identifier.Valid {
			for _, userID := range RosterIdentifier(delta.Identifier.String).memberIDs() {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO SkillTeamMember (Identifier, UserID) VALUES (?, ?)`,
					delta.Identifier.String, userID,
				); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// upsertSeedingSkill keeps only the latest seeding rating per (user, type),
// seeding has no history.
func upsertSeedingSkill(tx *sqlx.Tx, v SeedingDelta) error {
	_, err := tx.Exec(`
        INSERT INTO SeedingSkill (UserID, Type, Mu, Sigma, MatchesCount)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (UserID, Type) DO UPDATE SET
            Mu = excluded.Mu,
            Sigma = excluded.Sigma,
            MatchesCount = excluded.MatchesCount`,
		v.UserID, string(v.Type), v.Mu, v.Sigma, v.MatchesCount,
	)

	return err
}

// upsertMapResult adds the accumulated deltas onto whatever is already
// there, counters are never overwritten.
func upsertMapResult(tx *sqlx.Tx, v MapResultDelta) error {
	_, err := tx.Exec(`
        INSERT INTO MapResult (UserID, StageID, Mode, Wins, Losses)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (UserID, StageID, Mode) DO UPDATE SET
            Wins = Wins + excluded.Wins,
            Losses = Losses + excluded.Losses`,
		v.UserID, v.StageID, v.Mode, v.Wins, v.Losses,
	)

	return err
}

func upsertPlayerResult(tx *sqlx.Tx, v PlayerResultDelta) error {
	_, err := tx.Exec(`
        INSERT INTO PlayerResult (OwnerID, OtherID, Relationship, MapWins, MapLosses, SetWins, SetLosses)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (OwnerID, OtherID, Relationship) DO UPDATE SET
            MapWins = MapWins + excluded.MapWins,
            MapLosses = MapLosses + excluded.MapLosses,
            SetWins = SetWins + excluded.SetWins,
            SetLosses = SetLosses + excluded.SetLosses`,
		v.OwnerID, v.OtherID, string(v.Relationship), v.MapWins, v.MapLosses, v.SetWins, v.SetLosses,
	)

	return err
}

// insertPlacements writes one placement row per (player, team) standing,
// skipping pure substitutes whose set results never went beyond null.
func insertPlacements(tx *sqlx.Tx, tournamentID util.UUIDAsBlob, summary TournamentSummary) error {
	for _, row := range summary.Standings {
		results := summary.SetResults[row.UserID]

		played := false
		for _, v := range results {
			if v.Valid {
				played = true
				break
			}
		}
		if !played {
			continue
		}

		serialized, err := json.Marshal(results)
		if err != nil {
			return err
		}

		spDiff := summary.SPDiffs[row.UserID]

		if _, err := tx.Exec(`
            INSERT INTO TournamentPlacement
                (TournamentID, UserID, GroupID, Placement, DivisionLabel, ParticipantCount, SPDiff, SetResults)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tournamentID, row.UserID, row.GroupID, row.Placement,
			row.DivisionLabel, row.ParticipantCount, spDiff, string(serialized),
		); err != nil {
			return err
		}
	}

	return nil
}

// seedingLookupsForType reads the current seeding rating per user for one
// queue type, the team lookup is never used by the seeding pass.
func seedingLookupsForType(tx *sqlx.Tx, seedingType SeedingType) RatingLookups {
	return RatingLookups{
		User: func(userID int64) (*SkillSnapshot, error) {
			var row struct {
				Mu           float64
				Sigma        float64
				MatchesCount int
			}

			query := `SELECT Mu, Sigma, MatchesCount FROM SeedingSkill WHERE UserID = ? AND Type = ? LIMIT 1`
			if err := tx.Get(&row, query, userID, string(seedingType)); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, nil
				}
				return nil, err
			}

			return &SkillSnapshot{
				Rating:       Rating{Mu: row.Mu, Sigma: row.Sigma},
				MatchesCount: row.MatchesCount,
			}, nil
		},
	}
}
