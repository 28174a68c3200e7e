package back

import (
	"encoding/json"
	"fmt"
	"time"

	"tentatek/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// ProtocolStatus is the typed outcome of a report or cancellation. Disagreements
// and no-ops are statuses, not errors, so callers keep control of the
// user-facing messaging.
type ProtocolStatus string

const (
	StatusReported  ProtocolStatus = "REPORTED"
	StatusConfirmed ProtocolStatus = "CONFIRMED"
	StatusDifferent ProtocolStatus = "DIFFERENT"
	StatusDuplicate ProtocolStatus = "DUPLICATE"

	StatusCancelReported  ProtocolStatus = "CANCEL_REPORTED"
	StatusCancelConfirmed ProtocolStatus = "CANCEL_CONFIRMED"
	StatusCantCancel      ProtocolStatus = "CANT_CANCEL"
)

// ProtocolOutcome is returned by every protocol operation.
// ShouldRefreshCaches tells the caller a result was committed and downstream
// rating caches and notifications are due.
type ProtocolOutcome struct {
	Status              ProtocolStatus
	ShouldRefreshCaches bool
}

// ReportedMap is one map of a reported win sequence. Only the winner matters
// for cross-side comparison, stage and mode are carried along for the record.
type ReportedMap struct {
	StageID       int64  `json:"stageId"`
	Mode          string `json:"mode"`
	WinnerGroupID int64  `json:"winnerGroupId"`
}

type WeaponPick struct {
	UserID   int64  `json:"userId"`
	MapIndex int    `json:"mapIndex"`
	Weapon   string `json:"weapon"`
}

const (
	reportKindScore  = "score"
	reportKindCancel = "cancel"
)

// MatchReport is one side's pending contribution to the dual-confirmation
// protocol. It waits indefinitely until the other side matches it or the
// same side supersedes it.
type MatchReport struct {
	MatchID   util.UUIDAsBlob
	GroupID   int64
	Kind      string
	Winners   string // JSON []ReportedMap
	Weapons   string // JSON []WeaponPick
	CreatedAt util.TimeAsTimestamp
}

func (r *MatchReport) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("MatchReport").SetMap(squirrel.Eq{
		"MatchID":   r.MatchID,
		"GroupID":   r.GroupID,
		"Kind":      r.Kind,
		"Winners":   r.Winners,
		"Weapons":   r.Weapons,
		"CreatedAt": r.CreatedAt,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}

func (r *MatchReport) reportedMaps() ([]ReportedMap, error) {
	var ret []ReportedMap
	if err := json.Unmarshal([]byte(r.Winners), &ret); err != nil {
		return nil, fmt.Errorf("corrupted winners payload: %w", err)
	}

	return ret, nil
}

func (r *MatchReport) weaponPicks() ([]WeaponPick, error) {
	if r.Weapons == "" {
		return nil, nil
	}

	var ret []WeaponPick
	if err := json.Unmarshal([]byte(r.Weapons), &ret); err != nil {
		return nil, fmt.Errorf("corrupted weapons payload: %w", err)
	}

	return ret, nil
}

func getMatchReports(tx *sqlx.Tx, matchID util.UUIDAsBlob, kind string) ([]MatchReport, error) {
	var ret []MatchReport
	query := `SELECT * FROM MatchReport WHERE MatchID = ? AND Kind = ? ORDER BY CreatedAt ASC`
	if err := tx.Select(&ret, query, matchID, kind); err != nil {
		return nil, err
	}

	return ret, nil
}

func deleteMatchReports(tx *sqlx.Tx, matchID util.UUIDAsBlob) error {
	_, err := tx.Exec(`DELETE FROM MatchReport WHERE MatchID = ?`, matchID)
	return err
}

func deleteSideMatchReports(tx *sqlx.Tx, matchID util.UUIDAsBlob, groupID int64, kind string) error {
	_, err := tx.Exec(
		`DELETE FROM MatchReport WHERE MatchID = ? AND GroupID = ? AND Kind = ?`,
		matchID, groupID, kind,
	)
	return err
}

// ValidateWinnerSequence rejects malformed winners arrays at the boundary:
// winners that are not part of the match, and entries past the point where
// one side mathematically won the set.
func ValidateWinnerSequence(bestOf int, groupIDs [2]int64, winners []ReportedMap) error {
	needed := bestOf/2 + 1
	scores := make(map[int64]int, 2)

	for k := range winners {
		winner := winners[k].WinnerGroupID
		if winner != groupIDs[0] && winner != groupIDs[1] {
			return util.ErrPublic(fmt.Sprintf("group %d is not part of this match", winner))
		}

		if scores[groupIDs[0]] >= needed || scores[groupIDs[1]] >= needed {
			return util.ErrPublic("the set already ended, extra map results are not allowed")
		}

		scores[winner]++
	}

	return nil
}

// ReportScore runs one side's result through the dual-confirmation protocol.
// An empty winners array is a cancellation in disguise and routes through
// CancelMatch. Staff reports skip confirmation entirely.
func (b *Back) ReportScore(
	matchID util.UUIDAsBlob,
	reporterID int64,
	winners []ReportedMap,
	weapons []WeaponPick,
) (ProtocolOutcome, error) {
	if len(winners) == 0 {
		return b.CancelMatch(matchID, reporterID)
	}

	var outcome ProtocolOutcome
	if err := b.transaction(func(tx *sqlx.Tx) (err error) {
		outcome, err = b.reportScoreTx(tx, matchID, reporterID, winners, weapons)
		return err
	}); err != nil {
		return ProtocolOutcome{}, err
	}

	return outcome, nil
}

func (b *Back) reportScoreTx(
	tx *sqlx.Tx,
	matchID util.UUIDAsBlob,
	reporterID int64,
	winners []ReportedMap,
	weapons []WeaponPick,
) (ProtocolOutcome, error) {
	match, err := getMatchByID(tx, matchID)
	if err != nil {
		return ProtocolOutcome{}, fmt.Errorf("unable to fetch match: %w", err)
	}

	locked, err := matchHasSkillRecord(tx, matchID)
	if err != nil {
		return ProtocolOutcome{}, err
	}
	if locked {
		return ProtocolOutcome{}, util.ErrPublic("this match is already locked")
	}

	if b.config != nil && b.config.IsStaff(reporterID) {
		if err := commitMatchResult(tx, &match, winners, weapons, nil); err != nil {
			return ProtocolOutcome{}, err
		}

		return ProtocolOutcome{Status: StatusConfirmed, ShouldRefreshCaches: true}, nil
	}

	reporterGroupID, err := getGroupIDOfUser(tx, reporterID, match.groupIDs())
	if err != nil {
		return ProtocolOutcome{}, err
	}

	reports, err := getMatchReports(tx, matchID, reportKindScore)
	if err != nil {
		return ProtocolOutcome{}, err
	}

	for k := range reports {
		if reports[k].GroupID == reporterGroupID {
			return ProtocolOutcome{Status: StatusDuplicate}, nil
		}
	}

	weaponsJSON, err := json.Marshal(weapons)
	if err != nil {
		return ProtocolOutcome{}, err
	}
	winnersJSON, err := json.Marshal(winners)
	if err != nil {
		return ProtocolOutcome{}, err
	}

	report := MatchReport{
		MatchID:   matchID,
		GroupID:   reporterGroupID,
		Kind:      reportKindScore,
		Winners:   string(winnersJSON),
		Weapons:   string(weaponsJSON),
		CreatedAt: util.TimeAsTimestamp(time.Now()),
	}

	if len(reports) == 0 {
		// A score report supersedes the same side's pending cancellation.
		if err := deleteSideMatchReports(tx, matchID, reporterGroupID, reportKindCancel); err != nil {
			return ProtocolOutcome{}, err
		}

		if err := util.ConcatErrors([]error{
			report.insert(tx),
			deactivateGroup(tx, reporterGroupID),
		}); err != nil {
			return ProtocolOutcome{}, err
		}

		return ProtocolOutcome{Status: StatusReported}, nil
	}

	prior := reports[0]
	priorMaps, err := prior.reportedMaps()
	if err != nil {
		return ProtocolOutcome{}, err
	}

	if !sameWinnerSequence(priorMaps, winners) {
		// Two sides disagree: keep both reports for manual resolution.
		if err := report.insert(tx); err != nil {
			return ProtocolOutcome{}, err
		}

		return ProtocolOutcome{Status: StatusDifferent}, nil
	}

	priorWeapons, err := prior.weaponPicks()
	if err != nil {
		return ProtocolOutcome{}, err
	}

	// The first report is canonical, the confirming side only brings its own
	// weapon picks.
	if err := commitMatchResult(tx, &match, priorMaps, priorWeapons, weapons); err != nil {
		return ProtocolOutcome{}, err
	}

	return ProtocolOutcome{Status: StatusConfirmed, ShouldRefreshCaches: true}, nil
}

func sameWinnerSequence(a, b []ReportedMap) bool {
	if len(a) != len(b) {
		return false
	}

	for k := range a {
		if a[k].WinnerGroupID != b[k].WinnerGroupID {
			return false
		}
	}

	return true
}

// commitMatchResult writes the canonical result: map rows, map participants
// with their weapons, side scores, and releases both groups back into
// matchmaking.
func commitMatchResult(
	tx *sqlx.Tx,
	match *Match,
	maps []ReportedMap,
	weapons, confirmingWeapons []WeaponPick,
) error {
	picks := make(map[[2]int64]string, len(weapons)+len(confirmingWeapons))
	for _, w := range append(weapons, confirmingWeapons...) {
		picks[[2]int64{w.UserID, int64(w.MapIndex)}] = w.Weapon
	}

	sideMembers := make(map[int64][]int64, 2)
	for k := range match.Sides {
		members, err := getGroupMemberIDs(tx, match.Sides[k].GroupID)
		if err != nil {
			return err
		}
		sideMembers[match.Sides[k].GroupID] = members
	}

	scores := make(map[int64]int, 2)
	for position, m := range maps {
		row := MatchMap{
			MatchID:       match.ID,
			Position:      position,
			StageID:       m.StageID,
			Mode:          m.Mode,
			WinnerGroupID: m.WinnerGroupID,
		}
		if err := row.insert(tx); err != nil {
			return err
		}
		scores[m.WinnerGroupID]++

		for groupID, members := range sideMembers {
			for _, userID := range members {
				player := MatchMapPlayer{
					MatchID:  match.ID,
					Position: position,
					UserID:   userID,
					GroupID:  groupID,
					Weapon:   picks[[2]int64{userID, int64(position)}],
				}
				if err := player.insert(tx); err != nil {
					return err
				}
			}
		}
	}

	a, b := &match.Sides[0], &match.Sides[1]

	var winnerGroupID int64
	switch {
	case scores[a.GroupID] > scores[b.GroupID]:
		winnerGroupID = a.GroupID
	case scores[b.GroupID] > scores[a.GroupID]:
		winnerGroupID = b.GroupID
	// A tied score only comes from a set cut short, the side that stayed
	// takes the win.
	case a.DroppedOut && !b.DroppedOut:
		winnerGroupID = b.GroupID
	case b.DroppedOut && !a.DroppedOut:
		winnerGroupID = a.GroupID
	default:
		return util.ErrPublic("cannot commit a tied set unless one side dropped out")
	}

	for k := range match.Sides {
		match.Sides[k].Score = scores[match.Sides[k].GroupID]
		match.Sides[k].Win = match.Sides[k].GroupID == winnerGroupID

		if err := util.ConcatErrors([]error{
			match.Sides[k].update(tx),
			reactivateGroup(tx, match.Sides[k].GroupID),
		}); err != nil {
			return err
		}
	}

	return deleteMatchReports(tx, match.ID)
}

// CancelMatch runs the dual-confirmation cancellation path. A confirmed
// cancellation closes the match with a lock record and no rating effect.
func (b *Back) CancelMatch(matchID util.UUIDAsBlob, reporterID int64) (ProtocolOutcome, error) {
	var outcome ProtocolOutcome
	if err := b.transaction(func(tx *sqlx.Tx) (err error) {
		outcome, err = b.cancelMatchTx(tx, matchID, reporterID)
		return err
	}); err != nil {
		return ProtocolOutcome{}, err
	}

	return outcome, nil
}

func (b *Back) cancelMatchTx(tx *sqlx.Tx, matchID util.UUIDAsBlob, reporterID int64) (ProtocolOutcome, error) {
	match, err := getMatchByID(tx, matchID)
	if err != nil {
		return ProtocolOutcome{}, fmt.Errorf("unable to fetch match: %w", err)
	}

	locked, err := matchHasSkillRecord(tx, matchID)
	if err != nil {
		return ProtocolOutcome{}, err
	}
	if locked {
		return ProtocolOutcome{Status: StatusCantCancel}, nil
	}

	scoreReports, err := getMatchReports(tx, matchID, reportKindScore)
	if err != nil {
		return ProtocolOutcome{}, err
	}
	if len(scoreReports) > 0 {
		return ProtocolOutcome{Status: StatusCantCancel}, nil
	}

	reporterGroupID, err := getGroupIDOfUser(tx, reporterID, match.groupIDs())
	if err != nil {
		return ProtocolOutcome{}, err
	}

	cancelReports, err := getMatchReports(tx, matchID, reportKindCancel)
	if err != nil {
		return ProtocolOutcome{}, err
	}

	for k := range cancelReports {
		if cancelReports[k].GroupID == reporterGroupID {
			// Asking twice changes nothing.
			return ProtocolOutcome{Status: StatusCancelReported}, nil
		}
	}

	if len(cancelReports) > 0 {
		record := newLockRecord(matchID)

		if err := util.ConcatErrors([]error{
			record.insert(tx),
			deleteMatchReports(tx, matchID),
			reactivateGroup(tx, match.Sides[0].GroupID),
			reactivateGroup(tx, match.Sides[1].GroupID),
		}); err != nil {
			return ProtocolOutcome{}, err
		}

		return ProtocolOutcome{Status: StatusCancelConfirmed, ShouldRefreshCaches: true}, nil
	}

	report := MatchReport{
		MatchID:   matchID,
		GroupID:   reporterGroupID,
		Kind:      reportKindCancel,
		CreatedAt: util.TimeAsTimestamp(time.Now()),
	}

	if err := util.ConcatErrors([]error{
		report.insert(tx),
		deactivateGroup(tx, reporterGroupID),
	}); err != nil {
		return ProtocolOutcome{}, err
	}

	return ProtocolOutcome{Status: StatusCancelReported}, nil
}

// LockMatchWithoutSkillChange closes a match administratively with no rating
// effect, the same way a confirmed cancellation does.
func (b *Back) LockMatchWithoutSkillChange(matchID util.UUIDAsBlob) error {
	return b.transaction(func(tx *sqlx.Tx) error {
		locked, err := matchHasSkillRecord(tx, matchID)
		if err != nil {
			return err
		}
		if locked {
			return nil
		}

		record := newLockRecord(matchID)

		return util.ConcatErrors([]error{
			record.insert(tx),
			deleteMatchReports(tx, matchID),
		})
	})
}

// MarkDropout flags a side as having left mid-set, which keeps an
// early-ended match in the skill computation.
func (b *Back) MarkDropout(matchID util.UUIDAsBlob, groupID int64) error {
	return b.transaction(func(tx *sqlx.Tx) error {
		match, err := getMatchByID(tx, matchID)
		if err != nil {
			return err
		}

		side, _ := match.sideOfGroup(groupID)
		if side.GroupID != groupID {
			return util.ErrPublic("this group is not part of the match")
		}

		side.DroppedOut = true
		return side.update(tx)
	})
}

func deactivateGroup(tx *sqlx.Tx, groupID int64) error {
	_, err := tx.Exec(`UPDATE LadderGroup SET Active = 0 WHERE ID = ?`, groupID)
	return err
}

func reactivateGroup(tx *sqlx.Tx, groupID int64) error {
	_, err := tx.Exec(`UPDATE LadderGroup SET Active = 1 WHERE ID = ?`, groupID)
	return err
}
