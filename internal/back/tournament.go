package back

import (
	"time"

	"tentatek/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// A Tournament groups matches and, once every match is confirmed, gets
// summarized exactly once into skill, result, and placement rows.
type Tournament struct {
	ID        util.UUIDAsBlob
	Name      string
	CreatedAt util.TimeAsTimestamp

	// FinalizedAt is set by AddSummary, a finalized tournament must never be
	// summarized again.
	FinalizedAt util.NullTimeAsTimestamp
}

func NewTournament(name string) Tournament {
	return Tournament{
		ID:        util.NewUUIDAsBlob(),
		Name:      name,
		CreatedAt: util.TimeAsTimestamp(time.Now()),
	}
}

func (t *Tournament) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("Tournament").SetMap(squirrel.Eq{
		"ID":          t.ID,
		"Name":        t.Name,
		"CreatedAt":   t.CreatedAt,
		"FinalizedAt": t.FinalizedAt,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}

func getTournamentByID(tx *sqlx.Tx, id util.UUIDAsBlob) (Tournament, error) {
	var ret Tournament
	query := `SELECT * FROM Tournament WHERE Tournament.ID = ? LIMIT 1`
	if err := tx.Get(&ret, query, id); err != nil {
		return Tournament{}, err
	}

	return ret, nil
}

func (t *Tournament) finalize(tx *sqlx.Tx, now time.Time) error {
	t.FinalizedAt = util.NewNullTimeAsTimestamp(now)

	query, args, err := squirrel.Update("Tournament").SetMap(squirrel.Eq{
		"FinalizedAt": t.FinalizedAt,
	}).Where("Tournament.ID = ?", t.ID).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	return nil
}
