package back

import (
	"fmt"

	"tentatek/internal/config"

	"github.com/jmoiron/sqlx"
)

type Back struct {
	db     *sqlx.DB
	config *config.Config
	rating RatingFunction
}

func New(sqlDriver string, sqlDSN string, conf *config.Config) (*Back, error) {
	// Struct fields and SQL columns share the exact same name, see init.go.
	// HACK: repeating the global assignment here keeps in-package tests
	// working without the main package, the Back is the only DB consumer.
	sqlx.NameMapper = func(v string) string { return v }

	db, err := sqlx.Connect(sqlDriver, sqlDSN)
	if err != nil {
		return nil, err
	}

	return &Back{
		db:     db,
		config: conf,
		rating: NewGlickoRatingFunction(),
	}, nil
}

// SetRatingFunction overrides the skill update implementation, the rating
// math is not owned by this package.
func (b *Back) SetRatingFunction(fn RatingFunction) {
	b.rating = fn
}

type transactionCallback func(*sqlx.Tx) error

func (b *Back) transaction(cb transactionCallback) error {
	tx, err := b.db.Beginx()
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return fmt.Errorf("rollback error: %s\noriginal error: %s", err2, err)
		}

		return err
	}

	return tx.Commit()
}
