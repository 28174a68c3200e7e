package back

import (
	"github.com/jmoiron/sqlx"
)

// LoadFixtures creates default data for quick testing during development.
func (b *Back) LoadFixtures() error {
	tournament := NewTournament("Tentatek Open #1")
	groups := []Group{
		NewGroup("Squid Squad", 4, 1, 2, 3, 4),
		NewGroup("Kraken Crew", 4, 5, 6, 7, 8),
		NewGroup("Reef Rovers", 4, 9, 10, 11, 12),
		NewGroup("Wave Breakers", 4, 13, 14, 15, 16),
	}

	return b.transaction(func(tx *sqlx.Tx) error {
		if err := tournament.insert(tx); err != nil {
			return err
		}

		for k := range groups {
			if err := groups[k].insert(tx); err != nil {
				return err
			}
		}

		for i := 0; i < len(groups); i += 2 {
			match := NewMatch(tournament.ID, 5, i/2)
			match.Sides[0] = MatchSide{MatchID: match.ID, GroupID: groups[i].ID, Position: 0}
			match.Sides[1] = MatchSide{MatchID: match.ID, GroupID: groups[i+1].ID, Position: 1}

			if err := match.insert(tx); err != nil {
				return err
			}
		}

		return nil
	})
}
