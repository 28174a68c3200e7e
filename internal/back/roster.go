package back

import (
	"math/rand"
	"sort"
)

// resolvePlayedRoster determines which user IDs actually played a set for one
// side, tolerating single-map substitutions: everyone who showed up on that
// side is counted per map, and the most present make up the roster.
func resolvePlayedRoster(opponent Opponent, maps []MapPlay) []int64 {
	if len(maps) == 0 {
		// Voided before any map completed, fall back to the declared lineup.
		if len(opponent.ActiveRoster) > 0 {
			return sortedCopy(opponent.ActiveRoster)
		}

		return sortedCopy(opponent.Members)
	}

	counts := make(map[int64]int)
	for k := range maps {
		for _, p := range maps[k].Participants {
			if p.GroupID == opponent.GroupID {
				counts[p.UserID]++
			}
		}
	}

	candidates := make([]int64, 0, len(counts))
	for userID := range counts {
		candidates = append(candidates, userID)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] > counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	target := (len(maps[0].Participants) + 1) / 2
	if target >= len(candidates) {
		return sortedCopy(candidates)
	}

	// Everyone tied with the last player above the cutoff stays in, even if
	// that makes the roster bigger than the target size.
	cutoff := counts[candidates[target-1]]
	end := target
	for end < len(candidates) && counts[candidates[end]] == cutoff {
		end++
	}

	return sortedCopy(candidates[:end])
}

// resolveTeamIdentifier reduces each map's side lineup to a roster identifier
// and picks the one that played the most maps. Ties are broken uniformly at
// random; the randomness source is injected so tests can pin it down.
func resolveTeamIdentifier(rng *rand.Rand, opponent Opponent, maps []MapPlay) RosterIdentifier {
	if len(maps) == 0 {
		if len(opponent.ActiveRoster) > 0 {
			return NewRosterIdentifier(opponent.ActiveRoster)
		}

		return NewRosterIdentifier(opponent.Members)
	}

	counts := make(map[RosterIdentifier]int, len(maps))
	for k := range maps {
		var lineup []int64
		for _, p := range maps[k].Participants {
			if p.GroupID == opponent.GroupID {
				lineup = append(lineup, p.UserID)
			}
		}

		counts[NewRosterIdentifier(lineup)]++
	}

	max := 0
	for _, count := range counts {
		if count > max {
			max = count
		}
	}

	tied := make([]RosterIdentifier, 0, 1)
	for identifier, count := range counts {
		if count == max {
			tied = append(tied, identifier)
		}
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })

	if len(tied) == 1 {
		return tied[0]
	}

	return tied[rng.Intn(len(tied))]
}

// memberIDs parses a roster identifier back into its user IDs.
func (r RosterIdentifier) memberIDs() []int64 {
	return parseRosterIdentifier(string(r))
}

func sortedCopy(ids []int64) []int64 {
	ret := make([]int64, len(ids))
	copy(ret, ids)
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })

	return ret
}
