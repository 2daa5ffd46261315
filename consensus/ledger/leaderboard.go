package ledger

import (
	"sort"

	"andycoin/andycoin"
)

// Leaderboard returns a fresh snapshot ordered by balance descending, ties by member ascending.
// A limit of zero or less returns every member holding coins.
func (l *Ledger) Leaderboard(scope Scope, limit int) []Standing {
	totals := make(map[andycoin.MemberID]uint64)
	if scope.Global {
		for _, cm := range l.all() {
			cm.mutex.RLock()
			for m, b := range cm.balances {
				totals[m] = andycoin.SaturatingAdd(totals[m], b)
			}
			cm.mutex.RUnlock()
		}
	} else if cm, ok := l.get(scope.Community); ok {
		cm.mutex.RLock()
		for m, b := range cm.balances {
			totals[m] = b
		}
		cm.mutex.RUnlock()
	}

	standings := make([]Standing, 0, len(totals))
	for m, b := range totals {
		if b == 0 {
			continue
		}
		standings = append(standings, Standing{Member: m, Balance: b})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Balance != standings[j].Balance {
			return standings[i].Balance > standings[j].Balance
		}
		return standings[i].Member < standings[j].Member
	})
	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return standings
}
