package selector

import (
	"sort"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// difficulty returns the problem difficulty a transaction contributes to the
// chain, zero for transfers.
func difficulty(tx database.Tx) float64 {
	if tx.Kind == database.TxKindSolve && tx.Evolution != nil {
		return tx.Evolution.Difficulty
	}
	return 0
}

// difficultySelect prefers the accounts whose pending work carries the most
// total difficulty, so hard problems land on the chain first. Each account's
// transactions stay in submission order.
var difficultySelect = func(m map[scda.AccountID][]database.Tx, howMany int) []database.Tx {
	accounts := sortAccounts(m)

	sort.SliceStable(accounts, func(i, j int) bool {
		var di, dj float64
		for _, tx := range m[accounts[i]] {
			di += difficulty(tx)
		}
		for _, tx := range m[accounts[j]] {
			dj += difficulty(tx)
		}
		return di > dj
	})

	var all []database.Tx
	for _, accountID := range accounts {
		all = append(all, m[accountID]...)
	}

	if howMany == -1 || howMany > len(all) {
		howMany = len(all)
	}

	return all[:howMany]
}
