package selector

import (
	"sort"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// fifoSelect returns transactions in submission order across all accounts
// while keeping each account's own transactions in order.
var fifoSelect = func(m map[scda.AccountID][]database.Tx, howMany int) []database.Tx {
	var all []database.Tx
	for _, accountID := range sortAccounts(m) {
		all = append(all, m[accountID]...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].TimeStamp < all[j].TimeStamp })

	if howMany == -1 || howMany > len(all) {
		howMany = len(all)
	}

	return all[:howMany]
}
