// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// List of different select strategies.
const (
	StrategyFIFO       = "fifo"
	StrategyDifficulty = "difficulty"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFIFO:       fifoSelect,
	StrategyDifficulty: difficultySelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// account and selects howMany of them in an order based on the function's
// strategy. All selector functions MUST keep each account's transactions in
// submission order since evolution events chain off each other. Receiving -1
// for howMany must return all the transactions in the strategy's ordering.
type Func func(transactions map[scda.AccountID][]database.Tx, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byTimeStamp provides sorting support by the transaction submission time.
type byTimeStamp []database.Tx

// Len returns the number of transactions in the list.
func (bt byTimeStamp) Len() int {
	return len(bt)
}

// Less helps to sort the list by timestamp in ascending order to keep the
// transactions in the order they were submitted.
func (bt byTimeStamp) Less(i, j int) bool {
	return bt[i].TimeStamp < bt[j].TimeStamp
}

// Swap moves transactions in the order of the timestamp value.
func (bt byTimeStamp) Swap(i, j int) {
	bt[i], bt[j] = bt[j], bt[i]
}

// sortAccounts orders each account's transactions by submission time and
// returns the account ids in a deterministic order.
func sortAccounts(m map[scda.AccountID][]database.Tx) []scda.AccountID {
	accounts := make([]scda.AccountID, 0, len(m))
	for accountID := range m {
		sort.Stable(byTimeStamp(m[accountID]))
		accounts = append(accounts, accountID)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	return accounts
}
