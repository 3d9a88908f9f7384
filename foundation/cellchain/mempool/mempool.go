// Package mempool maintains the pool of transactions waiting to be mined
// into a block.
package mempool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/mempool/selector"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// Mempool represents a cache of transactions organized by account with a
// second key on the transaction's unique reference. A resubmitted solution
// for the same problem replaces the pending one.
type Mempool struct {
	pool     map[string]database.Tx
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyFIFO)
}

// NewWithStrategy constructs a new mempool with the specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool.
func (mp *Mempool) Upsert(tx database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[mapKey(tx)] = tx

	return len(mp.pool)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(tx))
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
}

// PickBest uses the configured sort strategy to return the next set of
// transactions for the next block. Passing -1 returns them all.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	m := make(map[scda.AccountID][]database.Tx)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for key, tx := range mp.pool {
			accountID := scda.AccountID(strings.Split(key, "|")[0])
			m[accountID] = append(m[accountID], tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, howMany)
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.Tx) string {
	return fmt.Sprintf("%s|%s", tx.AccountID, tx.UniqueRef())
}
