package state

import (
	"context"
	"errors"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created and
// there are no minable transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// errStaleBlock signals the mined block no longer fits the chain because the
// tail or the accounts moved mid-search. The miner re-reads and retries.
var errStaleBlock = errors.New("mined block is stale")

// MineNewBlock attempts to create a new block with a nonce satisfying the
// consensus predicate that can become the next block in the chain. The
// search restarts if the chain tail or account state moves mid-search.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	for {
		s.evHandler("state: MineNewBlock: MINING: select transactions")

		trans := s.pickFreshTransactions()
		if len(trans) == 0 {
			return database.Block{}, ErrNoTransactions
		}

		// Snapshot the tail right before the search starts.
		tail := s.db.LatestBlock()

		s.evHandler("state: MineNewBlock: MINING: perform PoHD: blk[%d]: txs[%d]", tail.Header.Number+1, len(trans))

		block, err := database.Mine(ctx, s.genesis.Difficulty, s.miningWorkers, tail, trans, s.evHandler)
		if err != nil {
			return database.Block{}, err
		}

		if ctx.Err() != nil {
			return database.Block{}, ctx.Err()
		}

		s.evHandler("state: MineNewBlock: MINING: update local state")

		if err := s.acceptMinedBlock(block); err != nil {
			if errors.Is(err, errStaleBlock) {
				s.evHandler("state: MineNewBlock: MINING: stale block, restart search")
				continue
			}
			return database.Block{}, err
		}

		return block, nil
	}
}

// pickFreshTransactions selects the next batch from the mempool. The batch
// must apply in order the way the block will, so offenders are dropped one
// at a time until the remainder applies cleanly. A transaction that is
// stale on its own is removed from the mempool as well; one that only
// conflicts inside this batch stays queued for a later block.
func (s *State) pickFreshTransactions() []database.Tx {
	txs := s.mempool.PickBest(int(s.genesis.TransPerBlock))

	for len(txs) > 0 {
		i, err := s.db.CheckTransactions(txs)
		if err == nil {
			break
		}

		s.evHandler("state: pickFreshTransactions: WARNING: drop tx[%s]: %s", txs[i], err)
		if err := s.db.CheckTransaction(txs[i]); err != nil {
			s.mempool.Delete(txs[i])
		}
		txs = append(txs[:i], txs[i+1:]...)
	}

	return txs
}

// acceptMinedBlock writes a locally mined block to the chain. The tail and
// every transaction are re-checked under the state lock since both can have
// moved while the nonce search ran.
func (s *State) acceptMinedBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := s.db.LatestBlock()
	if block.Header.PrevBlockHash != tail.Hash() || block.Header.Number != tail.Header.Number+1 {
		return errStaleBlock
	}

	txs := block.Trans.Values()
	if i, err := s.db.CheckTransactions(txs); err != nil {
		s.evHandler("state: acceptMinedBlock: WARNING: stale tx[%s]: %s", txs[i], err)
		if err := s.db.CheckTransaction(txs[i]); err != nil {
			s.mempool.Delete(txs[i])
		}
		return errStaleBlock
	}

	if err := s.db.ApplyBlock(block); err != nil {
		s.evHandler("state: acceptMinedBlock: WARNING: apply failed: %s", err)
		return errStaleBlock
	}

	if err := s.db.Write(block); err != nil {
		return err
	}

	for _, tx := range block.Trans.Values() {
		s.mempool.Delete(tx)
	}

	return nil
}
