package state

import (
	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/genesis"
	"github.com/cellchain/cellchain/foundation/cellchain/peer"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveHost returns a copy of the host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveLatestBlock returns a copy of the current chain tail.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChainLength returns the number of blocks in the chain including
// genesis.
func (s *State) RetrieveChainLength() uint64 {
	return s.db.LatestBlock().Header.Number + 1
}

// QueryBlock returns the block stored under the specified number.
func (s *State) QueryBlock(num uint64) (database.Block, error) {
	return s.db.GetBlock(num)
}

// RetrieveMempool returns a copy of the pending transactions.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.PickBest(-1)
}

// QueryMempoolLength returns the current number of pending transactions.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// RetrieveAccounts returns a copy of every account in the store.
func (s *State) RetrieveAccounts() map[scda.AccountID]scda.Account {
	return s.db.CopyAccounts()
}

// QueryAccount returns a copy of the specified account.
func (s *State) QueryAccount(accountID scda.AccountID) (scda.Account, error) {
	return s.db.GetAccount(accountID)
}

// RetrieveKnownPeers retrieves the set of peers this node shares blocks
// with, excluding itself.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}
