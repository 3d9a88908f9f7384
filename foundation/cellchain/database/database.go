// Package database handles the lower level support for maintaining the
// chain in storage and maintaining an in-memory database of account state.
package database

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cellchain/cellchain/foundation/cellchain/evolution"
	"github.com/cellchain/cellchain/foundation/cellchain/genesis"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// Account-level failure classes.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// Serializer interface represents the behavior required to be implemented by
// any package providing support for storing and reading the chain.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Database manages account state and the chain tail. Accounts are mutated
// only by applying block transactions; per-account serialization for the
// submission path is provided through LockAccount.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	accounts    map[scda.AccountID]scda.Account

	lockMu       sync.Mutex
	accountLocks map[scda.AccountID]*sync.Mutex

	serializer Serializer
}

// New constructs a new database, seeds the genesis accounts, and replays any
// blocks found in storage.
func New(gen genesis.Genesis, serializer Serializer, ev func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:      gen,
		latestBlock:  Genesis(gen.Date),
		accounts:     make(map[scda.AccountID]scda.Account),
		accountLocks: make(map[scda.AccountID]*sync.Mutex),
		serializer:   serializer,
	}

	for accountStr, energy := range gen.Accounts {
		accountID, err := scda.ToAccountID(accountStr)
		if err != nil {
			return nil, err
		}
		db.accounts[accountID] = scda.NewAccount(accountID, energy)
	}

	// Replay the chain from storage. Every block is re-validated and every
	// transaction re-applied so a corrupted store cannot load.
	iter := db.serializer.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if err := block.ValidateBlock(db.latestBlock, blockData.Hash, ev); err != nil {
			return nil, err
		}

		for _, tx := range block.Trans.Values() {
			if err := db.ApplyTransaction(tx); err != nil {
				return nil, fmt.Errorf("replay blk[%d]: %w", block.Header.Number, err)
			}
		}

		db.latestBlock = block
	}

	return &db, nil
}

// Close closes the open blocks database.
func (db *Database) Close() {
	db.serializer.Close()
}

// Reset re-initializes the database back to the genesis state.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.serializer.Reset(); err != nil {
		return err
	}

	db.latestBlock = Genesis(db.genesis.Date)
	db.accounts = make(map[scda.AccountID]scda.Account)
	for accountStr, energy := range db.genesis.Accounts {
		accountID, err := scda.ToAccountID(accountStr)
		if err != nil {
			return err
		}
		db.accounts[accountID] = scda.NewAccount(accountID, energy)
	}

	return nil
}

// =============================================================================

// LockAccount acquires the mutation lock for the specified account and
// returns the release function. All evolution computation for one account
// must happen inside this scope; different accounts proceed in parallel.
func (db *Database) LockAccount(accountID scda.AccountID) func() {
	db.lockMu.Lock()
	mu, exists := db.accountLocks[accountID]
	if !exists {
		mu = &sync.Mutex{}
		db.accountLocks[accountID] = mu
	}
	db.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// CreateAccount registers a new account with the default starting state.
func (db *Database) CreateAccount(accountID scda.AccountID) (scda.Account, error) {
	if !accountID.IsAccountID() {
		return scda.Account{}, errors.New("invalid account id format")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.accounts[accountID]; exists {
		return scda.Account{}, ErrAccountExists
	}

	account := scda.NewAccount(accountID, db.genesis.StartingEnergy)
	db.accounts[accountID] = account

	return account, nil
}

// GetAccount retrieves a copy of the specified account.
func (db *Database) GetAccount(accountID scda.AccountID) (scda.Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	if !exists {
		return scda.Account{}, ErrAccountNotFound
	}

	return account.Copy(), nil
}

// UpsertAccount writes the account to the store, last writer wins. The
// core's call pattern guarantees a single writer per account id.
func (db *Database) UpsertAccount(account scda.Account) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.accounts[account.AccountID] = account
}

// CopyAccounts makes a copy of the current account states in the database.
func (db *Database) CopyAccounts() map[scda.AccountID]scda.Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[scda.AccountID]scda.Account, len(db.accounts))
	for accountID, account := range db.accounts {
		accounts[accountID] = account.Copy()
	}

	return accounts
}

// =============================================================================

// CheckTransaction validates the transaction against current account state
// without mutating anything. A stale or unpayable transaction fails here.
func (db *Database) CheckTransaction(tx Tx) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return checkTransaction(db.accounts, tx)
}

// CheckTransactions validates the ordered batch by applying it to a scratch
// copy of the accounts, exactly the way block application will. Two
// transactions touching the same account can each pass in isolation yet
// fail in sequence, so the miner must select with this check. On failure
// the index of the offending transaction is returned.
func (db *Database) CheckTransactions(txs []Tx) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	scratch := make(map[scda.AccountID]scda.Account, len(db.accounts))
	for accountID, account := range db.accounts {
		scratch[accountID] = account.Copy()
	}

	for i, tx := range txs {
		if err := applyTransaction(scratch, tx); err != nil {
			return i, err
		}
	}

	return -1, nil
}

func checkTransaction(accounts map[scda.AccountID]scda.Account, tx Tx) error {
	account, exists := accounts[tx.AccountID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, tx.AccountID)
	}

	switch tx.Kind {
	case TxKindSolve:
		if math.Abs(account.ComplexityIndex-tx.Evolution.PriorComplexity) > evolution.Tolerance {
			return fmt.Errorf("stale transaction: account complexity %.9f, tx prior %.9f", account.ComplexityIndex, tx.Evolution.PriorComplexity)
		}
		if math.Abs(account.Energy-tx.Evolution.PriorEnergy) > evolution.Tolerance {
			return fmt.Errorf("stale transaction: account energy %.9f, tx prior %.9f", account.Energy, tx.Evolution.PriorEnergy)
		}
		return nil

	case TxKindTransfer:
		if _, exists := accounts[tx.Transfer.ToID]; !exists {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, tx.Transfer.ToID)
		}
		if account.Energy < tx.Transfer.Amount {
			return fmt.Errorf("insufficient energy %.4f for transfer of %.4f", account.Energy, tx.Transfer.Amount)
		}
		return nil

	default:
		return fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}
}

// applyTransaction validates and applies a transaction to the specified
// account set.
func applyTransaction(accounts map[scda.AccountID]scda.Account, tx Tx) error {
	if err := checkTransaction(accounts, tx); err != nil {
		return err
	}

	switch tx.Kind {
	case TxKindSolve:
		updated, err := evolution.ApplyEvent(accounts[tx.AccountID], *tx.Evolution)
		if err != nil {
			return err
		}
		accounts[tx.AccountID] = updated

	case TxKindTransfer:
		from := accounts[tx.AccountID]
		to := accounts[tx.Transfer.ToID]

		from.Energy -= tx.Transfer.Amount
		to.Energy = math.Min(to.Energy+tx.Transfer.Amount, scda.EnergyCap(to.Tier))

		accounts[tx.AccountID] = from
		accounts[tx.Transfer.ToID] = to
	}

	return nil
}

// ApplyTransaction performs the business logic for applying a transaction to
// the account database.
func (db *Database) ApplyTransaction(tx Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return applyTransaction(db.accounts, tx)
}

// ApplyBlock applies every transaction of the block to the account database
// and advances the chain tail. The application is atomic: any transaction
// failure rejects the whole block and no account changes.
func (db *Database) ApplyBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	scratch := make(map[scda.AccountID]scda.Account, len(db.accounts))
	for accountID, account := range db.accounts {
		scratch[accountID] = account.Copy()
	}

	for _, tx := range block.Trans.Values() {
		if err := applyTransaction(scratch, tx); err != nil {
			return fmt.Errorf("tx[%s]: %w", tx, err)
		}
	}

	db.accounts = scratch
	db.latestBlock = block

	return nil
}

// =============================================================================

// UpdateLatestBlock provides safe access to update the chain tail.
func (db *Database) UpdateLatestBlock(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.latestBlock = block
}

// LatestBlock returns the current chain tail.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// Write adds a new block to storage.
func (db *Database) Write(block Block) error {
	return db.serializer.Write(NewBlockData(block))
}

// GetBlock locates and returns the specified block by number from storage.
func (db *Database) GetBlock(num uint64) (Block, error) {
	if num == 0 {
		return Genesis(db.genesis.Date), nil
	}

	blockData, err := db.serializer.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (db *Database) ForEach() DatabaseIterator {
	return DatabaseIterator{iterator: db.serializer.ForEach()}
}

// =============================================================================

// DatabaseIterator provides block iteration over the serializer.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}
