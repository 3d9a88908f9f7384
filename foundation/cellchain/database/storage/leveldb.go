package storage

import (
	"encoding/binary"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
)

// latestKey tracks the highest block number written so the iterator knows
// where the chain ends.
var latestKey = []byte("chain:latest")

// LevelDB reads and stores blocks in a LevelDB key/value store with msgpack
// encoded values. This is the backend for long running nodes.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens or creates the LevelDB database at the specified path.
func NewLevelDB(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDB{db: db}, nil
}

// Close closes the underlying LevelDB handle.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Write takes the specified block data and stores it under its block number.
func (l *LevelDB) Write(blockData database.BlockData) error {
	data, err := msgpack.Marshal(blockData)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(blockKey(blockData.Header.Number), data)
	batch.Put(latestKey, blockKey(blockData.Header.Number))

	return l.db.Write(batch, nil)
}

// GetBlock locates and returns the contents of the specified block by
// number.
func (l *LevelDB) GetBlock(num uint64) (database.BlockData, error) {
	data, err := l.db.Get(blockKey(num), nil)
	if err != nil {
		return database.BlockData{}, err
	}

	var blockData database.BlockData
	if err := msgpack.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (l *LevelDB) ForEach() database.Iterator {
	return &levelDBIterator{storage: l}
}

// Reset clears out the chain from the store.
func (l *LevelDB) Reset() error {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}

	return l.db.Write(batch, nil)
}

// blockKey forms the key for the specified block number. Big-endian so keys
// sort in chain order.
func blockKey(num uint64) []byte {
	key := make([]byte, 14)
	copy(key, "block:")
	binary.BigEndian.PutUint64(key[6:], num)
	return key
}

// =============================================================================

// levelDBIterator walks the blocks in the store. Implements the database
// Iterator interface.
type levelDBIterator struct {
	storage *LevelDB
	current uint64
	eoc     bool
}

// Next retrieves the next block from the store.
func (li *levelDBIterator) Next() (database.BlockData, error) {
	if li.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	li.current++
	blockData, err := li.storage.GetBlock(li.current)
	if errors.Is(err, ldberrors.ErrNotFound) {
		li.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (li *levelDBIterator) Done() bool {
	return li.eoc
}
