package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
	"github.com/cellchain/cellchain/foundation/cellchain/merkle"
	"github.com/cellchain/cellchain/foundation/cellchain/pohd"
	"github.com/cellchain/cellchain/foundation/cellchain/signature"
)

// The block-level failure classes. Any one of them rejects the whole block,
// nothing is partially applied.
var (
	ErrChainLinkage   = errors.New("chain linkage violation")
	ErrInvalidNonce   = errors.New("nonce does not satisfy the consensus predicate")
	ErrMalformedBlock = errors.New("malformed block")
)

// =============================================================================

// BlockHeader represents the fields every block commits to. The hash is
// taken over the canonical JSON of this struct, the transaction list is
// committed through the merkle root.
type BlockHeader struct {
	Number        uint64  `json:"number"`          // Block number in the chain, genesis is 0.
	TimeStamp     uint64  `json:"timestamp"`       // Time the block was mined.
	PrevBlockHash string  `json:"prev_block_hash"` // Hash of the previous block in the chain.
	Nonce         uint64  `json:"nonce"`           // Value discovered by the PoHD search.
	Difficulty    float64 `json:"difficulty"`      // Difficulty the nonce was searched under.
	TransRoot     string  `json:"trans_root"`      // Merkle root of the transactions in this block.
}

// Block represents a group of transactions batched together with the nonce
// that places the block inside the target distance.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
}

// Genesis returns the fixed first block of the chain. It carries no
// transactions and is exempt from the consensus predicate.
func Genesis(timestamp time.Time) Block {
	return Block{
		Header: BlockHeader{
			Number:        0,
			TimeStamp:     uint64(timestamp.UTC().Unix()),
			PrevBlockHash: signature.ZeroHash,
		},
	}
}

// Hash returns the unique hash for the block. The genesis block hashes to
// the zero hash so the first mined block links to a fixed value.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return signature.ZeroHash
	}

	return signature.Hash(b.Header)
}

// hashWithNonce hashes a copy of the header carrying the specified nonce.
// Used by the mining search, safe for concurrent use.
func (b Block) hashWithNonce(nonce uint64) string {
	header := b.Header
	header.Nonce = nonce
	return signature.Hash(header)
}

// Position returns the 8D coordinate derived from the block's hash.
func (b Block) Position() hyper.Vector {
	position, err := pohd.Position(b.Hash())
	if err != nil {
		return hyper.Vector{}
	}
	return position
}

// =============================================================================

// Mine constructs the next block for the specified transactions and searches
// for a nonce satisfying the consensus predicate. The search runs across the
// specified number of goroutines and is abandoned when the context is
// cancelled.
func Mine(ctx context.Context, difficulty float64, workers int, prevBlock Block, trans []Tx, ev func(v string, args ...any)) (Block, error) {
	if len(trans) == 0 {
		return Block{}, errors.New("cannot mine a block without transactions")
	}

	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Header: BlockHeader{
			Number:        prevBlock.Header.Number + 1,
			TimeStamp:     uint64(time.Now().UTC().Unix()),
			PrevBlockHash: prevBlock.Hash(),
			Difficulty:    difficulty,
			TransRoot:     tree.MerkleRootHex(),
		},
		Trans: tree,
	}

	ev("database: Mine: MINING: blk[%d]: txs[%d]: target distance[%.6f]", nb.Header.Number, len(trans), pohd.TargetDistance(difficulty))

	solution, err := pohd.Mine(ctx, difficulty, workers, nb.hashWithNonce)
	if err != nil {
		return Block{}, err
	}

	nb.Header.Nonce = solution.Nonce

	ev("database: Mine: MINING: SOLVED: blk[%d]: nonce[%d]: attempts[%d]: distance[%.6f]",
		nb.Header.Number, solution.Nonce, solution.Attempts, pohd.Distance(solution.Position))

	return nb, nil
}

// =============================================================================

// ValidateBlock checks the block can be appended after the specified
// previous block: linkage, recomputed hash, consensus predicate, and
// structural transaction validity. Account-level transaction checks are the
// database's job in ApplyBlock.
func (b Block) ValidateBlock(previousBlock Block, stated string, ev func(v string, args ...any)) error {
	ev("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: block number got %d, exp %d", ErrChainLinkage, b.Header.Number, nextNumber)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: parent hash matches parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("%w: parent hash got %s, exp %s", ErrChainLinkage, b.Header.PrevBlockHash, previousBlock.Hash())
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: stated hash matches recomputation", b.Header.Number)

	if stated != b.Hash() {
		return fmt.Errorf("%w: stated hash %s does not match recomputed %s", ErrMalformedBlock, stated, b.Hash())
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: merkle root matches transactions", b.Header.Number)

	if b.Trans == nil || len(b.Trans.Values()) == 0 {
		return fmt.Errorf("%w: block carries no transactions", ErrMalformedBlock)
	}

	if b.Header.TransRoot != b.Trans.MerkleRootHex() {
		return fmt.Errorf("%w: merkle root got %s, exp %s", ErrMalformedBlock, b.Trans.MerkleRootHex(), b.Header.TransRoot)
	}

	for _, tx := range b.Trans.Values() {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("%w: tx[%s]: %s", ErrMalformedBlock, tx, err)
		}
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: consensus predicate holds", b.Header.Number)

	if !pohd.Solved(b.Header.Difficulty, b.Hash()) {
		return fmt.Errorf("%w: distance %.6f outside target %.6f", ErrInvalidNonce, pohd.Distance(b.Position()), pohd.TargetDistance(b.Header.Difficulty))
	}

	if previousBlock.Header.TimeStamp > 0 {
		ev("database: ValidateBlock: validate: blk[%d]: check: timestamp after parent", b.Header.Number)

		parentTime := time.Unix(int64(previousBlock.Header.TimeStamp), 0)
		blockTime := time.Unix(int64(b.Header.TimeStamp), 0)
		if blockTime.Before(parentTime) {
			return fmt.Errorf("%w: block timestamp %s before parent %s", ErrMalformedBlock, blockTime, parentTime)
		}
	}

	return nil
}

// =============================================================================

// BlockData represents what is serialized to storage and exchanged between
// nodes. The hash and position are stated values that every reader
// recomputes and checks.
type BlockData struct {
	Hash     string       `json:"hash"`
	Position hyper.Vector `json:"position"`
	Header   BlockHeader  `json:"block"`
	Trans    []Tx         `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	var trans []Tx
	if block.Trans != nil {
		trans = block.Trans.Values()
	}

	return BlockData{
		Hash:     block.Hash(),
		Position: block.Position(),
		Header:   block.Header,
		Trans:    trans,
	}
}

// ToBlock converts serialized block data back into a block.
func ToBlock(blockData BlockData) (Block, error) {
	if blockData.Header.Number == 0 {
		return Block{Header: blockData.Header}, nil
	}

	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	return Block{
		Header: blockData.Header,
		Trans:  tree,
	}, nil
}
