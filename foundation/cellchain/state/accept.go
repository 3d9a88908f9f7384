package state

import (
	"errors"
	"fmt"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
)

// ErrIngestHalted is returned when a previous corruption-class failure has
// stopped this node from ingesting proposed blocks.
var ErrIngestHalted = errors.New("block ingestion halted after corruption-class failure")

// ProcessProposedBlock takes a block mined elsewhere, validates it and, if
// that passes, applies it atomically. The first accepted block at an index
// wins; any in-flight local mining is cancelled either way.
func (s *State) ProcessProposedBlock(blockData database.BlockData) error {
	s.evHandler("state: ProcessProposedBlock: started: blk[%s]", blockData.Hash)
	defer s.evHandler("state: ProcessProposedBlock: completed")

	// If a mining operation is running it needs to stop immediately. The
	// G executing the search will not terminate until done is called,
	// which allows this function to complete its state changes first.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal mining to terminate")
		done()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ingestHalted {
		return ErrIngestHalted
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return fmt.Errorf("%w: %s", database.ErrMalformedBlock, err)
	}

	if err := block.ValidateBlock(s.db.LatestBlock(), blockData.Hash, s.evHandler); err != nil {

		// Hash mismatches and linkage violations mean the source is
		// corrupt or hostile. Stop ingesting from it; this is never
		// auto-corrected.
		if errors.Is(err, database.ErrMalformedBlock) || errors.Is(err, database.ErrChainLinkage) {
			s.ingestHalted = true
			s.evHandler("state: ProcessProposedBlock: HALT: %s", err)
		}
		return err
	}

	// Account-level validation and application are atomic: any stale or
	// inconsistent transaction rejects the whole block.
	if err := s.db.ApplyBlock(block); err != nil {
		return fmt.Errorf("%w: %s", database.ErrMalformedBlock, err)
	}

	if err := s.db.Write(block); err != nil {
		return err
	}

	// A transaction mined elsewhere supersedes our pending copy.
	for _, tx := range block.Trans.Values() {
		s.mempool.Delete(tx)
	}

	return nil
}
