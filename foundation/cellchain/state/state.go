// Package state is the core API for the chain and implements all the
// business rules and processing.
package state

import (
	"sync"

	"golang.org/x/exp/rand"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/genesis"
	"github.com/cellchain/cellchain/foundation/cellchain/mempool"
	"github.com/cellchain/cellchain/foundation/cellchain/peer"
	"github.com/cellchain/cellchain/foundation/cellchain/validation"
)

// EventHandler defines a function that is called when events occur in the
// processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start the chain node.
type Config struct {
	Genesis        genesis.Genesis
	Storage        database.Serializer
	Scorer         validation.Scorer
	Rand           *rand.Rand
	SelectStrategy string
	MiningWorkers  int
	Host           string
	KnownPeers     *peer.PeerSet
	EvHandler      EventHandler
}

// State manages the chain database and account evolution.
type State struct {
	mu sync.Mutex

	genesis       genesis.Genesis
	host          string
	miningWorkers int
	evHandler     EventHandler

	ingestHalted bool

	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool
	db         *database.Database
	pipeline   *validation.Pipeline

	rngMu sync.Mutex
	rng   *rand.Rand

	// Assigned by the worker package when it registers itself.
	Worker Worker
}

// New constructs a new chain node state for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	mpool, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	state := State{
		genesis:       cfg.Genesis,
		host:          cfg.Host,
		miningWorkers: cfg.MiningWorkers,
		evHandler:     ev,
		knownPeers:    cfg.KnownPeers,
		mempool:       mpool,
		db:            db,
		pipeline:      validation.NewPipeline(cfg.Scorer),
		rng:           cfg.Rand,
	}

	// The Worker is not set here. The call to worker.Run will assign
	// itself and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	defer func() {
		s.db.Close()
	}()

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// IsIngestHalted reports whether a corruption-class block failure has halted
// ingestion of further proposed blocks.
func (s *State) IsIngestHalted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ingestHalted
}
