package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/database/storage"
	"github.com/cellchain/cellchain/foundation/cellchain/evolution"
	"github.com/cellchain/cellchain/foundation/cellchain/genesis"
	"github.com/cellchain/cellchain/foundation/cellchain/oracle"
	"github.com/cellchain/cellchain/foundation/cellchain/peer"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
	"github.com/cellchain/cellchain/foundation/cellchain/state"
	"github.com/cellchain/cellchain/foundation/cellchain/validation"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

// nopWorker satisfies the state Worker interface so tests can drive mining
// directly without the worker goroutines.
type nopWorker struct{}

func (nopWorker) Shutdown()                         {}
func (nopWorker) SignalStartMining()                {}
func (nopWorker) SignalCancelMining() (done func()) { return func() {} }

func testGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:           time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:        88,
		TransPerBlock:  16,
		Difficulty:     2,
		StartingEnergy: 100,
		Accounts: map[string]float64{
			"cell-alpha": 100,
			"cell-beta":  100,
		},
	}
}

func newState(t *testing.T, scorer validation.Scorer) *state.State {
	strg, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open memory storage: %v", failed, err)
	}

	st, err := state.New(state.Config{
		Genesis:        testGenesis(),
		Storage:        strg,
		Scorer:         scorer,
		Rand:           rand.New(rand.NewSource(1)),
		SelectStrategy: "fifo",
		MiningWorkers:  4,
		Host:           "0.0.0.0:9080",
		KnownPeers:     peer.NewPeerSet(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	st.Worker = nopWorker{}

	return st
}

func goodScorer() validation.Scorer {
	return oracle.Static{Scores: validation.Scores{
		Correctness:  0.9,
		Completeness: 0.9,
		Coherence:    0.9,
		Novelty:      0.5,
	}}
}

// growComplexity commits a peer-style block carrying a chain of evolution
// events so the account's committed complexity rises enough for the
// probabilistic gate to pass with a workable rate. Each event computes
// against the state left by the previous one, which is exactly what block
// application expects.
func growComplexity(t *testing.T, st *state.State, accountID scda.AccountID, events int) scda.Account {
	account, err := st.QueryAccount(accountID)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query account %s: %v", failed, accountID, err)
	}

	problem := scda.Problem{
		ProblemID:  "bootstrap",
		Difficulty: 1,
		Domains:    []scda.Domain{scda.DomainLogic},
	}

	rng := rand.New(rand.NewSource(99))
	var txs []database.Tx
	for i := 0; i < events; i++ {
		problem.ProblemID = "bootstrap-" + string(rune('a'+i%26)) + string(rune('a'+i/26))

		updated, ev, err := evolution.Apply(account, problem, 1, rng)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to compute a bootstrap evolution: %v", failed, err)
		}
		txs = append(txs, database.NewSolveTx(accountID, ev))
		account = updated
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	block, err := database.Mine(ctx, 1, 4, st.RetrieveLatestBlock(), txs, func(v string, args ...any) {})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine the bootstrap block: %v", failed, err)
	}

	if err := st.ProcessProposedBlock(database.NewBlockData(block)); err != nil {
		t.Fatalf("\t%s\tShould be able to commit the bootstrap block: %v", failed, err)
	}

	committed, err := st.QueryAccount(accountID)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query account %s: %v", failed, accountID, err)
	}
	return committed
}

// submitAccepted retries a submission until the probabilistic gate passes.
func submitAccepted(t *testing.T, st *state.State, accountID scda.AccountID, problem scda.Problem) state.SubmitResult {
	for i := 0; i < 500; i++ {
		result, err := st.SubmitSolution(context.Background(), accountID, problem, "a worked proof")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to submit the solution: %v", failed, err)
		}
		if result.Accepted {
			return result
		}
	}

	t.Fatalf("\t%s\tShould eventually pass the probabilistic gate.", failed)
	return state.SubmitResult{}
}

// =============================================================================

func Test_SubmitAndMine(t *testing.T) {
	t.Log("Given the need to take a solution from submission to a mined block.")
	{
		t.Logf("\tTest 0:\tWhen submitting an accepted solution and mining.")
		{
			st := newState(t, goodScorer())
			defer st.Shutdown()

			before := growComplexity(t, st, "cell-alpha", 30)

			problem := scda.Problem{
				ProblemID:  "prob-1",
				Difficulty: 0.5,
				Domains:    []scda.Domain{scda.DomainMathematics},
			}

			result := submitAccepted(t, st, "cell-alpha", problem)
			t.Logf("\t%s\tTest 0:\tShould eventually pass the probabilistic gate.", success)

			if result.ComplexityDelta <= 0 {
				t.Fatalf("\t%s\tTest 0:\tShould report a positive complexity delta.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report a positive complexity delta.", success)

			if st.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould queue one evolution event, got %d", failed, st.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest 0:\tShould queue one evolution event.", success)

			// The committed state must not move before the block lands.
			account, err := st.QueryAccount("cell-alpha")
			if err != nil || account.ComplexityIndex != before.ComplexityIndex {
				t.Fatalf("\t%s\tTest 0:\tShould not change committed state at submission.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not change committed state at submission.", success)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			block, err := st.MineNewBlock(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to mine the block.", success)

			if block.Header.Number != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould mine block number 2, got %d", failed, block.Header.Number)
			}
			t.Logf("\t%s\tTest 0:\tShould mine block number 2.", success)

			account, err = st.QueryAccount("cell-alpha")
			if err != nil || account.ComplexityIndex <= before.ComplexityIndex {
				t.Fatalf("\t%s\tTest 0:\tShould evolve the account at block acceptance, got complexity %.6f", failed, account.ComplexityIndex)
			}
			t.Logf("\t%s\tTest 0:\tShould evolve the account at block acceptance.", success)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould drain the mined transaction from the mempool.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drain the mined transaction from the mempool.", success)

			if st.RetrieveChainLength() != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould count genesis plus two blocks, got %d", failed, st.RetrieveChainLength())
			}
			t.Logf("\t%s\tTest 0:\tShould count genesis plus two blocks.", success)
		}

		t.Logf("\tTest 1:\tWhen submitting while an evolution is already pending.")
		{
			st := newState(t, goodScorer())
			defer st.Shutdown()

			growComplexity(t, st, "cell-alpha", 30)

			problem := scda.Problem{
				ProblemID:  "prob-1",
				Difficulty: 0.5,
				Domains:    []scda.Domain{scda.DomainMathematics},
			}

			submitAccepted(t, st, "cell-alpha", problem)

			problem.ProblemID = "prob-2"
			_, err := st.SubmitSolution(context.Background(), "cell-alpha", problem, "another proof")
			if !errors.Is(err, state.ErrPendingEvolution) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrPendingEvolution, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrPendingEvolution.", success)
		}

		t.Logf("\tTest 2:\tWhen the oracle is down.")
		{
			st := newState(t, oracle.Static{Err: errors.New("connection refused")})
			defer st.Shutdown()

			problem := scda.Problem{
				ProblemID:  "prob-1",
				Difficulty: 0.5,
				Domains:    []scda.Domain{scda.DomainMathematics},
			}

			_, err := st.SubmitSolution(context.Background(), "cell-alpha", problem, "a proof")
			if !errors.Is(err, validation.ErrOracleUnavailable) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrOracleUnavailable, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrOracleUnavailable.", success)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould queue nothing.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould queue nothing.", success)
		}

		t.Logf("\tTest 3:\tWhen mining with an empty mempool.")
		{
			st := newState(t, goodScorer())
			defer st.Shutdown()

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
				t.Fatalf("\t%s\tTest 3:\tShould get ErrNoTransactions, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould get ErrNoTransactions.", success)
		}
	}
}

func Test_Transfers(t *testing.T) {
	t.Log("Given the need to move energy between accounts through the chain.")
	{
		t.Logf("\tTest 0:\tWhen submitting and mining a transfer.")
		{
			st := newState(t, goodScorer())
			defer st.Shutdown()

			if _, err := st.SubmitTransfer("cell-alpha", "cell-beta", 30); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit the transfer: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to submit the transfer.", success)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			if _, err := st.MineNewBlock(ctx); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to mine the block.", success)

			alpha, _ := st.QueryAccount("cell-alpha")
			beta, _ := st.QueryAccount("cell-beta")
			if alpha.Energy != 70 || beta.Energy != 130 {
				t.Fatalf("\t%s\tTest 0:\tShould settle the transfer, got %.2f and %.2f", failed, alpha.Energy, beta.Energy)
			}
			t.Logf("\t%s\tTest 0:\tShould settle the transfer.", success)
		}

		t.Logf("\tTest 1:\tWhen the sender cannot cover the transfer.")
		{
			st := newState(t, goodScorer())
			defer st.Shutdown()

			if _, err := st.SubmitTransfer("cell-alpha", "cell-beta", 1_000_000); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the transfer at submission.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the transfer at submission.", success)
		}
	}
}

func Test_ProposedBlocks(t *testing.T) {
	t.Log("Given the need to accept blocks mined by peers.")
	{
		t.Logf("\tTest 0:\tWhen a peer proposes the next valid block.")
		{
			// Two nodes over the same genesis. The first mines, the second
			// ingests the proposed block.
			miner := newState(t, goodScorer())
			defer miner.Shutdown()

			follower := newState(t, goodScorer())
			defer follower.Shutdown()

			if _, err := miner.SubmitTransfer("cell-alpha", "cell-beta", 30); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit the transfer: %v", failed, err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			block, err := miner.MineNewBlock(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine the block: %v", failed, err)
			}

			if err := follower.ProcessProposedBlock(database.NewBlockData(block)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the proposed block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the proposed block.", success)

			beta, _ := follower.QueryAccount("cell-beta")
			if beta.Energy != 130 {
				t.Fatalf("\t%s\tTest 0:\tShould apply the block to the follower, got %.2f", failed, beta.Energy)
			}
			t.Logf("\t%s\tTest 0:\tShould apply the block to the follower.", success)

			if follower.RetrieveLatestBlock().Hash() != block.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould advance the follower's tail.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould advance the follower's tail.", success)
		}

		t.Logf("\tTest 1:\tWhen a peer states a hash that does not recompute.")
		{
			miner := newState(t, goodScorer())
			defer miner.Shutdown()

			follower := newState(t, goodScorer())
			defer follower.Shutdown()

			if _, err := miner.SubmitTransfer("cell-alpha", "cell-beta", 30); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to submit the transfer: %v", failed, err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			block, err := miner.MineNewBlock(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine the block: %v", failed, err)
			}

			blockData := database.NewBlockData(block)
			blockData.Hash = "0x0000000000000000000000000000000000000000000000000000000000000bad"

			if err := follower.ProcessProposedBlock(blockData); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the tampered block.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the tampered block.", success)

			if !follower.IsIngestHalted() {
				t.Fatalf("\t%s\tTest 1:\tShould halt ingestion after corruption.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould halt ingestion after corruption.", success)

			// Even a valid block is refused once halted.
			if err := follower.ProcessProposedBlock(database.NewBlockData(block)); !errors.Is(err, state.ErrIngestHalted) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse further blocks, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse further blocks.", success)
		}
	}
}

// slowScorer stalls like a network bound oracle so tests can observe how
// submissions overlap.
type slowScorer struct {
	delay time.Duration
}

func (s slowScorer) Score(ctx context.Context, problem scda.Problem, solution string, knowledge scda.Knowledge) (validation.Scores, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return validation.Scores{}, ctx.Err()
	}

	return validation.Scores{
		Correctness:  0.9,
		Completeness: 0.9,
		Coherence:    0.9,
		Novelty:      0.5,
	}, nil
}

func Test_ConflictingTransactions(t *testing.T) {
	t.Log("Given the need to mine when a transfer and a solve contend for one account.")
	{
		t.Logf("\tTest 0:\tWhen the transfer reaches the mempool before the solve.")
		{
			st := newState(t, goodScorer())
			defer st.Shutdown()

			growComplexity(t, st, "cell-alpha", 30)

			if _, err := st.SubmitTransfer("cell-alpha", "cell-beta", 10); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to queue the transfer: %v", failed, err)
			}

			// Timestamps have second resolution, the gap pins the fifo
			// order to transfer first.
			time.Sleep(1100 * time.Millisecond)

			problem := scda.Problem{
				ProblemID:  "prob-conflict",
				Difficulty: 0.5,
				Domains:    []scda.Domain{scda.DomainPhysics},
			}
			submitAccepted(t, st, "cell-alpha", problem)

			if st.QueryMempoolLength() != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould hold both transactions, got %d", failed, st.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest 0:\tShould hold both transactions.", success)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			// The solve's prior energy no longer holds once the transfer
			// applies, so the block must carry the transfer alone instead
			// of failing over and over.
			block, err := st.MineNewBlock(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to mine the block.", success)

			txs := block.Trans.Values()
			if len(txs) != 1 || txs[0].Kind != database.TxKindTransfer {
				t.Fatalf("\t%s\tTest 0:\tShould carry only the transfer, got %d txs", failed, len(txs))
			}
			t.Logf("\t%s\tTest 0:\tShould carry only the transfer.", success)

			if st.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould keep the solve queued, got %d", failed, st.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest 0:\tShould keep the solve queued.", success)

			// The committed transfer made the solve permanently stale, the
			// next round evicts it instead of spinning on it.
			if _, err := st.MineNewBlock(ctx); !errors.Is(err, state.ErrNoTransactions) {
				t.Fatalf("\t%s\tTest 0:\tShould run out of transactions, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould run out of transactions.", success)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould evict the stale solve, got %d", failed, st.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest 0:\tShould evict the stale solve.", success)
		}
	}
}

func Test_ConcurrentSubmissions(t *testing.T) {
	t.Log("Given the need for different accounts to submit in parallel.")
	{
		t.Logf("\tTest 0:\tWhen two accounts submit through a slow oracle at once.")
		{
			const delay = 300 * time.Millisecond

			st := newState(t, slowScorer{delay: delay})
			defer st.Shutdown()

			submit := func(accountID scda.AccountID, errs chan<- error) {
				problem := scda.Problem{
					ProblemID:  "prob-" + string(accountID),
					Difficulty: 0.5,
					Domains:    []scda.Domain{scda.DomainBiology},
				}
				_, err := st.SubmitSolution(context.Background(), accountID, problem, "a worked proof")
				errs <- err
			}

			start := time.Now()

			errs := make(chan error, 2)
			go submit("cell-alpha", errs)
			go submit("cell-beta", errs)

			for i := 0; i < 2; i++ {
				if err := <-errs; err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to submit: %v", failed, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to submit from both accounts.", success)

			// Serialized submissions cannot finish in under twice the
			// oracle latency.
			if elapsed := time.Since(start); elapsed >= 2*delay {
				t.Fatalf("\t%s\tTest 0:\tShould overlap the oracle calls, took %v.", failed, elapsed)
			}
			t.Logf("\t%s\tTest 0:\tShould overlap the oracle calls.", success)
		}
	}
}
