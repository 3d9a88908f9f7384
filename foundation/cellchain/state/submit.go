package state

import (
	"context"
	"errors"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/evolution"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
	"github.com/cellchain/cellchain/foundation/cellchain/validation"
)

// ErrPendingEvolution is returned when an account already has an accepted
// solution waiting to be mined. The caller retries after the next block.
var ErrPendingEvolution = errors.New("account has a pending evolution event")

// SubmitResult carries the outcome of a solution submission back to the
// collaborator. The account state itself changes when the block carrying the
// evolution event is accepted.
type SubmitResult struct {
	Accepted        bool              `json:"accepted"`
	Quality         float64           `json:"quality"`
	Scores          validation.Scores `json:"scores"`
	ComplexityDelta float64           `json:"complexity_delta,omitempty"`
	NewTier         int               `json:"new_tier,omitempty"`
}

// SubmitSolution runs a (problem, solution) pair through the validation
// pipeline and, when accepted, computes the account's evolution and queues
// the event for mining. A rejection is a normal result, not an error.
func (s *State) SubmitSolution(ctx context.Context, accountID scda.AccountID, problem scda.Problem, solution string) (SubmitResult, error) {
	if err := problem.Validate(); err != nil {
		return SubmitResult{}, err
	}

	account, err := s.db.GetAccount(accountID)
	if err != nil {
		return SubmitResult{}, err
	}

	// Fail fast before bothering the oracle when the account cannot pay
	// the attempt cost anyway.
	if account.Energy < evolution.EnergyCost(problem.Difficulty) {
		return SubmitResult{}, evolution.ErrInsufficientEnergy
	}

	// An unmined event would make this submission compute against state
	// that is about to change. One pending evolution per account at a time.
	if s.hasPendingSolve(accountID) {
		return SubmitResult{}, ErrPendingEvolution
	}

	// The oracle is network bound, so it is called outside the account
	// mutation critical section against a snapshot of the account.
	result, err := s.validate(ctx, account, problem, solution)
	if err != nil {
		return SubmitResult{}, err
	}

	if !result.Accepted {
		s.evHandler("state: SubmitSolution: account[%s]: problem[%s]: REJECTED: quality[%.4f]", accountID, problem.ProblemID, result.Quality)
		return SubmitResult{Accepted: false, Quality: result.Quality, Scores: result.Scores}, nil
	}

	// Compute the evolution against the account's current committed state.
	// The per-account lock serializes concurrent submissions for the same
	// account; different accounts proceed in parallel.
	unlock := s.db.LockAccount(accountID)
	defer unlock()

	account, err = s.db.GetAccount(accountID)
	if err != nil {
		return SubmitResult{}, err
	}

	if s.hasPendingSolve(accountID) {
		return SubmitResult{}, ErrPendingEvolution
	}

	_, event, err := s.applyEvolution(account, problem, result.Quality)
	if err != nil {
		return SubmitResult{}, err
	}

	tx := database.NewSolveTx(accountID, event)
	s.mempool.Upsert(tx)

	s.evHandler("state: SubmitSolution: account[%s]: problem[%s]: ACCEPTED: quality[%.4f]: deltaC[%.6f]: tier[%d->%d]",
		accountID, problem.ProblemID, result.Quality, event.ComplexityDelta, event.OldTier, event.NewTier)

	s.Worker.SignalStartMining()

	return SubmitResult{
		Accepted:        true,
		Quality:         result.Quality,
		Scores:          result.Scores,
		ComplexityDelta: event.ComplexityDelta,
		NewTier:         event.NewTier,
	}, nil
}

// SubmitTransfer queues a generic energy transfer between two accounts for
// mining.
func (s *State) SubmitTransfer(fromID, toID scda.AccountID, amount float64) (database.Tx, error) {
	tx, err := database.NewTransferTx(fromID, toID, amount)
	if err != nil {
		return database.Tx{}, err
	}

	if err := s.db.CheckTransaction(tx); err != nil {
		return database.Tx{}, err
	}

	s.mempool.Upsert(tx)
	s.Worker.SignalStartMining()

	return tx, nil
}

// RegisterAccount creates a new account with the default starting state.
func (s *State) RegisterAccount(accountID scda.AccountID) (scda.Account, error) {
	account, err := s.db.CreateAccount(accountID)
	if err != nil {
		return scda.Account{}, err
	}

	s.evHandler("state: RegisterAccount: account[%s] created: energy[%.2f]", accountID, account.Energy)

	return account, nil
}

// =============================================================================

// validate runs the validation pipeline with the node's seedable random
// source. The oracle call must not serialize submissions for other
// accounts, so only the gate draw holds the rng lock.
func (s *State) validate(ctx context.Context, account scda.Account, problem scda.Problem, solution string) (validation.Result, error) {
	scores, err := s.pipeline.Score(ctx, problem, solution, account.Knowledge)
	if err != nil {
		return validation.Result{}, err
	}

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	return s.pipeline.Decide(scores, account.ComplexityIndex, s.rng), nil
}

// applyEvolution runs the evolution engine with the node's seedable random
// source.
func (s *State) applyEvolution(account scda.Account, problem scda.Problem, quality float64) (scda.Account, evolution.Event, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	return evolution.Apply(account, problem, quality, s.rng)
}

// hasPendingSolve reports whether the mempool holds an evolution event for
// the account.
func (s *State) hasPendingSolve(accountID scda.AccountID) bool {
	for _, tx := range s.mempool.PickBest(-1) {
		if tx.Kind == database.TxKindSolve && tx.AccountID == accountID {
			return true
		}
	}
	return false
}
