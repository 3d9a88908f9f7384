// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cellchain/cellchain/business/web/errs"
	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
	"github.com/cellchain/cellchain/foundation/cellchain/state"
	"github.com/cellchain/cellchain/foundation/cellchain/validation"
	"github.com/cellchain/cellchain/foundation/events"
	"github.com/cellchain/cellchain/foundation/web"
)

// Handlers manages the set of collaborator facing endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Register creates a new account with the chain's starting energy.
func (h Handlers) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var app registerAccount
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	accountID, err := scda.ToAccountID(app.AccountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("register account", "traceid", v.TraceID, "account", accountID)

	account, err := h.State.RegisterAccount(accountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusConflict)
	}

	return web.Respond(ctx, w, toInfo(account), http.StatusCreated)
}

// SubmitSolution runs a solution through the validation pipeline and, when
// accepted, queues the resulting evolution event for mining.
func (h Handlers) SubmitSolution(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var app submitSolution
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	accountID, err := scda.ToAccountID(app.AccountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	domains := make([]scda.Domain, len(app.Domains))
	for i, name := range app.Domains {
		domain, err := scda.ToDomain(name)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		domains[i] = domain
	}

	problem := scda.Problem{
		ProblemID:  app.ProblemID,
		Difficulty: app.Difficulty,
		Domains:    domains,
	}

	h.Log.Infow("submit solution", "traceid", v.TraceID, "account", accountID, "problem", problem.ProblemID, "difficulty", problem.Difficulty)

	result, err := h.State.SubmitSolution(ctx, accountID, problem, app.Solution)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrOracleUnavailable):
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		case errors.Is(err, state.ErrPendingEvolution):
			return errs.NewTrusted(err, http.StatusConflict)
		case errors.Is(err, database.ErrAccountNotFound):
			return errs.NewTrusted(err, http.StatusNotFound)
		default:
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	return web.Respond(ctx, w, result, http.StatusOK)
}

// SubmitTransfer queues an energy transfer between two accounts for mining.
func (h Handlers) SubmitTransfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var app submitTransfer
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	fromID, err := scda.ToAccountID(app.FromID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	toID, err := scda.ToAccountID(app.ToID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit transfer", "traceid", v.TraceID, "from", fromID, "to", toID, "amount", app.Amount)

	tx, err := h.State.SubmitTransfer(fromID, toID, app.Amount)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		TxID   string `json:"tx_id"`
	}{
		Status: "transfer added to mempool",
		TxID:   tx.TxID,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Accounts returns the committed state for all accounts or one account.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	acct := web.Param(r, "account")

	var accounts []info
	switch acct {
	case "":
		all := h.State.RetrieveAccounts()
		accounts = make([]info, 0, len(all))
		for _, account := range all {
			accounts = append(accounts, toInfo(account))
		}

	default:
		accountID, err := scda.ToAccountID(acct)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		account, err := h.State.QueryAccount(accountID)
		if err != nil {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		accounts = []info{toInfo(account)}
	}

	ai := actInfo{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
		Accounts:    accounts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// Chain returns summary information about the committed chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ci := chainInfo{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		ChainLength: h.State.RetrieveChainLength(),
		Uncommitted: h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, ci, http.StatusOK)
}

// BlockByNumber returns a single block with its stated hash and coordinate.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block number: %w", err), http.StatusBadRequest)
	}

	block, err := h.State.QueryBlock(num)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.RetrieveMempool()
	return web.Respond(ctx, w, txs, http.StatusOK)
}
