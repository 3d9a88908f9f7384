package database

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cellchain/cellchain/foundation/cellchain/evolution"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
	"github.com/cellchain/cellchain/foundation/cellchain/signature"
)

// TxKind identifies what a transaction records.
type TxKind string

// The set of transaction kinds the ledger records.
const (
	TxKindSolve    TxKind = "evolution-event"
	TxKindTransfer TxKind = "generic-transfer"
)

// Transfer moves energy from the transaction's account to another account.
type Transfer struct {
	ToID   scda.AccountID `json:"to"`
	Amount float64        `json:"amount"`
}

// Tx represents a transaction as recorded inside a block. Exactly one of
// Evolution or Transfer is set, matching the kind.
type Tx struct {
	TxID      string           `json:"tx_id"`
	Kind      TxKind           `json:"kind"`
	AccountID scda.AccountID   `json:"account_id"`
	TimeStamp uint64           `json:"timestamp"`
	Evolution *evolution.Event `json:"evolution,omitempty"`
	Transfer  *Transfer        `json:"transfer,omitempty"`
}

// NewSolveTx constructs a transaction recording an accepted solution's
// evolution event.
func NewSolveTx(accountID scda.AccountID, ev evolution.Event) Tx {
	return Tx{
		TxID:      uuid.NewString(),
		Kind:      TxKindSolve,
		AccountID: accountID,
		TimeStamp: uint64(time.Now().UTC().Unix()),
		Evolution: &ev,
	}
}

// NewTransferTx constructs a transaction moving energy between accounts.
func NewTransferTx(fromID, toID scda.AccountID, amount float64) (Tx, error) {
	if !toID.IsAccountID() {
		return Tx{}, errors.New("to account is not properly formatted")
	}

	if fromID == toID {
		return Tx{}, errors.New("transfer to self")
	}

	if amount <= 0 {
		return Tx{}, fmt.Errorf("transfer amount %.4f must be greater than zero", amount)
	}

	return Tx{
		TxID:      uuid.NewString(),
		Kind:      TxKindTransfer,
		AccountID: fromID,
		TimeStamp: uint64(time.Now().UTC().Unix()),
		Transfer:  &Transfer{ToID: toID, Amount: amount},
	}, nil
}

// Validate checks the transaction is structurally sound independent of any
// account state.
func (tx Tx) Validate() error {
	if tx.TxID == "" {
		return errors.New("transaction id is required")
	}

	if !tx.AccountID.IsAccountID() {
		return errors.New("invalid account id format")
	}

	switch tx.Kind {
	case TxKindSolve:
		if tx.Evolution == nil || tx.Transfer != nil {
			return errors.New("evolution transaction must carry exactly an evolution event")
		}
		return tx.Evolution.Verify()

	case TxKindTransfer:
		if tx.Transfer == nil || tx.Evolution != nil {
			return errors.New("transfer transaction must carry exactly a transfer")
		}
		if tx.Transfer.Amount <= 0 {
			return fmt.Errorf("transfer amount %.4f must be greater than zero", tx.Transfer.Amount)
		}
		if tx.AccountID == tx.Transfer.ToID {
			return errors.New("transfer to self")
		}
		return nil

	default:
		return fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}
}

// UniqueRef returns the value that makes the transaction unique for its
// account: the problem for a solve, the id for a transfer. A resubmitted
// solution for the same problem replaces the pending one.
func (tx Tx) UniqueRef() string {
	if tx.Kind == TxKindSolve && tx.Evolution != nil {
		return tx.Evolution.ProblemID
	}
	return tx.TxID
}

// Hash implements the merkle Hashable interface for providing a hash of a
// transaction.
func (tx Tx) Hash() ([]byte, error) {
	str := signature.Hash(tx)
	return hex.DecodeString(str[2:])
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.TxID == otherTx.TxID
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s:%s", tx.AccountID, tx.Kind, tx.UniqueRef())
}
