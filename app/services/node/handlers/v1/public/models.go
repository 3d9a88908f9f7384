package public

import (
	"github.com/cellchain/cellchain/business/sys/validate"
	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// registerAccount is what a collaborator posts to create an account.
type registerAccount struct {
	AccountID string `json:"account_id" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (app registerAccount) Validate() error {
	return validate.Check(app)
}

// submitSolution is what a collaborator posts to have a solution judged.
type submitSolution struct {
	AccountID  string   `json:"account_id" validate:"required"`
	ProblemID  string   `json:"problem_id" validate:"required"`
	Difficulty float64  `json:"difficulty" validate:"gte=0,lte=1"`
	Domains    []string `json:"domains" validate:"required,min=1"`
	Solution   string   `json:"solution" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (app submitSolution) Validate() error {
	return validate.Check(app)
}

// submitTransfer is what a collaborator posts to move energy between
// accounts.
type submitTransfer struct {
	FromID string  `json:"from_id" validate:"required"`
	ToID   string  `json:"to_id" validate:"required,nefield=FromID"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

// Validate checks the data in the model is considered clean.
func (app submitTransfer) Validate() error {
	return validate.Check(app)
}

// =============================================================================

// info is the app level view of a single account.
type info struct {
	AccountID       scda.AccountID `json:"account_id"`
	ComplexityIndex float64        `json:"complexity_index"`
	Energy          float64        `json:"energy"`
	Tier            int            `json:"tier"`
	Position        hyper.Vector   `json:"position"`
	ProblemsSolved  uint64         `json:"problems_solved"`
	TotalDifficulty float64        `json:"total_difficulty"`
}

// actInfo is the payload returned for account queries.
type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []info `json:"accounts"`
}

func toInfo(account scda.Account) info {
	return info{
		AccountID:       account.AccountID,
		ComplexityIndex: account.ComplexityIndex,
		Energy:          account.Energy,
		Tier:            account.Tier,
		Position:        account.Position,
		ProblemsSolved:  account.ProblemsSolved,
		TotalDifficulty: account.TotalDifficulty,
	}
}

// =============================================================================

// chainInfo is the payload returned for chain length queries.
type chainInfo struct {
	LatestBlock string `json:"latest_block"`
	ChainLength uint64 `json:"chain_length"`
	Uncommitted int    `json:"uncommitted"`
}
