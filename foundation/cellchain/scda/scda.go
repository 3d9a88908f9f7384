// Package scda implements the single-cell digital account model. An account
// is a deterministic evolution state: a complexity index, an energy budget,
// per-domain knowledge levels, and a position in the 8D space.
package scda

import (
	"errors"
	"fmt"

	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
)

// DefaultComplexity is the complexity index every account starts with.
const DefaultComplexity = 1.0

// AccountID uniquely identifies an account. The id is opaque to the chain
// and immutable once the account exists.
type AccountID string

// ToAccountID validates the specified string can be used as an account id.
func ToAccountID(s string) (AccountID, error) {
	a := AccountID(s)
	if !a.IsAccountID() {
		return "", errors.New("invalid account id format")
	}

	return a, nil
}

// IsAccountID verifies the underlying data represents a usable account id.
func (a AccountID) IsAccountID() bool {
	if len(a) == 0 || len(a) > 64 {
		return false
	}

	for _, c := range a {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == ':':
		default:
			return false
		}
	}

	return true
}

// =============================================================================

// Account represents the full evolution state stored for a single cell.
type Account struct {
	AccountID       AccountID    `json:"account_id"`
	ComplexityIndex float64      `json:"complexity_index"`
	Energy          float64      `json:"energy"`
	Tier            int          `json:"tier"`
	Knowledge       Knowledge    `json:"knowledge"`
	Position        hyper.Vector `json:"position"`
	ProblemsSolved  uint64       `json:"problems_solved"`
	TotalDifficulty float64      `json:"total_difficulty"`
}

// NewAccount constructs an account with the default starting state: tier 1,
// complexity 1.0, zero knowledge, positioned at the center of the space.
func NewAccount(accountID AccountID, startEnergy float64) Account {
	return Account{
		AccountID:       accountID,
		ComplexityIndex: DefaultComplexity,
		Energy:          startEnergy,
		Tier:            1,
		Knowledge:       NewKnowledge(),
		Position:        hyper.Center(),
	}
}

// Copy makes a deep copy of the account so callers can compute against a
// stable snapshot.
func (a Account) Copy() Account {
	a.Knowledge = a.Knowledge.Copy()
	return a
}

// Validate performs the internal consistency checks every stored account
// must satisfy.
func (a Account) Validate() error {
	if !a.AccountID.IsAccountID() {
		return errors.New("invalid account id format")
	}

	if a.ComplexityIndex < DefaultComplexity {
		return fmt.Errorf("complexity index %.4f below starting value", a.ComplexityIndex)
	}

	if a.Energy < 0 {
		return fmt.Errorf("negative energy %.4f", a.Energy)
	}

	if tier := TierForComplexity(a.ComplexityIndex); tier != a.Tier {
		return fmt.Errorf("tier %d inconsistent with complexity index %.4f, expected %d", a.Tier, a.ComplexityIndex, tier)
	}

	for domain, level := range a.Knowledge {
		if level < 0 || level > 1 {
			return fmt.Errorf("knowledge level %.4f for domain %q out of range", level, domain)
		}
	}

	for i, c := range a.Position {
		if c < 0 || c > 1 {
			return fmt.Errorf("position axis %d value %.4f out of range", i, c)
		}
	}

	return nil
}

// =============================================================================

// Problem represents a unit of work an external collaborator asks an account
// to solve. Problems are immutable once created.
type Problem struct {
	ProblemID  string   `json:"problem_id"`
	Difficulty float64  `json:"difficulty"`
	Domains    []Domain `json:"domains"`
}

// Validate checks the problem is well formed: difficulty in [0,1] and every
// required domain known.
func (p Problem) Validate() error {
	if p.ProblemID == "" {
		return errors.New("problem id is required")
	}

	if p.Difficulty < 0 || p.Difficulty > 1 {
		return fmt.Errorf("difficulty %.4f out of range [0,1]", p.Difficulty)
	}

	if len(p.Domains) == 0 {
		return errors.New("problem requires at least one knowledge domain")
	}

	seen := make(map[Domain]bool, len(p.Domains))
	for _, domain := range p.Domains {
		if _, err := ToDomain(string(domain)); err != nil {
			return err
		}
		if seen[domain] {
			return fmt.Errorf("duplicate knowledge domain %q", domain)
		}
		seen[domain] = true
	}

	return nil
}
