// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file: the fixed parameters of the chain and
// the accounts that exist from block zero.
type Genesis struct {
	Date           time.Time          `json:"date"`
	ChainID        uint16             `json:"chain_id"`        // Unique id for this running instance.
	TransPerBlock  uint16             `json:"trans_per_block"` // Maximum number of transactions per block.
	Difficulty     float64            `json:"difficulty"`      // PoHD difficulty, shrinks the target distance.
	StartingEnergy float64            `json:"starting_energy"` // Energy a newly registered account starts with.
	Accounts       map[string]float64 `json:"accounts"`        // Accounts that exist at genesis with their starting energy.
}

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis parameters are usable.
func (g Genesis) Validate() error {
	if g.Difficulty < 0 {
		return fmt.Errorf("difficulty %.4f must not be negative", g.Difficulty)
	}

	if g.TransPerBlock == 0 {
		return fmt.Errorf("trans per block must be greater than zero")
	}

	if g.StartingEnergy <= 0 {
		return fmt.Errorf("starting energy %.4f must be greater than zero", g.StartingEnergy)
	}

	return nil
}
