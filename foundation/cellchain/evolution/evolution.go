// Package evolution implements the engine that advances an account's state
// when a validated solution is accepted. All functions compute against a
// snapshot of the account and return the new state, they never mutate shared
// data.
package evolution

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// Constants governing the evolution arithmetic.
const (
	ConsumptionFactor = 10.0 // k1: energy consumed per unit of difficulty.
	RewardFactor      = 50.0 // k2: energy rewarded per unit of difficulty and complexity.
	Resistance        = 1.5  // alpha: evolutionary resistance, slows complexity growth.

	// KnowledgeRate scales how fast knowledge levels accumulate.
	KnowledgeRate = 0.1

	// LeapScale scales the random displacement applied on a tier transition.
	LeapScale = 0.2
)

// ErrInsufficientEnergy is returned when an account cannot pay the energy
// cost of attempting a problem. No state is changed.
var ErrInsufficientEnergy = errors.New("insufficient energy for problem attempt")

// Tolerance is the maximum absolute error allowed when re-deriving event
// arithmetic during block validation.
const Tolerance = 1e-9

// =============================================================================

// Event captures everything about a single accepted solution that the ledger
// needs to record and any node needs to re-verify and apply the outcome.
type Event struct {
	ProblemID       string        `json:"problem_id"`
	Difficulty      float64       `json:"difficulty"`
	Quality         float64       `json:"quality"`
	Domains         []scda.Domain `json:"domains"`
	PriorComplexity float64       `json:"prior_complexity"`
	PriorEnergy     float64       `json:"prior_energy"`
	ComplexityDelta float64       `json:"complexity_delta"`
	NewComplexity   float64       `json:"new_complexity"`
	NewEnergy       float64       `json:"new_energy"`
	OldTier         int           `json:"old_tier"`
	NewTier         int           `json:"new_tier"`
	NewPosition     hyper.Vector  `json:"new_position"`
}

// EnergyCost returns the energy consumed by attempting a problem of the
// specified difficulty. The cost is paid on the attempt, not on success.
func EnergyCost(difficulty float64) float64 {
	return ConsumptionFactor * difficulty
}

// Apply advances the account state for an accepted solution of the specified
// quality. The rng drives the evolutionary leap on tier transitions and must
// be the same seedable source used by the validation gate so a run can be
// replayed deterministically.
func Apply(account scda.Account, problem scda.Problem, quality float64, rng *rand.Rand) (scda.Account, Event, error) {
	account = account.Copy()

	ev := Event{
		ProblemID:       problem.ProblemID,
		Difficulty:      problem.Difficulty,
		Quality:         quality,
		Domains:         problem.Domains,
		PriorComplexity: account.ComplexityIndex,
		PriorEnergy:     account.Energy,
		OldTier:         account.Tier,
	}

	// The attempt consumes energy before the outcome matters.
	consumed := EnergyCost(problem.Difficulty)
	if account.Energy < consumed {
		return scda.Account{}, Event{}, ErrInsufficientEnergy
	}
	account.Energy -= consumed

	// Complexity grows with difficulty but is damped by the account's own
	// complexity raised to the resistance exponent.
	delta := problem.Difficulty / math.Pow(account.ComplexityIndex, Resistance)
	account.ComplexityIndex += delta
	ev.ComplexityDelta = delta
	ev.NewComplexity = account.ComplexityIndex

	// The reward uses the updated complexity index.
	account.Energy += RewardFactor * problem.Difficulty * account.ComplexityIndex

	// Knowledge accumulates in the problem's required domains.
	for _, domain := range problem.Domains {
		level := account.Knowledge[domain] + problem.Difficulty*quality*KnowledgeRate
		account.Knowledge[domain] = math.Min(1, level)
	}

	account.Position = Advance(account.Position, account.ComplexityIndex, problem.Domains, problem.Difficulty, quality)

	account.ProblemsSolved++
	account.TotalDifficulty += problem.Difficulty

	// Tier transition: grant the one time bonus for every tier crossed and
	// displace the position with an evolutionary leap.
	newTier := scda.TierForComplexity(account.ComplexityIndex)
	if newTier > account.Tier {
		for tier := account.Tier + 1; tier <= newTier; tier++ {
			account.Energy += scda.TierBonus(tier)
		}
		account.Tier = newTier
		account.Position = leap(account.Position, newTier, rng)
	}

	// The energy budget is capped by the account's tier.
	account.Energy = math.Min(account.Energy, scda.EnergyCap(account.Tier))

	ev.NewEnergy = account.Energy
	ev.NewTier = account.Tier
	ev.NewPosition = account.Position

	return account, ev, nil
}

// Advance computes the deterministic position update for a solved problem.
// The account drifts toward the axes of the problem's domains, with a
// learning rate that shrinks as complexity grows.
func Advance(position hyper.Vector, complexity float64, domains []scda.Domain, difficulty, quality float64) hyper.Vector {
	var direction hyper.Vector
	for _, domain := range domains {
		direction = hyper.Add(direction, hyper.Scale(difficulty*quality, domain.UnitVector()))
	}
	direction = hyper.Normalize(direction)

	rate := 1.0 / (1.0 + complexity)

	return hyper.ClampUnit(hyper.Add(position, hyper.Scale(rate, direction)))
}

// leap displaces the position along a random unit direction scaled by the
// new tier. Two accounts reaching the same tier will land in different
// places, which is the point.
func leap(position hyper.Vector, tier int, rng *rand.Rand) hyper.Vector {
	var direction hyper.Vector
	for i := range direction {
		direction[i] = rng.NormFloat64()
	}
	direction = hyper.Normalize(direction)

	return hyper.ClampUnit(hyper.Add(position, hyper.Scale(LeapScale*float64(tier), direction)))
}

// =============================================================================

// Verify re-derives the deterministic arithmetic of the event and checks the
// recorded values match. This is how a node validates an evolution
// transaction mined by someone else.
func (ev Event) Verify() error {
	if ev.Difficulty < 0 || ev.Difficulty > 1 {
		return fmt.Errorf("difficulty %.4f out of range [0,1]", ev.Difficulty)
	}

	if len(ev.Domains) == 0 {
		return errors.New("event requires at least one knowledge domain")
	}

	seen := make(map[scda.Domain]bool, len(ev.Domains))
	for _, domain := range ev.Domains {
		if _, err := scda.ToDomain(string(domain)); err != nil {
			return err
		}
		if seen[domain] {
			return fmt.Errorf("duplicate knowledge domain %q", domain)
		}
		seen[domain] = true
	}

	if ev.Quality < 0 || ev.Quality > 1 {
		return fmt.Errorf("quality %.4f out of range [0,1]", ev.Quality)
	}

	if ev.PriorEnergy < EnergyCost(ev.Difficulty) {
		return fmt.Errorf("prior energy %.4f cannot cover attempt cost %.4f", ev.PriorEnergy, EnergyCost(ev.Difficulty))
	}

	delta := ev.Difficulty / math.Pow(ev.PriorComplexity, Resistance)
	if math.Abs(delta-ev.ComplexityDelta) > Tolerance {
		return fmt.Errorf("complexity delta %.9f does not re-derive, expected %.9f", ev.ComplexityDelta, delta)
	}

	if math.Abs(ev.PriorComplexity+delta-ev.NewComplexity) > Tolerance {
		return fmt.Errorf("new complexity %.9f does not re-derive", ev.NewComplexity)
	}

	if ev.OldTier != scda.TierForComplexity(ev.PriorComplexity) {
		return fmt.Errorf("old tier %d inconsistent with prior complexity %.4f", ev.OldTier, ev.PriorComplexity)
	}

	if ev.NewTier != scda.TierForComplexity(ev.NewComplexity) {
		return fmt.Errorf("new tier %d inconsistent with new complexity %.4f", ev.NewTier, ev.NewComplexity)
	}

	energy := ev.PriorEnergy - EnergyCost(ev.Difficulty) + RewardFactor*ev.Difficulty*ev.NewComplexity
	for tier := ev.OldTier + 1; tier <= ev.NewTier; tier++ {
		energy += scda.TierBonus(tier)
	}
	energy = math.Min(energy, scda.EnergyCap(ev.NewTier))
	if math.Abs(energy-ev.NewEnergy) > Tolerance {
		return fmt.Errorf("new energy %.9f does not re-derive, expected %.9f", ev.NewEnergy, energy)
	}

	if ev.NewEnergy < 0 {
		return fmt.Errorf("negative new energy %.4f", ev.NewEnergy)
	}

	for i, c := range ev.NewPosition {
		if c < 0 || c > 1 {
			return fmt.Errorf("position axis %d value %.4f out of range", i, c)
		}
	}

	return nil
}

// ApplyEvent replays a verified event against the account. The event's prior
// state must match the account exactly, otherwise the event is stale and
// must not be applied.
func ApplyEvent(account scda.Account, ev Event) (scda.Account, error) {
	account = account.Copy()

	if math.Abs(account.ComplexityIndex-ev.PriorComplexity) > Tolerance {
		return scda.Account{}, fmt.Errorf("stale event: account complexity %.9f, event prior %.9f", account.ComplexityIndex, ev.PriorComplexity)
	}

	if math.Abs(account.Energy-ev.PriorEnergy) > Tolerance {
		return scda.Account{}, fmt.Errorf("stale event: account energy %.9f, event prior %.9f", account.Energy, ev.PriorEnergy)
	}

	account.ComplexityIndex = ev.NewComplexity
	account.Energy = ev.NewEnergy
	account.Tier = ev.NewTier
	account.Position = ev.NewPosition

	for _, domain := range ev.Domains {
		level := account.Knowledge[domain] + ev.Difficulty*ev.Quality*KnowledgeRate
		account.Knowledge[domain] = math.Min(1, level)
	}

	account.ProblemsSolved++
	account.TotalDifficulty += ev.Difficulty

	return account, nil
}
