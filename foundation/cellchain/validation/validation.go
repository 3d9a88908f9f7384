// Package validation implements the pipeline that decides whether a
// submitted solution is accepted and what quality score it carries. The
// pipeline combines an external scoring oracle with a deterministic
// probabilistic gate and has no side effects of its own.
package validation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// Acceptance thresholds and quality weights.
const (
	acceptThreshold = 0.7
	gateThreshold   = 0.5
	gateStdDev      = 0.1

	weightScore   = 0.5
	weightNovelty = 0.3
	weightGate    = 0.2
)

// ErrOracleUnavailable is returned when the scoring oracle cannot be
// reached. The attempt is treated as rejected with no state change and the
// caller owns any retry policy.
var ErrOracleUnavailable = errors.New("scoring oracle unavailable")

// =============================================================================

// Scores represents the four bounded sub-scores returned by the oracle.
type Scores struct {
	Correctness  float64 `json:"correctness"`
	Completeness float64 `json:"completeness"`
	Coherence    float64 `json:"coherence"`
	Novelty      float64 `json:"novelty"`
}

// Validate checks each sub-score is in [0,1].
func (s Scores) Validate() error {
	for name, v := range map[string]float64{
		"correctness":  s.Correctness,
		"completeness": s.Completeness,
		"coherence":    s.Coherence,
		"novelty":      s.Novelty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("oracle %s score %.4f out of range [0,1]", name, v)
		}
	}
	return nil
}

// mean averages the three scores that measure whether the solution actually
// solves the problem. Novelty is deliberately excluded.
func (s Scores) mean() float64 {
	return (s.Correctness + s.Completeness + s.Coherence) / 3
}

// Scorer represents the behavior the external scoring oracle must provide.
// Implementations are expected to be side-effect free from the chain's
// perspective.
type Scorer interface {
	Score(ctx context.Context, problem scda.Problem, solution string, knowledge scda.Knowledge) (Scores, error)
}

// =============================================================================

// Result carries the outcome of running the pipeline for one submission.
type Result struct {
	Accepted bool
	Quality  float64
	Scores   Scores
}

// Pipeline runs submissions through the oracle and the probabilistic gate.
type Pipeline struct {
	scorer Scorer
}

// NewPipeline constructs a pipeline around the specified scoring oracle.
func NewPipeline(scorer Scorer) *Pipeline {
	return &Pipeline{scorer: scorer}
}

// Score runs the oracle for the submission and checks the sub-scores are
// well formed. An oracle failure is surfaced as ErrOracleUnavailable. The
// call is network bound, callers must not hold locks across it.
func (p *Pipeline) Score(ctx context.Context, problem scda.Problem, solution string, knowledge scda.Knowledge) (Scores, error) {
	scores, err := p.scorer.Score(ctx, problem, solution, knowledge)
	if err != nil {
		return Scores{}, fmt.Errorf("%w: %s", ErrOracleUnavailable, err)
	}

	if err := scores.Validate(); err != nil {
		return Scores{}, fmt.Errorf("%w: %s", ErrOracleUnavailable, err)
	}

	return scores, nil
}

// Decide runs an already scored submission through the probabilistic gate
// and computes its quality. The rng must be a seedable source supplied by
// the caller so the gate can be replayed in tests.
func (p *Pipeline) Decide(scores Scores, complexity float64, rng *rand.Rand) Result {
	internal := scores.mean() > acceptThreshold
	gate := Gate(complexity, rng)

	quality := weightScore * scores.mean()
	quality += weightNovelty * scores.Novelty
	if gate {
		quality += weightGate
	}
	quality = math.Min(1, math.Max(0, quality))

	return Result{
		Accepted: internal && gate,
		Quality:  quality,
		Scores:   scores,
	}
}

// Validate scores the solution and decides acceptance in one call. An
// oracle failure is surfaced as ErrOracleUnavailable, any other outcome is
// a normal result.
func (p *Pipeline) Validate(ctx context.Context, account scda.Account, problem scda.Problem, solution string, rng *rand.Rand) (Result, error) {
	scores, err := p.Score(ctx, problem, solution, account.Knowledge)
	if err != nil {
		return Result{}, err
	}

	return p.Decide(scores, account.ComplexityIndex, rng), nil
}

// Gate models the irreducible uncertainty of evolution: a draw from a
// normal distribution whose mean rises with the account's complexity. Passes
// when the draw clears the gate threshold.
func Gate(complexity float64, rng *rand.Rand) bool {
	dist := distuv.Normal{
		Mu:    math.Min(1, complexity/10),
		Sigma: gateStdDev,
		Src:   rng,
	}

	return dist.Rand() > gateThreshold
}
