package validation_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/cellchain/cellchain/foundation/cellchain/scda"
	"github.com/cellchain/cellchain/foundation/cellchain/validation"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

// stubScorer returns fixed scores or a fixed error.
type stubScorer struct {
	scores validation.Scores
	err    error
}

func (s stubScorer) Score(ctx context.Context, problem scda.Problem, solution string, knowledge scda.Knowledge) (validation.Scores, error) {
	return s.scores, s.err
}

// =============================================================================

func Test_Pipeline(t *testing.T) {
	problem := scda.Problem{
		ProblemID:  "prob-1",
		Difficulty: 0.5,
		Domains:    []scda.Domain{scda.DomainChemistry},
	}

	t.Log("Given the need to judge submitted solutions.")
	{
		t.Logf("\tTest 0:\tWhen the oracle scores the solution highly.")
		{
			scorer := stubScorer{scores: validation.Scores{
				Correctness:  0.9,
				Completeness: 0.9,
				Coherence:    0.9,
				Novelty:      0.5,
			}}
			pipeline := validation.NewPipeline(scorer)

			// High complexity drives the gate mean to 1, so every seed
			// passes the gate.
			account := scda.NewAccount("cell-test", 100)
			account.ComplexityIndex = 50

			result, err := pipeline.Validate(context.Background(), account, problem, "a proof", rand.New(rand.NewSource(1)))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to run the pipeline: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to run the pipeline.", success)

			if !result.Accepted {
				t.Fatalf("\t%s\tTest 0:\tShould accept the solution.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the solution.", success)

			// 0.5*0.9 + 0.3*0.5 + 0.2 = 0.8
			if result.Quality < 0.79 || result.Quality > 0.81 {
				t.Fatalf("\t%s\tTest 0:\tShould compute quality near 0.8, got %.4f", failed, result.Quality)
			}
			t.Logf("\t%s\tTest 0:\tShould compute quality near 0.8.", success)
		}

		t.Logf("\tTest 1:\tWhen the oracle scores below the acceptance threshold.")
		{
			scorer := stubScorer{scores: validation.Scores{
				Correctness:  0.5,
				Completeness: 0.5,
				Coherence:    0.5,
				Novelty:      1,
			}}
			pipeline := validation.NewPipeline(scorer)

			account := scda.NewAccount("cell-test", 100)
			account.ComplexityIndex = 50

			result, err := pipeline.Validate(context.Background(), account, problem, "a weak proof", rand.New(rand.NewSource(1)))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to run the pipeline: %v", failed, err)
			}

			if result.Accepted {
				t.Fatalf("\t%s\tTest 1:\tShould reject the solution.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the solution.", success)
		}

		t.Logf("\tTest 2:\tWhen the oracle cannot be reached.")
		{
			scorer := stubScorer{err: errors.New("connection refused")}
			pipeline := validation.NewPipeline(scorer)

			account := scda.NewAccount("cell-test", 100)

			_, err := pipeline.Validate(context.Background(), account, problem, "a proof", rand.New(rand.NewSource(1)))
			if !errors.Is(err, validation.ErrOracleUnavailable) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrOracleUnavailable, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrOracleUnavailable.", success)
		}

		t.Logf("\tTest 3:\tWhen the oracle returns out of range scores.")
		{
			scorer := stubScorer{scores: validation.Scores{Correctness: 1.5}}
			pipeline := validation.NewPipeline(scorer)

			account := scda.NewAccount("cell-test", 100)

			_, err := pipeline.Validate(context.Background(), account, problem, "a proof", rand.New(rand.NewSource(1)))
			if !errors.Is(err, validation.ErrOracleUnavailable) {
				t.Fatalf("\t%s\tTest 3:\tShould treat bad scores as an oracle failure, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould treat bad scores as an oracle failure.", success)
		}
	}
}

func Test_Gate(t *testing.T) {
	t.Log("Given the need for a probabilistic gate that favors complexity.")
	{
		t.Logf("\tTest 0:\tWhen sampling the gate at the extremes.")
		{
			rng := rand.New(rand.NewSource(11))

			// Mu = 1.0 at complexity >= 10, five sigma above the threshold.
			passes := 0
			for i := 0; i < 1000; i++ {
				if validation.Gate(100, rng) {
					passes++
				}
			}
			if passes < 990 {
				t.Fatalf("\t%s\tTest 0:\tShould pass nearly always at high complexity, got %d/1000", failed, passes)
			}
			t.Logf("\t%s\tTest 0:\tShould pass nearly always at high complexity.", success)

			// Mu = 0.0 at complexity 0, five sigma below the threshold.
			passes = 0
			for i := 0; i < 1000; i++ {
				if validation.Gate(0, rng) {
					passes++
				}
			}
			if passes > 10 {
				t.Fatalf("\t%s\tTest 0:\tShould fail nearly always at zero complexity, got %d/1000", failed, passes)
			}
			t.Logf("\t%s\tTest 0:\tShould fail nearly always at zero complexity.", success)
		}
	}
}
