package evolution_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/cellchain/cellchain/foundation/cellchain/evolution"
	"github.com/cellchain/cellchain/foundation/cellchain/scda"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_Apply(t *testing.T) {
	t.Log("Given the need to advance an account for an accepted solution.")
	{
		t.Logf("\tTest 0:\tWhen solving a 0.5 difficulty problem at quality 0.9 from the starting state.")
		{
			account := scda.NewAccount("cell-test", 100)
			problem := scda.Problem{
				ProblemID:  "prob-1",
				Difficulty: 0.5,
				Domains:    []scda.Domain{scda.DomainMathematics},
			}

			rng := rand.New(rand.NewSource(1))
			newAccount, ev, err := evolution.Apply(account, problem, 0.9, rng)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply the evolution: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply the evolution.", success)

			// delta = 0.5 / 1.0^1.5 = 0.5
			if math.Abs(ev.ComplexityDelta-0.5) > evolution.Tolerance {
				t.Fatalf("\t%s\tTest 0:\tShould get complexity delta 0.5, got %.9f", failed, ev.ComplexityDelta)
			}
			t.Logf("\t%s\tTest 0:\tShould get complexity delta 0.5.", success)

			if math.Abs(newAccount.ComplexityIndex-1.5) > evolution.Tolerance {
				t.Fatalf("\t%s\tTest 0:\tShould get complexity index 1.5, got %.9f", failed, newAccount.ComplexityIndex)
			}
			t.Logf("\t%s\tTest 0:\tShould get complexity index 1.5.", success)

			// 100 - 10*0.5 + 50*0.5*1.5 = 132.5
			if math.Abs(newAccount.Energy-132.5) > evolution.Tolerance {
				t.Fatalf("\t%s\tTest 0:\tShould get energy 132.5, got %.9f", failed, newAccount.Energy)
			}
			t.Logf("\t%s\tTest 0:\tShould get energy 132.5.", success)

			// 0.5 * 0.9 * 0.1 = 0.045
			if math.Abs(newAccount.Knowledge[scda.DomainMathematics]-0.045) > evolution.Tolerance {
				t.Fatalf("\t%s\tTest 0:\tShould get knowledge 0.045, got %.9f", failed, newAccount.Knowledge[scda.DomainMathematics])
			}
			t.Logf("\t%s\tTest 0:\tShould get knowledge 0.045.", success)

			if newAccount.ProblemsSolved != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould count 1 problem solved, got %d", failed, newAccount.ProblemsSolved)
			}
			t.Logf("\t%s\tTest 0:\tShould count 1 problem solved.", success)

			if account.ComplexityIndex != 1.0 || account.Energy != 100 {
				t.Fatalf("\t%s\tTest 0:\tShould leave the input account untouched.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the input account untouched.", success)

			if err := ev.Verify(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould produce an event that re-derives: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould produce an event that re-derives.", success)
		}

		t.Logf("\tTest 1:\tWhen the account cannot pay the attempt cost.")
		{
			account := scda.NewAccount("cell-test", 100)
			account.Energy = 3

			problem := scda.Problem{
				ProblemID:  "prob-2",
				Difficulty: 0.5,
				Domains:    []scda.Domain{scda.DomainPhysics},
			}

			rng := rand.New(rand.NewSource(1))
			_, _, err := evolution.Apply(account, problem, 0.9, rng)
			if !errors.Is(err, evolution.ErrInsufficientEnergy) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrInsufficientEnergy, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrInsufficientEnergy.", success)

			if account.Energy != 3 {
				t.Fatalf("\t%s\tTest 1:\tShould not touch the account energy, got %.4f", failed, account.Energy)
			}
			t.Logf("\t%s\tTest 1:\tShould not touch the account energy.", success)
		}

		t.Logf("\tTest 2:\tWhen the same seed replays the same evolution.")
		{
			account := scda.NewAccount("cell-test", 100)
			problem := scda.Problem{
				ProblemID:  "prob-3",
				Difficulty: 1,
				Domains:    []scda.Domain{scda.DomainLogic, scda.DomainComputation},
			}

			a1, ev1, err := evolution.Apply(account, problem, 1, rand.New(rand.NewSource(42)))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to apply the evolution: %v", failed, err)
			}
			a2, ev2, err := evolution.Apply(account, problem, 1, rand.New(rand.NewSource(42)))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to apply the evolution: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould be able to apply the evolution twice.", success)

			if a1.Position != a2.Position || ev1.NewEnergy != ev2.NewEnergy {
				t.Fatalf("\t%s\tTest 2:\tShould get identical outcomes for the same seed.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould get identical outcomes for the same seed.", success)
		}
	}
}

func Test_TierTransition(t *testing.T) {
	t.Log("Given the need to promote an account crossing a tier threshold.")
	{
		t.Logf("\tTest 0:\tWhen complexity crosses the tier 2 threshold.")
		{
			account := scda.NewAccount("cell-test", 100)
			account.ComplexityIndex = 9.99
			account.Energy = 500

			problem := scda.Problem{
				ProblemID:  "prob-4",
				Difficulty: 1,
				Domains:    []scda.Domain{scda.DomainBiology},
			}

			rng := rand.New(rand.NewSource(7))
			newAccount, ev, err := evolution.Apply(account, problem, 1, rng)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply the evolution: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to apply the evolution.", success)

			if newAccount.Tier != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould land in tier 2, got %d", failed, newAccount.Tier)
			}
			t.Logf("\t%s\tTest 0:\tShould land in tier 2.", success)

			// 500 - 10 + 50*1*newC + 100 bonus, capped by tier 2.
			want := 500 - 10.0 + 50*newAccount.ComplexityIndex + 100
			want = math.Min(want, scda.EnergyCap(2))
			if math.Abs(newAccount.Energy-want) > evolution.Tolerance {
				t.Fatalf("\t%s\tTest 0:\tShould include the tier bonus in energy, got %.4f exp %.4f", failed, newAccount.Energy, want)
			}
			t.Logf("\t%s\tTest 0:\tShould include the tier bonus in energy.", success)

			if ev.OldTier != 1 || ev.NewTier != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould record the tier transition in the event.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould record the tier transition in the event.", success)

			if err := ev.Verify(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould produce an event that re-derives: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould produce an event that re-derives.", success)
		}
	}
}

func Test_ApplyEvent(t *testing.T) {
	t.Log("Given the need to replay a mined event against the committed state.")
	{
		t.Logf("\tTest 0:\tWhen replaying a valid event.")
		{
			account := scda.NewAccount("cell-test", 100)
			problem := scda.Problem{
				ProblemID:  "prob-5",
				Difficulty: 0.3,
				Domains:    []scda.Domain{scda.DomainEconomics},
			}

			newAccount, ev, err := evolution.Apply(account, problem, 0.8, rand.New(rand.NewSource(3)))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to apply the evolution: %v", failed, err)
			}

			replayed, err := evolution.ApplyEvent(account, ev)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to replay the event: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to replay the event.", success)

			if replayed.ComplexityIndex != newAccount.ComplexityIndex || replayed.Energy != newAccount.Energy {
				t.Fatalf("\t%s\tTest 0:\tShould reach the same state as the direct application.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould reach the same state as the direct application.", success)
		}

		t.Logf("\tTest 1:\tWhen replaying a stale event.")
		{
			account := scda.NewAccount("cell-test", 100)
			problem := scda.Problem{
				ProblemID:  "prob-6",
				Difficulty: 0.3,
				Domains:    []scda.Domain{scda.DomainEconomics},
			}

			_, ev, err := evolution.Apply(account, problem, 0.8, rand.New(rand.NewSource(3)))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to apply the evolution: %v", failed, err)
			}

			account.Energy = 42
			if _, err := evolution.ApplyEvent(account, ev); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject an event whose prior state moved.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject an event whose prior state moved.", success)
		}
	}
}

func Test_VerifyDomains(t *testing.T) {
	t.Log("Given the need to reject mined events carrying bad knowledge domains.")
	{
		account := scda.NewAccount("cell-test", 100)
		problem := scda.Problem{
			ProblemID:  "prob-7",
			Difficulty: 0.3,
			Domains:    []scda.Domain{scda.DomainEconomics},
		}

		_, ev, err := evolution.Apply(account, problem, 0.8, rand.New(rand.NewSource(3)))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to apply the evolution: %v", failed, err)
		}

		t.Logf("\tTest 0:\tWhen verifying the untouched event.")
		{
			if err := ev.Verify(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify the untouched event: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify the untouched event.", success)
		}

		t.Logf("\tTest 1:\tWhen the event names a domain the chain does not know.")
		{
			tampered := ev
			tampered.Domains = []scda.Domain{"alchemy"}
			if err := tampered.Verify(); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject a fabricated domain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a fabricated domain.", success)
		}

		t.Logf("\tTest 2:\tWhen the event repeats a domain.")
		{
			tampered := ev
			tampered.Domains = []scda.Domain{scda.DomainEconomics, scda.DomainEconomics}
			if err := tampered.Verify(); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould reject a duplicate domain.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould reject a duplicate domain.", success)
		}

		t.Logf("\tTest 3:\tWhen the event carries no domains at all.")
		{
			tampered := ev
			tampered.Domains = nil
			if err := tampered.Verify(); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould reject an empty domain list.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould reject an empty domain list.", success)
		}
	}
}

func Test_EnergyNeverNegative(t *testing.T) {
	t.Log("Given the need to keep the energy budget non negative over any solve sequence.")
	{
		t.Logf("\tTest 0:\tWhen running a random mix of accepted, rejected and unpayable attempts.")
		{
			rng := rand.New(rand.NewSource(7))

			// A small starting budget so the sequence actually brushes
			// against the attempt cost instead of coasting on rewards.
			account := scda.NewAccount("cell-walk", 5)

			for i := 0; i < 500; i++ {
				problem := scda.Problem{
					ProblemID:  fmt.Sprintf("prob-walk-%d", i),
					Difficulty: rng.Float64(),
					Domains:    []scda.Domain{scda.Domains[rng.Intn(len(scda.Domains))]},
				}

				// A rejected validation leaves the account untouched.
				if rng.Float64() < 0.5 {
					continue
				}

				updated, _, err := evolution.Apply(account, problem, rng.Float64(), rng)
				if err != nil {
					if !errors.Is(err, evolution.ErrInsufficientEnergy) {
						t.Fatalf("\t%s\tTest 0:\tShould only fail for an unpayable attempt: %v", failed, err)
					}
					continue
				}

				if updated.Energy < 0 {
					t.Fatalf("\t%s\tTest 0:\tShould never go negative, got %.6f at step %d.", failed, updated.Energy, i)
				}

				account = updated
			}

			t.Logf("\t%s\tTest 0:\tShould keep energy non negative across the whole sequence.", success)
		}
	}
}
