package pohd

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
)

// checkInterval is how many nonces a search goroutine tries between
// cancellation checks.
const checkInterval = 1024

// Solution is the outcome of a successful nonce search.
type Solution struct {
	Nonce    uint64
	Hash     string
	Position hyper.Vector
	Attempts uint64
}

// Mine searches the nonce space for a hash satisfying the consensus
// predicate. The hashAt function must be safe for concurrent use, each of
// the workers searches a disjoint stride of the nonce space starting at
// zero. The search is unbounded; cancel the context to abandon it.
func Mine(ctx context.Context, difficulty float64, workers int, hashAt func(nonce uint64) string) (Solution, error) {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(workers)

	var attempts uint64
	solutions := make(chan Solution, workers)

	for w := 0; w < workers; w++ {
		go func(start uint64) {
			defer wg.Done()

			var tried uint64
			defer func() {
				atomic.AddUint64(&attempts, tried)
			}()

			for nonce := start; ; nonce += uint64(workers) {
				if tried%checkInterval == 0 && ctx.Err() != nil {
					return
				}
				tried++

				hash := hashAt(nonce)
				if !Solved(difficulty, hash) {
					continue
				}

				position, err := Position(hash)
				if err != nil {
					return
				}

				solutions <- Solution{Nonce: nonce, Hash: hash, Position: position}
				cancel()
				return
			}
		}(uint64(w))
	}

	wg.Wait()
	close(solutions)

	// More than one worker can cross the finish line before the cancel
	// lands. Keep the lowest nonce so the result is independent of
	// scheduling.
	var best Solution
	var found bool
	for solution := range solutions {
		if !found || solution.Nonce < best.Nonce {
			best = solution
			found = true
		}
	}

	if !found {
		return Solution{}, ctx.Err()
	}

	best.Attempts = atomic.LoadUint64(&attempts)
	return best, nil
}
