// Package pohd implements the proof-of-hyperdistance consensus rule. A block
// hash is mapped to a coordinate in the unit hypercube and the block is valid
// when that coordinate lands close enough to the center, where "close enough"
// shrinks exponentially with difficulty.
package pohd

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
	"github.com/cellchain/cellchain/foundation/cellchain/signature"
)

// Position derives the 8D coordinate for a block hash. The 256 bit digest is
// split into 8 consecutive big-endian uint32 chunks, each scaled into [0,1].
func Position(hash string) (hyper.Vector, error) {
	digest, err := signature.ToBytes(hash)
	if err != nil {
		return hyper.Vector{}, fmt.Errorf("decode hash: %w", err)
	}

	if len(digest) != 4*hyper.Dims {
		return hyper.Vector{}, fmt.Errorf("digest is %d bytes, need %d", len(digest), 4*hyper.Dims)
	}

	var v hyper.Vector
	for i := 0; i < hyper.Dims; i++ {
		chunk := binary.BigEndian.Uint32(digest[i*4:])
		v[i] = float64(chunk) / float64(math.MaxUint32)
	}

	return v, nil
}

// TargetDistance returns the acceptance radius around the hypercube center
// for the specified difficulty. Difficulty 0 accepts any coordinate; every
// +4 difficulty halves the radius.
func TargetDistance(difficulty float64) float64 {
	return hyper.MaxDistance() * math.Pow(0.5, difficulty/4)
}

// Distance returns the euclidean distance between the coordinate and the
// hypercube center.
func Distance(position hyper.Vector) float64 {
	return hyper.Distance(position, hyper.Center())
}

// Solved reports whether the hash satisfies the consensus predicate for the
// specified difficulty.
func Solved(difficulty float64, hash string) bool {
	position, err := Position(hash)
	if err != nil {
		return false
	}

	return Distance(position) < TargetDistance(difficulty)
}
