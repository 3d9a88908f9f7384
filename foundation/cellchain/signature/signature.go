// Package signature provides the canonical hashing support for the chain.
package signature

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Hash returns a unique hash for the value. The value is marshaled to JSON
// first so the digest is taken over a canonical byte form. Go marshals struct
// fields in declaration order, so the same value always produces the same
// bytes and therefore the same hash.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// ToBytes converts a hex-encoded hash string into its raw 32 byte digest.
func ToBytes(hash string) ([]byte, error) {
	return hexutil.Decode(hash)
}
