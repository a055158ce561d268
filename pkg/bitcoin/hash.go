package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// ReverseHash flips the byte order of h. Bitcoin hashes are computed over one order and displayed in
// the other, so txids from an explorer or RPC must be reversed before hashing.
func ReverseHash(h merkle.Hash) merkle.Hash {
	for i, j := 0, merkle.HashLength-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return h
}

// HashFromDisplayHex parses an explorer-style hash and returns it in internal byte order.
func HashFromDisplayHex(s string) (merkle.Hash, error) {
	h, err := merkle.HexToHash(strings.TrimSpace(s))
	if err != nil {
		return merkle.Hash{}, err
	}
	return ReverseHash(h), nil
}

// DisplayHex renders an internal-order hash the way explorers and bitcoind print it (no 0x prefix).
func DisplayHex(h merkle.Hash) string {
	r := ReverseHash(h)
	return hex.EncodeToString(r[:])
}

// HashesFromDisplayHex converts a list of explorer-style hashes to internal byte order.
func HashesFromDisplayHex(hexes []string) ([]merkle.Hash, error) {
	out := make([]merkle.Hash, len(hexes))
	for i, s := range hexes {
		h, err := HashFromDisplayHex(s)
		if err != nil {
			return nil, fmt.Errorf("hash %d: %w", i, err)
		}
		out[i] = h
	}
	return out, nil
}
