package merkle

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	HasherNameDoubleSHA256 = "sha256d"
	HasherNameKeccak256    = "keccak256"

	displayOrderSuffix = "-display"
)

// Hasher combines two child nodes into their parent.
// Implementations must be pure: same inputs, same output, inputs untouched.
type Hasher interface {
	Combine(left, right Hash) Hash
	Name() string
}

type doubleSHA256 struct{}

// DoubleSHA256 is the Bitcoin pairing hash: sha256(sha256(left || right)).
var DoubleSHA256 Hasher = doubleSHA256{}

func (doubleSHA256) Combine(left, right Hash) Hash {
	var data [2 * HashLength]byte
	copy(data[:HashLength], left[:])
	copy(data[HashLength:], right[:])

	first := sha256.Sum256(data[:])
	return Hash(sha256.Sum256(first[:]))
}

func (doubleSHA256) Name() string {
	return HasherNameDoubleSHA256
}

type keccak256 struct{}

// Keccak256 hashes keccak256(left || right), matching Solidity's abi.encodePacked pair hashing.
var Keccak256 Hasher = keccak256{}

func (keccak256) Combine(left, right Hash) Hash {
	return Hash(crypto.Keccak256Hash(left[:], right[:]))
}

func (keccak256) Name() string {
	return HasherNameKeccak256
}

type displayOrder struct {
	inner Hasher
}

// DisplayOrder wraps h for callers whose hashes are byte-reversed relative to what h expects,
// e.g. txids copied from a block explorer. Inputs are reversed before combining and the result is
// reversed back, so the whole tree stays in display order.
func DisplayOrder(h Hasher) Hasher {
	return displayOrder{inner: h}
}

func (d displayOrder) Combine(left, right Hash) Hash {
	return reverse(d.inner.Combine(reverse(left), reverse(right)))
}

func (d displayOrder) Name() string {
	return d.inner.Name() + displayOrderSuffix
}

func reverse(h Hash) Hash {
	for i, j := 0, HashLength-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return h
}

// HasherByName resolves a hasher from its Name(). Names are case-insensitive.
func HasherByName(name string) (Hasher, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	base, display := strings.CutSuffix(name, displayOrderSuffix)

	var h Hasher
	switch base {
	case HasherNameDoubleSHA256, "":
		h = DoubleSHA256
	case HasherNameKeccak256:
		h = Keccak256
	default:
		return nil, fmt.Errorf("unsupported hasher: %q", name)
	}

	if display {
		return DisplayOrder(h), nil
	}
	return h, nil
}
