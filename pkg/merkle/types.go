package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HashLength is the size in bytes of every leaf, node and root.
const HashLength = 32

// Hash is an opaque 32-byte tree node. Bytes are kept in whatever order the caller supplied;
// nothing in this package reverses them.
type Hash [HashLength]byte

// BytesToHash copies b into a Hash. b must be exactly HashLength bytes.
func BytesToHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLength {
		return h, fmt.Errorf("invalid hash length: expected %d bytes, got %d", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HexToHash decodes a 0x-prefixed (or bare) 64 character hex string without reordering bytes.
func HexToHash(s string) (Hash, error) {
	if len(s) < 2 || s[:2] != "0x" && s[:2] != "0X" {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex %q: %w", s, err)
	}
	return BytesToHash(b)
}

// Bytes returns a copy of the hash as a slice.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

// Hex returns the 0x-prefixed hex encoding.
func (h Hash) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether every byte is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler. The 0x prefix is optional, as in HexToHash.
func (h *Hash) UnmarshalText(input []byte) error {
	parsed, err := HexToHash(string(input))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ProofStep is one level of an inclusion proof.
type ProofStep struct {
	// Hash is the sibling of the node being combined at this level
	Hash Hash `json:"hash"`

	// Direction is true when the sibling sits to the right of the tracked node
	Direction bool `json:"direction"`
}

// Proof is the ordered list of steps from the leaf level up to the root.
type Proof []ProofStep

// Clone returns a deep copy of the proof.
func (p Proof) Clone() Proof {
	if p == nil {
		return nil
	}
	out := make(Proof, len(p))
	copy(out, p)
	return out
}

// MerkleProof bundles a proof with the leaf and root it was generated for.
type MerkleProof struct {
	// LeafIndex is the position of the leaf in the leaf set the tree was built from
	LeafIndex int `json:"leafIndex"`

	// LeafCount is the number of leaves the tree was built from
	LeafCount int `json:"leafCount"`

	// Leaf is the hash being proven
	Leaf Hash `json:"leaf"`

	// Root is the merkle root computed while building the proof
	Root Hash `json:"root"`

	// Steps contains the sibling hashes from leaf to root
	Steps Proof `json:"steps"`
}

// Verify replays the bundled proof with e and checks it against the bundled root.
func (mp *MerkleProof) Verify(e *Engine) error {
	if mp == nil {
		return fmt.Errorf("%w: nil proof", ErrProofInvalid)
	}
	return e.Verify(mp.Root, mp.Leaf, mp.Steps)
}
