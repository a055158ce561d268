package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// ErrClosed is returned by every store operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// ProofRecord is a stored inclusion proof together with what it proves.
type ProofRecord struct {
	// ID uniquely identifies this record
	ID string `json:"id"`

	// Hasher is the merkle.Hasher name the proof was generated with
	Hasher string `json:"hasher"`

	Root      merkle.Hash  `json:"root"`
	Leaf      merkle.Hash  `json:"leaf"`
	LeafIndex int          `json:"leafIndex"`
	LeafCount int          `json:"leafCount"`
	Steps     merkle.Proof `json:"steps"`

	// BlockHash and BlockHeight are set when the leaf set came from a block
	BlockHash   *merkle.Hash `json:"blockHash,omitempty"`
	BlockHeight int64        `json:"blockHeight,omitempty"`

	// CreatedAt is the Unix timestamp when the proof was generated
	CreatedAt int64 `json:"createdAt"`
}

// NewProofRecord wraps a freshly built proof in a record with a new ID.
func NewProofRecord(hasher string, mp *merkle.MerkleProof) *ProofRecord {
	return &ProofRecord{
		ID:        uuid.New().String(),
		Hasher:    hasher,
		Root:      mp.Root,
		Leaf:      mp.Leaf,
		LeafIndex: mp.LeafIndex,
		LeafCount: mp.LeafCount,
		Steps:     mp.Steps.Clone(),
		CreatedAt: time.Now().Unix(),
	}
}

// MerkleProof converts the record back to the engine's proof bundle.
func (r *ProofRecord) MerkleProof() *merkle.MerkleProof {
	return &merkle.MerkleProof{
		LeafIndex: r.LeafIndex,
		LeafCount: r.LeafCount,
		Leaf:      r.Leaf,
		Root:      r.Root,
		Steps:     r.Steps.Clone(),
	}
}

// Validate checks the record's shape. It does not replay the proof.
func (r *ProofRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}
	if r.ID == "" {
		return fmt.Errorf("proof record ID cannot be empty")
	}
	if r.LeafCount < 1 {
		return fmt.Errorf("proof record leaf count must be positive, got %d", r.LeafCount)
	}
	if r.LeafIndex < 0 || r.LeafIndex >= r.LeafCount {
		return fmt.Errorf("proof record leaf index %d out of range for %d leaves", r.LeafIndex, r.LeafCount)
	}
	if depth := merkle.Depth(r.LeafCount); len(r.Steps) != depth {
		return fmt.Errorf("proof record has %d steps, a tree of %d leaves needs %d", len(r.Steps), r.LeafCount, depth)
	}
	return nil
}

// Clone returns a deep copy so stores never share memory with callers.
func (r *ProofRecord) Clone() *ProofRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Steps = r.Steps.Clone()
	if r.BlockHash != nil {
		h := *r.BlockHash
		clone.BlockHash = &h
	}
	return &clone
}

// ProofKey is the storage key suffix for (root, leaf).
func ProofKey(root, leaf merkle.Hash) string {
	return root.Hex() + ":" + leaf.Hex()
}
