package merkle

import (
	"fmt"
)

// Engine builds and verifies inclusion proofs over binary merkle trees.
// It holds no state besides its hasher and is safe for concurrent use.
type Engine struct {
	hasher Hasher
}

// NewEngine returns an engine using h to combine sibling pairs. A nil hasher selects DoubleSHA256.
func NewEngine(h Hasher) *Engine {
	if h == nil {
		h = DoubleSHA256
	}
	return &Engine{hasher: h}
}

// Hasher returns the pairing hash the engine was built with.
func (e *Engine) Hasher() Hasher {
	return e.hasher
}

// FindLeaf returns the index of the first leaf equal to target.
func FindLeaf(leaves []Hash, target Hash) (int, error) {
	for i, leaf := range leaves {
		if leaf == target {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrNotFound, target.Hex())
}

// Depth returns the number of levels above the leaves for a tree of leafCount leaves,
// which is also the length of every proof generated for it: ceil(log2(leafCount)).
func Depth(leafCount int) int {
	depth := 0
	for n := leafCount; n > 1; n = (n + 1) / 2 {
		depth++
	}
	return depth
}

// BuildProof locates the first occurrence of target in leaves and builds its proof.
// If leaf values are not unique, use BuildProofAtIndex to pick a specific position.
func (e *Engine) BuildProof(leaves []Hash, target Hash) (Proof, Hash, error) {
	if len(leaves) == 0 {
		return nil, Hash{}, ErrEmptyLeaves
	}

	index, err := FindLeaf(leaves, target)
	if err != nil {
		return nil, Hash{}, err
	}

	return e.BuildProofAtIndex(leaves, index)
}

// BuildProofAtIndex builds the tree bottom-up over leaves and returns the proof for the leaf at index
// together with the root. Leaf order is significant and is never changed. A level with an odd number of
// nodes pairs its last node with itself.
func (e *Engine) BuildProofAtIndex(leaves []Hash, index int) (Proof, Hash, error) {
	if len(leaves) == 0 {
		return nil, Hash{}, ErrEmptyLeaves
	}
	if index < 0 || index >= len(leaves) {
		return nil, Hash{}, fmt.Errorf("%w: index %d (tree has %d leaves)", ErrIndexOutOfRange, index, len(leaves))
	}

	proof := make(Proof, 0, Depth(len(leaves)))

	// Work on a copy so the caller's slice is never written to
	currentLevel := make([]Hash, len(leaves))
	copy(currentLevel, leaves)

	for len(currentLevel) > 1 {
		nextLevel := make([]Hash, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]

			// If odd number of nodes, duplicate the last one
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}

			nextLevel = append(nextLevel, e.hasher.Combine(left, right))

			switch index {
			case i:
				proof = append(proof, ProofStep{Hash: right, Direction: true})
			case i + 1:
				proof = append(proof, ProofStep{Hash: left, Direction: false})
			}
		}

		// Move to parent index in next level
		index /= 2
		currentLevel = nextLevel
	}

	return proof, currentLevel[0], nil
}

// BuildMerkleProof is BuildProofAtIndex returning the result as a self-describing bundle.
func (e *Engine) BuildMerkleProof(leaves []Hash, index int) (*MerkleProof, error) {
	proof, root, err := e.BuildProofAtIndex(leaves, index)
	if err != nil {
		return nil, err
	}

	return &MerkleProof{
		LeafIndex: index,
		LeafCount: len(leaves),
		Leaf:      leaves[index],
		Root:      root,
		Steps:     proof,
	}, nil
}

// ComputeRoot returns the merkle root of leaves without tracking any proof.
func (e *Engine) ComputeRoot(leaves []Hash) (Hash, error) {
	if len(leaves) == 0 {
		return Hash{}, ErrEmptyLeaves
	}

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([]Hash, 0, (len(currentLevel)+1)/2)
		for i := 0; i < len(currentLevel); i += 2 {
			right := currentLevel[i]
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, e.hasher.Combine(currentLevel[i], right))
		}
		currentLevel = nextLevel
	}

	return currentLevel[0], nil
}
