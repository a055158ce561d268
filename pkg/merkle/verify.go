package merkle

// ReplayProof folds proof into leaf and returns the root it produces.
func (e *Engine) ReplayProof(leaf Hash, proof Proof) Hash {
	current := leaf
	for _, step := range proof {
		if step.Direction {
			// Sibling is on the right
			current = e.hasher.Combine(current, step.Hash)
		} else {
			current = e.hasher.Combine(step.Hash, current)
		}
	}
	return current
}

// Verify checks that proof reproduces root from leaf. It returns nil on success and a
// *VerificationError wrapping ErrProofInvalid otherwise.
//
// The step count is not checked against any tree depth: proofs from BuildProof always have the right
// length, and a proof of the wrong length cannot reproduce the root anyway.
func (e *Engine) Verify(root, leaf Hash, proof Proof) error {
	computed := e.ReplayProof(leaf, proof)
	if computed != root {
		return &VerificationError{
			Expected: root,
			Computed: computed,
			Steps:    len(proof),
		}
	}
	return nil
}

// IsValid is Verify for callers that only need a yes/no answer.
func (e *Engine) IsValid(root, leaf Hash, proof Proof) bool {
	return e.Verify(root, leaf, proof) == nil
}
