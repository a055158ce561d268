package merkle

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the target leaf is not part of the leaf set.
	ErrNotFound = errors.New("leaf not found in leaf set")

	// ErrProofInvalid is returned when replaying a proof does not reproduce the claimed root.
	ErrProofInvalid = errors.New("merkle proof verification failed")

	// ErrEmptyLeaves is returned when a tree is requested over zero leaves.
	ErrEmptyLeaves = errors.New("cannot build merkle tree from empty leaf set")

	// ErrIndexOutOfRange is returned when a leaf index does not address the leaf set.
	ErrIndexOutOfRange = errors.New("leaf index out of range")

	// ErrProofTooLong is returned when a proof does not fit the requested fixed depth.
	ErrProofTooLong = errors.New("proof exceeds maximum depth")

	// ErrMalformedProof is returned when an encoded proof cannot be decoded.
	ErrMalformedProof = errors.New("malformed proof encoding")
)

// VerificationError reports the root a proof actually produced next to the root it was checked against.
type VerificationError struct {
	Expected Hash
	Computed Hash
	Steps    int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: computed root %s does not match expected root %s (%d steps)",
		ErrProofInvalid, e.Computed.Hex(), e.Expected.Hex(), e.Steps)
}

// Unwrap lets errors.Is(err, ErrProofInvalid) match.
func (e *VerificationError) Unwrap() error {
	return ErrProofInvalid
}
