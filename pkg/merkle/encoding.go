package merkle

import (
	"fmt"
)

const (
	// MaxProofDepth is the fixed proof length used by fixed-arity consumers such as circuit inputs.
	// 20 levels covers blocks of up to 2^20 transactions.
	MaxProofDepth = 20

	// EncodedStepLength is the size of one step in the flat encoding: sibling hash then direction byte.
	EncodedStepLength = HashLength + 1
)

// EncodeProof serializes proof as consecutive 33-byte records. The direction byte is 1 when the
// sibling is on the right and 0 otherwise.
func EncodeProof(proof Proof) []byte {
	out := make([]byte, 0, len(proof)*EncodedStepLength)
	for _, step := range proof {
		out = append(out, step.Hash[:]...)
		if step.Direction {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// DecodeProof parses the output of EncodeProof.
func DecodeProof(data []byte) (Proof, error) {
	if len(data)%EncodedStepLength != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedProof, len(data), EncodedStepLength)
	}

	proof := make(Proof, 0, len(data)/EncodedStepLength)
	for offset := 0; offset < len(data); offset += EncodedStepLength {
		var step ProofStep
		copy(step.Hash[:], data[offset:offset+HashLength])

		switch data[offset+HashLength] {
		case 0:
			step.Direction = false
		case 1:
			step.Direction = true
		default:
			return nil, fmt.Errorf("%w: invalid direction byte 0x%02x at step %d",
				ErrMalformedProof, data[offset+HashLength], offset/EncodedStepLength)
		}

		proof = append(proof, step)
	}

	return proof, nil
}

// PadProof extends proof to exactly depth steps with zero-hash, left-direction filler steps.
// Padded proofs are for consumers that take a fixed number of steps; Verify expects the unpadded proof.
func PadProof(proof Proof, depth int) (Proof, error) {
	if len(proof) > depth {
		return nil, fmt.Errorf("%w: proof has %d steps, maximum is %d", ErrProofTooLong, len(proof), depth)
	}

	padded := make(Proof, depth)
	copy(padded, proof)
	return padded, nil
}
