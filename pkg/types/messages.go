package types

import (
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// ProveLeafRequest asks for proofs of leaves in Leaves.
// Exactly one of Targets or Index must be set.
type ProveLeafRequest struct {
	Leaves  []merkle.Hash `json:"leaves"`
	Targets []merkle.Hash `json:"targets,omitempty"`
	Index   *int          `json:"index,omitempty"`
	Pad     bool          `json:"pad,omitempty"`
}

// ProveLeafResponse carries one proof per requested target, in request order
type ProveLeafResponse struct {
	Proofs []*ProofDocument `json:"proofs"`
}

// ProveTxRequest asks for a proof of TxID in Block. Both are display-order hex; Block may be a height.
type ProveTxRequest struct {
	Block string `json:"block"`
	TxID  string `json:"txid"`
}

// VerifyRequest checks a proof for (Root, Leaf). With neither Steps nor Encoded the stored proof is used.
type VerifyRequest struct {
	Root    merkle.Hash        `json:"root"`
	Leaf    merkle.Hash        `json:"leaf"`
	Steps   merkle.Proof       `json:"steps,omitempty"`
	Encoded string             `json:"encoded,omitempty"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports the server's configuration
type HealthResponse struct {
	Status string `json:"status"`
	Hasher string `json:"hasher"`
	Source bool   `json:"blockSource"`
}
