package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// ProofDocument is the JSON form of a proof handed out by the CLI and the proof API.
type ProofDocument struct {
	Hasher string `json:"hasher"`
	*merkle.MerkleProof
	Encoded     string `json:"encoded"`
	Padded      bool   `json:"padded,omitempty"`
	TxID        string `json:"txid,omitempty"`
	BlockHash   string `json:"blockHash,omitempty"`
	BlockHeight int64  `json:"blockHeight,omitempty"`
}

// NewProofDocument wraps mp. With pad the encoded form is padded to merkle.MaxProofDepth steps;
// the structured steps are never padded.
func NewProofDocument(hasher string, mp *merkle.MerkleProof, pad bool) (*ProofDocument, error) {
	steps := mp.Steps
	if pad {
		padded, err := merkle.PadProof(mp.Steps, merkle.MaxProofDepth)
		if err != nil {
			return nil, err
		}
		steps = padded
	}

	return &ProofDocument{
		Hasher:      hasher,
		MerkleProof: mp,
		Encoded:     hexutil.Encode(merkle.EncodeProof(steps)),
		Padded:      pad,
	}, nil
}

// RootDocument describes the root of a leaf set
type RootDocument struct {
	Hasher    string      `json:"hasher"`
	Root      merkle.Hash `json:"root"`
	LeafCount int         `json:"leafCount"`
	Depth     int         `json:"depth"`
}

// VerifyDocument reports a verification outcome. Computed is only set for a rejected proof.
type VerifyDocument struct {
	Valid    bool         `json:"valid"`
	Hasher   string       `json:"hasher"`
	Root     merkle.Hash  `json:"root"`
	Leaf     merkle.Hash  `json:"leaf"`
	Computed *merkle.Hash `json:"computed,omitempty"`
	Steps    int          `json:"steps"`
	Source   string       `json:"source"`
}

// HeaderDocument holds a block header's hashes in display order
type HeaderDocument struct {
	Hash       string `json:"hash"`
	MerkleRoot string `json:"merkleRoot"`
	PrevBlock  string `json:"prevBlockHash"`
}
