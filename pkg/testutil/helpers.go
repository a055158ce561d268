package testutil

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// RandomHashes returns n random hashes
func RandomHashes(n int) []merkle.Hash {
	hashes := make([]merkle.Hash, n)
	for i := range hashes {
		_, _ = rand.Read(hashes[i][:])
	}
	return hashes
}

// CreateTestBlock builds a block over txids whose header commits to their merkle root.
// The header is not a valid proof of work.
func CreateTestBlock(t *testing.T, height int64, prev merkle.Hash, txids []merkle.Hash) *bitcoin.Block {
	root, err := merkle.NewEngine(merkle.DoubleSHA256).ComputeRoot(txids)
	if t != nil {
		require.NoError(t, err)
	}

	return &bitcoin.Block{
		Height: height,
		Header: bitcoin.BlockHeader{
			Version:       0x20000000,
			PrevBlockHash: prev,
			MerkleRoot:    root,
			Timestamp:     uint32(1231006505 + height*600),
			Bits:          0x207fffff,
			Nonce:         uint32(height),
		},
		TxIDs: append([]merkle.Hash(nil), txids...),
	}
}
