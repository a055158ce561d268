package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

func TestMockChain(t *testing.T) {
	ctx := context.Background()
	chain := NewMockChain(nil)

	tip, err := chain.GetBlockCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tip)

	txids := RandomHashes(5)
	added := chain.AddBlock(txids...)

	tip, err = chain.GetBlockCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tip)

	t.Run("By height", func(t *testing.T) {
		block, err := chain.GetBlock(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, added, block)
		require.NoError(t, block.VerifyMerkleRoot(merkle.NewEngine(merkle.DoubleSHA256)))
	})

	t.Run("By hash", func(t *testing.T) {
		block, err := chain.GetBlock(ctx, bitcoin.DisplayHex(added.Hash()))
		require.NoError(t, err)
		assert.Equal(t, int64(1), block.Height)
	})

	t.Run("Blocks are linked", func(t *testing.T) {
		genesis, err := chain.GetBlock(ctx, "0")
		require.NoError(t, err)
		assert.Equal(t, genesis.Hash(), added.Header.PrevBlockHash)
	})

	t.Run("Unknown block", func(t *testing.T) {
		_, err := chain.GetBlock(ctx, "2")
		require.Error(t, err)
		// An all-digit hash is still a hash, not a height
		_, err = chain.GetBlock(ctx, bitcoin.DisplayHex(merkle.Hash{0x01}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		_, err = chain.GetBlock(ctx, "tip")
		require.Error(t, err)
	})
}
