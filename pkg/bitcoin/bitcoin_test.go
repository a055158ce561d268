package bitcoin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// Mainnet block 100000
var block100000 = &BlockDocument{
	Height:        100000,
	Version:       1,
	PrevBlockHash: "000000000002d01c1fccc21636b607dfd930d31d01c3a62104612a1719011250",
	MerkleRoot:    "f3e94742aca4b5ef85488dc37c06c3282295ffec960994b2c0d5ac2a25a95766",
	Timestamp:     1293623863,
	Bits:          0x1b04864c,
	Nonce:         274148111,
	Txns: []string{
		"8c14f0db3df150123e6f3dbbf30f8b955a8249b62ac1d1ff16284aefa3d06d87",
		"fff2525b8931402dd09222c50775608f75787bd2b87e56995a7bdd30f79702c4",
		"6359f0868171b1d194cbee1af2f16ea598ae8fad666d9b012c8ed2b79a236ec4",
		"e9a66845e05d5abc0ad04ec80f774a7e585c6e8db975962d069a522137b80c1d",
	},
}

const block100000Hash = "000000000003ba27aa200b1cecaad478d2b00432346c3f1f3986da1afd33e506"

func TestReverseHash(t *testing.T) {
	h := merkle.Hash{1, 2, 3}
	r := ReverseHash(h)
	require.Equal(t, byte(3), r[29])
	require.Equal(t, byte(1), r[31])
	require.Equal(t, h, ReverseHash(r))
	require.Equal(t, merkle.Hash{1, 2, 3}, h, "input is passed by value and never modified")
}

func TestDisplayHex(t *testing.T) {
	h, err := HashFromDisplayHex(block100000Hash)
	require.NoError(t, err)

	// Internal order puts the leading zero bytes of the display form last
	require.Equal(t, byte(0), h[31])
	require.Equal(t, block100000Hash, DisplayHex(h))

	_, err = HashFromDisplayHex("abcd")
	require.Error(t, err)

	_, err = HashesFromDisplayHex([]string{block100000Hash, "nothex"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "hash 1")
}

func TestBlockHeader_Hash(t *testing.T) {
	block, err := block100000.ToBlock()
	require.NoError(t, err)

	serialized := block.Header.Serialize()
	require.Len(t, serialized, HeaderLength)
	require.Equal(t, block100000Hash, DisplayHex(block.Hash()))

	parsed, err := ParseBlockHeader(serialized)
	require.NoError(t, err)
	require.Equal(t, block.Header, *parsed)

	_, err = ParseBlockHeader(serialized[:79])
	require.Error(t, err)
}

func TestBlock_VerifyMerkleRoot(t *testing.T) {
	engine := merkle.NewEngine(merkle.DoubleSHA256)

	t.Run("Valid block", func(t *testing.T) {
		block, err := block100000.ToBlock()
		require.NoError(t, err)
		require.NoError(t, block.VerifyMerkleRoot(engine))
	})

	t.Run("Reordered transactions", func(t *testing.T) {
		block, err := block100000.ToBlock()
		require.NoError(t, err)
		block.TxIDs[1], block.TxIDs[2] = block.TxIDs[2], block.TxIDs[1]

		err = block.VerifyMerkleRoot(engine)
		require.ErrorIs(t, err, ErrMerkleRootMismatch)
		require.Contains(t, err.Error(), block100000.MerkleRoot)
	})

	t.Run("Display order engine does not match internal order data", func(t *testing.T) {
		block, err := block100000.ToBlock()
		require.NoError(t, err)
		require.ErrorIs(t, block.VerifyMerkleRoot(merkle.NewEngine(merkle.DisplayOrder(merkle.DoubleSHA256))), ErrMerkleRootMismatch)
	})

	t.Run("No transactions", func(t *testing.T) {
		block := &Block{}
		require.ErrorIs(t, block.VerifyMerkleRoot(engine), merkle.ErrEmptyLeaves)
	})
}

func TestBlockDocument_RoundTrip(t *testing.T) {
	block, err := block100000.ToBlock()
	require.NoError(t, err)

	doc := NewBlockDocument(block)
	assert.Equal(t, block100000, doc)

	bad := *block100000
	bad.MerkleRoot = "xyz"
	_, err = bad.ToBlock()
	require.Error(t, err)
	require.Contains(t, err.Error(), "merkle_root")
}

func TestLoadBlockFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block_100000.json")

	data, err := json.Marshal(block100000)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	block, err := LoadBlockFile(path)
	require.NoError(t, err)
	require.Equal(t, int64(100000), block.Height)
	require.Len(t, block.TxIDs, 4)

	fromSource, err := FileBlockSource{}.GetBlock(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, block, fromSource)

	_, err = LoadBlockFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read block file")

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = LoadBlockFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse block file")
}

func TestParseLeaves(t *testing.T) {
	a := strings.Repeat("aa", 32)
	b := "0x" + strings.Repeat("bb", 32)

	t.Run("Lines", func(t *testing.T) {
		leaves, err := ParseLeaves([]byte("# txids\n" + a + "\r\n\n" + b + "\n"))
		require.NoError(t, err)
		require.Len(t, leaves, 2)
		require.Equal(t, byte(0xaa), leaves[0][0])
		require.Equal(t, byte(0xbb), leaves[1][31])
	})

	t.Run("JSON array", func(t *testing.T) {
		leaves, err := ParseLeaves([]byte(`["` + a + `", "` + b + `"]`))
		require.NoError(t, err)
		require.Len(t, leaves, 2)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ParseLeaves([]byte("\n# nothing\n"))
		require.ErrorIs(t, err, merkle.ErrEmptyLeaves)
	})

	t.Run("Bad hex", func(t *testing.T) {
		_, err := ParseLeaves([]byte(a + "\nnot-a-hash\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "leaf 1")
	})
}

func TestLoadLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaves.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(block100000.Txns, "\n")), 0o600))

	leaves, err := LoadLeavesFile(path)
	require.NoError(t, err)

	// Leaves are read as written, so display-order txids need a display-order hasher
	root, err := merkle.NewEngine(merkle.DisplayOrder(merkle.DoubleSHA256)).ComputeRoot(leaves)
	require.NoError(t, err)
	require.Equal(t, block100000.MerkleRoot, strings.TrimPrefix(root.Hex(), "0x"))
}
