package merkle

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomHash generates a random 32-byte hash for testing
func randomHash() Hash {
	var hash Hash
	_, _ = rand.Read(hash[:]) // Ignore error in test helper
	return hash
}

// createTestLeaves creates n distinct random leaves
func createTestLeaves(n int) []Hash {
	leaves := make([]Hash, n)
	for i := range leaves {
		leaves[i] = randomHash()
	}
	return leaves
}

// TestBuildProof builds proofs for every leaf of trees of various sizes and verifies them
func TestBuildProof(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
		depth     int
	}{
		{"Single leaf", 1, 0},
		{"Two leaves", 2, 1},
		{"Three leaves", 3, 2},
		{"Four leaves (power of 2)", 4, 2},
		{"Five leaves", 5, 3},
		{"Seven leaves", 7, 3},
		{"Eight leaves (power of 2)", 8, 3},
		{"Fifteen leaves", 15, 4},
		{"Sixteen leaves (power of 2)", 16, 4},
		{"Thirty three leaves", 33, 6},
	}

	for _, hasher := range []Hasher{DoubleSHA256, Keccak256, DisplayOrder(DoubleSHA256)} {
		engine := NewEngine(hasher)

		for _, tc := range testCases {
			t.Run(hasher.Name()+"/"+tc.name, func(t *testing.T) {
				leaves := createTestLeaves(tc.numLeaves)

				expectedRoot, err := engine.ComputeRoot(leaves)
				require.NoError(t, err)

				for i, leaf := range leaves {
					proof, root, err := engine.BuildProof(leaves, leaf)
					require.NoError(t, err)
					require.Equal(t, expectedRoot, root)
					require.Len(t, proof, tc.depth)
					require.Equal(t, tc.depth, Depth(tc.numLeaves))

					require.NoError(t, engine.Verify(root, leaf, proof), "proof for leaf %d should be valid", i)
					require.True(t, engine.IsValid(root, leaf, proof))
				}
			})
		}
	}
}

func TestBuildProof_SingleLeaf(t *testing.T) {
	engine := NewEngine(nil)
	leaf := randomHash()

	proof, root, err := engine.BuildProof([]Hash{leaf}, leaf)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.Equal(t, leaf, root)
	require.NoError(t, engine.Verify(root, leaf, proof))
}

// TestBuildProof_OddLevel exercises the duplicate-last-node rule on [A, B, C]
func TestBuildProof_OddLevel(t *testing.T) {
	engine := NewEngine(DoubleSHA256)
	a, b, c := randomHash(), randomHash(), randomHash()
	leaves := []Hash{a, b, c}

	ab := DoubleSHA256.Combine(a, b)
	cc := DoubleSHA256.Combine(c, c)
	expectedRoot := DoubleSHA256.Combine(ab, cc)

	t.Run("Target C", func(t *testing.T) {
		proof, root, err := engine.BuildProof(leaves, c)
		require.NoError(t, err)
		require.Equal(t, expectedRoot, root)
		require.Equal(t, Proof{
			{Hash: c, Direction: true},
			{Hash: ab, Direction: false},
		}, proof)
	})

	t.Run("Target A", func(t *testing.T) {
		proof, root, err := engine.BuildProof(leaves, a)
		require.NoError(t, err)
		require.Equal(t, expectedRoot, root)
		require.Equal(t, Proof{
			{Hash: b, Direction: true},
			{Hash: cc, Direction: true},
		}, proof)
	})

	t.Run("Target B", func(t *testing.T) {
		proof, _, err := engine.BuildProof(leaves, b)
		require.NoError(t, err)
		require.Equal(t, Proof{
			{Hash: a, Direction: false},
			{Hash: cc, Direction: true},
		}, proof)
	})
}

func TestBuildProof_Errors(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(4)

	t.Run("Target not found", func(t *testing.T) {
		proof, root, err := engine.BuildProof(leaves, randomHash())
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrNotFound))
		require.Nil(t, proof)
		require.True(t, root.IsZero())
	})

	t.Run("Empty leaves", func(t *testing.T) {
		_, _, err := engine.BuildProof(nil, randomHash())
		require.ErrorIs(t, err, ErrEmptyLeaves)

		_, err = engine.ComputeRoot([]Hash{})
		require.ErrorIs(t, err, ErrEmptyLeaves)
	})

	t.Run("Negative index", func(t *testing.T) {
		_, _, err := engine.BuildProofAtIndex(leaves, -1)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("Index out of bounds", func(t *testing.T) {
		mp, err := engine.BuildMerkleProof(leaves, 10)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		require.Nil(t, mp)
	})
}

func TestBuildProof_DoesNotMutateLeaves(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(7)
	original := make([]Hash, len(leaves))
	copy(original, leaves)

	_, _, err := engine.BuildProof(leaves, leaves[6])
	require.NoError(t, err)
	_, err = engine.ComputeRoot(leaves)
	require.NoError(t, err)

	require.Equal(t, original, leaves)
}

// TestBuildProof_DuplicateLeaves checks that lookup by value picks the first occurrence and that
// the index entry point can address the later one
func TestBuildProof_DuplicateLeaves(t *testing.T) {
	engine := NewEngine(nil)
	dup := randomHash()
	leaves := []Hash{randomHash(), dup, randomHash(), dup}

	byValue, root, err := engine.BuildProof(leaves, dup)
	require.NoError(t, err)

	first, _, err := engine.BuildProofAtIndex(leaves, 1)
	require.NoError(t, err)
	require.Equal(t, first, byValue)

	second, secondRoot, err := engine.BuildProofAtIndex(leaves, 3)
	require.NoError(t, err)
	require.Equal(t, root, secondRoot)
	require.NotEqual(t, first, second)

	require.NoError(t, engine.Verify(root, dup, first))
	require.NoError(t, engine.Verify(root, dup, second))
}

func TestBuildMerkleProof(t *testing.T) {
	engine := NewEngine(Keccak256)
	leaves := createTestLeaves(9)

	mp, err := engine.BuildMerkleProof(leaves, 8)
	require.NoError(t, err)
	require.Equal(t, 8, mp.LeafIndex)
	require.Equal(t, 9, mp.LeafCount)
	require.Equal(t, leaves[8], mp.Leaf)
	require.NoError(t, mp.Verify(engine))

	// A different hasher cannot verify it
	require.ErrorIs(t, mp.Verify(NewEngine(DoubleSHA256)), ErrProofInvalid)

	var nilProof *MerkleProof
	require.ErrorIs(t, nilProof.Verify(engine), ErrProofInvalid)
}

// TestVerify_WrongLeaf substitutes every other leaf into a proof and expects rejection
func TestVerify_WrongLeaf(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(11)

	for i := range leaves {
		proof, root, err := engine.BuildProofAtIndex(leaves, i)
		require.NoError(t, err)

		for j := range leaves {
			if j == i {
				continue
			}
			err := engine.Verify(root, leaves[j], proof)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrProofInvalid)

			var verr *VerificationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, root, verr.Expected)
			require.NotEqual(t, root, verr.Computed)
			require.Equal(t, len(proof), verr.Steps)
		}
	}
}

func TestVerify_WrongRoot(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(4)

	proof, _, err := engine.BuildProof(leaves, leaves[0])
	require.NoError(t, err)

	invalidRoot := Hash{1, 2, 3, 4, 5}
	require.False(t, engine.IsValid(invalidRoot, leaves[0], proof))
}

// TestVerify_TamperedStep flips every byte of every sibling hash in turn
func TestVerify_TamperedStep(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(13)

	for i, leaf := range leaves {
		proof, root, err := engine.BuildProofAtIndex(leaves, i)
		require.NoError(t, err)

		for s := range proof {
			for b := 0; b < HashLength; b++ {
				tampered := proof.Clone()
				tampered[s].Hash[b] ^= 0x01
				require.False(t, engine.IsValid(root, leaf, tampered), "leaf %d step %d byte %d", i, s, b)
			}
		}

		// The original proof is untouched by the tampering above
		require.True(t, engine.IsValid(root, leaf, proof))
	}
}

func TestVerify_TamperedDirection(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(8)

	proof, root, err := engine.BuildProofAtIndex(leaves, 5)
	require.NoError(t, err)

	for s := range proof {
		tampered := proof.Clone()
		tampered[s].Direction = !tampered[s].Direction
		require.ErrorIs(t, engine.Verify(root, leaves[5], tampered), ErrProofInvalid)
	}
}

func TestVerify_WrongLength(t *testing.T) {
	engine := NewEngine(nil)
	leaves := createTestLeaves(8)

	proof, root, err := engine.BuildProofAtIndex(leaves, 3)
	require.NoError(t, err)

	require.ErrorIs(t, engine.Verify(root, leaves[3], proof[:len(proof)-1]), ErrProofInvalid)

	extended := append(proof.Clone(), ProofStep{Hash: randomHash(), Direction: true})
	require.ErrorIs(t, engine.Verify(root, leaves[3], extended), ErrProofInvalid)

	// An empty proof only verifies a leaf against itself
	require.ErrorIs(t, engine.Verify(root, leaves[3], nil), ErrProofInvalid)
	require.NoError(t, engine.Verify(leaves[3], leaves[3], nil))
}

func TestDepth(t *testing.T) {
	cases := map[int]int{
		0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1024: 10, 1025: 11,
	}
	for n, expected := range cases {
		assert.Equal(t, expected, Depth(n), "Depth(%d)", n)
	}
}

func TestFindLeaf(t *testing.T) {
	leaves := createTestLeaves(5)

	idx, err := FindLeaf(leaves, leaves[3])
	require.NoError(t, err)
	require.Equal(t, 3, idx)

	idx, err = FindLeaf(leaves, randomHash())
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, -1, idx)
	require.Contains(t, err.Error(), "0x")
}

func TestNewEngine_DefaultHasher(t *testing.T) {
	require.Equal(t, HasherNameDoubleSHA256, NewEngine(nil).Hasher().Name())
	require.Equal(t, HasherNameKeccak256, NewEngine(Keccak256).Hasher().Name())
}

// FuzzBuildAndVerify builds a tree from fuzzer-chosen leaves and checks the proof round trip
func FuzzBuildAndVerify(f *testing.F) {
	f.Add(make([]byte, 32), uint8(0))
	f.Add(make([]byte, 96), uint8(2))
	f.Add([]byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef_"), uint8(1))

	engine := NewEngine(nil)

	f.Fuzz(func(t *testing.T, data []byte, pick uint8) {
		n := len(data) / HashLength
		if n == 0 {
			return
		}
		leaves := make([]Hash, n)
		for i := range leaves {
			copy(leaves[i][:], data[i*HashLength:(i+1)*HashLength])
		}
		index := int(pick) % n

		proof, root, err := engine.BuildProofAtIndex(leaves, index)
		require.NoError(t, err)
		require.Len(t, proof, Depth(n))
		require.NoError(t, engine.Verify(root, leaves[index], proof))

		expectedRoot, err := engine.ComputeRoot(leaves)
		require.NoError(t, err)
		require.Equal(t, expectedRoot, root)
	})
}
