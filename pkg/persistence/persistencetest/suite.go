// Package persistencetest holds the behavioral tests every IProofStore backend must pass.
package persistencetest

import (
	"crypto/rand"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
)

// StoreFactory returns a fresh, empty store. The suite closes it.
type StoreFactory func(t *testing.T) persistence.IProofStore

// RandomLeaves returns n random leaves.
func RandomLeaves(n int) []merkle.Hash {
	leaves := make([]merkle.Hash, n)
	for i := range leaves {
		_, _ = rand.Read(leaves[i][:])
	}
	return leaves
}

// BuildRecords proves every leaf of a random tree of n leaves.
func BuildRecords(t *testing.T, n int) []*persistence.ProofRecord {
	t.Helper()
	engine := merkle.NewEngine(merkle.DoubleSHA256)
	leaves := RandomLeaves(n)

	records := make([]*persistence.ProofRecord, n)
	for i := range leaves {
		mp, err := engine.BuildMerkleProof(leaves, i)
		require.NoError(t, err)
		records[i] = persistence.NewProofRecord(merkle.HasherNameDoubleSHA256, mp)
	}
	return records
}

// RunProofStoreSuite runs the IProofStore contract against stores from newStore.
func RunProofStoreSuite(t *testing.T, newStore StoreFactory) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := BuildRecords(t, 5)[3]
		blockHash := merkle.Hash{0xab}
		record.BlockHash = &blockHash
		record.BlockHeight = 100000

		require.NoError(t, store.SaveProof(record))

		loaded, err := store.LoadProof(record.Root, record.Leaf)
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, record.ID, loaded.ID)
		assert.Equal(t, record.Hasher, loaded.Hasher)
		assert.Equal(t, record.LeafIndex, loaded.LeafIndex)
		assert.Equal(t, record.LeafCount, loaded.LeafCount)
		assert.Equal(t, record.Steps, loaded.Steps)
		assert.Equal(t, record.BlockHash, loaded.BlockHash)
		assert.Equal(t, record.BlockHeight, loaded.BlockHeight)
		assert.Equal(t, record.CreatedAt, loaded.CreatedAt)

		// The loaded proof still verifies
		require.NoError(t, loaded.MerkleProof().Verify(merkle.NewEngine(merkle.DoubleSHA256)))
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		leaves := RandomLeaves(2)
		loaded, err := store.LoadProof(leaves[0], leaves[1])
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveInvalid", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.Error(t, store.SaveProof(nil))

		record := BuildRecords(t, 4)[0]
		record.Steps = record.Steps[:1]
		require.Error(t, store.SaveProof(record))
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := BuildRecords(t, 3)[1]
		require.NoError(t, store.SaveProof(record))

		updated := record.Clone()
		updated.ID = "replacement"
		require.NoError(t, store.SaveProof(updated))

		loaded, err := store.LoadProof(record.Root, record.Leaf)
		require.NoError(t, err)
		assert.Equal(t, "replacement", loaded.ID)

		listed, err := store.ListProofs(record.Root)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("MutationIsolation", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := BuildRecords(t, 4)[2]
		original := record.Clone()
		require.NoError(t, store.SaveProof(record))

		// Mutating the caller's copy after saving must not affect the stored record
		record.Steps[0].Hash[0] ^= 0xff
		loaded, err := store.LoadProof(original.Root, original.Leaf)
		require.NoError(t, err)
		assert.Equal(t, original.Steps, loaded.Steps)

		// Mutating a loaded record must not affect the stored one either
		loaded.Steps[0].Hash[0] ^= 0xff
		again, err := store.LoadProof(original.Root, original.Leaf)
		require.NoError(t, err)
		assert.Equal(t, original.Steps, again.Steps)
	})

	t.Run("ListSortedByLeafIndex", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		records := BuildRecords(t, 6)
		other := BuildRecords(t, 2)

		// Save out of order, plus a record under another root
		for _, i := range []int{4, 0, 5, 2} {
			require.NoError(t, store.SaveProof(records[i]))
		}
		require.NoError(t, store.SaveProof(other[0]))

		listed, err := store.ListProofs(records[0].Root)
		require.NoError(t, err)
		require.Len(t, listed, 4)
		for i, expected := range []int{0, 2, 4, 5} {
			assert.Equal(t, expected, listed[i].LeafIndex)
			assert.Equal(t, records[0].Root, listed[i].Root)
		}

		empty, err := store.ListProofs(merkle.Hash{0x01})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		records := BuildRecords(t, 2)
		require.NoError(t, store.SaveProof(records[0]))
		require.NoError(t, store.SaveProof(records[1]))

		require.NoError(t, store.DeleteProof(records[0].Root, records[0].Leaf))
		loaded, err := store.LoadProof(records[0].Root, records[0].Leaf)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		// Idempotent
		require.NoError(t, store.DeleteProof(records[0].Root, records[0].Leaf))

		listed, err := store.ListProofs(records[0].Root)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, records[1].ID, listed[0].ID)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		records := BuildRecords(t, 32)

		var wg sync.WaitGroup
		errs := make(chan error, len(records))
		for _, record := range records {
			wg.Add(1)
			go func(r *persistence.ProofRecord) {
				defer wg.Done()
				if err := store.SaveProof(r); err != nil {
					errs <- fmt.Errorf("save %d: %w", r.LeafIndex, err)
				}
			}(record)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		listed, err := store.ListProofs(records[0].Root)
		require.NoError(t, err)
		assert.Len(t, listed, len(records))
	})

	t.Run("HealthCheckAndClose", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())

		require.NoError(t, store.Close())
		require.NoError(t, store.Close(), "close is idempotent")

		record := BuildRecords(t, 2)[0]
		require.ErrorIs(t, store.SaveProof(record), persistence.ErrClosed)
		_, err := store.LoadProof(record.Root, record.Leaf)
		require.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.ListProofs(record.Root)
		require.ErrorIs(t, err, persistence.ErrClosed)
		require.ErrorIs(t, store.DeleteProof(record.Root, record.Leaf), persistence.ErrClosed)
		require.ErrorIs(t, store.HealthCheck(), persistence.ErrClosed)
	})
}
