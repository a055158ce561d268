package badger

import (
	"testing"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/logger"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/persistencetest"
)

func newTestStore(t *testing.T, dir string) *BadgerPersistence {
	t.Helper()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(dir, testLogger)
	require.NoError(t, err)
	return bp
}

func TestBadgerPersistence(t *testing.T) {
	persistencetest.RunProofStoreSuite(t, func(t *testing.T) persistence.IProofStore {
		return newTestStore(t, t.TempDir())
	})
}

func TestBadgerPersistence_SurvivesReopen(t *testing.T) {
	tmpDir := t.TempDir()
	records := persistencetest.BuildRecords(t, 3)

	bp := newTestStore(t, tmpDir)
	for _, record := range records {
		require.NoError(t, bp.SaveProof(record))
	}
	require.NoError(t, bp.Close())

	reopened := newTestStore(t, tmpDir)
	defer func() { _ = reopened.Close() }()

	listed, err := reopened.ListProofs(records[0].Root)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, record := range listed {
		require.Equal(t, records[i].ID, record.ID)
	}
}

func TestBadgerPersistence_SchemaMismatch(t *testing.T) {
	tmpDir := t.TempDir()

	bp := newTestStore(t, tmpDir)
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, bp.Close())

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	_, err := NewBadgerPersistence(tmpDir, testLogger)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported schema version")
}

func TestBadgerPersistence_SkipsCorruptRecords(t *testing.T) {
	bp := newTestStore(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	record := persistencetest.BuildRecords(t, 2)[1]
	require.NoError(t, bp.SaveProof(record))

	// A garbage value under the same root prefix is skipped by listing
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(append(rootPrefix(record.Root), []byte("garbage")...), []byte("{"))
	}))

	listed, err := bp.ListProofs(record.Root)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, record.ID, listed[0].ID)
}
