package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/logger"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/persistencetest"
)

// getTestRedisAddress returns the Redis address for testing.
// Uses REDIS_TEST_ADDRESS env var if set, otherwise defaults to localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test if Redis is not reachable. Every store gets its
// own key prefix, and its keys are removed when the test ends.
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15, // Use DB 15 for tests to avoid conflicts
		KeyPrefix: "test-" + uuid.NewString() + ":",
	}

	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}

	t.Cleanup(func() { cleanupRedis(cfg) })
	return rp
}

func cleanupRedis(cfg *RedisConfig) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		return
	}
	defer func() { _ = rp.Close() }()

	ctx := context.Background()
	iter := rp.client.Scan(ctx, 0, cfg.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rp.client.Del(ctx, iter.Val())
	}
}

func TestRedisPersistence(t *testing.T) {
	persistencetest.RunProofStoreSuite(t, func(t *testing.T) persistence.IProofStore {
		return requireRedis(t)
	})
}

func TestRedisPersistence_StaleIndexEntryDropped(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	records := persistencetest.BuildRecords(t, 2)
	for _, record := range records {
		require.NoError(t, rp.SaveProof(record))
	}

	// Remove the value but leave the index entry behind
	ctx := context.Background()
	require.NoError(t, rp.client.Del(ctx, rp.proofKey(records[0].Root, records[0].Leaf)).Err())

	listed, err := rp.ListProofs(records[0].Root)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, records[1].ID, listed[0].ID)

	isMember, err := rp.client.SIsMember(ctx, rp.indexKey(records[0].Root), records[0].Leaf.Hex()).Result()
	require.NoError(t, err)
	require.False(t, isMember)
}

func TestRedisPersistence_KeyPrefixIsolation(t *testing.T) {
	first := requireRedis(t)
	defer func() { _ = first.Close() }()
	second := requireRedis(t)
	defer func() { _ = second.Close() }()

	record := persistencetest.BuildRecords(t, 2)[0]
	require.NoError(t, first.SaveProof(record))

	loaded, err := second.LoadProof(record.Root, record.Leaf)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisPersistence_Config_Nil(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	_, err := NewRedisPersistence(nil, testLogger)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be nil")
}

func TestRedisPersistence_Config_EmptyAddress(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	_, err := NewRedisPersistence(&RedisConfig{}, testLogger)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be empty")
}
