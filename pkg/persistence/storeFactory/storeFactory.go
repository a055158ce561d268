// Package storeFactory opens the proof store backend selected by configuration.
package storeFactory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/config"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/badger"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/memory"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/redis"
)

// NewProofStore opens the configured backend. The caller owns the returned store and must Close it.
func NewProofStore(cfg *config.StoreConfig, l *zap.Logger) (persistence.IProofStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config cannot be nil")
	}
	if l == nil {
		l = zap.NewNop()
	}

	switch cfg.Type {
	case config.StoreTypeMemory, "":
		return memory.NewMemoryPersistence(), nil
	case config.StoreTypeBadger:
		return badger.NewBadgerPersistence(cfg.DataPath, l)
	case config.StoreTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported store type: %s (supported: %s)", cfg.Type, config.GetSupportedStoreTypesString())
	}
}
