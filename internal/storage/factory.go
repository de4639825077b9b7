// Package storage selects and opens the durable document store.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/storage/memory"
	"github.com/bobmcallan/portfoliohub/internal/storage/redisdb"
	"github.com/bobmcallan/portfoliohub/internal/storage/surrealdb"
	"github.com/bobmcallan/portfoliohub/internal/storage/userdb"
)

// Backend type constants.
const (
	BackendMemory    = "memory"
	BackendBadger    = "badger"
	BackendSurrealDB = "surrealdb"
	BackendRedis     = "redis"
)

// NewUserDataStore opens the backend named by config.Storage.Backend.
// An empty backend defaults to badger.
func NewUserDataStore(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.UserDataStore, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if backend == "" {
		backend = BackendBadger
	}

	switch backend {
	case BackendMemory:
		logger.Warn().Msg("Using in-memory storage; data will not survive a restart")
		return memory.NewStore(), nil

	case BackendBadger:
		return userdb.NewStore(logger, config.Storage.Badger.Path)

	case BackendSurrealDB:
		db, err := surrealdb.Connect(ctx, config.Storage.SurrealDB)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("address", config.Storage.SurrealDB.Address).
			Str("namespace", config.Storage.SurrealDB.Namespace).
			Str("database", config.Storage.SurrealDB.Database).
			Msg("SurrealDB storage initialized")
		return surrealdb.NewUserStore(db, logger), nil

	case BackendRedis:
		return redisdb.NewStore(ctx, logger, config.Storage.Redis)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, badger, surrealdb, redis)", backend)
	}
}
