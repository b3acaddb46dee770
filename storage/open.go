package storage

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage/redis"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/storage/sqlite"
)

// Open returns the Repo selected by the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig) (Repo, error) {
	switch cfg.GetStorageDriver() {
	case config.StorageDriverMemory:
		return repofake.NewFakeRepo(), nil
	case config.StorageDriverSQLite:
		store, err := sqlite.Open(cfg.GetStoragePath())
		if err != nil {
			return nil, autherrors.Wrapf(err, "[storage.Open] sqlite")
		}
		return store, nil
	case config.StorageDriverRedis:
		store, err := redis.Connect(ctx, redis.Config{Addr: cfg.GetRedisAddr(), DB: cfg.GetRedisDB()})
		if err != nil {
			return nil, autherrors.Wrapf(err, "[storage.Open] redis")
		}
		return store, nil
	}
	return nil, fmt.Errorf("[storage.Open] driver %q: %w", cfg.GetStorageDriver(), autherrors.ErrUnsupported)
}

var (
	_ Repo = (*repofake.FakeRepo)(nil)
	_ Repo = (*sqlite.Store)(nil)
	_ Repo = (*redis.Store)(nil)
)
