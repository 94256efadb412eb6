package persistence

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tapcards/tap/internal/config"
	"github.com/tapcards/tap/internal/domain/kv"
	"github.com/tapcards/tap/pkg/logger"
)

// OpenStore builds the backend named by storage.driver. The returned closer
// releases its connections and is never nil.
func OpenStore(ctx context.Context, cfg config.Config, log logger.Logger) (kv.Store, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return NewMemoryStore(), noop, nil

	case config.DriverFile, "":
		store, err := NewFileStore(afero.NewOsFs(), cfg.File.Dir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case config.DriverRedis:
		rdb, err := NewRedisClient(cfg, log)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisStore(rdb), func() { rdb.Close() }, nil

	case config.DriverPostgres:
		pool, err := NewPostgresPool(cfg, log)
		if err != nil {
			return nil, noop, err
		}
		return NewPostgresStore(pool), pool.Close, nil

	case config.DriverMongo:
		client, err := NewMongoClient(ctx, cfg, log)
		if err != nil {
			return nil, noop, err
		}
		closer := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn("Failed to disconnect MongoDB", zap.Error(err))
			}
		}
		return NewMongoStore(client, cfg.Mongo.Database), closer, nil
	}

	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
