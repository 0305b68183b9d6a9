package persist

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"healthmon/config"
	"healthmon/pkg/apperror"
	"healthmon/pkg/db"
	"healthmon/pkg/filestore"
	"healthmon/pkg/redisstore"
	"healthmon/pkg/sqlitestore"
)

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (Store, error) {
	const op string = "persist.open"

	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case "file":
		store, err = filestore.New(cfg.Path)

	case "sqlite":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "healthmon.db")
		}
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			store, err = sqlitestore.Open(path)
		}

	case "postgres":
		pool, perr := db.ConnectToDB(ctx, db.Config{
			URL:           cfg.DSN,
			MaxConns:      cfg.MaxConns,
			HealthTimeout: cfg.Timeout,
		}, logger)
		if perr != nil {
			return nil, apperror.New(apperror.Persistence, op, perr)
		}
		store, err = db.NewStore(ctx, pool)
		if err != nil {
			pool.Close()
		}

	case "redis":
		store, err = redisstore.New(cfg.RedisURL, cfg.KeyPrefix)

	case "none", "":
		store = Nop{}

	default:
		return nil, apperror.Newf(apperror.Configuration, op, "unknown storage driver %q", cfg.Driver)
	}

	if err != nil {
		return nil, apperror.New(apperror.Persistence, op, err)
	}

	logger.Info().Str("driver", cfg.Driver).Msg("storage backend ready")
	return store, nil
}
