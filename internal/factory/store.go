package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/config"
	storepkg "github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/store/memory"
	storepg "github.com/Han1236/syuka-insight/internal/store/postgres"
	storeredis "github.com/Han1236/syuka-insight/internal/store/redis"
	storesqlite "github.com/Han1236/syuka-insight/internal/store/sqlite"
)

// NewStore returns the session and registry store selected by cfg.StoreDriver.
// Postgres opens synchronously and bootstraps its schema in the background.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("memory store selected; sessions and the registry are lost on restart")
		return memory.New(), nil

	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return storesqlite.New(cfg.SQLitePath)

	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("%s_POSTGRES_DSN is required when STORE_DRIVER=postgres", config.EnvPrefix)
		}
		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}
		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
			defer cancel()
			if err := storepg.Bootstrap(bootstrapCtx, dsn); err != nil {
				log.Warn().Err(err).Str("driver", cfg.StoreDriver).Msg("store bootstrap failed")
			} else {
				log.Debug().Str("driver", cfg.StoreDriver).Msg("store bootstrap completed")
			}
		}()
		return storepg.NewWithDB(db), nil

	case "redis":
		client, err := storeredis.Open(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return storeredis.NewWithClient(client, storeredis.DefaultPrefix), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
}
