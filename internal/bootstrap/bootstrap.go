// Package bootstrap brings the data access layer up: connection pool, head cache,
// migrations and model handles, in that order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/config"
	"github.com/libreviews/revdal/internal/dal/cache"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/db/connect"
	"github.com/libreviews/revdal/internal/db/migrate"
	"github.com/libreviews/revdal/internal/models"
)

// ErrConfigNil is returned when InitializeDAL is called without a config.
var ErrConfigNil = errors.New("config is nil")

// DAL is an initialized data access layer.
type DAL struct {
	DB    *gorm.DB
	Cache cache.Store
	// Applied lists the migration steps this start ran.
	Applied []string

	redis *cache.Redis
}

// InitializeDAL opens the pool, runs migrations for every entity and binds the model
// handles. Nothing is left open when it fails.
func InitializeDAL(ctx context.Context, cfg *config.Config) (*DAL, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	db, err := connect.Open(cfg)
	if err != nil {
		return nil, err
	}

	d := &DAL{DB: db}

	if err := d.init(ctx, cfg); err != nil {
		if cerr := d.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close after initialization error")
		}

		return nil, err
	}

	log.Info().Strs("applied", d.Applied).Strs("tables", registry.For(db).Tables()).Msg("data access layer ready")

	return d, nil
}

func (d *DAL) init(ctx context.Context, cfg *config.Config) error {
	switch {
	case !cfg.Cache.Enabled:
		log.Debug().Msg("head cache disabled")
	case cfg.Cache.Backend == config.CacheMemory:
		d.Cache = cache.NewMemory()
	default:
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return err
		}

		d.redis, d.Cache = r, r
	}

	steps, err := Steps(d.DB.Dialector.Name())
	if err != nil {
		return err
	}

	if d.Applied, err = migrate.Run(ctx, d.DB, steps); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return models.Init(ctx, d.DB, models.Options{Cache: d.Cache, CacheTTL: cfg.Cache.TTL})
}

// Steps returns the migration step of every entity table for dialect.
func Steps(dialect string) ([]migrate.Step, error) {
	defs := models.Definitions()
	steps := make([]migrate.Step, 0, len(defs))

	for _, def := range defs {
		step, err := migrate.TableStep(dialect, def)
		if err != nil {
			return nil, err
		}

		steps = append(steps, step)
	}

	return steps, nil
}

// Close releases the registry, the cache connection and the pool.
func (d *DAL) Close() error {
	registry.Release(d.DB)

	var errs []error

	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}

	errs = append(errs, connect.Close(d.DB))

	return errors.Join(errs...)
}
