// Package models declares the platform's entities and exports one lazy handle per entity.
//
// The handles exist from package load on. Init binds them to a connection; until then every
// call through a handle fails with an InitializationError.
package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/cache"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/revision"
)

// Options configures the models bound by Init.
type Options struct {
	// Cache holds current revision heads. Nil disables caching.
	Cache    cache.Store
	CacheTTL time.Duration
}

func (o Options) revision() revision.Options {
	return revision.Options{Cache: o.Cache, CacheTTL: o.CacheTTL}
}

// Definitions returns the table definitions of every entity, in migration order.
func Definitions() []model.Definition {
	return []model.Definition{
		userDefinition(),
		fileDefinition(),
		thingDefinition(),
		thingFileDefinition(),
		reviewDefinition(),
		inviteLinkDefinition(),
	}
}

func plain(def model.Definition) registry.Initializer[*model.Model] {
	return func(_ context.Context, db *gorm.DB) (*model.Model, error) {
		return model.New(db, def)
	}
}

func revisioned(def model.Definition, opts Options) registry.Initializer[*revision.Model] {
	return func(_ context.Context, db *gorm.DB) (*revision.Model, error) {
		return revision.New(db, def, opts.revision())
	}
}

// Init binds every handle to db. Calling it again with the same connection is a no-op.
// Tables must exist already; see Definitions.
func Init(ctx context.Context, db *gorm.DB, opts Options) error {
	steps := []func() error{
		func() error { _, err := users.Register(ctx, db, plain(userDefinition())); return err },
		func() error { _, err := files.Register(ctx, db, revisioned(fileDefinition(), opts)); return err },
		func() error { _, err := things.Register(ctx, db, revisioned(thingDefinition(), opts)); return err },
		func() error { _, err := thingFiles.Register(ctx, db, plain(thingFileDefinition())); return err },
		func() error { _, err := reviews.Register(ctx, db, revisioned(reviewDefinition(), opts)); return err },
		func() error { _, err := inviteLinks.Register(ctx, db, plain(inviteLinkDefinition())); return err },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	return nil
}
