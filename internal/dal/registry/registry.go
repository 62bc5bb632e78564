// Package registry keeps one set of live models per storage connection and provides lazy
// handles that packages can export before any connection exists.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
)

// registries are keyed by connection pool, which every session derived from one Open shares.
var (
	directoryMu sync.Mutex            //nolint:gochecknoglobals
	directory   = map[any]*Registry{} //nolint:gochecknoglobals
)

// connKey identifies the pool behind db.
func connKey(db *gorm.DB) any {
	if sqlDB, err := db.DB(); err == nil {
		return sqlDB
	}

	return db.Config
}

// Registry holds the models created on one connection, keyed by table.
type Registry struct {
	db *gorm.DB

	mu     sync.Mutex
	models map[string]model.Binder
}

// For returns the registry of db's connection, creating it on first use.
func For(db *gorm.DB) *Registry {
	directoryMu.Lock()
	defer directoryMu.Unlock()

	key := connKey(db)
	if r, ok := directory[key]; ok {
		return r
	}

	r := &Registry{db: db, models: map[string]model.Binder{}}
	directory[key] = r

	return r
}

// Release forgets the registry of db's connection.
func Release(db *gorm.DB) {
	directoryMu.Lock()
	defer directoryMu.Unlock()

	delete(directory, connKey(db))
}

// DB returns the connection the registry serves.
func (r *Registry) DB() *gorm.DB { return r.db }

// Lookup returns the model serving table. Tables nothing has created yet yield an
// InitializationError.
func (r *Registry) Lookup(table string) (*model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.models[table]
	if !ok {
		return nil, &dalerr.InitializationError{Table: table, Reason: "no model created for this connection"}
	}

	return b.Base(), nil
}

// Tables returns the registered table names in sorted order.
func (r *Registry) Tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.models))
	for t := range r.models {
		out = append(out, t)
	}

	sort.Strings(out)

	return out
}

// GetOrCreate returns the model registered for table, building it with build only when the
// connection has none yet. The registry lock is held while build runs, so build must not
// call back into the same registry.
func GetOrCreate[M model.Binder](r *Registry, table string, build func(db *gorm.DB) (M, error)) (M, error) {
	var zero M

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.models[table]; ok {
		m, ok := existing.(M)
		if !ok {
			return zero, &dalerr.InitializationError{
				Table:  table,
				Reason: fmt.Sprintf("registered as %T, requested as %T", existing, zero),
			}
		}

		return m, nil
	}

	m, err := build(r.db)
	if err != nil {
		return zero, err
	}

	if got := m.Base().Table(); got != table {
		return zero, &dalerr.InitializationError{
			Table:  table,
			Reason: fmt.Sprintf("initializer built table %q", got),
		}
	}

	m.Base().SetResolver(r)
	r.models[table] = m

	log.Debug().Str("table", table).Msg("model registered")

	return m, nil
}
