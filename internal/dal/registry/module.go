package registry

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
)

// Initializer builds the model of a Module on a connection.
type Initializer[M model.Binder] func(ctx context.Context, db *gorm.DB) (M, error)

// Module is a single-assignment cell for a model that is declared at package level and bound
// once a connection exists. Registering again on the same connection is a no-op. Registering
// on another connection rebinds the module, which keeps test connections isolated.
type Module[M model.Binder] struct {
	table string

	mu    sync.Mutex
	conn  any
	model M
	bound bool
}

// NewModule declares a module for table.
func NewModule[M model.Binder](table string) *Module[M] {
	return &Module[M]{table: table}
}

// Table returns the module's table name.
func (m *Module[M]) Table() string { return m.table }

// Register binds the module on db's connection, running init through the connection's
// registry. init must not touch this module.
func (m *Module[M]) Register(ctx context.Context, db *gorm.DB, init Initializer[M]) (M, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn := connKey(db)
	if m.bound && m.conn == conn {
		return m.model, nil
	}

	built, err := GetOrCreate(For(db), m.table, func(db *gorm.DB) (M, error) {
		return init(ctx, db)
	})
	if err != nil {
		var zero M
		return zero, err
	}

	m.model, m.conn, m.bound = built, conn, true

	return built, nil
}

// Model returns the bound model, or an InitializationError before Register has run.
func (m *Module[M]) Model() (M, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.bound {
		var zero M
		return zero, &dalerr.InitializationError{Table: m.table, Reason: "handle used before registration"}
	}

	return m.model, nil
}

// Bound reports whether Register has completed.
func (m *Module[M]) Bound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.bound
}
