// Package model binds schema descriptors to storage tables.
//
// A Model owns the table's field descriptors, the bidirectional field/column map and the
// declared relations. Instances track a change-set so that updates only write what was
// touched. All SQL runs through gorm's Raw and Exec so the same code serves every dialect
// gorm has a driver for.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// DefaultPrimaryKey is the primary key field used when Options.PrimaryKey is empty.
const DefaultPrimaryKey = "id"

// Definition describes a table: its name, field descriptors and options.
type Definition struct {
	Table   string
	Fields  schema.Fields
	Options Options
}

// Options holds the optional parts of a Definition.
type Options struct {
	// PrimaryKey names the primary key field. It must be a string field.
	PrimaryKey string
	// Columns maps application field names to storage columns where they differ.
	Columns map[string]string
	// Sensitive fields are left out of query results unless a query opts back in.
	Sensitive []string
	Relations []Relation
	Indexes   []Index
}

// Index declares a secondary index over one or more fields.
type Index struct {
	Name   string
	Fields []string
	Unique bool
	// Where restricts the index to rows matching it (nil and bool values only). Engines
	// without partial indexes get a plain, non-unique index instead.
	Where Criteria
}

// Clone returns a deep copy of def that can be extended without touching the original.
func (def Definition) Clone() Definition {
	out := Definition{Table: def.Table, Fields: make(schema.Fields, len(def.Fields))}
	for k, v := range def.Fields {
		out.Fields[k] = v
	}

	out.Options.PrimaryKey = def.Options.PrimaryKey

	if def.Options.Columns != nil {
		out.Options.Columns = make(map[string]string, len(def.Options.Columns))
		for k, v := range def.Options.Columns {
			out.Options.Columns[k] = v
		}
	}

	out.Options.Sensitive = append([]string(nil), def.Options.Sensitive...)
	out.Options.Relations = append([]Relation(nil), def.Options.Relations...)
	out.Options.Indexes = append([]Index(nil), def.Options.Indexes...)

	return out
}

// Binder is implemented by anything wrapping a Model, including *Model itself.
type Binder interface {
	Base() *Model
}

// Resolver looks up the model serving a table, used to follow relations.
type Resolver interface {
	Lookup(table string) (*Model, error)
}

// SaveListener is notified after every successful save of an instance.
type SaveListener func(ctx context.Context, in *Instance)

// Model is a compiled Definition bound to a connection.
type Model struct {
	db        *gorm.DB
	def       Definition
	pk        string
	columns   *FieldMap
	stored    []string
	sensitive map[string]bool
	relations map[string]Relation

	mu        sync.RWMutex
	resolver  Resolver
	listeners []SaveListener
}

// New compiles def and binds it to db.
func New(db *gorm.DB, def Definition) (*Model, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	m, err := compile(def)
	if err != nil {
		return nil, err
	}

	m.db = db

	return m, nil
}

func compile(def Definition) (*Model, error) {
	if def.Table == "" {
		return nil, fmt.Errorf("%w: table name is empty", ErrInvalidDefinition)
	}

	def = def.Clone()

	pk := def.Options.PrimaryKey
	if pk == "" {
		pk = DefaultPrimaryKey
	}

	if t, ok := def.Fields[pk]; !ok || t.Kind() != schema.KindString {
		return nil, fmt.Errorf("%w: %s: primary key %q must be a declared string field", ErrInvalidDefinition, def.Table, pk)
	}

	for field := range def.Options.Columns {
		if t, ok := def.Fields[field]; !ok || t.IsVirtual() {
			return nil, fmt.Errorf("%w: %s: column mapping for undeclared or virtual field %q",
				ErrInvalidDefinition, def.Table, field)
		}
	}

	columns, err := NewFieldMap(def.Options.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Table, err)
	}

	stored := def.Fields.Stored()

	seen := make(map[string]string, len(stored))
	for _, f := range stored {
		c := columns.Column(f)
		if other, ok := seen[c]; ok {
			return nil, fmt.Errorf("%w: %s: fields %q and %q share column %q", ErrInvalidDefinition, def.Table, other, f, c)
		}

		seen[c] = f
	}

	m := &Model{
		def:       def,
		pk:        pk,
		columns:   columns,
		stored:    stored,
		sensitive: make(map[string]bool, len(def.Options.Sensitive)),
		relations: make(map[string]Relation, len(def.Options.Relations)),
	}

	for _, f := range def.Options.Sensitive {
		if !m.isStored(f) {
			return nil, fmt.Errorf("%w: %s: sensitive field %q is not stored", ErrInvalidDefinition, def.Table, f)
		}

		m.sensitive[f] = true
	}

	for _, idx := range def.Options.Indexes {
		if len(idx.Fields) == 0 {
			return nil, fmt.Errorf("%w: %s: index %q has no fields", ErrInvalidDefinition, def.Table, idx.Name)
		}

		for _, f := range idx.Fields {
			if !m.isStored(f) {
				return nil, fmt.Errorf("%w: %s: index on unknown field %q", ErrInvalidDefinition, def.Table, f)
			}
		}

		for f, v := range idx.Where {
			if !m.isStored(f) {
				return nil, fmt.Errorf("%w: %s: index predicate on unknown field %q", ErrInvalidDefinition, def.Table, f)
			}

			switch v.(type) {
			case nil, bool:
			default:
				return nil, fmt.Errorf("%w: %s: index predicate on %q must be nil or bool", ErrInvalidDefinition, def.Table, f)
			}
		}
	}

	for _, rel := range def.Options.Relations {
		if err := m.addRelation(rel); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Model) isStored(field string) bool {
	t, ok := m.def.Fields[field]
	return ok && !t.IsVirtual()
}

// Base returns m, letting *Model satisfy Binder.
func (m *Model) Base() *Model { return m }

// Table returns the storage table name.
func (m *Model) Table() string { return m.def.Table }

// PrimaryKey returns the primary key field name.
func (m *Model) PrimaryKey() string { return m.pk }

// Fields returns the field descriptors.
func (m *Model) Fields() schema.Fields { return m.def.Fields }

// Definition returns a copy of the definition the model was built from.
func (m *Model) Definition() Definition { return m.def.Clone() }

// Columns returns the field/column map.
func (m *Model) Columns() *FieldMap { return m.columns }

// DB returns the connection the model is bound to.
func (m *Model) DB() *gorm.DB { return m.db }

// SetResolver sets the lookup used to reach relation targets.
func (m *Model) SetResolver(r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolver = r
}

// AfterSave registers fn to run after every successful save.
func (m *Model) AfterSave(fn SaveListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, fn)
}

func (m *Model) notify(ctx context.Context, in *Instance) {
	m.mu.RLock()
	listeners := append([]SaveListener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, in)
	}
}

// NewID returns a fresh primary key value.
func (m *Model) NewID() string {
	return uuid.NewString()
}

// New returns an unsaved instance seeded with values. Every value is routed through Set,
// then defaults are applied to the stored fields that are still absent.
func (m *Model) New(values map[string]any) *Instance {
	in := &Instance{
		model:   m,
		values:  make(map[string]any, len(values)),
		changed: make(map[string]struct{}, len(values)),
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		in.Set(k, values[k])
	}

	for _, f := range m.stored {
		t := m.def.Fields[f]
		if _, ok := in.values[f]; !ok && t.HasDefault() {
			in.Set(f, t.DefaultValue(in))
		}
	}

	return in
}

// Create builds an instance from values and saves it.
func (m *Model) Create(ctx context.Context, values map[string]any) (*Instance, error) {
	in := m.New(values)
	if err := in.Save(ctx); err != nil {
		return nil, err
	}

	return in, nil
}

// Get returns the row with the given primary key.
func (m *Model) Get(ctx context.Context, id string) (*Instance, error) {
	in, err := m.Filter(Criteria{m.pk: id}).First(ctx)
	if errors.Is(err, dalerr.ErrNotFound) {
		return nil, &dalerr.NotFoundError{Table: m.def.Table, ID: id}
	}

	return in, err
}

// Query starts an unfiltered query.
func (m *Model) Query() *Query {
	return &Query{model: m, sensitive: map[string]bool{}}
}

// Filter starts a query restricted by c.
func (m *Model) Filter(c Criteria) *Query {
	return m.Query().Filter(c)
}

// hydrate builds a persisted instance from a result row keyed by column names.
func (m *Model) hydrate(row map[string]any) (*Instance, error) {
	in := &Instance{
		model:     m,
		values:    make(map[string]any, len(row)),
		changed:   map[string]struct{}{},
		persisted: true,
	}

	for column, raw := range row {
		field := m.columns.Field(column)

		t, ok := m.def.Fields[field]
		if !ok {
			continue
		}

		v, err := decodeValue(t, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.def.Table, field, err)
		}

		in.values[field] = v
	}

	return in, nil
}
