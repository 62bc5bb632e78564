package model

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
)

// WriteHook is a dependent write run in the same transaction, before the instance's own
// INSERT or UPDATE.
type WriteHook func(ctx context.Context, tx *gorm.DB) error

type guard struct {
	field string
	value any
}

// Instance is one row in memory: its values, the set of fields changed since it was loaded
// or last saved, and whether it exists in storage.
type Instance struct {
	model     *Model
	values    map[string]any
	changed   map[string]struct{}
	persisted bool
	guards    []guard
	hooks     []WriteHook
	related   map[string][]*Instance
}

// Model returns the model the instance belongs to.
func (in *Instance) Model() *Model { return in.model }

// Get returns the value of field. Virtual fields that were never set are computed from
// their default on every read.
func (in *Instance) Get(field string) any {
	if v, ok := in.values[field]; ok {
		return v
	}

	if t, ok := in.model.def.Fields[field]; ok && t.IsVirtual() && t.HasDefault() {
		return t.DefaultValue(in)
	}

	return nil
}

// Set assigns field and records it in the change-set.
func (in *Instance) Set(field string, v any) {
	in.values[field] = v
	in.changed[field] = struct{}{}
}

// ID returns the primary key value, or the empty string when none is assigned yet.
func (in *Instance) ID() string {
	return in.String(in.model.pk)
}

// Changed returns the change-set in sorted order.
func (in *Instance) Changed() []string {
	out := make([]string, 0, len(in.changed))
	for f := range in.changed {
		out = append(out, f)
	}

	sort.Strings(out)

	return out
}

// IsNew reports whether the instance has not been written yet.
func (in *Instance) IsNew() bool { return !in.persisted }

// Snapshot returns a copy of the explicitly held values.
func (in *Instance) Snapshot() map[string]any {
	out := make(map[string]any, len(in.values))
	for k, v := range in.values {
		out[k] = v
	}

	return out
}

// Clone returns a copy with the same values and persistence state and an empty change-set.
func (in *Instance) Clone() *Instance {
	return &Instance{
		model:     in.model,
		values:    in.Snapshot(),
		changed:   map[string]struct{}{},
		persisted: in.persisted,
	}
}

// String returns field as a string, or "" when unset or of another type.
func (in *Instance) String(field string) string {
	s, _ := in.Get(field).(string)
	return s
}

// Strings returns field as a string slice.
func (in *Instance) Strings(field string) []string {
	s, _ := in.Get(field).([]string)
	return s
}

// Int returns field as an int64.
func (in *Instance) Int(field string) int64 {
	switch v := in.Get(field).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Bool returns field as a bool.
func (in *Instance) Bool(field string) bool {
	b, _ := in.Get(field).(bool)
	return b
}

// Time returns field as a time.Time.
func (in *Instance) Time(field string) time.Time {
	t, _ := in.Get(field).(time.Time)
	return t
}

// Validate checks all stored fields of a new instance, or only the changed ones of a
// persisted instance.
func (in *Instance) Validate() error {
	if !in.persisted {
		return in.model.def.Fields.Validate(in.values, nil)
	}

	return in.model.def.Fields.Validate(in.values, in.pending())
}

// pending returns the changed fields that would be written, unknown names included so
// validation can reject them.
func (in *Instance) pending() []string {
	out := make([]string, 0, len(in.changed))

	for _, f := range in.Changed() {
		if t, ok := in.model.def.Fields[f]; ok && t.IsVirtual() {
			continue
		}

		out = append(out, f)
	}

	return out
}

// Guard adds an optimistic condition to the next update: the row is only written when field
// still holds value in storage. A guarded update that matches no row fails with
// dalerr.ErrStaleRevision.
func (in *Instance) Guard(field string, value any) {
	in.guards = append(in.guards, guard{field: field, value: value})
}

// BeforeWrite queues hook to run in the same transaction as the next save.
func (in *Instance) BeforeWrite(hook WriteHook) {
	in.hooks = append(in.hooks, hook)
}

// Save writes the instance through the model's connection.
func (in *Instance) Save(ctx context.Context) error {
	return in.SaveWith(ctx, in.model.db)
}

// SaveWith writes the instance through db, which may be a transaction. New instances are
// inserted with all their stored values. Persisted instances update only their changed
// stored fields and an empty change-set writes nothing.
func (in *Instance) SaveWith(ctx context.Context, db *gorm.DB) error {
	m := in.model

	if !in.persisted && in.ID() == "" {
		in.Set(m.pk, m.NewID())
	}

	fields := in.pending()
	if in.persisted && len(fields) == 0 {
		return nil
	}

	if err := in.Validate(); err != nil {
		return err
	}

	write := func(tx *gorm.DB) error {
		for _, hook := range in.hooks {
			if err := hook(ctx, tx); err != nil {
				return err
			}
		}

		if in.persisted {
			return in.update(tx, fields)
		}

		return in.insert(tx)
	}

	db = db.WithContext(ctx)

	var err error
	if len(in.hooks) > 0 {
		err = db.Transaction(write)
	} else {
		err = write(db)
	}

	if err != nil {
		return err
	}

	in.persisted = true
	in.changed = map[string]struct{}{}
	in.guards = nil
	in.hooks = nil

	m.notify(ctx, in)

	return nil
}

func (in *Instance) insert(db *gorm.DB) error {
	m := in.model

	cols := make([]string, 0, len(in.values))
	args := make([]any, 0, len(in.values))

	for _, f := range m.stored {
		v, ok := in.values[f]
		if !ok {
			continue
		}

		arg, err := encodeValue(m.def.Fields[f], v)
		if err != nil {
			return err
		}

		cols = append(cols, m.quotedColumn(db, f))
		args = append(args, arg)
	}

	sql := "INSERT INTO " + quote(db, m.def.Table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"

	_, err := m.exec(db, "insert", sql, args...)

	return err
}

func (in *Instance) update(db *gorm.DB, fields []string) error {
	m := in.model

	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1+len(in.guards))

	for _, f := range fields {
		arg, err := encodeValue(m.def.Fields[f], in.values[f])
		if err != nil {
			return err
		}

		sets = append(sets, m.quotedColumn(db, f)+" = ?")
		args = append(args, arg)
	}

	where := []string{m.quotedColumn(db, m.pk) + " = ?"}
	args = append(args, in.ID())

	for _, g := range in.guards {
		cond, garg, err := m.condition(db, g.field, g.value)
		if err != nil {
			return err
		}

		where = append(where, cond)
		args = append(args, garg...)
	}

	sql := "UPDATE " + quote(db, m.def.Table) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ")

	affected, err := m.exec(db, "update", sql, args...)
	if err != nil {
		return err
	}

	// unguarded updates are not checked: some engines report unchanged rows as unaffected
	if len(in.guards) > 0 && affected == 0 {
		return dalerr.ErrStaleRevision
	}

	return nil
}

// Delete removes the row from storage. Revisioned entities are soft deleted by the revision
// engine instead.
func (in *Instance) Delete(ctx context.Context) error {
	m := in.model
	db := m.db.WithContext(ctx)

	sql := "DELETE FROM " + quote(db, m.def.Table) + " WHERE " + m.quotedColumn(db, m.pk) + " = ?"

	affected, err := m.exec(db, "delete", sql, in.ID())
	if err != nil {
		return err
	}

	if affected == 0 {
		return &dalerr.NotFoundError{Table: m.def.Table, ID: in.ID()}
	}

	in.persisted = false

	return nil
}

// RelatedOne returns the single instance loaded for relation name.
func (in *Instance) RelatedOne(name string) (*Instance, bool) {
	list := in.related[name]
	if len(list) == 0 {
		return nil, false
	}

	return list[0], true
}

// RelatedMany returns the instances loaded for relation name.
func (in *Instance) RelatedMany(name string) []*Instance {
	return in.related[name]
}

func (in *Instance) setRelated(name string, list []*Instance) {
	if in.related == nil {
		in.related = map[string][]*Instance{}
	}

	in.related[name] = list
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}

	return strings.Repeat("?, ", n-1) + "?"
}
