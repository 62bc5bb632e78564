package model

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// Criteria maps fields to the values they must equal. A nil value matches NULL.
type Criteria map[string]any

type condition struct {
	field string
	in    bool
	value any
	list  []any
}

type ordering struct {
	field string
	desc  bool
}

// Query is a chainable filtered read. Methods mutate and return the same query; the first
// error is reported by the terminal call.
type Query struct {
	model     *Model
	conds     []condition
	order     []ordering
	limit     int
	offset    int
	sensitive map[string]bool
	conn      *gorm.DB
	lock      bool
	err       error
}

// Filter adds an equality condition for every entry in c.
func (q *Query) Filter(c Criteria) *Query {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if !q.check(k) {
			return q
		}

		q.conds = append(q.conds, condition{field: k, value: c[k]})
	}

	return q
}

// In restricts field to one of values. An empty list matches nothing.
func (q *Query) In(field string, values ...any) *Query {
	if q.check(field) {
		q.conds = append(q.conds, condition{field: field, in: true, list: values})
	}

	return q
}

// OrderBy sorts results by field.
func (q *Query) OrderBy(field string, desc bool) *Query {
	if q.check(field) {
		q.order = append(q.order, ordering{field: field, desc: desc})
	}

	return q
}

// Limit caps the number of rows returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// IncludeSensitive opts sensitive fields back into the result rows.
func (q *Query) IncludeSensitive(fields ...string) *Query {
	for _, f := range fields {
		if q.check(f) {
			q.sensitive[f] = true
		}
	}

	return q
}

func (q *Query) check(field string) bool {
	if q.err != nil {
		return false
	}

	if !q.model.isStored(field) {
		q.err = fmt.Errorf("%w: %s.%s", ErrUnknownField, q.model.def.Table, field)
		return false
	}

	return true
}

// Using runs the query through db, typically the transaction handed to a BeforeWrite hook.
func (q *Query) Using(db *gorm.DB) *Query {
	q.conn = db
	return q
}

// ForUpdate locks the selected rows until the surrounding transaction ends. SQLite has no
// row locks and serializes writers, so the clause is left out there.
func (q *Query) ForUpdate() *Query {
	q.lock = true
	return q
}

func (q *Query) session(ctx context.Context) *gorm.DB {
	if q.conn != nil {
		return q.conn.WithContext(ctx)
	}

	return q.model.db.WithContext(ctx)
}

// Run executes the query and hydrates the matching rows.
func (q *Query) Run(ctx context.Context) ([]*Instance, error) {
	if q.err != nil {
		return nil, q.err
	}

	m := q.model
	db := q.session(ctx)

	cols := make([]string, 0, len(m.stored))
	for _, f := range m.stored {
		if m.sensitive[f] && !q.sensitive[f] {
			continue
		}

		cols = append(cols, m.quotedColumn(db, f))
	}

	where, args, err := q.where(db)
	if err != nil {
		return nil, err
	}

	var b strings.Builder

	b.WriteString("SELECT " + strings.Join(cols, ", ") + " FROM " + quote(db, m.def.Table) + where)

	if len(q.order) > 0 {
		parts := make([]string, len(q.order))
		for i, o := range q.order {
			parts[i] = m.quotedColumn(db, o.field)
			if o.desc {
				parts[i] += " DESC"
			}
		}

		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	switch {
	case q.limit > 0:
		b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
	case q.offset > 0:
		// OFFSET needs a LIMIT on some engines
		b.WriteString(" LIMIT " + strconv.FormatInt(math.MaxInt64, 10))
	}

	if q.offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
	}

	if q.lock && db.Dialector.Name() != "sqlite" {
		b.WriteString(" FOR UPDATE")
	}

	rows, err := m.rows(db, "select", b.String(), args...)
	if err != nil {
		return nil, err
	}

	out := make([]*Instance, 0, len(rows))

	for _, row := range rows {
		in, err := m.hydrate(row)
		if err != nil {
			return nil, err
		}

		out = append(out, in)
	}

	return out, nil
}

// First returns the first matching row or a NotFoundError.
func (q *Query) First(ctx context.Context) (*Instance, error) {
	list, err := q.Limit(1).Run(ctx)
	if err != nil {
		return nil, err
	}

	if len(list) == 0 {
		return nil, &dalerr.NotFoundError{Table: q.model.def.Table}
	}

	return list[0], nil
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}

	m := q.model
	db := q.session(ctx)

	where, args, err := q.where(db)
	if err != nil {
		return 0, err
	}

	rows, err := m.rows(db, "count", "SELECT COUNT(*) AS n FROM "+quote(db, m.def.Table)+where, args...)
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	n, err := decodeNumber(schema.Number().Integer(), rows[0]["n"])
	if err != nil {
		return 0, err
	}

	return n.(int64), nil //nolint:forcetypeassert
}

// Delete removes every matching row and returns how many were removed.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}

	m := q.model
	db := q.session(ctx)

	where, args, err := q.where(db)
	if err != nil {
		return 0, err
	}

	return m.exec(db, "delete", "DELETE FROM "+quote(db, m.def.Table)+where, args...)
}

func (q *Query) where(db *gorm.DB) (string, []any, error) {
	if len(q.conds) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(q.conds))
	args := make([]any, 0, len(q.conds))

	for _, c := range q.conds {
		if !c.in {
			sql, a, err := q.model.condition(db, c.field, c.value)
			if err != nil {
				return "", nil, err
			}

			parts = append(parts, sql)
			args = append(args, a...)

			continue
		}

		if len(c.list) == 0 {
			parts = append(parts, "1 = 0")
			continue
		}

		t := q.model.def.Fields[c.field]
		for _, v := range c.list {
			arg, err := encodeValue(t, v)
			if err != nil {
				return "", nil, err
			}

			args = append(args, arg)
		}

		parts = append(parts, q.model.quotedColumn(db, c.field)+" IN ("+placeholders(len(c.list))+")")
	}

	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// condition renders an equality test of field against value.
func (m *Model) condition(db *gorm.DB, field string, value any) (string, []any, error) {
	col := m.quotedColumn(db, field)

	if schema.IsNil(value) {
		return col + " IS NULL", nil, nil
	}

	arg, err := encodeValue(m.def.Fields[field], value)
	if err != nil {
		return "", nil, err
	}

	return col + " = ?", []any{arg}, nil
}

// Copy inserts a copy of every row matching where through db, replacing the copied values of
// the fields in set. It returns the number of rows copied.
func (m *Model) Copy(ctx context.Context, db *gorm.DB, where Criteria, set map[string]any) (int64, error) {
	q := m.Filter(where)
	if q.err != nil {
		return 0, q.err
	}

	db = db.WithContext(ctx)

	cols := make([]string, 0, len(m.stored))
	exprs := make([]string, 0, len(m.stored))
	args := make([]any, 0, len(set))

	for _, f := range m.stored {
		col := m.quotedColumn(db, f)
		cols = append(cols, col)

		v, ok := set[f]
		if !ok {
			exprs = append(exprs, col)
			continue
		}

		arg, err := encodeValue(m.def.Fields[f], v)
		if err != nil {
			return 0, err
		}

		exprs = append(exprs, "?")
		args = append(args, arg)
	}

	cond, whereArgs, err := q.where(db)
	if err != nil {
		return 0, err
	}

	table := quote(db, m.def.Table)
	sql := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") SELECT " +
		strings.Join(exprs, ", ") + " FROM " + table + cond

	return m.exec(db, "copy", sql, append(args, whereArgs...)...)
}
