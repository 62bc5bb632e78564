package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/schema"
)

const maxIndexedVarchar = 255

// Column is the DDL of a single storage column.
type Column struct {
	Name string
	Type string
	// NotNull is only set on the primary key; required fields are enforced by validation.
	NotNull bool
}

func (c Column) String() string {
	if c.NotNull {
		return c.Name + " " + c.Type + " NOT NULL"
	}

	return c.Name + " " + c.Type
}

// Columns returns the column DDL of def for dialect, ordered by column name.
func Columns(dialect string, def Definition) ([]Column, error) {
	m, err := compile(def)
	if err != nil {
		return nil, err
	}

	return m.ddlColumns(dialect), nil
}

func (m *Model) ddlColumns(dialect string) []Column {
	indexed := map[string]bool{m.pk: true}

	for _, idx := range m.def.Options.Indexes {
		for _, f := range idx.Fields {
			indexed[f] = true
		}
	}

	out := make([]Column, 0, len(m.stored))
	for _, f := range m.stored {
		out = append(out, Column{
			Name:    m.columns.Column(f),
			Type:    columnType(dialect, m.def.Fields[f], indexed[f]),
			NotNull: f == m.pk,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func columnType(dialect string, t schema.Type, indexed bool) string {
	switch t.Kind() { //nolint:exhaustive
	case schema.KindString:
		if t.IsUUID() {
			return "VARCHAR(36)"
		}

		n, ok := t.MaxLength()

		switch {
		case ok && (n <= maxIndexedVarchar || indexed):
			return "VARCHAR(" + strconv.Itoa(n) + ")"
		case indexed:
			return "VARCHAR(" + strconv.Itoa(maxIndexedVarchar) + ")"
		default:
			return "TEXT"
		}
	case schema.KindNumber:
		if t.IsInteger() {
			return "BIGINT"
		}

		return "DOUBLE PRECISION"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindDate:
		switch dialect {
		case "postgres":
			return "TIMESTAMPTZ"
		case "mysql":
			return "DATETIME(3)"
		default:
			return "DATETIME"
		}
	default:
		return "TEXT"
	}
}

func (m *Model) indexName(idx Index) string {
	if idx.Name != "" {
		return idx.Name
	}

	prefix := "idx_"
	if idx.Unique {
		prefix = "uniq_"
	}

	cols := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		cols[i] = m.columns.Column(f)
	}

	return prefix + m.def.Table + "_" + strings.Join(cols, "_")
}

// Checksum fingerprints the table layout of def on dialect. It changes whenever a column,
// column type or index changes.
func Checksum(dialect string, def Definition) (string, error) {
	m, err := compile(def)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	_, _ = fmt.Fprintf(h, "table %s pk %s\n", m.def.Table, m.columns.Column(m.pk))

	for _, c := range m.ddlColumns(dialect) {
		_, _ = fmt.Fprintln(h, c.String())
	}

	idx := make([]string, 0, len(m.def.Options.Indexes))
	for _, i := range m.def.Options.Indexes {
		idx = append(idx, fmt.Sprintf("index %s unique=%t %v where %s",
			m.indexName(i), i.Unique, i.Fields, m.predicate(i.Where, m.columns.Column)))
	}

	sort.Strings(idx)

	for _, line := range idx {
		_, _ = fmt.Fprintln(h, line)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// EnsureTable creates the table of def if it is missing, then adds missing columns and
// indexes. Existing columns are never altered or dropped.
func EnsureTable(ctx context.Context, db *gorm.DB, def Definition) error {
	m, err := compile(def)
	if err != nil {
		return err
	}

	db = db.WithContext(ctx)
	m.db = db
	migrator := db.Migrator()
	table := quote(db, m.def.Table)
	dialect := db.Dialector.Name()

	if !migrator.HasTable(m.def.Table) {
		defs := make([]string, 0, len(m.stored)+1)
		for _, c := range m.ddlColumns(dialect) {
			d := quote(db, c.Name) + " " + c.Type
			if c.NotNull {
				d += " NOT NULL"
			}

			defs = append(defs, d)
		}

		defs = append(defs, "PRIMARY KEY ("+m.quotedColumn(db, m.pk)+")")

		log.Info().Str("table", m.def.Table).Msg("creating table")

		if _, err := m.exec(db, "create_table", "CREATE TABLE "+table+" ("+strings.Join(defs, ", ")+")"); err != nil {
			return err
		}
	} else {
		for _, c := range m.ddlColumns(dialect) {
			if migrator.HasColumn(m.def.Table, c.Name) {
				continue
			}

			log.Info().Str("table", m.def.Table).Str("column", c.Name).Msg("adding column")

			sql := "ALTER TABLE " + table + " ADD COLUMN " + quote(db, c.Name) + " " + c.Type
			if _, err := m.exec(db, "add_column", sql); err != nil {
				return err
			}
		}
	}

	for _, idx := range m.def.Options.Indexes {
		name := m.indexName(idx)
		if migrator.HasIndex(m.def.Table, name) {
			continue
		}

		cols := make([]string, len(idx.Fields))
		for i, f := range idx.Fields {
			cols[i] = m.quotedColumn(db, f)
		}

		unique, where := idx.Unique, ""

		if len(idx.Where) > 0 {
			if partialIndexes(dialect) {
				where = " WHERE " + m.predicate(idx.Where, func(f string) string { return m.quotedColumn(db, f) })
			} else {
				log.Warn().Str("table", m.def.Table).Str("index", name).Str("dialect", dialect).
					Msg("partial indexes unsupported, creating a plain index")

				unique = false
			}
		}

		stmt := "CREATE INDEX "
		if unique {
			stmt = "CREATE UNIQUE INDEX "
		}

		log.Info().Str("table", m.def.Table).Str("index", name).Msg("creating index")

		sql := stmt + quote(db, name) + " ON " + table + " (" + strings.Join(cols, ", ") + ")" + where
		if _, err := m.exec(db, "create_index", sql); err != nil {
			return err
		}
	}

	return nil
}

func partialIndexes(dialect string) bool {
	return dialect == "postgres" || dialect == "sqlite"
}

// predicate renders an index predicate with literals; CREATE INDEX takes no bind parameters.
func (m *Model) predicate(where Criteria, column func(field string) string) string {
	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}

	sort.Strings(fields)

	parts := make([]string, len(fields))

	for i, f := range fields {
		switch v := where[f].(type) {
		case bool:
			parts[i] = column(f) + " = " + strings.ToUpper(strconv.FormatBool(v))
		default:
			parts[i] = column(f) + " IS NULL"
		}
	}

	return strings.Join(parts, " AND ")
}
