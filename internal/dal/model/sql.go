package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// timeLayouts are the textual date forms the supported drivers hand back.
var timeLayouts = []string{ //nolint:gochecknoglobals
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func quote(db *gorm.DB, name string) string {
	var b strings.Builder

	db.Dialector.QuoteTo(&b, name)

	return b.String()
}

func (m *Model) quotedColumn(db *gorm.DB, field string) string {
	return quote(db, m.columns.Column(field))
}

// exec runs a statement and reports rows affected, translating constraint errors.
func (m *Model) exec(db *gorm.DB, op, sql string, args ...any) (int64, error) {
	start := time.Now()
	res := db.Exec(sql, args...)
	err := translate(m.def.Table, res.Error)
	observe(m.def.Table, op, start, err)

	return res.RowsAffected, err
}

// rows runs a query and returns each row keyed by column name.
func (m *Model) rows(db *gorm.DB, op, sql string, args ...any) ([]map[string]any, error) {
	var out []map[string]any

	start := time.Now()
	err := translate(m.def.Table, db.Raw(sql, args...).Scan(&out).Error)
	observe(m.def.Table, op, start, err)

	return out, err
}

// translate turns uniqueness and foreign key violations into ConstraintErrors. Anything else
// is returned unchanged.
func translate(table string, err error) error {
	if err == nil {
		return nil
	}

	var kind dalerr.ConstraintKind

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		kind = dalerr.ConstraintUnique
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		kind = dalerr.ConstraintForeignKey
	default:
		msg := strings.ToLower(err.Error())

		switch {
		case strings.Contains(msg, "unique constraint"),
			strings.Contains(msg, "duplicate key"),
			strings.Contains(msg, "duplicate entry"):
			kind = dalerr.ConstraintUnique
		case strings.Contains(msg, "foreign key constraint"):
			kind = dalerr.ConstraintForeignKey
		default:
			return err
		}
	}

	return &dalerr.ConstraintError{Table: table, Kind: kind, Err: err}
}

// encodeValue converts an application value into a driver argument.
func encodeValue(t schema.Type, v any) (any, error) {
	if schema.IsNil(v) {
		return nil, nil
	}

	switch t.Kind() { //nolint:exhaustive
	case schema.KindObject, schema.KindArray:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", t.Kind(), err)
		}

		return string(b), nil
	case schema.KindDate:
		switch d := v.(type) {
		case time.Time:
			return d.UTC(), nil
		case *time.Time:
			return d.UTC(), nil
		}
	}

	return v, nil
}

// decodeValue converts a driver value into the application type of t.
func decodeValue(t schema.Type, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch t.Kind() {
	case schema.KindString:
		return decodeString(raw), nil
	case schema.KindNumber:
		return decodeNumber(t, raw)
	case schema.KindBoolean:
		return decodeBool(raw)
	case schema.KindDate:
		return decodeTime(raw)
	case schema.KindObject, schema.KindArray:
		return decodeStructured(t, raw)
	case schema.KindVirtual:
		return raw, nil
	}

	return raw, nil
}

func decodeString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func decodeNumber(t schema.Type, raw any) (any, error) {
	var f float64

	switch v := raw.(type) {
	case int64:
		if t.IsInteger() {
			return v, nil
		}

		f = float64(v)
	case string, []byte:
		parsed, err := strconv.ParseFloat(decodeString(v), 64)
		if err != nil {
			return nil, fmt.Errorf("decoding number: %w", err)
		}

		f = parsed
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("decoding number: %w", err)
		}

		f = parsed
	default:
		n, ok := schema.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("decoding number: unexpected %T", raw)
		}

		f = n
	}

	if t.IsInteger() {
		return int64(f), nil
	}

	return f, nil
}

func decodeBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string, []byte:
		b, err := strconv.ParseBool(decodeString(v))
		if err != nil {
			return false, fmt.Errorf("decoding boolean: %w", err)
		}

		return b, nil
	default:
		n, ok := schema.ToFloat(v)
		if !ok {
			return false, fmt.Errorf("decoding boolean: unexpected %T", raw)
		}

		return n != 0, nil
	}
}

func decodeTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		return v.UTC(), nil
	case string, []byte:
		s := decodeString(v)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}

		return time.Time{}, fmt.Errorf("decoding date: unrecognized format %q", s)
	default:
		return time.Time{}, fmt.Errorf("decoding date: unexpected %T", raw)
	}
}

func decodeStructured(t schema.Type, raw any) (any, error) {
	var b []byte

	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		// already structured, e.g. coming from a cache entry
		return normalize(t, v)
	}

	if v, ok, err := t.Decode(b); ok {
		return v, err
	}

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", t.Kind(), err)
	}

	return normalize(t, v)
}

// normalize converts generic JSON values into the types the descriptor calls for.
func normalize(t schema.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t.Kind() { //nolint:exhaustive
	case schema.KindNumber:
		return decodeNumber(t, v)
	case schema.KindDate:
		return decodeTime(v)
	case schema.KindArray:
		items, ok := schema.AsSlice(v)
		if !ok {
			return v, nil
		}

		elem, _ := t.Elem()
		if elem.Kind() == schema.KindString {
			out := make([]string, len(items))
			for i, item := range items {
				out[i] = decodeString(item)
			}

			return out, nil
		}

		out := make([]any, len(items))

		for i, item := range items {
			n, err := normalize(elem, item)
			if err != nil {
				return nil, err
			}

			out[i] = n
		}

		return out, nil
	case schema.KindObject:
		m, ok := schema.AsMap(v)
		if !ok || t.Keys() == nil {
			return v, nil
		}

		out := make(map[string]any, len(m))

		for k, item := range m {
			kt, ok := t.Keys()[k]
			if !ok {
				out[k] = item
				continue
			}

			n, err := normalize(kt, item)
			if err != nil {
				return nil, err
			}

			out[k] = n
		}

		return out, nil
	}

	return v, nil
}
