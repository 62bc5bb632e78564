package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/libreviews/revdal/internal/dal/dalerr"
)

// formats checks string formats (uuid, url, email) with the validator tag syntax.
var formats = validator.New() //nolint:gochecknoglobals

// Fields maps field names to their descriptors.
type Fields map[string]Type

// Names returns all field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Stored returns the names of all non-virtual fields in sorted order.
func (f Fields) Stored() []string {
	names := make([]string, 0, len(f))
	for _, name := range f.Names() {
		if !f[name].IsVirtual() {
			names = append(names, name)
		}
	}

	return names
}

// Validate checks values against the descriptors. With only == nil every stored field is
// checked and unknown names are rejected; otherwise just the listed fields are checked.
func (f Fields) Validate(values map[string]any, only []string) error {
	names := only
	if names == nil {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			if _, ok := f[k]; !ok {
				return dalerr.Invalid(k, "unknown field")
			}
		}

		names = f.Stored()
	}

	for _, name := range names {
		t, ok := f[name]
		if !ok {
			return dalerr.Invalid(name, "unknown field")
		}

		if err := t.Validate(name, values[name]); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks v against the descriptor. Containers validate their children before
// running their own custom validators.
func (t Type) Validate(path string, v any) error {
	if IsNil(v) {
		if t.required {
			return dalerr.Invalid(path, "is required")
		}

		return nil
	}

	var err error

	switch t.kind {
	case KindString:
		err = t.validateString(path, v)
	case KindNumber:
		err = t.validateNumber(path, v)
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			err = dalerr.Invalid(path, "must be a boolean")
		}
	case KindDate:
		err = validateDate(path, v)
	case KindObject:
		err = t.validateObject(path, v)
	case KindArray:
		err = t.validateArray(path, v)
	case KindVirtual:
		return nil
	}

	if err != nil {
		return err
	}

	if len(t.enum) > 0 && !t.inEnum(v) {
		return dalerr.Invalid(path, "must be one of "+t.enumList())
	}

	for _, fn := range t.validators {
		if err := fn(v); err != nil {
			return wrap(path, err)
		}
	}

	return nil
}

func (t Type) validateString(path string, v any) error {
	s, ok := v.(string)
	if !ok {
		return dalerr.Invalid(path, "must be a string")
	}

	n := utf8.RuneCountInString(s)
	if t.hasMin && n < t.min {
		return dalerr.Invalid(path, "must be at least "+strconv.Itoa(t.min)+" characters long")
	}

	if t.hasMax && n > t.max {
		return dalerr.Invalid(path, "must be at most "+strconv.Itoa(t.max)+" characters long")
	}

	if t.format != "" {
		if err := formats.Var(s, t.format); err != nil {
			return dalerr.Invalid(path, "must be a valid "+t.format)
		}
	}

	return nil
}

func (t Type) validateNumber(path string, v any) error {
	f, ok := ToFloat(v)
	if !ok {
		return dalerr.Invalid(path, "must be a number")
	}

	if t.integer && f != math.Trunc(f) {
		return dalerr.Invalid(path, "must be an integer")
	}

	if t.hasMin && f < float64(t.min) {
		return dalerr.Invalid(path, "must be at least "+strconv.Itoa(t.min))
	}

	if t.hasMax && f > float64(t.max) {
		return dalerr.Invalid(path, "must be at most "+strconv.Itoa(t.max))
	}

	return nil
}

func validateDate(path string, v any) error {
	switch d := v.(type) {
	case time.Time:
		return nil
	case *time.Time:
		if d != nil {
			return nil
		}
	}

	return dalerr.Invalid(path, "must be a date")
}

func (t Type) validateObject(path string, v any) error {
	m, ok := AsMap(v)
	if !ok {
		return dalerr.Invalid(path, "must be an object")
	}

	if t.keys == nil {
		return nil
	}

	for _, k := range sortedKeys(m) {
		if _, ok := t.keys[k]; !ok {
			return dalerr.Invalid(join(path, k), "unknown key")
		}
	}

	for _, k := range t.keys.Names() {
		if err := t.keys[k].Validate(join(path, k), m[k]); err != nil {
			return err
		}
	}

	return nil
}

func (t Type) validateArray(path string, v any) error {
	items, ok := AsSlice(v)
	if !ok {
		return dalerr.Invalid(path, "must be an array")
	}

	if t.hasMin && len(items) < t.min {
		return dalerr.Invalid(path, "must contain at least "+strconv.Itoa(t.min)+" items")
	}

	if t.hasMax && len(items) > t.max {
		return dalerr.Invalid(path, "must contain at most "+strconv.Itoa(t.max)+" items")
	}

	if t.elem == nil {
		return nil
	}

	for i, item := range items {
		if err := t.elem.Validate(path+"["+strconv.Itoa(i)+"]", item); err != nil {
			return err
		}
	}

	return nil
}

func (t Type) inEnum(v any) bool {
	vf, vNum := ToFloat(v)

	for _, e := range t.enum {
		if ef, ok := ToFloat(e); ok && vNum {
			if ef == vf {
				return true
			}

			continue
		}

		if reflect.TypeOf(e) == reflect.TypeOf(v) && reflect.DeepEqual(e, v) {
			return true
		}
	}

	return false
}

func (t Type) enumList() string {
	parts := make([]string, 0, len(t.enum))
	for _, e := range t.enum {
		parts = append(parts, fmt.Sprint(e))
	}

	return strings.Join(parts, ", ")
}

// wrap attaches path to a custom validator error.
func wrap(path string, err error) error {
	var ve *dalerr.ValidationError
	if errors.As(err, &ve) {
		return dalerr.Invalid(join(path, ve.Path), ve.Reason)
	}

	return dalerr.Invalid(path, err.Error())
}

func join(path, sub string) string {
	switch {
	case sub == "":
		return path
	case path == "":
		return sub
	case strings.HasPrefix(sub, "["):
		return path + sub
	default:
		return path + "." + sub
	}
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// ToFloat converts any Go number to float64.
func ToFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// AsMap converts any map with string keys into a map[string]any.
func AsMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	out := make(map[string]any, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}

	return out, true
}

// AsSlice converts any slice or array into a []any.
func AsSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
