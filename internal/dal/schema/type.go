// Package schema implements declarative field descriptors and their validation.
//
// A descriptor is a tagged variant: every Type carries a Kind and the constraints that apply
// to it. Builders return values and every chained constraint returns a modified copy, so a
// descriptor can be shared between models without aliasing.
//
//	fields := schema.Fields{
//		"id":    schema.String().UUID(4),
//		"urls":  schema.Array(schema.String().URL()).Required().Min(1),
//		"stars": schema.Number().Integer().Min(1).Max(5),
//	}
package schema

import (
	"fmt"
	"strings"
)

// Kind identifies the primitive kind of a field.
type Kind int

const (
	// KindString holds text.
	KindString Kind = iota + 1
	// KindNumber holds integer or floating point numbers.
	KindNumber
	// KindBoolean holds true or false.
	KindBoolean
	// KindDate holds a time.Time.
	KindDate
	// KindObject holds a map with string keys.
	KindObject
	// KindArray holds a slice.
	KindArray
	// KindVirtual is computed from the owning instance and never persisted.
	KindVirtual
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindVirtual:
		return "virtual"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Getter gives computed defaults read access to the owning instance.
type Getter interface {
	Get(field string) any
}

// ValidatorFunc is a custom validator. Returning a *dalerr.ValidationError lets the validator
// point at a sub-path; its Path is appended to the field path.
type ValidatorFunc func(value any) error

// DefaultFunc computes a default from the owning instance.
type DefaultFunc func(owner Getter) any

// DecodeFunc turns a structured column (JSON text) back into a typed value.
type DecodeFunc func(raw []byte) (any, error)

// Type is a field descriptor.
type Type struct {
	kind       Kind
	required   bool
	integer    bool
	hasMin     bool
	hasMax     bool
	min        int
	max        int
	enum       []any
	format     string
	validators []ValidatorFunc
	hasDefault bool
	literal    any
	defaultFn  DefaultFunc
	elem       *Type
	keys       Fields
	decode     DecodeFunc
}

// String returns a string descriptor.
func String() Type { return Type{kind: KindString} }

// Number returns a number descriptor.
func Number() Type { return Type{kind: KindNumber} }

// Boolean returns a boolean descriptor.
func Boolean() Type { return Type{kind: KindBoolean} }

// Date returns a date descriptor.
func Date() Type { return Type{kind: KindDate} }

// Object returns an object descriptor. With nil keys the object is an open map whose keys
// are checked only by custom validators.
func Object(keys Fields) Type { return Type{kind: KindObject, keys: keys} }

// Array returns an array descriptor whose elements are validated against elem.
func Array(elem Type) Type { return Type{kind: KindArray, elem: &elem} }

// Virtual returns a descriptor for a computed field that is never written to storage.
func Virtual() Type { return Type{kind: KindVirtual} }

// Kind returns the descriptor's kind.
func (t Type) Kind() Kind { return t.kind }

// IsVirtual reports whether the field is computed only.
func (t Type) IsVirtual() bool { return t.kind == KindVirtual }

// IsRequired reports whether a value must be present.
func (t Type) IsRequired() bool { return t.required }

// IsInteger reports whether a number must be integral.
func (t Type) IsInteger() bool { return t.integer }

// MaxLength returns the maximum length constraint, if any.
func (t Type) MaxLength() (int, bool) { return t.max, t.hasMax && t.kind != KindNumber }

// Elem returns the element descriptor of an array.
func (t Type) Elem() (Type, bool) {
	if t.elem == nil {
		return Type{}, false
	}

	return *t.elem, true
}

// IsUUID reports whether the string must hold a UUID.
func (t Type) IsUUID() bool { return strings.HasPrefix(t.format, "uuid") }

// Format returns the string format constraint, if any.
func (t Type) Format() string { return t.format }

// Keys returns the declared keys of an object.
func (t Type) Keys() Fields { return t.keys }

// Required marks the field as mandatory.
func (t Type) Required() Type {
	t.required = true
	return t
}

// Min sets the minimum length (strings, arrays) or value (numbers).
func (t Type) Min(n int) Type {
	t.hasMin, t.min = true, n
	return t
}

// Max sets the maximum length (strings, arrays) or value (numbers).
func (t Type) Max(n int) Type {
	t.hasMax, t.max = true, n
	return t
}

// Integer requires a number to be integral.
func (t Type) Integer() Type {
	t.integer = true
	return t
}

// Enum restricts the value to one of values.
func (t Type) Enum(values ...any) Type {
	t.enum = append([]any(nil), values...)
	return t
}

// UUID requires a string in UUID format. Version 0 accepts any version.
func (t Type) UUID(version int) Type {
	if version == 0 {
		t.format = "uuid"
	} else {
		t.format = fmt.Sprintf("uuid%d", version)
	}

	return t
}

// URL requires a string holding an absolute URL.
func (t Type) URL() Type {
	t.format = "url"
	return t
}

// Email requires a string holding an email address.
func (t Type) Email() Type {
	t.format = "email"
	return t
}

// Validator appends a custom validator, run after the built-in checks.
func (t Type) Validator(fn ValidatorFunc) Type {
	t.validators = append(t.validators[:len(t.validators):len(t.validators)], fn)
	return t
}

// Default sets a literal default.
func (t Type) Default(v any) Type {
	t.hasDefault, t.literal, t.defaultFn = true, v, nil
	return t
}

// DefaultFunc sets a default computed from the owning instance.
func (t Type) DefaultFunc(fn DefaultFunc) Type {
	t.hasDefault, t.literal, t.defaultFn = true, nil, fn
	return t
}

// Decoder sets the decoding hook used when reading a structured column.
func (t Type) Decoder(fn DecodeFunc) Type {
	t.decode = fn
	return t
}

// HasDefault reports whether a default is configured.
func (t Type) HasDefault() bool { return t.hasDefault }

// DefaultValue returns the default for owner.
func (t Type) DefaultValue(owner Getter) any {
	if t.defaultFn != nil {
		return t.defaultFn(owner)
	}

	return t.literal
}

// Decode runs the decoding hook. ok is false when none is configured.
func (t Type) Decode(raw []byte) (v any, ok bool, err error) {
	if t.decode == nil {
		return nil, false, nil
	}

	v, err = t.decode(raw)

	return v, true, err
}
