package mlstring

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// Options configures a multilingual field.
type Options struct {
	// MaxLength limits every entry in runes. Zero means unlimited.
	MaxLength int
	// Array stores a list of strings per language instead of a single string.
	Array bool
	// AllowHTML permits markup in the stored text.
	AllowHTML bool
}

// Schema returns an object descriptor validating a Value (or Values when opts.Array is set).
// The descriptor decodes the stored JSON column back into the same typed map.
func Schema(opts Options) schema.Type {
	return schema.Object(nil).
		Validator(func(v any) error { return validate(opts, v) }).
		Decoder(func(raw []byte) (any, error) { return decode(opts, raw) })
}

func validate(opts Options, v any) error {
	m, ok := schema.AsMap(v)
	if !ok {
		return dalerr.Invalid("", "must be a multilingual string object")
	}

	for _, lang := range sortedLangs(m) {
		if !IsValid(lang) {
			return dalerr.Invalid(lang, "unknown language code")
		}

		if !opts.Array {
			s, ok := m[lang].(string)
			if !ok {
				return dalerr.Invalid(lang, "must be a string")
			}

			if err := checkText(opts, s); err != nil {
				return dalerr.Invalid(lang, err.Error())
			}

			continue
		}

		list, ok := stringList(m[lang])
		if !ok {
			return dalerr.Invalid(lang, "must be an array of strings")
		}

		for i, s := range list {
			if err := checkText(opts, s); err != nil {
				return dalerr.Invalid(lang+"["+strconv.Itoa(i)+"]", err.Error())
			}
		}
	}

	return nil
}

func checkText(opts Options, s string) error {
	if opts.MaxLength > 0 && utf8.RuneCountInString(s) > opts.MaxLength {
		return fmt.Errorf("must be at most %d characters long", opts.MaxLength)
	}

	if !opts.AllowHTML && containsMarkup(s) {
		return errMarkup
	}

	return nil
}

func stringList(v any) ([]string, bool) {
	if list, ok := v.([]string); ok {
		return list, true
	}

	items, ok := schema.AsSlice(v)
	if !ok {
		return nil, false
	}

	out := make([]string, len(items))

	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}

		out[i] = s
	}

	return out, true
}

func decode(opts Options, raw []byte) (any, error) {
	if opts.Array {
		var v Values
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding multilingual array: %w", err)
		}

		return v, nil
	}

	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding multilingual string: %w", err)
	}

	return v, nil
}

func sortedLangs(m map[string]any) []string {
	out := make([]string, 0, len(m))

	for _, l := range languages {
		if _, ok := m[l]; ok {
			out = append(out, l)
		}
	}

	for l := range m {
		if !IsValid(l) {
			// unknown codes go first so they are reported before content errors
			out = append([]string{l}, out...)
		}
	}

	return out
}
