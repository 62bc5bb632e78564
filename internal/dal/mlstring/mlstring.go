// Package mlstring implements multilingual strings: language-keyed text maps with fallback
// resolution, schema validation and markup stripping.
package mlstring

// Value maps language codes to text.
type Value map[string]string

// Values maps language codes to lists of text, used for fields like aliases.
type Values map[string][]string

// Resolved is the outcome of a resolution: the text found and the language it came from.
type Resolved struct {
	Str  string
	Lang string
}

// Resolve picks the best text for lang: an exact non-empty match, then the ranked
// fallbacks, then the first non-empty entry in canonical language order. Empty strings
// count as absent. ok is false when nothing qualifies.
func Resolve(lang string, v Value) (Resolved, bool) {
	if len(v) == 0 {
		return Resolved{}, false
	}

	if s := v[lang]; s != "" {
		return Resolved{Str: s, Lang: lang}, true
	}

	for _, l := range Fallbacks(lang) {
		if s := v[l]; s != "" {
			return Resolved{Str: s, Lang: l}, true
		}
	}

	for _, l := range languages {
		if s := v[l]; s != "" {
			return Resolved{Str: s, Lang: l}, true
		}
	}

	return Resolved{}, false
}

// ResolvedValues is the array counterpart of Resolved.
type ResolvedValues struct {
	Strs []string
	Lang string
}

// ResolveValues applies Resolve's search to array values. An empty list counts as absent.
func ResolveValues(lang string, v Values) (ResolvedValues, bool) {
	if len(v) == 0 {
		return ResolvedValues{}, false
	}

	order := make([]string, 0, 1+len(languages)+len(globalFallbacks))
	order = append(order, lang)
	order = append(order, Fallbacks(lang)...)
	order = append(order, languages...)

	for _, l := range order {
		if s := v[l]; len(s) > 0 {
			return ResolvedValues{Strs: s, Lang: l}, true
		}
	}

	return ResolvedValues{}, false
}

// Get returns the resolved text for lang or the empty string.
func (v Value) Get(lang string) string {
	r, _ := Resolve(lang, v)
	return r.Str
}
