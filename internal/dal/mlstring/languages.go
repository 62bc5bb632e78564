package mlstring

// Undetermined is the language code for content whose language is unknown.
const Undetermined = "und"

// languages is the canonical language order. Resolution scans it when neither the requested
// language nor its fallbacks carry content.
var languages = []string{ //nolint:gochecknoglobals
	"en", "ar", "bn", "de", "eo", "es", "fi", "fr", "hu", "it", "ja", "lt", "mk", "nl",
	"pt", "pt-PT", "sk", "sl", "sv", "tr", "uk", "zh", "zh-Hant",
	Undetermined,
}

// specific fallbacks, consulted before the global ones.
var fallbacks = map[string][]string{ //nolint:gochecknoglobals
	"pt":      {"pt-PT"},
	"pt-PT":   {"pt"},
	"zh":      {"zh-Hant"},
	"zh-Hant": {"zh"},
}

var globalFallbacks = []string{"en", Undetermined} //nolint:gochecknoglobals

var valid = func() map[string]struct{} { //nolint:gochecknoglobals
	m := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		m[l] = struct{}{}
	}

	return m
}()

// Languages returns the recognized language codes in canonical order.
func Languages() []string {
	return append([]string(nil), languages...)
}

// IsValid reports whether code is a recognized language code.
func IsValid(code string) bool {
	_, ok := valid[code]
	return ok
}

// Fallbacks returns the ranked fallback list for lang, excluding lang itself.
func Fallbacks(lang string) []string {
	out := make([]string, 0, len(fallbacks[lang])+len(globalFallbacks))
	seen := map[string]bool{lang: true}

	for _, l := range append(append([]string(nil), fallbacks[lang]...), globalFallbacks...) {
		if seen[l] {
			continue
		}

		seen[l] = true
		out = append(out, l)
	}

	return out
}
