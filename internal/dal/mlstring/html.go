package mlstring

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// StripHTML decodes entities and removes markup from every entry.
func StripHTML(v Value) Value {
	if v == nil {
		return nil
	}

	out := make(Value, len(v))
	for lang, s := range v {
		out[lang] = stripTags(html.UnescapeString(s))
	}

	return out
}

// StripHTMLValues is StripHTML for array values.
func StripHTMLValues(v Values) Values {
	if v == nil {
		return nil
	}

	out := make(Values, len(v))
	for lang, list := range v {
		stripped := make([]string, len(list))
		for i, s := range list {
			stripped[i] = stripTags(html.UnescapeString(s))
		}

		out[lang] = stripped
	}

	return out
}

// stripTags keeps only the text tokens of s. Text is kept in its raw form so a string
// without markup comes back unchanged.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}

	var b strings.Builder

	z := xhtml.NewTokenizer(strings.NewReader(s))

	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return b.String()
		}

		if tt == xhtml.TextToken {
			b.Write(z.Raw())
		}
	}
}

func containsMarkup(s string) bool {
	return stripTags(s) != s
}
