package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases s, folds accented letters to ASCII, and joins runs of
// letters and digits with single hyphens. It returns "" when nothing usable
// remains.
func Slugify(s string) string {
	folded, _, err := transform.String(foldAccents(), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// foldAccents decomposes runes and drops the combining marks, so "é" becomes "e".
// A transformer is stateful, so each call builds a fresh chain.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// TitleCase turns a handle back into a display label: "acme-studio" → "Acme Studio".
func TitleCase(handle string) string {
	parts := strings.FieldsFunc(handle, func(r rune) bool { return r == '-' || r == '_' || unicode.IsSpace(r) })
	for i, p := range parts {
		rs := []rune(p)
		rs[0] = unicode.ToUpper(rs[0])
		parts[i] = string(rs)
	}
	return strings.Join(parts, " ")
}

// FallbackID derives the deterministic id given to a new product that has no
// explicit id: "studio-jacket" → "XA-STUDIO-JACKET".
func FallbackID(slug string) string {
	token := Slugify(slug)
	if token == "" {
		token = "product"
	}
	return "XA-" + strings.ToUpper(token)
}
