package tagmap

import (
	"path/filepath"
	"strings"
	"unicode"
)

// FromFilename guesses fields from a photo's file name when no analysis
// provider produced a result. Only category, color and name are inferred.
// It never fails; an uninformative name yields empty fields.
func FromFilename(name string) Fields {
	words := filenameWords(name)
	search := strings.ToLower(strings.Join(words, " "))

	titled := make([]string, len(words))
	for i, w := range words {
		titled[i] = capitalize(strings.ToLower(w))
	}

	return Fields{
		Category: firstKey(categoryKeywords, search),
		Color:    firstOf(colors, search),
		Name:     strings.Join(titled, " "),
	}
}

// filenameWords strips the extension and splits the rest on separators,
// dropping purely numeric tokens such as camera counters.
func filenameWords(name string) []string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == '+' || unicode.IsSpace(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if strings.IndexFunc(f, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
			continue
		}
		words = append(words, f)
	}
	return words
}
