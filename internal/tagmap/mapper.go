// Package tagmap turns the free-text tags returned by image analysis into
// structured wardrobe fields.
//
// Matching is a plain case-insensitive substring scan over fixed
// vocabularies. Single-valued fields take the first declared match,
// multi-valued fields collect every match. Nothing is ever invented: a field
// without a keyword hit stays empty.
package tagmap

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map"
)

// Fields are the record fields derived from tags.
type Fields struct {
	Category    string
	Color       string
	Season      []string
	Occasion    []string
	Material    string
	Brand       string
	Name        string
	Description string
}

// Empty reports whether no field was derived.
func (f Fields) Empty() bool {
	return f.Category == "" && f.Color == "" && len(f.Season) == 0 && len(f.Occasion) == 0 &&
		f.Material == "" && f.Brand == "" && f.Name == "" && f.Description == ""
}

var (
	bulletPrefix  = regexp.MustCompile(`^(?:\d+[.):]\s*|[-*•·]+\s*)+`)
	articlePrefix = regexp.MustCompile(`(?i)^(?:a|an|the)\s+`)
)

// Map derives fields from tags. Labels are extra provider keywords; they take
// part in keyword matching but not in the name or description.
func Map(tags []string, labels ...string) Fields {
	tags = clean(tags)
	search := strings.ToLower(strings.Join(append(append([]string{}, tags...), clean(labels)...), " "))

	f := Fields{
		Category: firstKey(categoryKeywords, search),
		Color:    firstOf(colors, search),
		Season:   allKeys(seasonKeywords, search),
		Occasion: allKeys(occasionKeywords, search),
		Material: strings.Join(allOf(materials, search), ", "),
		Brand:    firstKey(brands, search),
	}
	if len(tags) > 0 {
		f.Name = nameFromTag(tags[0])
		f.Description = strings.Join(tags[:min(3, len(tags))], ". ")
	}
	return f
}

func nameFromTag(tag string) string {
	name := bulletPrefix.ReplaceAllString(strings.TrimSpace(tag), "")
	name = articlePrefix.ReplaceAllString(name, "")
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return capitalize(strings.TrimSpace(name))
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func firstOf(words []string, search string) string {
	for _, w := range words {
		if strings.Contains(search, w) {
			return w
		}
	}
	return ""
}

func allOf(words []string, search string) []string {
	var out []string
	for _, w := range words {
		if strings.Contains(search, w) {
			out = append(out, w)
		}
	}
	return out
}

func firstKey(m *orderedmap.OrderedMap, search string) string {
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if firstOf(pair.Value.([]string), search) != "" {
			return pair.Key.(string)
		}
	}
	return ""
}

func allKeys(m *orderedmap.OrderedMap, search string) []string {
	var out []string
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if firstOf(pair.Value.([]string), search) != "" {
			out = append(out, pair.Key.(string))
		}
	}
	return out
}
