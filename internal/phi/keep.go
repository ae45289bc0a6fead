package phi

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// KeepSet holds the identifiers a caller asked to leave untouched: whole
// categories and explicit field paths ("PID.5", "PID.5.1", "Patient.birthDate").
type KeepSet struct {
	categories map[Category]bool
	paths      map[string]bool
}

// ParseKeepSet builds a KeepSet from names as given on the command line. An
// entry that parses as a category keeps the category; anything else is taken
// as a field path.
func ParseKeepSet(entries []string) KeepSet {
	ks := KeepSet{
		categories: make(map[Category]bool),
		paths:      make(map[string]bool),
	}
	cleaned := lo.Uniq(lo.FilterMap(entries, func(e string, _ int) (string, bool) {
		e = strings.TrimSpace(e)
		return e, e != ""
	}))
	for _, e := range cleaned {
		if c, ok := ParseCategory(e); ok {
			ks.categories[c] = true
			continue
		}
		ks.paths[strings.ToUpper(e)] = true
	}
	return ks
}

// Empty reports whether nothing is kept.
func (k KeepSet) Empty() bool {
	return len(k.categories) == 0 && len(k.paths) == 0
}

// KeepsCategory reports whether the whole category is kept.
func (k KeepSet) KeepsCategory(c Category) bool {
	return k.categories[c]
}

// KeepsLocation reports whether the location's path, or one of its parent
// paths, was listed explicitly. "PID.5" covers "PID.5.1"; "Patient.name"
// covers "Patient.name.family".
func (k KeepSet) KeepsLocation(loc FieldLocation) bool {
	if len(k.paths) == 0 {
		return false
	}
	full := strings.ToUpper(loc.String())
	if k.keepsPath(full) {
		return true
	}
	// "Patient.identifier" also covers "Patient.identifier:SS.value".
	if plain := PlainPath(full); plain != full {
		return k.keepsPath(plain)
	}
	return false
}

func (k KeepSet) keepsPath(full string) bool {
	for {
		if k.paths[full] {
			return true
		}
		i := strings.LastIndex(full, ".")
		if i <= 0 {
			return false
		}
		full = full[:i]
	}
}

// Entries returns the kept categories and paths, sorted, for reporting.
func (k KeepSet) Entries() []string {
	out := make([]string, 0, len(k.categories)+len(k.paths))
	for c := range k.categories {
		out = append(out, c.String())
	}
	out = append(out, lo.Keys(k.paths)...)
	sort.Strings(out)
	return out
}

// PlainPath removes FHIR discriminators: "identifier:SS.value" becomes
// "identifier.value".
func PlainPath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		if j := strings.Index(p, ":"); j > 0 {
			parts[i] = p[:j]
		}
	}
	return strings.Join(parts, ".")
}
