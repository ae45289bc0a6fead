// Package classify maps field locations in parsed messages to Safe Harbor
// identifier categories using a static rule table.
package classify

import (
	"strings"
	"sync"

	"msg-deidentifier/internal/phi"
)

// Rule maps a (standard, container, path) pattern to a category.
//
// Container "*" matches any container of the standard. A Path starting with
// "*" is a case-insensitive suffix rule; suffix rules ignore Container and
// apply to every standard when Standard is Any. Blank rules clear the value
// instead of replacing it; they cover free text and times with no date to
// shift.
type Rule struct {
	Standard  phi.Standard
	Container string
	Path      string
	Category  phi.Category
	Blank     bool
}

type entry struct {
	category phi.Category
	blank    bool
}

type exactKey struct {
	standard  phi.Standard
	container string
	path      string
}

type wildcardKey struct {
	standard phi.Standard
	path     string
}

type suffixRule struct {
	standard phi.Standard
	suffix   string
	entry    entry
}

// Classifier is an immutable lookup structure built once from a rule table.
// It is safe for concurrent use.
type Classifier struct {
	exact    map[exactKey]entry
	wildcard map[wildcardKey]entry
	suffixes []suffixRule
}

// New builds a classifier. Later rules for the same key win.
func New(rules []Rule) *Classifier {
	c := &Classifier{
		exact:    make(map[exactKey]entry, len(rules)),
		wildcard: make(map[wildcardKey]entry),
	}
	for _, r := range rules {
		path := strings.ToUpper(r.Path)
		e := entry{category: r.Category, blank: r.Blank}
		switch {
		case strings.HasPrefix(path, "*"):
			c.suffixes = append(c.suffixes, suffixRule{standard: r.Standard, suffix: path[1:], entry: e})
		case r.Container == "*":
			c.wildcard[wildcardKey{standard: r.Standard, path: path}] = e
		default:
			c.exact[exactKey{standard: r.Standard, container: strings.ToUpper(r.Container), path: path}] = e
		}
	}
	return c
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns the classifier over DefaultRules, built on first use.
func Default() *Classifier {
	defaultOnce.Do(func() {
		defaultClassifier = New(DefaultRules())
	})
	return defaultClassifier
}

// Classify returns the category for loc, or phi.None when no rule covers it.
// Unmapped fields are never assumed sensitive.
func (c *Classifier) Classify(loc phi.FieldLocation) phi.Category {
	return c.lookup(loc).category
}

// Blanks reports whether a rule asks for loc's value to be cleared.
func (c *Classifier) Blanks(loc phi.FieldLocation) bool {
	return c.lookup(loc).blank
}

func (c *Classifier) lookup(loc phi.FieldLocation) entry {
	container := strings.ToUpper(loc.Container)
	paths := candidatePaths(loc)
	// a discriminated path ("identifier:NI.value") with no rule of its own
	// falls back to the undiscriminated one
	if plain := strings.ToUpper(phi.PlainPath(loc.Path)); plain != strings.ToUpper(loc.Path) {
		paths = append(paths, plain)
	}
	for _, path := range paths {
		if e, ok := c.exact[exactKey{standard: loc.Standard, container: container, path: path}]; ok {
			return e
		}
		if e, ok := c.wildcard[wildcardKey{standard: loc.Standard, path: path}]; ok {
			return e
		}
	}
	path := strings.ToUpper(loc.Path)
	for _, s := range c.suffixes {
		if s.standard != phi.Any && s.standard != loc.Standard {
			continue
		}
		if strings.HasSuffix(path, s.suffix) {
			return s.entry
		}
	}
	return entry{}
}

// Resolve classifies loc and reports whether the caller asked to keep it.
// A kept field must be left untouched; its category is still returned so
// that compliance assessment can flag it.
func (c *Classifier) Resolve(loc phi.FieldLocation, keep phi.KeepSet) (phi.Category, bool) {
	cat := c.Classify(loc)
	if cat == phi.None {
		return phi.None, false
	}
	if keep.KeepsCategory(cat) || keep.KeepsLocation(loc) {
		return cat, true
	}
	return cat, false
}

// candidatePaths returns the lookup keys for loc. For HL7 a field without
// components is equivalent to its first component, so "7" also tries "7.1"
// and "3.1" also tries "3".
func candidatePaths(loc phi.FieldLocation) []string {
	path := strings.ToUpper(loc.Path)
	if loc.Standard != phi.HL7 {
		return []string{path}
	}
	if !strings.Contains(path, ".") {
		return []string{path, path + ".1"}
	}
	if strings.HasSuffix(path, ".1") && strings.Count(path, ".") == 1 {
		return []string{path, strings.TrimSuffix(path, ".1")}
	}
	return []string{path}
}
