package hl7

import (
	"fmt"
	"strings"
)

// Encoding holds the delimiters declared by MSH-1 and MSH-2.
type Encoding struct {
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte

	escaper   *strings.Replacer
	unescaper *strings.Replacer
}

// DefaultEncoding is |^~\& as used by nearly every sender.
func DefaultEncoding() *Encoding {
	e, _ := newEncoding('|', `^~\&`)
	return e
}

func newEncoding(field byte, chars string) (*Encoding, error) {
	if len(chars) < 2 {
		return nil, fmt.Errorf("encoding characters %q too short", chars)
	}
	e := &Encoding{
		Field:        field,
		Component:    chars[0],
		Repetition:   chars[1],
		Escape:       '\\',
		Subcomponent: '&',
	}
	if len(chars) > 2 {
		e.Escape = chars[2]
	}
	if len(chars) > 3 {
		e.Subcomponent = chars[3]
	}

	esc := string(e.Escape)
	seq := func(code string) string { return esc + code + esc }
	e.escaper = strings.NewReplacer(
		esc, seq("E"),
		string(e.Field), seq("F"),
		string(e.Component), seq("S"),
		string(e.Repetition), seq("R"),
		string(e.Subcomponent), seq("T"),
	)
	e.unescaper = strings.NewReplacer(
		seq("E"), esc,
		seq("F"), string(e.Field),
		seq("S"), string(e.Component),
		seq("R"), string(e.Repetition),
		seq("T"), string(e.Subcomponent),
	)
	return e, nil
}

// EscapeValue encodes delimiter characters in a plain value.
func (e *Encoding) EscapeValue(v string) string {
	return e.escaper.Replace(v)
}

// UnescapeValue decodes the standard delimiter escapes. Other escape sequences
// (highlighting, hex) are left as they are.
func (e *Encoding) UnescapeValue(v string) string {
	if !strings.ContainsRune(v, rune(e.Escape)) {
		return v
	}
	return e.unescaper.Replace(v)
}
