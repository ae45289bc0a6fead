// Package hl7 reads and writes pipe-delimited HL7 v2 messages at component
// granularity. Unmodified content round-trips byte for byte.
package hl7

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"msg-deidentifier/internal/phi"
)

var (
	segmentNameRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{2}$`)
	lineSplitRegex   = regexp.MustCompile(`\r\n|\r|\n`)
)

// batch and file envelope segments surround messages but belong to none
var envelopeSegments = map[string]bool{
	"FHS": true,
	"BHS": true,
	"BTS": true,
	"FTS": true,
}

// field is a list of repetitions, each a list of components. Components
// keep their escapes and subcomponent separators.
type field [][]string

// Segment is one parsed segment line.
type Segment struct {
	Name   string
	fields []field
}

// ref addresses one value. comp is -1 when the repetition has no components.
type ref struct {
	seg, field, rep, comp int
}

// Message is one HL7 v2 message. It implements phi.Document.
type Message struct {
	enc      *Encoding
	mshChars string // raw MSH-2, empty for a headerless fragment
	leading  []string
	segments []*Segment
	trailing []string
	refs     []ref

	eol      string
	finalEOL bool
}

// Parse splits raw into messages. A file may hold a batch of messages, each
// starting with MSH, optionally wrapped in FHS/BHS envelopes. A fragment
// without MSH is read as one message with default delimiters.
func Parse(raw []byte) ([]*Message, error) {
	text := strings.TrimPrefix(string(raw), "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("hl7: message is empty")
	}

	eol := detectEOL(text)
	lines := lineSplitRegex.Split(text, -1)
	finalEOL := lines[len(lines)-1] == ""

	var (
		msgs    []*Message
		cur     *Message
		pending []string
	)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, err := segmentName(line, cur)
		if err != nil {
			return nil, fmt.Errorf("hl7: line %d: %w", i+1, err)
		}

		switch {
		case envelopeSegments[name]:
			if cur != nil && (name == "BTS" || name == "FTS") {
				cur.trailing = append(cur.trailing, line)
			} else {
				pending = append(pending, line)
			}
		case name == "MSH":
			m, err := newMessage(line)
			if err != nil {
				return nil, fmt.Errorf("hl7: line %d: %w", i+1, err)
			}
			m.leading, pending = pending, nil
			msgs = append(msgs, m)
			cur = m
		default:
			if cur == nil {
				cur = &Message{enc: DefaultEncoding()}
				cur.leading, pending = pending, nil
				msgs = append(msgs, cur)
			}
			if len(cur.trailing) > 0 {
				return nil, fmt.Errorf("hl7: line %d: segment %s after batch trailer", i+1, name)
			}
			cur.segments = append(cur.segments, parseSegment(line, cur.enc))
		}
	}

	if len(msgs) == 0 {
		return nil, errors.New("hl7: no message segments found")
	}
	last := msgs[len(msgs)-1]
	last.trailing = append(last.trailing, pending...)

	for _, m := range msgs {
		m.eol = eol
		m.finalEOL = finalEOL
		m.index()
	}
	return msgs, nil
}

func detectEOL(text string) string {
	switch {
	case strings.Contains(text, "\r\n"):
		return "\r\n"
	case strings.Contains(text, "\r"):
		return "\r"
	default:
		return "\n"
	}
}

// segmentName validates the segment header of line.
func segmentName(line string, cur *Message) (string, error) {
	if len(line) < 3 || !segmentNameRegex.MatchString(line[:3]) {
		return "", errors.New("invalid segment header")
	}
	name := line[:3]
	if name == "MSH" || len(line) == 3 {
		return name, nil
	}
	sep := byte('|')
	if cur != nil {
		sep = cur.enc.Field
	}
	if line[3] != sep {
		return "", fmt.Errorf("segment %s: expected field separator %q", name, sep)
	}
	return name, nil
}

func newMessage(line string) (*Message, error) {
	if len(line) < 8 {
		return nil, errors.New("MSH segment too short")
	}
	sep := line[3]
	parts := strings.Split(line[4:], string(sep))
	enc, err := newEncoding(sep, parts[0])
	if err != nil {
		return nil, fmt.Errorf("MSH-2: %w", err)
	}

	seg := &Segment{Name: "MSH"}
	for _, raw := range parts[1:] {
		seg.fields = append(seg.fields, parseField(raw, enc))
	}
	return &Message{enc: enc, mshChars: parts[0], segments: []*Segment{seg}}, nil
}

func parseSegment(line string, enc *Encoding) *Segment {
	parts := strings.Split(line, string(enc.Field))
	seg := &Segment{Name: parts[0]}
	for _, raw := range parts[1:] {
		seg.fields = append(seg.fields, parseField(raw, enc))
	}
	return seg
}

func parseField(raw string, enc *Encoding) field {
	reps := strings.Split(raw, string(enc.Repetition))
	f := make(field, len(reps))
	for i, rep := range reps {
		f[i] = strings.Split(rep, string(enc.Component))
	}
	return f
}

func (f field) hasComponents() bool {
	for _, rep := range f {
		if len(rep) > 1 {
			return true
		}
	}
	return false
}

// fieldNumber maps a slice index to the HL7 field number. MSH-1 and MSH-2
// are the delimiters themselves, so MSH data fields start at 3.
func (m *Message) fieldNumber(seg *Segment, i int) int {
	if seg.Name == "MSH" && m.mshChars != "" {
		return i + 3
	}
	return i + 1
}

func (m *Message) index() {
	m.refs = m.refs[:0]
	for si, seg := range m.segments {
		for fi, f := range seg.fields {
			whole := !f.hasComponents()
			for ri, rep := range f {
				if whole {
					m.refs = append(m.refs, ref{seg: si, field: fi, rep: ri, comp: -1})
					continue
				}
				for ci := range rep {
					m.refs = append(m.refs, ref{seg: si, field: fi, rep: ri, comp: ci})
				}
			}
		}
	}
}

func (m *Message) location(r ref) phi.FieldLocation {
	seg := m.segments[r.seg]
	path := strconv.Itoa(m.fieldNumber(seg, r.field))
	if r.comp >= 0 {
		path += "." + strconv.Itoa(r.comp+1)
	}
	return phi.FieldLocation{Standard: phi.HL7, Container: seg.Name, Path: path}
}

func (m *Message) raw(r ref) string {
	rep := m.segments[r.seg].fields[r.field][r.rep]
	if r.comp < 0 {
		return rep[0]
	}
	return rep[r.comp]
}

// Standard implements phi.Document.
func (m *Message) Standard() phi.Standard {
	return phi.HL7
}

// Fields returns every non-empty value in document order. Values are
// unescaped.
func (m *Message) Fields() []phi.Field {
	out := make([]phi.Field, 0, len(m.refs))
	seen := make(map[string]int)
	for h, r := range m.refs {
		raw := m.raw(r)
		if raw == "" {
			continue
		}
		loc := m.location(r)
		key := loc.String()
		loc.Occurrence = seen[key]
		seen[key]++
		out = append(out, phi.Field{Location: loc, Value: m.enc.UnescapeValue(raw), Handle: h})
	}
	return out
}

// Set replaces the value addressed by f. The value is escaped.
func (m *Message) Set(f phi.Field, value string) error {
	if f.Handle < 0 || f.Handle >= len(m.refs) {
		return fmt.Errorf("hl7: invalid field handle %d", f.Handle)
	}
	r := m.refs[f.Handle]
	if loc := m.location(r); loc.Container != f.Location.Container || loc.Path != f.Location.Path {
		return fmt.Errorf("hl7: handle %d addresses %s, not %s", f.Handle, loc, f.Location)
	}
	rep := m.segments[r.seg].fields[r.field][r.rep]
	escaped := m.enc.EscapeValue(value)
	if r.comp < 0 {
		rep[0] = escaped
	} else {
		rep[r.comp] = escaped
	}
	return nil
}

// Lookup returns the first value at container and path, e.g. ("PID", "5.1").
func (m *Message) Lookup(container, path string) (string, bool) {
	for _, f := range m.Fields() {
		if f.Location.Container == container && f.Location.Path == path {
			return f.Value, true
		}
	}
	return "", false
}

// Segments returns the parsed segments in order.
func (m *Message) Segments() []*Segment {
	return m.segments
}

func (m *Message) lines() []string {
	lines := make([]string, 0, len(m.leading)+len(m.segments)+len(m.trailing))
	lines = append(lines, m.leading...)
	for _, seg := range m.segments {
		lines = append(lines, m.encodeSegment(seg))
	}
	return append(lines, m.trailing...)
}

func (m *Message) encodeSegment(seg *Segment) string {
	sep := string(m.enc.Field)
	var b strings.Builder
	b.WriteString(seg.Name)
	if seg.Name == "MSH" && m.mshChars != "" {
		b.WriteString(sep)
		b.WriteString(m.mshChars)
	}
	for _, f := range seg.fields {
		b.WriteString(sep)
		for ri, rep := range f {
			if ri > 0 {
				b.WriteByte(m.enc.Repetition)
			}
			b.WriteString(strings.Join(rep, string(m.enc.Component)))
		}
	}
	return b.String()
}

// Encode renders messages back to wire format using the first message's
// line endings.
func Encode(msgs []*Message) []byte {
	if len(msgs) == 0 {
		return nil
	}
	var lines []string
	for _, m := range msgs {
		lines = append(lines, m.lines()...)
	}
	eol := msgs[0].eol
	if eol == "" {
		eol = "\r"
	}
	out := strings.Join(lines, eol)
	if msgs[len(msgs)-1].finalEOL {
		out += eol
	}
	return []byte(out)
}
