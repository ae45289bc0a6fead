package hl7

import (
	"fmt"
	"regexp"
	"strings"

	"msg-deidentifier/internal/phi"
)

var sniffRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{2}\|`)

// Codec adapts the parser to phi.Codec.
type Codec struct{}

// NewCodec returns the HL7 v2 codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Standard implements phi.Codec.
func (c *Codec) Standard() phi.Standard {
	return phi.HL7
}

// Decode implements phi.Codec.
func (c *Codec) Decode(raw []byte) ([]phi.Document, error) {
	msgs, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	docs := make([]phi.Document, len(msgs))
	for i, m := range msgs {
		docs[i] = m
	}
	return docs, nil
}

// Encode implements phi.Codec.
func (c *Codec) Encode(docs []phi.Document) ([]byte, error) {
	msgs := make([]*Message, len(docs))
	for i, d := range docs {
		m, ok := d.(*Message)
		if !ok {
			return nil, fmt.Errorf("hl7: cannot encode %T", d)
		}
		msgs[i] = m
	}
	return Encode(msgs), nil
}

// SubjectSelectors implements phi.Codec: the patient identifier list, then
// the external and alternate ids.
func (c *Codec) SubjectSelectors() []string {
	return []string{"PID.3.1", "PID.2.1", "PID.4.1"}
}

// Sniff reports whether raw starts like an HL7 v2 segment stream.
func Sniff(raw []byte) bool {
	head := raw
	if len(head) > 64 {
		head = head[:64]
	}
	text := strings.TrimLeft(strings.TrimPrefix(string(head), "\ufeff"), " \t\r\n")
	return sniffRegex.MatchString(text)
}
