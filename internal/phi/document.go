package phi

import (
	"fmt"
	"strings"
)

// Standard identifies the wire format a message was parsed from.
type Standard string

const (
	Any   Standard = "*"
	HL7   Standard = "HL7"
	FHIR  Standard = "FHIR"
	DICOM Standard = "DICOM"
)

// ParseStandard resolves a user-supplied standard name.
func ParseStandard(s string) (Standard, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HL7", "HL7V2", "V2":
		return HL7, nil
	case "FHIR", "JSON":
		return FHIR, nil
	case "DICOM", "DCM":
		return DICOM, nil
	default:
		return "", fmt.Errorf("unknown message standard %q", s)
	}
}

// FieldLocation addresses one value inside a parsed message.
//
// Container is the HL7 segment name, the FHIR resource type, or "Dataset" for
// DICOM. Path is relative to the container. Occurrence is the ordinal of the
// (Container, Path) pair within the document, starting at 0.
type FieldLocation struct {
	Standard   Standard `json:"standard"`
	Container  string   `json:"container"`
	Path       string   `json:"path"`
	Occurrence int      `json:"occurrence"`
}

// String renders the location as Container.Path, e.g. "PID.5.1".
func (l FieldLocation) String() string {
	if l.Path == "" {
		return l.Container
	}
	return l.Container + "." + l.Path
}

// Field is a located value produced by a codec. Handle is private to the codec
// that produced it and is passed back unchanged to Document.Set.
type Field struct {
	Location FieldLocation
	Value    string
	Handle   int
}

// ClassifiedField is a field together with its classification outcome.
type ClassifiedField struct {
	Field
	Category Category
	Kept     bool
}

// AppliedChange records one rewritten value.
type AppliedChange struct {
	Location    FieldLocation `json:"location"`
	Category    Category      `json:"category"`
	Original    string        `json:"original"`
	Replacement string        `json:"replacement"`
}

// Document is one parsed message. Set must only be called with fields
// returned by Fields on the same document.
type Document interface {
	Standard() Standard
	Fields() []Field
	Set(f Field, value string) error
}

// Codec decodes a file's bytes into documents and encodes them back into the
// same wire format.
type Codec interface {
	Standard() Standard
	Decode(raw []byte) ([]Document, error)
	Encode(docs []Document) ([]byte, error)
	// SubjectSelectors lists the default "Container.Path" selectors used to
	// resolve a document's subject key, in priority order.
	SubjectSelectors() []string
}
