package fhir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"msg-deidentifier/internal/phi"
)

// Decode reads one FHIR JSON file. A Bundle yields the Bundle itself
// (without its entries' resources) followed by one Resource per entry;
// any other resource yields a single Resource.
func Decode(raw []byte) ([]*Resource, error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var root map[string]interface{}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("fhir: %w", err)
	}
	if dec.More() {
		return nil, errors.New("fhir: trailing data after resource")
	}
	rt, _ := root["resourceType"].(string)
	if rt == "" {
		return nil, errors.New("fhir: missing resourceType")
	}

	f := &file{
		root:     root,
		indent:   detectIndent(raw),
		finalEOL: bytes.HasSuffix(bytes.TrimRight(raw, " \t"), []byte("\n")),
	}
	if rt != "Bundle" {
		return []*Resource{newResource(f, root, false)}, nil
	}

	docs := []*Resource{newResource(f, root, true)}
	entries, _ := root["entry"].([]interface{})
	for i, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("fhir: Bundle.entry[%d] is not an object", i)
		}
		v, present := entry["resource"]
		if !present {
			continue
		}
		res, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("fhir: Bundle.entry[%d].resource is not an object", i)
		}
		if _, ok := res["resourceType"].(string); !ok {
			return nil, fmt.Errorf("fhir: Bundle.entry[%d].resource: missing resourceType", i)
		}
		docs = append(docs, newResource(f, res, false))
	}
	return docs, nil
}

// Encode renders the file the resources were decoded from. Object keys are
// written in sorted order; the input's indentation is kept.
func Encode(docs []*Resource) ([]byte, error) {
	if len(docs) == 0 {
		return nil, errors.New("fhir: nothing to encode")
	}
	f := docs[0].file
	for _, d := range docs[1:] {
		if d.file != f {
			return nil, errors.New("fhir: resources come from different files")
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if f.indent != "" {
		enc.SetIndent("", f.indent)
	}
	if err := enc.Encode(f.root); err != nil {
		return nil, fmt.Errorf("fhir: %w", err)
	}
	out := buf.Bytes()
	if !f.finalEOL {
		out = bytes.TrimSuffix(out, []byte("\n"))
	}
	return out, nil
}

// detectIndent returns the leading whitespace of the first indented line,
// or "" for single-line JSON.
func detectIndent(raw []byte) string {
	lines := strings.Split(string(raw), "\n")
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || len(trimmed) == len(line) {
			continue
		}
		return line[:len(line)-len(trimmed)]
	}
	return ""
}

// Codec adapts Decode and Encode to phi.Codec.
type Codec struct{}

// NewCodec returns the FHIR codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Standard implements phi.Codec.
func (c *Codec) Standard() phi.Standard {
	return phi.FHIR
}

// Decode implements phi.Codec.
func (c *Codec) Decode(raw []byte) ([]phi.Document, error) {
	resources, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	docs := make([]phi.Document, len(resources))
	for i, r := range resources {
		docs[i] = r
	}
	return docs, nil
}

// Encode implements phi.Codec.
func (c *Codec) Encode(docs []phi.Document) ([]byte, error) {
	resources := make([]*Resource, len(docs))
	for i, d := range docs {
		r, ok := d.(*Resource)
		if !ok {
			return nil, fmt.Errorf("fhir: cannot encode %T", d)
		}
		resources[i] = r
	}
	return Encode(resources)
}

// SubjectSelectors implements phi.Codec. The patient's own id wins over
// references to it, then business identifiers.
func (c *Codec) SubjectSelectors() []string {
	return []string{
		"Patient.id",
		"*.subject.reference",
		"*.patient.reference",
		"*.beneficiary.reference",
		"Patient.identifier.value",
	}
}

// Sniff reports whether raw looks like a FHIR JSON resource.
func Sniff(raw []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(raw, []byte("\ufeff")), " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	head := trimmed
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.Contains(head, []byte(`"resourceType"`))
}
