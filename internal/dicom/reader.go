// Package dicom exposes the string-valued metadata of DICOM Part 10 files as
// de-identifiable fields, and redacts burned-in text from ultrasound pixel
// data.
package dicom

import (
	"bytes"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"msg-deidentifier/internal/phi"
)

// RootContainer is the container of top-level elements. Elements inside a
// sequence item use the sequence's keyword as container.
const RootContainer = "Dataset"

const (
	preambleLength = 128
	magic          = "DICM"
)

// valueRef addresses one value of a multi-valued string element.
type valueRef struct {
	elem  *dicom.Element
	index int
}

// Dataset wraps a parsed DICOM dataset. It implements phi.Document.
type Dataset struct {
	Data dicom.Dataset

	fields []phi.Field
	refs   []valueRef
}

// Decode parses a DICOM file held in memory, pixel data included.
func Decode(raw []byte) (*Dataset, error) {
	if !Sniff(raw) {
		return nil, fmt.Errorf("dicom: missing %s preamble", magic)
	}
	ds, err := dicom.Parse(bytes.NewReader(raw), int64(len(raw)), nil)
	if err != nil {
		return nil, fmt.Errorf("dicom: could not parse: %w", err)
	}
	return NewDataset(ds), nil
}

// NewDataset indexes the string values of ds.
func NewDataset(ds dicom.Dataset) *Dataset {
	d := &Dataset{Data: ds}
	seen := make(map[string]int)
	d.index(ds.Elements, RootContainer, seen)
	return d
}

func (d *Dataset) index(elems []*dicom.Element, container string, seen map[string]int) {
	for _, elem := range elems {
		if elem == nil || elem.Value == nil {
			continue
		}
		switch elem.Value.ValueType() {
		case dicom.Sequences:
			items, _ := elem.Value.GetValue().([]*dicom.SequenceItemValue)
			for _, item := range items {
				nested, _ := item.GetValue().([]*dicom.Element)
				d.index(nested, Keyword(elem.Tag), seen)
			}
		case dicom.Strings:
			// file meta information is structural
			if elem.Tag.Group == 0x0002 {
				continue
			}
			values, _ := elem.Value.GetValue().([]string)
			for i, v := range values {
				if v == "" {
					continue
				}
				loc := phi.FieldLocation{Standard: phi.DICOM, Container: container, Path: Keyword(elem.Tag)}
				key := loc.String()
				loc.Occurrence = seen[key]
				seen[key]++
				d.fields = append(d.fields, phi.Field{Location: loc, Value: v, Handle: len(d.refs)})
				d.refs = append(d.refs, valueRef{elem: elem, index: i})
			}
		}
	}
}

// Keyword returns the dictionary keyword of t, e.g. "PatientName", or the
// "(gggg,eeee)" form for private and unknown tags.
func Keyword(t tag.Tag) string {
	info, err := tag.Find(t)
	if err != nil || info.Name == "" {
		return t.String()
	}
	return info.Name
}

// Standard implements phi.Document.
func (d *Dataset) Standard() phi.Standard {
	return phi.DICOM
}

// Fields returns every non-empty string value, one per value multiplicity,
// sequences included.
func (d *Dataset) Fields() []phi.Field {
	out := make([]phi.Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Lookup returns the first value of keyword within container.
func (d *Dataset) Lookup(container, keyword string) (string, bool) {
	for _, f := range d.fields {
		if f.Location.Container == container && f.Location.Path == keyword {
			return f.Value, true
		}
	}
	return "", false
}

// GetString returns the first value for a top-level tag, or "" if not found.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case string:
		return v
	}
	return elem.Value.String()
}

// Modality returns the DICOM modality (e.g., "US", "CT", "MR").
func (d *Dataset) Modality() string {
	return d.GetString(tag.Modality)
}

// IsUltrasound returns true if this is an ultrasound image.
func (d *Dataset) IsUltrasound() bool {
	modality := d.Modality()
	return modality == "US" || modality == "IVUS" // Intravascular ultrasound
}

// Sniff reports whether raw carries the Part 10 preamble and magic.
func Sniff(raw []byte) bool {
	return len(raw) >= preambleLength+len(magic) &&
		string(raw[preambleLength:preambleLength+len(magic)]) == magic
}
