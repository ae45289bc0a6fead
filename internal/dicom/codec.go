package dicom

import (
	"fmt"

	"msg-deidentifier/internal/phi"
)

// Codec adapts Dataset to phi.Codec. A file holds exactly one dataset.
type Codec struct {
	// RedactRows is the number of top pixel rows blanked in ultrasound
	// images on encode; 0 disables redaction.
	RedactRows int
}

// NewCodec returns a DICOM codec.
func NewCodec(redactRows int) *Codec {
	return &Codec{RedactRows: redactRows}
}

// Standard implements phi.Codec.
func (c *Codec) Standard() phi.Standard {
	return phi.DICOM
}

// Decode implements phi.Codec.
func (c *Codec) Decode(raw []byte) ([]phi.Document, error) {
	ds, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return []phi.Document{ds}, nil
}

// Encode implements phi.Codec. Ultrasound pixel data is redacted first.
func (c *Codec) Encode(docs []phi.Document) ([]byte, error) {
	if len(docs) != 1 {
		return nil, fmt.Errorf("dicom: expected one dataset, got %d", len(docs))
	}
	ds, ok := docs[0].(*Dataset)
	if !ok {
		return nil, fmt.Errorf("dicom: cannot encode %T", docs[0])
	}
	if ds.IsUltrasound() {
		if _, err := ds.RedactRows(c.RedactRows); err != nil {
			return nil, err
		}
	}
	return ds.Encode()
}

// SubjectSelectors implements phi.Codec.
func (c *Codec) SubjectSelectors() []string {
	return []string{RootContainer + ".PatientID"}
}
