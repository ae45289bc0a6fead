package dicom

import (
	"bytes"
	"fmt"

	"github.com/suyashkumar/dicom"

	"msg-deidentifier/internal/phi"
)

// Set replaces one value of a string element. The element keeps its tag and
// VR; other values of a multi-valued element are untouched.
func (d *Dataset) Set(f phi.Field, value string) error {
	if f.Handle < 0 || f.Handle >= len(d.refs) {
		return fmt.Errorf("dicom: invalid field handle %d", f.Handle)
	}
	if d.fields[f.Handle].Location != f.Location {
		return fmt.Errorf("dicom: handle %d addresses %s, not %s", f.Handle, d.fields[f.Handle].Location, f.Location)
	}

	ref := d.refs[f.Handle]
	current, _ := ref.elem.Value.GetValue().([]string)
	values := make([]string, len(current))
	copy(values, current)
	values[ref.index] = value

	newValue, err := dicom.NewValue(values)
	if err != nil {
		return fmt.Errorf("dicom: could not create value: %w", err)
	}
	ref.elem.Value = newValue
	ref.elem.ValueLength = valueLength(values)
	d.fields[f.Handle].Value = value
	return nil
}

// valueLength is the encoded length of backslash-joined values, before
// padding.
func valueLength(values []string) uint32 {
	n := 0
	for i, v := range values {
		if i > 0 {
			n++
		}
		n += len(v)
	}
	return uint32(n)
}

// Encode writes the dataset with relaxed verification (many real-world DICOM
// files don't strictly follow VR specifications).
func (d *Dataset) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := dicom.Write(&buf, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		return nil, fmt.Errorf("dicom: could not write: %w", err)
	}
	return buf.Bytes(), nil
}
