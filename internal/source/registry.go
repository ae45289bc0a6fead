package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"msg-deidentifier/internal/dicom"
	"msg-deidentifier/internal/fhir"
	"msg-deidentifier/internal/hl7"
	"msg-deidentifier/internal/phi"
)

// Sniff recognises a message standard from the first bytes of a file, or
// returns "" when none matches.
func Sniff(head []byte) phi.Standard {
	switch {
	case dicom.Sniff(head):
		return phi.DICOM
	case fhir.Sniff(head):
		return phi.FHIR
	case hl7.Sniff(head):
		return phi.HL7
	}
	return ""
}

// Config carries codec settings.
type Config struct {
	// RedactRows is passed to the DICOM codec.
	RedactRows int
}

// Registry holds one codec per standard. Codecs are stateless and the
// registry is safe for concurrent use.
type Registry struct {
	codecs map[phi.Standard]phi.Codec
}

// NewRegistry returns a registry with the HL7, FHIR and DICOM codecs.
func NewRegistry(cfg Config) *Registry {
	return &Registry{codecs: map[phi.Standard]phi.Codec{
		phi.HL7:   hl7.NewCodec(),
		phi.FHIR:  fhir.NewCodec(),
		phi.DICOM: dicom.NewCodec(cfg.RedactRows),
	}}
}

// Codec returns the codec for std.
func (r *Registry) Codec(std phi.Standard) (phi.Codec, error) {
	c, ok := r.codecs[std]
	if !ok {
		return nil, fmt.Errorf("no codec for standard %q", std)
	}
	return c, nil
}

// Detect picks the codec for a file from its content. The extension is only
// used to word the error.
func (r *Registry) Detect(raw []byte, path string) (phi.Codec, error) {
	head := raw
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	if std := Sniff(head); std != "" {
		return r.Codec(std)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, errors.New("unrecognised message content")
	}
	return nil, fmt.Errorf("unrecognised message content for %s file", ext)
}
