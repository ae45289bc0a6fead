package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msg-deidentifier/internal/phi"
)

const (
	hl7Message  = "MSH|^~\\&|APP|FAC|||20240101||ADT^A01|1|P|2.5\rPID|1||123456789^^^MR||DOE^JOHN||19800101|M\r"
	fhirPatient = `{"resourceType": "Patient", "id": "p1"}`
)

func dicomHeader() []byte {
	raw := make([]byte, 140)
	copy(raw[128:], "DICM")
	return raw
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestFindMessageFiles(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")

	writeFile(t, filepath.Join(root, "a.hl7"), []byte(hl7Message))
	writeFile(t, filepath.Join(root, "broken.hl7"), []byte("garbage"))
	writeFile(t, filepath.Join(root, "patient.json"), []byte(fhirPatient))
	writeFile(t, filepath.Join(root, "package.json"), []byte(fhirPatient))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("just some notes"))
	writeFile(t, filepath.Join(root, "batch.txt"), []byte(hl7Message))
	writeFile(t, filepath.Join(root, "IM0001"), dicomHeader())
	writeFile(t, filepath.Join(root, "image.png"), dicomHeader())
	writeFile(t, filepath.Join(root, ".hidden.hl7"), []byte(hl7Message))
	writeFile(t, filepath.Join(root, "sub", "b.hl7"), []byte(hl7Message))
	writeFile(t, filepath.Join(root, ".git", "c.hl7"), []byte(hl7Message))
	writeFile(t, filepath.Join(out, "a.hl7"), []byte(hl7Message))

	files, err := FindMessageFiles(root, true, out)
	require.NoError(t, err)

	rel := make([]string, len(files))
	for i, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel[i] = r
	}
	assert.Equal(t, []string{
		"IM0001",
		"a.hl7",
		"batch.txt",
		"broken.hl7",
		"patient.json",
		filepath.Join("sub", "b.hl7"),
	}, rel)

	flat, err := FindMessageFiles(root, false, "")
	require.NoError(t, err)
	assert.Len(t, flat, 5)
}

func TestSniff(t *testing.T) {
	assert.Equal(t, phi.HL7, Sniff([]byte(hl7Message)))
	assert.Equal(t, phi.FHIR, Sniff([]byte(fhirPatient)))
	assert.Equal(t, phi.DICOM, Sniff(dicomHeader()))
	assert.Equal(t, phi.Standard(""), Sniff([]byte("hello")))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Config{RedactRows: 75})

	for _, std := range []phi.Standard{phi.HL7, phi.FHIR, phi.DICOM} {
		c, err := r.Codec(std)
		require.NoError(t, err)
		assert.Equal(t, std, c.Standard())
	}
	_, err := r.Codec(phi.Any)
	assert.Error(t, err)

	c, err := r.Detect([]byte(fhirPatient), "x.txt")
	require.NoError(t, err)
	assert.Equal(t, phi.FHIR, c.Standard())

	_, err = r.Detect([]byte("garbage"), "broken.hl7")
	assert.ErrorContains(t, err, ".hl7")
}
