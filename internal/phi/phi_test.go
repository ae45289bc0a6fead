package phi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"Name", Name, true},
		{"name", Name, true},
		{"MedicalRecordNumber", MedicalRecordNumber, true},
		{"mrn", MedicalRecordNumber, true},
		{"HealthPlanBeneficiaryId", HealthPlanBeneficiaryID, true},
		{" dob ", DateOfEvent, true},
		{"ip", IPAddress, true},
		{"PID.5", None, false},
		{"", None, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategories_AllNamed(t *testing.T) {
	cats := Categories()
	assert.Len(t, cats, 19)
	seen := make(map[string]bool)
	for _, c := range cats {
		name := c.String()
		assert.NotContains(t, name, "Category(")
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true

		back, ok := ParseCategory(name)
		require.True(t, ok)
		assert.Equal(t, c, back)
	}
}

func TestCategory_TextRoundTrip(t *testing.T) {
	text, err := SSN.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "SSN", string(text))

	var c Category
	require.NoError(t, c.UnmarshalText([]byte("Email")))
	assert.Equal(t, Email, c)
	assert.Error(t, c.UnmarshalText([]byte("nonsense")))
}

func TestKeepSet(t *testing.T) {
	ks := ParseKeepSet([]string{"Name", " PID.7 ", "Patient.identifier", "", "pid.7"})

	assert.True(t, ks.KeepsCategory(Name))
	assert.False(t, ks.KeepsCategory(SSN))

	assert.True(t, ks.KeepsLocation(FieldLocation{Standard: HL7, Container: "PID", Path: "7"}))
	assert.True(t, ks.KeepsLocation(FieldLocation{Standard: HL7, Container: "PID", Path: "7.1"}))
	assert.False(t, ks.KeepsLocation(FieldLocation{Standard: HL7, Container: "PID", Path: "8"}))
	assert.False(t, ks.KeepsLocation(FieldLocation{Standard: HL7, Container: "PID", Path: "17"}))

	assert.True(t, ks.KeepsLocation(FieldLocation{Standard: FHIR, Container: "Patient", Path: "identifier:SS.value"}))
	assert.False(t, ks.KeepsLocation(FieldLocation{Standard: FHIR, Container: "Patient", Path: "telecom:phone.value"}))

	assert.Equal(t, []string{"Name", "PATIENT.IDENTIFIER", "PID.7"}, ks.Entries())
	assert.False(t, ks.Empty())
	assert.True(t, ParseKeepSet(nil).Empty())
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", ParseError("a.hl7", base))

	assert.Equal(t, KindParse, KindOf(err))
	assert.True(t, IsKind(err, KindParse))
	assert.False(t, IsKind(err, KindIO))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, KindInternal, KindOf(base))
	assert.Contains(t, err.Error(), "parse a.hl7: boom")

	cfg := ConfigurationError("salt", errors.New("missing"))
	assert.Equal(t, "salt: missing", cfg.Error())
}

func TestFieldLocationString(t *testing.T) {
	assert.Equal(t, "PID.5.1", FieldLocation{Container: "PID", Path: "5.1"}.String())
	assert.Equal(t, "Dataset", FieldLocation{Container: "Dataset"}.String())
}
