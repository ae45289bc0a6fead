package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msg-deidentifier/internal/anonymizer"
	"msg-deidentifier/internal/compliance"
	"msg-deidentifier/internal/phi"
)

func sampleBatch() *anonymizer.BatchResult {
	stats := anonymizer.Statistics{TotalMessages: 2, FieldsModified: 3, DatesShifted: 1}
	stats.AddSubject("digest-a")

	ok := &anonymizer.FileResult{
		InputPath:  "/in/adt.hl7",
		OutputPath: "/out/adt.hl7",
		Standard:   phi.HL7,
		Success:    true,
		Statistics: stats,
		Compliance: compliance.Pass(),
		Changes: []phi.AppliedChange{
			{
				Location:    phi.FieldLocation{Standard: phi.HL7, Container: "PID", Path: "5.1"},
				Category:    phi.Name,
				Original:    "DOE",
				Replacement: "ROE",
			},
			{
				Location:    phi.FieldLocation{Standard: phi.HL7, Container: "PID", Path: "19"},
				Category:    phi.SSN,
				Original:    "123-45-6789",
				Replacement: "",
			},
		},
		Warnings: []string{"PID.7: unparseable date cleared"},
	}
	bad := &anonymizer.FileResult{
		InputPath: "/in/broken.hl7",
		Error:     "parse /in/broken.hl7: hl7: no message segments found",
		ErrorKind: phi.KindParse,
	}
	return &anonymizer.BatchResult{
		RunID:      uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427"),
		StartedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Elapsed:    1500 * time.Millisecond,
		Files:      []*anonymizer.FileResult{ok, bad},
		Statistics: stats,
		Compliance: compliance.Assessment{
			MeetsSafeHarbor:    false,
			ViolatedCategories: []phi.Category{phi.Phone},
		},
	}
}

func TestReport_MasksOriginals(t *testing.T) {
	r := New(sampleBatch(), anonymizer.SafeHarborPlus, time.Date(2024, 5, 1, 10, 0, 2, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, r.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.NotContains(t, text, "DOE")
	assert.NotContains(t, text, "123-45-6789")
	assert.Contains(t, text, "ROE")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", decoded["runId"])
	assert.Equal(t, "SafeHarborPlus", decoded["method"])
	assert.EqualValues(t, 1, decoded["succeeded"])
	assert.EqualValues(t, 1, decoded["failed"])

	files := decoded["files"].([]any)
	require.Len(t, files, 2)
	first := files[0].(map[string]any)
	changes := first["sampleChanges"].([]any)
	change := changes[0].(map[string]any)
	assert.Equal(t, "PID.5.1", change["location"])
	assert.Equal(t, "Name", change["category"])
	assert.Equal(t, "***", change["original"])

	second := files[1].(map[string]any)
	assert.Equal(t, "parse", second["errorKind"])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("DOE"))
	assert.Equal(t, "********", Mask("a very long original value"))
	assert.Equal(t, "**", Mask("é€"))
}

func TestPreview_Plain(t *testing.T) {
	var buf bytes.Buffer
	NewPreview(&buf, false).Render(sampleBatch(), "/in")
	out := buf.String()

	assert.Contains(t, out, "adt.hl7 [HL7] 2 messages, 3 fields")
	assert.Contains(t, out, "PID.5.1")
	assert.Contains(t, out, "[-D-]{+R+}OE")
	assert.Contains(t, out, "[-123-45-6789-] (removed)")
	assert.Contains(t, out, "warning: PID.7: unparseable date cleared")
	assert.Contains(t, out, "broken.hl7 failed: parse")
	assert.NotContains(t, out, "\x1b[")
}

func TestPreview_Colored(t *testing.T) {
	p := NewPreview(&bytes.Buffer{}, true)
	line := p.Line(phi.AppliedChange{Original: "DOE", Replacement: "ROE"})
	assert.Contains(t, line, "\x1b[")
	assert.Contains(t, line, "OE")
}

func TestMetrics_WriteFile(t *testing.T) {
	m := NewMetrics()
	m.Observe(sampleBatch())

	path := filepath.Join(t.TempDir(), "metrics", "deidentify.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	assert.Contains(t, lines, `deidentify_files_total{standard="HL7",status="success"} 1`)
	assert.Contains(t, lines, `deidentify_files_total{standard="unknown",status="failed"} 1`)
	assert.Contains(t, lines, `deidentify_messages_total 2`)
	assert.Contains(t, lines, `deidentify_fields_modified_total 3`)
	assert.Contains(t, lines, `deidentify_unique_subjects 1`)
	assert.Contains(t, lines, `deidentify_meets_safe_harbor 0`)
	assert.Contains(t, lines, `deidentify_violated_category{category="Phone"} 1`)
	assert.Contains(t, lines, `deidentify_run_duration_seconds 1.5`)
}
