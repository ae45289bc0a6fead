package anonymizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msg-deidentifier/internal/phi"
)

const patientJSON = `{
  "resourceType": "Patient",
  "id": "p1",
  "name": [{"family": "Doe", "given": ["John"]}],
  "birthDate": "1980-01-01",
  "gender": "male"
}
`

func adtMessage(mrn int) string {
	return fmt.Sprintf("MSH|^~\\&|APP|FAC|||20240101120000||ADT^A01|MSG%d|P|2.5\rPID|1||%d^^^MR||DOE^JOHN||19800101|M\r", mrn, mrn)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// batchDir holds five valid messages and one corrupt file.
func batchDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("adt%d.hl7", i)), adtMessage(1000+i))
	}
	writeFile(t, filepath.Join(dir, "broken.hl7"), "this is not a message")
	return dir
}

func newTestEngine(t *testing.T, modify func(*Options), options ...EngineOption) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Salt = "test-salt"
	opts.DateShiftRangeDays = 30
	opts.Concurrency = 2
	if modify != nil {
		modify(&opts)
	}
	e, err := NewEngine(opts, options...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(DefaultOptions())
	require.Error(t, err)
	assert.True(t, phi.IsKind(err, phi.KindConfiguration))

	opts := DefaultOptions()
	opts.PreviewMode = true
	e, err := NewEngine(opts)
	require.NoError(t, err)
	assert.Equal(t, PreviewSalt, e.Options().Salt)
	assert.Positive(t, e.Options().Concurrency)
}

func TestProcessDirectory_BatchResilience(t *testing.T) {
	in := batchDir(t)
	out := filepath.Join(t.TempDir(), "out")

	var (
		mu    sync.Mutex
		calls int
	)
	e := newTestEngine(t, nil, WithProgress(func(current, total int, filename, status string) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		assert.Equal(t, 6, total)
	}))

	batch, err := e.ProcessDirectory(context.Background(), in, out)
	require.NoError(t, err)

	assert.Len(t, batch.Files, 6)
	assert.Equal(t, 5, batch.Succeeded())
	assert.Equal(t, 1, batch.Failed())
	assert.False(t, batch.Cancelled)
	assert.Equal(t, 6, calls)

	assert.Equal(t, 5, batch.Statistics.TotalMessages)
	assert.Equal(t, 5, batch.Statistics.UniqueSubjects())
	assert.Equal(t, 10, batch.Statistics.DatesShifted)
	assert.True(t, batch.Compliance.MeetsSafeHarbor)

	for _, f := range batch.Files {
		if filepath.Base(f.InputPath) == "broken.hl7" {
			assert.False(t, f.Success)
			assert.Equal(t, phi.KindParse, f.ErrorKind)
			assert.NoFileExists(t, filepath.Join(out, "broken.hl7"))
			continue
		}
		require.True(t, f.Success, f.Error)
		assert.Equal(t, phi.HL7, f.Standard)
		assert.FileExists(t, f.OutputPath)

		data, err := os.ReadFile(f.OutputPath)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "DOE")
		assert.Contains(t, string(data), "|M\r")
	}
}

func TestProcessDirectory_Deterministic(t *testing.T) {
	in := batchDir(t)
	outA := filepath.Join(t.TempDir(), "a")
	outB := filepath.Join(t.TempDir(), "b")

	_, err := newTestEngine(t, nil).ProcessDirectory(context.Background(), in, outA)
	require.NoError(t, err)
	_, err = newTestEngine(t, func(o *Options) { o.Concurrency = 1 }).ProcessDirectory(context.Background(), in, outB)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("adt%d.hl7", i)
		a, err := os.ReadFile(filepath.Join(outA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(outB, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestProcessDirectory_MixedStandards(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "adt.hl7"), adtMessage(77))
	writeFile(t, filepath.Join(in, "nested", "patient.json"), patientJSON)
	writeFile(t, filepath.Join(in, "notes.txt"), "plain notes, not a message")
	out := filepath.Join(t.TempDir(), "out")

	batch, err := newTestEngine(t, nil).ProcessDirectory(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, batch.Files, 2)
	assert.Equal(t, 2, batch.Succeeded())

	data, err := os.ReadFile(filepath.Join(out, "nested", "patient.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Doe")
	assert.Contains(t, string(data), `"gender": "male"`)
}

func TestProcessDirectory_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := newTestEngine(t, nil).ProcessDirectory(ctx, batchDir(t), filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	assert.True(t, batch.Cancelled)
	assert.Empty(t, batch.Files)
}

func TestProcessDirectory_ConfigurationErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	in := batchDir(t)

	tests := []struct {
		name    string
		in, out string
	}{
		{"missing input", filepath.Join(in, "nope"), t.TempDir()},
		{"input is a file", filepath.Join(in, "adt1.hl7"), t.TempDir()},
		{"empty output", in, ""},
		{"output equals input", in, in},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ProcessDirectory(context.Background(), tt.in, tt.out)
			require.Error(t, err)
			assert.True(t, phi.IsKind(err, phi.KindConfiguration))
		})
	}
}

func TestProcessDirectory_Resume(t *testing.T) {
	in := batchDir(t)
	out := filepath.Join(t.TempDir(), "out")
	resume := func(o *Options) { o.Resume = true }

	first, err := newTestEngine(t, resume).ProcessDirectory(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Succeeded())

	second, err := newTestEngine(t, resume).ProcessDirectory(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Skipped())
	assert.Equal(t, 1, second.Failed())
	assert.Zero(t, second.Statistics.TotalMessages)

	// a different salt invalidates the saved progress
	third, err := newTestEngine(t, func(o *Options) {
		o.Resume = true
		o.Salt = "another-salt"
	}).ProcessDirectory(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, third.Skipped())
	assert.Equal(t, 5, third.Succeeded())
}

func TestProcessDirectory_Revalidate(t *testing.T) {
	in := batchDir(t)
	batch, err := newTestEngine(t, func(o *Options) { o.Revalidate = true }).
		ProcessDirectory(context.Background(), in, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	assert.Equal(t, 5, batch.Succeeded())
}

func TestProcessDirectory_ForcedStandard(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "adt.hl7"), adtMessage(1))
	writeFile(t, filepath.Join(in, "patient.json"), patientJSON)

	batch, err := newTestEngine(t, func(o *Options) { o.Standard = phi.FHIR }).
		ProcessDirectory(context.Background(), in, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Succeeded())
	assert.Equal(t, 1, batch.Failed())
}

func TestPreviewChanges(t *testing.T) {
	in := batchDir(t)
	e := newTestEngine(t, func(o *Options) {
		o.PreviewMode = true
		o.SampleSize = 2
	})

	batch, err := e.PreviewChanges(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, batch.Preview)
	assert.Equal(t, 5, batch.Succeeded())

	for _, f := range batch.Files {
		assert.Empty(t, f.OutputPath)
		if f.Success {
			assert.Len(t, f.Changes, 2)
		}
	}

	entries, err := os.ReadDir(in)
	require.NoError(t, err)
	assert.Len(t, entries, 6, "preview writes nothing")
}

func TestPreviewChanges_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adt.hl7")
	writeFile(t, path, adtMessage(9))

	batch, err := newTestEngine(t, nil).PreviewChanges(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.True(t, batch.Files[0].Success)
	assert.NotEmpty(t, batch.Files[0].Changes)
	assert.Empty(t, batch.Files[0].OutputPath)
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "adt.hl7")
	out := filepath.Join(dir, "out", "adt.hl7")
	writeFile(t, in, adtMessage(3))

	e := newTestEngine(t, nil)
	res, err := e.ProcessFile(context.Background(), in, out)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.FileExists(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.ProcessFile(ctx, in, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SingleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "adt.hl7")
	writeFile(t, in, adtMessage(4))

	var calls int
	e := newTestEngine(t, nil, WithProgress(func(current, total int, _, status string) {
		calls++
		assert.Equal(t, 1, total)
		assert.Equal(t, StatusSuccess, status)
	}))

	out := filepath.Join(dir, "clean", "adt-clean.hl7")
	batch, err := e.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, 1, batch.Succeeded())
	assert.Equal(t, 1, batch.Statistics.TotalMessages)
	assert.Equal(t, 1, calls)
	assert.FileExists(t, out)

	// an existing directory receives the file under its own name
	outDir := filepath.Join(dir, "into")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	_, err = e.Run(context.Background(), in, outDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "adt.hl7"))
}

func TestRun_SingleFileErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "adt.hl7")
	writeFile(t, in, adtMessage(4))
	e := newTestEngine(t, nil)

	_, err := e.Run(context.Background(), in, in)
	assert.True(t, phi.IsKind(err, phi.KindConfiguration))
	_, err = e.Run(context.Background(), in, "")
	assert.True(t, phi.IsKind(err, phi.KindConfiguration))
	_, err = e.Run(context.Background(), filepath.Join(dir, "absent.hl7"), filepath.Join(dir, "o.hl7"))
	assert.True(t, phi.IsKind(err, phi.KindConfiguration))

	bad := filepath.Join(dir, "bad.hl7")
	writeFile(t, bad, "garbage")
	batch, err := e.Run(context.Background(), bad, filepath.Join(dir, "o.hl7"))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Failed())
	assert.Equal(t, phi.KindParse, batch.Files[0].ErrorKind)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch, err = e.Run(ctx, in, filepath.Join(dir, "o.hl7"))
	require.NoError(t, err)
	assert.True(t, batch.Cancelled)
	assert.Empty(t, batch.Files)
}

func TestRun_Directory(t *testing.T) {
	batch, err := newTestEngine(t, nil).Run(context.Background(), batchDir(t), filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	assert.Equal(t, 5, batch.Succeeded())
	assert.Equal(t, 1, batch.Failed())
}

func TestProcessDirectory_SamplesChangesOnlyForReports(t *testing.T) {
	in := batchDir(t)

	batch, err := newTestEngine(t, nil).ProcessDirectory(context.Background(), in, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	for _, f := range batch.Files {
		assert.Nil(t, f.Changes, f.InputPath)
	}

	batch, err = newTestEngine(t, func(o *Options) { o.GenerateReport = true }).
		ProcessDirectory(context.Background(), in, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	for _, f := range batch.Files {
		if f.Success {
			assert.NotEmpty(t, f.Changes, f.InputPath)
		}
	}
}
