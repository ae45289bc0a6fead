package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Config{Level: "debug"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Debug().Str("file", "a.hl7").Msg("processed")
	assert.Contains(t, buf.String(), `"file":"a.hl7"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Level: "warn", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_FileSink(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.log")
	var buf bytes.Buffer
	log, closer, err := New(Config{Format: FormatConsole, File: file}, &buf)
	require.NoError(t, err)

	log.Info().Int("files", 3).Msg("batch complete")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"files":3`)
	assert.Contains(t, buf.String(), "batch complete")
}

func TestNew_Invalid(t *testing.T) {
	_, _, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, _, err = New(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
