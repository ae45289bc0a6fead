package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msg-deidentifier/internal/cli"
	"msg-deidentifier/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSaltCommand(t *testing.T) {
	out, err := execute(t, "salt")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{32}\n$`, out)
}

func TestRunCommand_RequiresInput(t *testing.T) {
	_, err := execute(t, "run", "--out", t.TempDir(), "--no-color")
	var ee *exitErr
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, cli.ExitFailure, ee.code)
	assert.Contains(t, ee.Error(), "--in is required")
}

func TestRunCommand_RejectsArgs(t *testing.T) {
	_, err := execute(t, "run", "stray")
	assert.Error(t, err)
}

func TestRunCommand_Flags(t *testing.T) {
	cmd, _, err := newRootCommand().Find([]string{"run"})
	require.NoError(t, err)
	for _, name := range []string{"in", "out", "salt", "date-shift", "keep-ids", "preview", "report", "metrics-file", "concurrency", "residual-scan", "revalidate", "subject-field", "standard"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	preview, _, err := newRootCommand().Find([]string{"preview"})
	require.NoError(t, err)
	assert.Nil(t, preview.Flags().Lookup("out"))
}

func TestPreviewCommand_WritesNothing(t *testing.T) {
	in := t.TempDir()
	path := filepath.Join(in, "adt.hl7")
	require.NoError(t, os.WriteFile(path, []byte("MSH|^~\\&|A|B|||20240101||ADT^A01|1|P|2.5\rPID|1||42^^^MR||DOE^JOHN||19800101|M\r"), 0o644))

	_, err := execute(t, "preview", "--in", path, "--no-color", "--no-progress", "--log-format", "json")
	require.NoError(t, err)

	entries, err := os.ReadDir(in)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunCommand_ExampleKeepIDsAreValid(t *testing.T) {
	cmd, _, err := newRootCommand().Find([]string{"run"})
	require.NoError(t, err)

	matches := regexp.MustCompile(`--keep-ids (\S+)`).FindAllStringSubmatch(cmd.Example, -1)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		cfg := &config.Config{In: "in", Out: "out", Salt: "s", DateShiftRange: 30, KeepIDs: strings.Split(m[1], ",")}
		_, err := cfg.Options()
		assert.NoError(t, err, m[1])
	}
}

func TestRunCommand_SingleFile(t *testing.T) {
	in := filepath.Join(t.TempDir(), "adt.hl7")
	require.NoError(t, os.WriteFile(in, []byte("MSH|^~\\&|A|B|||20240101||ADT^A01|1|P|2.5\rPID|1||42^^^MR||DOE^JOHN||19800101|M\r"), 0o644))
	out := filepath.Join(t.TempDir(), "clean.hl7")

	_, err := execute(t, "run", "--in", in, "--out", out, "--salt", "test-salt",
		"--no-color", "--no-progress", "--log-format", "json")
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestRunCommand_RequiresSalt(t *testing.T) {
	t.Setenv("DEID_SALT", "")
	_, err := execute(t, "run", "--in", t.TempDir(), "--out", filepath.Join(t.TempDir(), "out"),
		"--no-color", "--no-progress", "--log-format", "json")
	var ee *exitErr
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, cli.ExitFailure, ee.code)
	assert.Contains(t, ee.Error(), "salt is required")
}
