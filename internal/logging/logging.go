// Package logging builds the process logger: a console writer on a terminal,
// JSON lines otherwise, plus an optional size-rotated file sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Formats accepted by Config.Format.
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects level, format and file sink.
type Config struct {
	Level  string
	Format string

	// File, when set, receives JSON lines in addition to the console.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to out. The closer releases the file sink.
// Loggers built here never receive message content; callers log paths,
// counts and error kinds only.
func New(cfg Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q", cfg.Level)
		}
		level = l
	}

	var console io.Writer
	switch strings.ToLower(cfg.Format) {
	case FormatJSON:
		console = out
	case FormatConsole:
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	case "", FormatAuto:
		console = out
		if isTerminal(out) {
			console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		}
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	writer := console
	if cfg.File != "" {
		sink := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
		}
		closer = sink
		writer = zerolog.MultiLevelWriter(console, sink)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
