package progress

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrorLogger appends one JSON line per failed file to a size-rotated log.
// It records paths and error kinds, never message content.
type ErrorLogger struct {
	mu      sync.Mutex
	logFile string
	count   int
	sink    *lumberjack.Logger
	log     zerolog.Logger
}

// NewErrorLogger creates a new error logger. An empty logFile only counts.
func NewErrorLogger(logFile string) *ErrorLogger {
	l := &ErrorLogger{logFile: logFile, log: zerolog.Nop()}
	if logFile != "" {
		l.sink = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		l.log = zerolog.New(l.sink).With().Timestamp().Logger()
	}
	return l
}

// Log logs an error for a file.
func (l *ErrorLogger) Log(filePath, kind, errorMsg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	l.log.Error().
		Str("file", filepath.Base(filePath)).
		Str("path", filePath).
		Str("kind", kind).
		Msg(errorMsg)
}

// Summary returns a summary of logged errors.
func (l *ErrorLogger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return "No errors"
	}
	if l.logFile == "" {
		return fmt.Sprintf("%d errors", l.count)
	}
	return fmt.Sprintf("%d errors logged to %s", l.count, l.logFile)
}

// ErrorCount returns the number of logged errors.
func (l *ErrorLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close closes the log file.
func (l *ErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}
