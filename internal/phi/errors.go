package phi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of a de-identification run.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindParse         ErrorKind = "parse"
	KindIO            ErrorKind = "io"
	KindValidation    ErrorKind = "validation"
	KindInternal      ErrorKind = "internal"
)

// Error carries a kind, the failing operation and, when known, the file path.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid option; it aborts a run before any
// file is processed.
func ConfigurationError(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// ParseError reports an unrecognized or malformed message.
func ParseError(path string, err error) *Error {
	return &Error{Kind: KindParse, Op: "parse", Path: path, Err: err}
}

// IOError reports an unreadable input or unwritable output.
func IOError(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// ValidationError reports a transformed message that no longer decodes.
func ValidationError(path string, err error) *Error {
	return &Error{Kind: KindValidation, Op: "revalidate", Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
