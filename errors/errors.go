package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Sentinel errors for the MCP connection lifecycle. Callers classify
// transport failures by matching these with Is.
var (
	ErrNotConnected     = stderrors.New("not connected to MCP server")
	ErrAlreadyConnected = stderrors.New("already connected to MCP server")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}
