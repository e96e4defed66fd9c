package hah

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned when a document source does not exist.
	ErrSourceNotFound = errors.New("no such source")

	// ErrDanglingContinuation is returned for an else/elseif line that has no
	// preceding code block to continue.
	ErrDanglingContinuation = errors.New("dangling conditional continuation")

	// ErrUnrecognizedLine is returned in strict mode for a line that starts
	// with no known token.
	ErrUnrecognizedLine = errors.New("unrecognized line")
)

// LineError reports a failure at a specific source line.
type LineError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Diagnostic records input the parser accepted but could not fully use.
type Diagnostic struct {
	Line   int
	Text   string
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s: %q", d.Line, d.Reason, d.Text)
}

const (
	reasonUnrecognized = "unrecognized line"
	reasonUnbalanced   = "unbalanced attribute list"
)
