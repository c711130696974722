// Package errors defines the sentinel errors and typed input errors shared by
// the mapper, reducer and indexer binaries, plus the mapping from errors to
// process exit codes.
package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord  = errors.New("malformed record")
	ErrMalformedPair    = errors.New("malformed pair")
	ErrUnsortedInput    = errors.New("input not sorted by term")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrSinkUnavailable  = errors.New("sink unavailable")
	ErrSegmentCorrupted = errors.New("segment corrupted")
)

// Exit codes returned by the command line tools.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitBadInput  = 2
	ExitBadConfig = 3
	ExitCancelled = 130
)

// MalformedRecordError reports a record whose structure does not match the
// forum node schema.
type MalformedRecordError struct {
	Line   int
	Fields int
	Want   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s (got %d fields, want %d)", ErrMalformedRecord, e.Reason, e.Fields, e.Want)
	}
	return fmt.Sprintf("%s at line %d: %s (got %d fields, want %d)", ErrMalformedRecord, e.Line, e.Reason, e.Fields, e.Want)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// MalformedPairError reports a reducer input line that is not a valid
// "term<TAB>id" pair.
type MalformedPairError struct {
	Line   int
	Raw    string
	Reason string
}

func (e *MalformedPairError) Error() string {
	return fmt.Sprintf("%s at line %d: %s: %q", ErrMalformedPair, e.Line, e.Reason, e.Raw)
}

func (e *MalformedPairError) Unwrap() error {
	return ErrMalformedPair
}

// NewMalformedRecord builds a MalformedRecordError without a line number.
func NewMalformedRecord(fields, want int, reason string) *MalformedRecordError {
	return &MalformedRecordError{Fields: fields, Want: want, Reason: reason}
}

// Invalidf returns an ErrInvalidConfig wrapping the formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ExitCode maps an error returned by a pipeline stage to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidConfig):
		return ExitBadConfig
	case errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrMalformedPair),
		errors.Is(err, ErrUnsortedInput):
		return ExitBadInput
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}
