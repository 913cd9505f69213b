package tle

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is matched by every malformed-field error.
	ErrFormat = errors.New("tle: malformed element set")
	// ErrChecksum is matched by every checksum mismatch.
	ErrChecksum = errors.New("tle: checksum mismatch")
)

// FieldError reports a TLE field that could not be parsed or is out of range.
type FieldError struct {
	Line  int // 1 or 2, 0 when the error concerns both lines
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("tle: %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("tle: line %d: %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func (e *FieldError) Is(target error) bool { return target == ErrFormat }

// ChecksumError reports a line whose modulo-10 checksum does not match
// column 69.
type ChecksumError struct {
	Line int
	Want int // value recorded in the line
	Got  int // value computed from columns 1-68
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("tle: line %d: checksum %d, computed %d", e.Line, e.Want, e.Got)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }

func fieldErr(line int, field, value string, format string, args ...any) *FieldError {
	return &FieldError{Line: line, Field: field, Value: value, Err: fmt.Errorf(format, args...)}
}
