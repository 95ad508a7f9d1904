package binn

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned when a value has no built-in or
	// registered encoding.
	ErrUnsupportedType = errors.New("binn: unsupported type")

	// ErrOverflow is returned when an integer, length, key or size does not
	// fit the width of its wire field.
	ErrOverflow = errors.New("binn: value overflows wire field")

	// ErrInvalidFormat is returned when input is not a well-formed BINN
	// encoding: unknown tags, bad terminators, malformed container framing.
	ErrInvalidFormat = errors.New("binn: invalid format")

	// ErrConfiguration is returned when a custom type is bound to a tag that
	// belongs to the built-in format table.
	ErrConfiguration = errors.New("binn: invalid configuration")

	// ErrTruncated is returned when the input ends before a field is complete.
	ErrTruncated = errors.New("binn: truncated input")
)

// FormatError describes malformed input at a specific position. It matches
// ErrInvalidFormat with errors.Is.
type FormatError struct {
	Tag    byte   // tag of the unit being decoded
	Offset int    // offset of that unit's tag byte
	Reason string // what was wrong
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("binn: invalid format at offset %d (tag 0x%02x): %s", e.Offset, e.Tag, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidFormat) succeed.
func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}
