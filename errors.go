package readelf

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic              = errors.New("not an ELF file: bad magic")
	ErrUnsupportedBitWidth   = errors.New("unsupported ELF class")
	ErrUnsupportedEndianness = errors.New("unsupported ELF data encoding")
	ErrTruncatedRead         = errors.New("truncated read")
	ErrOffsetOutOfBounds     = errors.New("offset out of bounds")
	ErrNameOffsetOutOfBounds = errors.New("name offset out of bounds")
	ErrInvalidEntrySize      = errors.New("invalid table entry size")
	ErrPrerequisiteNotMet    = errors.New("prerequisite phase not decoded")
	ErrIndexOutOfRange       = errors.New("index out of range")
	ErrNotFound              = errors.New("not found")

	// ErrNotReady is returned by every decode phase once the decoder has
	// failed or been closed.
	ErrNotReady = errors.New("decoder not ready")
)

// FormatError reports a structural problem with the object being decoded.
// Off is the file offset the failing phase was working at.
type FormatError struct {
	Op  string
	Off uint64
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s at offset 0x%x: %v", e.Op, e.Off, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IOError reports a failure of the underlying byte source.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func formatErr(op string, off uint64, err error) error {
	return &FormatError{Op: op, Off: off, Err: err}
}
