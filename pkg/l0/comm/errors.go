package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates a payload exceeds the layout limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrSizeError indicates a received frame declared an oversized length.
	ErrSizeError = errors.New("frame size error")
	// ErrChecksumError indicates a received frame failed checksum.
	ErrChecksumError = errors.New("frame checksum error")
	// ErrShortCommand indicates a payload can't hold a class/command prefix.
	ErrShortCommand = errors.New("payload too short for command")
	// ErrInvalidLayout indicates a Layout can't be used.
	ErrInvalidLayout = errors.New("invalid layout")
	// ErrNotReport indicates the command code is not a typed report.
	ErrNotReport = errors.New("not a report command")
	// ErrReportRange indicates a report value doesn't fit its type.
	ErrReportRange = errors.New("report value out of range")
	// ErrNak indicates the peer replied NAK.
	ErrNak = errors.New("negative acknowledge")
	// ErrClosed indicates the link has stopped.
	ErrClosed = errors.New("link closed")
)

// DecodeError describes an abandoned frame.
type DecodeError struct {
	Kind ResultKind
	// Length is the declared payload length.
	Length int
	// Want is the computed checksum, Got the received one.
	Want, Got byte
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.Kind == ResultChecksumError {
		return fmt.Sprintf("%v: len %d want 0x%02x got 0x%02x", ErrChecksumError, e.Length, e.Want, e.Got)
	}
	return fmt.Sprintf("%v: len %d", ErrSizeError, e.Length)
}

// Unwrap returns the sentinel error for the kind.
func (e *DecodeError) Unwrap() error {
	if e.Kind == ResultChecksumError {
		return ErrChecksumError
	}
	return ErrSizeError
}
