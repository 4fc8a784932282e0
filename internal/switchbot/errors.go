package switchbot

import (
	"errors"
	"fmt"
)

// Decode errors are diagnostic, never fatal: an advertisement that
// cannot be decoded is dropped and processing continues.
var (
	// ErrNotFound reports that an advertisement carried no payload
	// under the expected vendor or service key.
	ErrNotFound = errors.New("payload not found")

	// ErrUnsupportedModel reports a valid catalog model with no
	// published manufacturer-data layout.
	ErrUnsupportedModel = errors.New("no decoder for device model")
)

// TruncatedError reports a payload shorter than its layout's minimum
// length.
type TruncatedError struct {
	Expected int // minimum length the layout requires
	Actual   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("payload too short: expected at least %d bytes, got %d", e.Expected, e.Actual)
}

// OutOfRangeError reports a decoded field outside its valid range.
// Out-of-range values are surfaced, never clamped.
type OutOfRangeError struct {
	Field string
	Value uint16
	Max   uint16
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s out of range: expected 0-%d, got %d", e.Field, e.Max, e.Value)
}

// UnknownVariantError reports an unrecognized device model byte at the
// head of SwitchBot service data.
type UnknownVariantError struct {
	Variant byte
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown device type byte: 0x%02x", e.Variant)
}
