// Package errs defines the sentinel errors shared across the columnar
// compression core.
//
// Errors raised by the codecs and the row/batch layers belong to one of
// four classes: CORRUPTED_DATA, UNSUPPORTED_TYPE, OVERFLOW, and OUT_OF_SYNC.
// The usage errors below, and errors passed up unchanged from package
// compress, belong to none.
// Callers should use errors.Is against the class sentinel
// rather than comparing error strings; wrapping with fmt.Errorf("%w: ...")
// is used throughout to attach context without losing the class.
package errs

import (
	"errors"
	"fmt"
)

// Class sentinels. Every classed error wraps exactly one of these via %w
// so callers can classify failures with errors.Is.
var (
	// ErrCorruptedData marks a violation of an on-disk invariant: a
	// malformed blob, an out-of-bounds cursor, or a field that fails a
	// bounds check that must hold for the data to be well-formed.
	ErrCorruptedData = errors.New("corrupted data")

	// ErrUnsupportedType marks a codec asked to handle an element type
	// it does not implement.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrOverflow marks a serialized size exceeding the implementation's
	// maximum allocation.
	ErrOverflow = errors.New("overflow")

	// ErrOutOfSync marks a row decompressor drawing fewer values from a
	// column than its count indicates, or an iterator reporting
	// not-done past the declared count.
	ErrOutOfSync = errors.New("out of sync")
)

// ErrInvalidAlgorithmID marks an algorithm ID that is unknown or does not
// match the blob being deserialized. It belongs to the CORRUPTED_DATA
// class: a reader that dispatched on the wrong ID is reading a blob it
// cannot trust.
var ErrInvalidAlgorithmID = fmt.Errorf("%w: invalid algorithm id", ErrCorruptedData)

// Usage errors: API misuse by the caller rather than bad data, so they
// belong to no on-disk error class.
var (
	ErrCountMismatch   = errors.New("row count mismatch")
	ErrEncoderFinished = errors.New("encoder already finished")
	ErrEmptyHeap       = errors.New("heap is empty")
)
