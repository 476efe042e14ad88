// Package blob implements the on-disk/wire container every codec blob is
// stored in: a 4-byte length header in front of a self-describing codec
// blob, whose own first byte is the 1-byte algorithm ID. The remainder is
// entirely codec-specific and must be deserializable given only that ID
// and the element type supplied by the reader — Wrap/Unwrap never
// interpret it.
package blob

import (
	"fmt"
	"math"

	"github.com/tsdbcompress/columnar/endian"
	"github.com/tsdbcompress/columnar/errs"
)

// AlgorithmID is the 1-byte codec tag every codec blob carries as its own
// first byte: values 1..127 are reserved, 1..4 are
// permanently assigned and must never be renumbered.
type AlgorithmID uint8

const (
	AlgorithmArray      AlgorithmID = 1
	AlgorithmDictionary AlgorithmID = 2
	AlgorithmGorilla    AlgorithmID = 3
	AlgorithmDeltaDelta AlgorithmID = 4
)

// headerSize is the 4-byte length prefix.
const headerSize = 4

// Wrap prepends the 4-byte little-endian length header to an already
// self-describing codec blob (one whose first byte is its AlgorithmID),
// producing the at-rest Container bytes the enclosing compressed row's
// column value holds.
func Wrap(codecBlob []byte) ([]byte, error) {
	if len(codecBlob) == 0 {
		return nil, fmt.Errorf("%w: empty codec blob", errs.ErrCorruptedData)
	}
	if len(codecBlob) > math.MaxUint32-headerSize {
		return nil, fmt.Errorf("%w: container payload of %d bytes exceeds max allocation", errs.ErrOverflow, len(codecBlob))
	}

	engine := endian.GetLittleEndianEngine()
	buf := make([]byte, 0, headerSize+len(codecBlob))
	buf = engine.AppendUint32(buf, uint32(len(codecBlob))) //nolint:gosec // bounds-checked above
	buf = append(buf, codecBlob...)

	return buf, nil
}

// Unwrap validates the length header and returns the codec blob it wraps
// (a view into container, not a copy).
func Unwrap(container []byte) ([]byte, error) {
	if len(container) < headerSize {
		return nil, fmt.Errorf("%w: container shorter than length header", errs.ErrCorruptedData)
	}

	engine := endian.GetLittleEndianEngine()
	n := engine.Uint32(container[0:4])

	codecBlob := container[headerSize:]
	if uint32(len(codecBlob)) != n { //nolint:gosec // n compared directly below
		return nil, fmt.Errorf("%w: container length header %d does not match payload length %d", errs.ErrCorruptedData, n, len(codecBlob))
	}

	return codecBlob, nil
}

// PeekAlgorithmID reads the algorithm ID from a codec blob's first byte
// without parsing the rest of it, for dispatch before handing the blob to
// the matching codec through the algorithm registry.
func PeekAlgorithmID(codecBlob []byte) (AlgorithmID, error) {
	if len(codecBlob) == 0 {
		return 0, fmt.Errorf("%w: empty codec blob", errs.ErrCorruptedData)
	}

	return AlgorithmID(codecBlob[0]), nil
}
