// Package toast wraps a blob.Container for storage the way Postgres's
// TOAST mechanism wraps an over-threshold attribute value: EXTENDED
// columns get a secondary compression pass tried against the wrapped
// bytes, kept only if it actually shrinks them; EXTERNAL columns are
// stored as-is, never recompressed. Which preference applies is the
// codec's registry.ToastPreference: Gorilla/DeltaDelta/Dictionary blobs
// are EXTENDED, Array blobs are EXTERNAL.
package toast

import (
	"fmt"

	"github.com/tsdbcompress/columnar/compress"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/registry"
)

const (
	markerExternal   byte = 0 // payload follows uncompressed
	markerCompressed byte = 1 // one compression-type byte, then compressed payload
)

// Pack wraps container (the bytes blob.Wrap produced) for storage under
// pref. EXTERNAL columns are stored untouched; EXTENDED columns are
// compressed with method and kept compressed only if that's smaller than
// storing the container untouched.
func Pack(container []byte, pref registry.ToastPreference, method format.CompressionType) ([]byte, error) {
	if pref == registry.ToastExternal {
		return external(container), nil
	}

	codec, err := compress.GetCodec(method)
	if err != nil {
		return nil, err
	}

	compressed, err := codec.Compress(container)
	if err != nil {
		return nil, err
	}

	if len(compressed)+2 >= len(container)+1 {
		return external(container), nil
	}

	out := make([]byte, 0, 2+len(compressed))
	out = append(out, markerCompressed, byte(method))
	out = append(out, compressed...)

	return out, nil
}

func external(container []byte) []byte {
	out := make([]byte, 0, 1+len(container))

	return append(append(out, markerExternal), container...)
}

// Unpack reverses Pack, returning the original blob.Container bytes.
func Unpack(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: empty toast envelope", errs.ErrCorruptedData)
	}

	switch stored[0] {
	case markerExternal:
		return stored[1:], nil
	case markerCompressed:
		if len(stored) < 2 {
			return nil, fmt.Errorf("%w: truncated toast envelope", errs.ErrCorruptedData)
		}

		codec, err := compress.GetCodec(format.CompressionType(stored[1]))
		if err != nil {
			return nil, err
		}

		return codec.Decompress(stored[2:])
	default:
		return nil, fmt.Errorf("%w: unknown toast marker %d", errs.ErrCorruptedData, stored[0])
	}
}
