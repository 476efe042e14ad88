package compress

import (
	"fmt"

	"github.com/tsdbcompress/columnar/format"
)

// Compressor applies general-purpose byte-level compression to an
// already-encoded blob.Container, the secondary pass toast.Pack performs
// for EXTENDED-preference columns on top of a codec's own encoding.
type Compressor interface {
	// Compress compresses data and returns the compressed result. data is
	// a complete blob.Container (length header plus self-describing codec
	// blob); Compress has no notion of that structure, it just sees bytes.
	//
	// The returned slice is newly allocated and owned by the caller; data
	// itself is never modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor. Implementations must be safe for
// concurrent use, since the built-in codecs returned by GetCodec are
// shared across every caller.
type Decompressor interface {
	// Decompress restores the bytes a matching Compressor produced.
	// Returns an error if data is corrupted, truncated, or was produced
	// by a different algorithm.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines Compressor and Decompressor; GetCodec and CreateCodec
// both return one.
type Codec interface {
	Compressor
	Decompressor
}

// CompressionStats summarizes one compression operation, useful for
// deciding whether a column's toast preference is paying for itself.
type CompressionStats struct {
	// Algorithm identifies the compression algorithm used
	Algorithm format.CompressionType

	// OriginalSize is the size of input data before compression
	OriginalSize int64

	// CompressedSize is the size of data after compression
	CompressedSize int64

	// Ratio is the ratio of compressed size to original size (< 1.0 for compression)
	Ratio float64

	// CompressionTimeNs is the time taken to compress the data, in nanoseconds
	CompressionTimeNs int64

	// DecompressionTimeNs is the time taken to decompress the data, in
	// nanoseconds (if applicable)
	DecompressionTimeNs int64
}

// CompressionRatio returns compressed size / original size. Below 1.0
// means the compression paid for itself; at or above 1.0 it didn't.
// toast.Pack falls back to external storage in that case, and also when
// compression saves fewer than two bytes.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns space saved as a percentage (0-100); higher is
// better.
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

// CreateCodec builds a fresh Codec for compressionType. target names the
// caller's use site, folded into the error message when the type is
// unrecognized.
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
