// Package compress provides the secondary, general-purpose compression
// codecs the toast package applies on top of an already-encoded
// blob.Container before it is written into a CompressedRow's column.
//
// # Overview
//
// Every column in a compressed row goes through two compression stages:
//
//  1. **Encoding**: a codec (Gorilla, DeltaDelta, Dictionary, Array)
//     exploits structure specific to that column's values.
//  2. **Secondary compression**: package toast takes the encoded,
//     length-prefixed container and, for EXTENDED-preference columns,
//     tries a general-purpose byte-level compressor from this package
//     against it, keeping the result only if it actually shrinks.
//
// This package implements stage two, offering:
//   - None: no compression (fastest, largest)
//   - Zstd: best compression ratio, moderate speed
//   - S2: balanced compression and speed
//   - LZ4: fastest decompression, moderate compression
//
// # Architecture
//
// Three core interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// # Supported algorithms
//
// **NoOp** (format.CompressionNone) returns its input unchanged. It is not
// what stores incompressible columns: registry.ToastExternal columns (e.g.
// Array's raw little-endian values) never reach this package at all, and
// an EXTENDED column packed with NoOp always ends up stored external.
//
// **Zstandard** (format.CompressionZstd) gives the best ratio at moderate
// speed; the default toast.Pack reaches for on EXTENDED columns (Gorilla,
// DeltaDelta, Dictionary blobs), since those are read far less often than
// they are written.
//
// **S2** (format.CompressionS2) trades some ratio for throughput —
// appropriate when a column is scanned by range queries often enough that
// decompression cost dominates.
//
// **LZ4** (format.CompressionLZ4) optimizes for decompression speed above
// all else, at the cost of the worst ratio of the three.
//
// # Integration
//
// toast.Pack looks up a codec by format.CompressionType via GetCodec,
// compresses the wrapped container, and falls back to storing it
// untouched when compression doesn't pay for the two-byte envelope
// overhead:
//
//	codec, _ := compress.GetCodec(format.CompressionZstd)
//	compressed, _ := codec.Compress(container)
//	// ... kept only if len(compressed)+2 < len(container)+1
//
// toast.Unpack reverses this with the same GetCodec lookup, keyed by the
// compression-method byte stored alongside the compressed bytes.
//
// # Thread safety
//
// All codec implementations are safe for concurrent use; the built-in
// codecs returned by GetCodec are shared across every caller.
//
// # Error handling
//
// Compress errors are rare (allocation failure); Decompress errors
// usually mean corrupted or truncated input and are returned as-is;
// toast.Unpack passes them up unchanged, without an errs class.
package compress
