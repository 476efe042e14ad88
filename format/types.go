package format

// CompressionType selects the general-purpose compression method the
// toast layer applies as a secondary pass over an already-encoded codec
// blob. This is distinct from blob.AlgorithmID: the algorithm ID names
// the columnar codec inside the blob, CompressionType names the byte
// compressor wrapped around it at storage time.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1 // stored as-is, no secondary pass
	CompressionZstd CompressionType = 0x2 // Zstandard
	CompressionS2   CompressionType = 0x3 // S2 (Snappy-compatible)
	CompressionLZ4  CompressionType = 0x4 // LZ4
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	}

	return "Unknown"
}
