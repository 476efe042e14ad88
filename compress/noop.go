package compress

// NoOpCompressor is the format.CompressionNone codec: it hands data back
// unchanged. GetCodec and CreateCodec return it for format.CompressionNone,
// for callers that want the secondary-compression stage skipped. toast.Pack
// never looks up a codec for EXTERNAL columns.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor returns a NoOpCompressor.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns data unchanged, sharing its underlying array — callers
// must not mutate data afterward if they still hold the returned slice.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data unchanged, under the same aliasing rule as
// Compress.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
