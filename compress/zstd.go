package compress

// ZstdCompressor is the best-ratio, moderate-speed toast codec — the
// default toast.Pack reaches for on EXTENDED-preference columns (Gorilla,
// DeltaDelta, Dictionary), since their segments are written once and read
// back many times.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor returns a ZstdCompressor.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
