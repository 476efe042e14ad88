// Package endian provides byte order utilities for binary encoding and
// decoding.
//
// It extends encoding/binary by combining ByteOrder and AppendByteOrder into
// a single EndianEngine interface, so a codec's Finish()/decode path can take
// one value and get both random-access Put/Uint64 calls and append-style
// growth without juggling two interfaces.
//
// # Basic usage
//
// Every codec in this repo (array, gorilla, deltadelta, dictionary) obtains
// the engine from GetLittleEndianEngine in its Finish/Parse code and uses it
// for all fixed-width field access —
// segment headers, raw value widths, bitarray words:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint64(buf, value)
//
// Wire format is always little-endian; GetBigEndianEngine exists for
// completeness and cross-checking, not because any codec emits big-endian
// bytes.
//
// # Thread safety
//
// All functions in this package are safe for concurrent use. The returned
// EndianEngine values are immutable and stateless.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into one interface. binary.LittleEndian and binary.BigEndian both satisfy
// it already.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness reports the host's native byte order.
func CheckEndianness() binary.ByteOrder {
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))

	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

func IsNativeBigEndian() bool {
	return CheckEndianness() == binary.BigEndian
}

func CompareNativeEndian(engine EndianEngine) bool {
	return engine == CheckEndianness()
}

// GetLittleEndianEngine returns the little-endian engine. This is what every
// codec's wire format uses.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
