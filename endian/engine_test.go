package endian

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCheckEndianness(t *testing.T) {
	// Cross-check against a raw memory probe independent of the one
	// CheckEndianness performs internally.
	var probe uint16 = 0x0102
	low := (*[2]byte)(unsafe.Pointer(&probe))[0]

	switch low {
	case 0x02:
		require.Equal(t, binary.LittleEndian, CheckEndianness())
	case 0x01:
		require.Equal(t, binary.BigEndian, CheckEndianness())
	default:
		t.Fatalf("unexpected low byte %#x", low)
	}
}

func TestCheckEndiannessIsStable(t *testing.T) {
	first := CheckEndianness()
	for range 100 {
		require.Equal(t, first, CheckEndianness())
	}
}

func TestNativeEndiannessPredicates(t *testing.T) {
	little := IsNativeLittleEndian()
	big := IsNativeBigEndian()

	require.NotEqual(t, little, big, "exactly one native byte order")
	require.Equal(t, little, CheckEndianness() == binary.LittleEndian)
	require.Equal(t, big, CheckEndianness() == binary.BigEndian)
}

func TestCompareNativeEndian(t *testing.T) {
	require.Equal(t, IsNativeLittleEndian(), CompareNativeEndian(GetLittleEndianEngine()))
	require.Equal(t, IsNativeBigEndian(), CompareNativeEndian(GetBigEndianEngine()))
}

func TestGetLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()
	require.Implements(t, (*EndianEngine)(nil), engine)
	require.Equal(t, binary.LittleEndian, engine)

	// The wire format stores all fixed-width header fields LSB first; a
	// bucket count of 2 must serialize with the 2 in byte 0.
	buf := make([]byte, 4)
	engine.PutUint32(buf, 2)
	require.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, buf)
	require.Equal(t, uint32(2), engine.Uint32(buf))
}

func TestGetBigEndianEngine(t *testing.T) {
	engine := GetBigEndianEngine()
	require.Implements(t, (*EndianEngine)(nil), engine)
	require.Equal(t, binary.BigEndian, engine)

	buf := make([]byte, 4)
	engine.PutUint32(buf, 2)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, buf)
	require.Equal(t, uint32(2), engine.Uint32(buf))
}

// Both engines must round-trip the field widths the blob headers actually
// use: u16 scalar values, u32 bucket counts, u64 last-value anchors.
func TestEnginesRoundTripHeaderWidths(t *testing.T) {
	for _, engine := range []EndianEngine{GetLittleEndianEngine(), GetBigEndianEngine()} {
		var buf []byte
		buf = engine.AppendUint16(buf, 0x0304)
		buf = engine.AppendUint32(buf, 1000)
		buf = engine.AppendUint64(buf, 0x40091EB851EB851F) // float64 bits of 3.14

		require.Len(t, buf, 2+4+8)
		require.Equal(t, uint16(0x0304), engine.Uint16(buf[0:2]))
		require.Equal(t, uint32(1000), engine.Uint32(buf[2:6]))
		require.Equal(t, uint64(0x40091EB851EB851F), engine.Uint64(buf[6:14]))
	}
}

func TestEnginesDisagreeOnByteOrder(t *testing.T) {
	little := make([]byte, 8)
	big := make([]byte, 8)

	GetLittleEndianEngine().PutUint64(little, 0x0102030405060708)
	GetBigEndianEngine().PutUint64(big, 0x0102030405060708)

	require.NotEqual(t, little, big)
	require.Equal(t, GetLittleEndianEngine().Uint64(little), GetBigEndianEngine().Uint64(big))
}
