package toast_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/registry"
	"github.com/tsdbcompress/columnar/toast"
)

func TestPackExternalNeverCompresses(t *testing.T) {
	container := bytes.Repeat([]byte{0xAB}, 4096)

	stored, err := toast.Pack(container, registry.ToastExternal, format.CompressionZstd)
	require.NoError(t, err)

	got, err := toast.Unpack(stored)
	require.NoError(t, err)
	require.Equal(t, container, got)
	require.Equal(t, byte(0), stored[0])
}

func TestPackExtendedRoundTripZstd(t *testing.T) {
	container := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 2048)

	stored, err := toast.Pack(container, registry.ToastExtended, format.CompressionZstd)
	require.NoError(t, err)
	require.Less(t, len(stored), len(container), "a highly repetitive payload should shrink")

	got, err := toast.Unpack(stored)
	require.NoError(t, err)
	require.Equal(t, container, got)
}

func TestPackExtendedRoundTripS2(t *testing.T) {
	container := bytes.Repeat([]byte{0xCA, 0xFE}, 4096)

	stored, err := toast.Pack(container, registry.ToastExtended, format.CompressionS2)
	require.NoError(t, err)

	got, err := toast.Unpack(stored)
	require.NoError(t, err)
	require.Equal(t, container, got)
}

func TestPackExtendedRoundTripLZ4(t *testing.T) {
	container := bytes.Repeat([]byte{0x7F, 0x00, 0x7F, 0x00}, 4096)

	stored, err := toast.Pack(container, registry.ToastExtended, format.CompressionLZ4)
	require.NoError(t, err)

	got, err := toast.Unpack(stored)
	require.NoError(t, err)
	require.Equal(t, container, got)
}

// Small, incompressible payloads must fall back to external storage rather
// than pay the two-byte envelope overhead for no gain.
func TestPackExtendedFallsBackWhenCompressionDoesNotPay(t *testing.T) {
	container := []byte{0x01}

	stored, err := toast.Pack(container, registry.ToastExtended, format.CompressionZstd)
	require.NoError(t, err)
	require.Equal(t, byte(0), stored[0])

	got, err := toast.Unpack(stored)
	require.NoError(t, err)
	require.Equal(t, container, got)
}

func TestUnpackRejectsEmptyEnvelope(t *testing.T) {
	_, err := toast.Unpack(nil)
	require.Error(t, err)
}

func TestUnpackRejectsUnknownMarker(t *testing.T) {
	_, err := toast.Unpack([]byte{0xFF, 0x00})
	require.Error(t, err)
}

func TestUnpackRejectsTruncatedCompressedEnvelope(t *testing.T) {
	_, err := toast.Unpack([]byte{1})
	require.Error(t, err)
}
