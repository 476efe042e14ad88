package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// compressorConfig mirrors the shape of the knobs the row compressor
// exposes through this package: a couple of never-failing field setters
// and one that validates its input.
type compressorConfig struct {
	maxRows     int32
	seqGap      int32
	description string
}

func (c *compressorConfig) setMaxRows(n int32) error {
	if n <= 0 {
		return errors.New("max rows must be positive")
	}
	c.maxRows = n

	return nil
}

func withMaxRows(n int32) Option[*compressorConfig] {
	return New(func(c *compressorConfig) error { return c.setMaxRows(n) })
}

func withSeqGap(gap int32) Option[*compressorConfig] {
	return NoError(func(c *compressorConfig) { c.seqGap = gap })
}

func withDescription(s string) Option[*compressorConfig] {
	return NoError(func(c *compressorConfig) { c.description = s })
}

func TestOption_New(t *testing.T) {
	t.Run("applies a fallible setter", func(t *testing.T) {
		cfg := &compressorConfig{}
		require.NoError(t, withMaxRows(1000).apply(cfg))
		require.Equal(t, int32(1000), cfg.maxRows)
	})

	t.Run("propagates the setter's error", func(t *testing.T) {
		cfg := &compressorConfig{}
		err := withMaxRows(0).apply(cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "must be positive")
	})
}

func TestOption_NoError(t *testing.T) {
	cfg := &compressorConfig{}
	require.NoError(t, withSeqGap(10).apply(cfg))
	require.Equal(t, int32(10), cfg.seqGap)
}

func TestOption_Apply(t *testing.T) {
	t.Run("applies options in order", func(t *testing.T) {
		cfg := &compressorConfig{}
		err := Apply(cfg,
			withMaxRows(1015),
			withSeqGap(10),
			withDescription("recompression run"),
		)
		require.NoError(t, err)
		require.Equal(t, int32(1015), cfg.maxRows)
		require.Equal(t, int32(10), cfg.seqGap)
		require.Equal(t, "recompression run", cfg.description)
	})

	t.Run("stops at the first error, earlier options already applied", func(t *testing.T) {
		cfg := &compressorConfig{}
		err := Apply(cfg,
			withSeqGap(20),
			withMaxRows(-1),
			withDescription("never reached"),
		)
		require.Error(t, err)
		require.Equal(t, int32(20), cfg.seqGap)
		require.Empty(t, cfg.description)
	})

	t.Run("no options is a no-op", func(t *testing.T) {
		cfg := &compressorConfig{}
		require.NoError(t, Apply(cfg))
		require.Equal(t, compressorConfig{}, *cfg)
	})
}

// The type parameter must work for any target, not just config structs.
func TestOption_OtherTargetTypes(t *testing.T) {
	var n int
	require.NoError(t, NoError(func(p *int) { *p = 42 }).apply(&n))
	require.Equal(t, 42, n)
}
