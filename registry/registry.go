// Package registry implements the algorithm registry: a small static
// table keyed by algorithm ID that dispatches to each codec's
// compressor/iterator/bulk-decode/send-recv vtable, so the row
// compressor, row decompressor and batch executor never switch on
// algorithm ID themselves.
package registry

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"

	"github.com/tsdbcompress/columnar/array"
	"github.com/tsdbcompress/columnar/blob"
	"github.com/tsdbcompress/columnar/deltadelta"
	"github.com/tsdbcompress/columnar/dictionary"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/gorilla"
)

// ToastPreference mirrors Postgres's TOAST storage strategy a codec
// prefers for its blob: EXTERNAL never recompresses the stored value a
// second time, EXTENDED tries a secondary general-purpose compression
// pass first.
type ToastPreference int

const (
	ToastExternal ToastPreference = iota
	ToastExtended
)

// Compressor is the uniform compressor contract every codec satisfies.
type Compressor interface {
	AppendValue(v any) error
	AppendNull() error
	Finish() []byte
}

// RowIterator draws one row at a time from a parsed codec blob.
type RowIterator interface {
	// Next returns (value, isNull, ok, err). ok is false once the
	// iterator's row budget is exhausted. Drawing one more row past that
	// point is how a caller confirms the budget (a CompressedRow's Count)
	// actually matches what the blob encodes: if the underlying stream
	// still has a row sitting there, Next returns ok=false with an error
	// wrapping errs.ErrOutOfSync instead of silently stopping.
	Next() (value any, isNull bool, ok bool, err error)
}

// Definition is the per-algorithm vtable.
type Definition struct {
	ID    blob.AlgorithmID
	Toast ToastPreference

	MakeCompressor func(elemType format.ElementType) (Compressor, error)
	IterForward    func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error)
	// IterReverse is nil for codecs with no reverse cursor (DeltaDelta,
	// whose stream is inherently sequential, and Dictionary).
	IterReverse func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error)
	// DecompressAllForward returns ok=false when no bulk path exists for
	// this element type, telling the batch executor to fall back to
	// IterForward.
	DecompressAllForward func(codecBlob []byte, elemType format.ElementType, n int) (arrow.Array, bool, error)

	Send func(codecBlob []byte) ([]byte, error)
	Recv func(wire []byte) ([]byte, error)
}

// registry is the static table shared by every scan. It is immutable
// after initialization, which is what makes it safe to share.
var registry = map[blob.AlgorithmID]*Definition{
	blob.AlgorithmGorilla:    gorillaDefinition(),
	blob.AlgorithmArray:      arrayDefinition(),
	blob.AlgorithmDeltaDelta: deltaDeltaDefinition(),
	blob.AlgorithmDictionary: dictionaryDefinition(),
}

// Get looks up a codec's Definition by algorithm ID.
func Get(id blob.AlgorithmID) (*Definition, error) {
	def, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: algorithm id %d", errs.ErrInvalidAlgorithmID, id)
	}

	return def, nil
}

type gorillaCompressor struct {
	elemType format.ElementType
	inner    *gorilla.Compressor
}

func (c *gorillaCompressor) AppendValue(v any) error {
	raw, err := format.ToRawBits(c.elemType, v)
	if err != nil {
		return err
	}

	return c.inner.AppendValue(raw)
}

func (c *gorillaCompressor) AppendNull() error { return c.inner.AppendNull() }
func (c *gorillaCompressor) Finish() []byte    { return c.inner.Finish() }

type gorillaForwardIter struct {
	elemType format.ElementType
	inner    *gorilla.ForwardIter
}

func (it *gorillaForwardIter) Next() (any, bool, bool, error) {
	raw, isNull, ok, err := it.inner.Next()
	if err != nil {
		return nil, false, false, err
	}
	if !ok {
		return nil, false, false, nil
	}
	if isNull {
		return nil, true, true, nil
	}
	v, err := format.FromRawBits(it.elemType, raw)

	return v, false, true, err
}

type gorillaReverseIter struct {
	elemType format.ElementType
	inner    *gorilla.ReverseIter
}

func (it *gorillaReverseIter) Next() (any, bool, bool, error) {
	raw, isNull, ok, err := it.inner.Next()
	if err != nil {
		return nil, false, false, err
	}
	if !ok {
		return nil, false, false, nil
	}
	if isNull {
		return nil, true, true, nil
	}
	v, err := format.FromRawBits(it.elemType, raw)

	return v, false, true, err
}

func gorillaDefinition() *Definition {
	return &Definition{
		ID:    blob.AlgorithmGorilla,
		Toast: ToastExtended,
		MakeCompressor: func(elemType format.ElementType) (Compressor, error) {
			if elemType.Width() == 0 {
				return nil, fmt.Errorf("%w: gorilla element type %d", errs.ErrUnsupportedType, elemType)
			}

			return &gorillaCompressor{elemType: elemType, inner: gorilla.NewCompressor()}, nil
		},
		IterForward: func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error) {
			d, err := gorilla.Parse(codecBlob)
			if err != nil {
				return nil, err
			}

			return &gorillaForwardIter{elemType: elemType, inner: d.IterForward(n)}, nil
		},
		IterReverse: func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error) {
			d, err := gorilla.Parse(codecBlob)
			if err != nil {
				return nil, err
			}
			it, err := d.IterReverse(n)
			if err != nil {
				return nil, err
			}

			return &gorillaReverseIter{elemType: elemType, inner: it}, nil
		},
		DecompressAllForward: func(codecBlob []byte, elemType format.ElementType, n int) (arrow.Array, bool, error) {
			d, err := gorilla.Parse(codecBlob)
			if err != nil {
				return nil, false, err
			}

			switch elemType {
			case format.ElementInt32:
				a, err := d.DecodeAllForwardInt32(n)
				return a, true, err
			case format.ElementInt64:
				a, err := d.DecodeAllForwardInt64(n)
				return a, true, err
			case format.ElementFloat32:
				a, err := d.DecodeAllForwardFloat32(n)
				return a, true, err
			case format.ElementFloat64:
				a, err := d.DecodeAllForwardFloat64(n)
				return a, true, err
			default:
				// 16-bit columns have no bulk path; the executor falls
				// back to IterForward.
				return nil, false, nil
			}
		},
		Send: func(codecBlob []byte) ([]byte, error) {
			d, err := gorilla.Parse(codecBlob)
			if err != nil {
				return nil, err
			}

			return gorilla.Send(d), nil
		},
		Recv: gorilla.Recv,
	}
}

type arrayCompressor struct {
	inner *array.Compressor
}

func (c *arrayCompressor) AppendValue(v any) error { return c.inner.AppendValue(v) }
func (c *arrayCompressor) AppendNull() error       { return c.inner.AppendNull() }
func (c *arrayCompressor) Finish() []byte          { return c.inner.Finish() }

type arrayForwardIter struct {
	elemType format.ElementType
	inner    *array.ForwardIter
}

func (it *arrayForwardIter) Next() (any, bool, bool, error) {
	raw, isNull, ok, err := it.inner.Next()
	if err != nil {
		return nil, false, false, err
	}
	if !ok {
		return nil, false, false, nil
	}
	if isNull {
		return nil, true, true, nil
	}
	v, err := format.FromRawBits(it.elemType, raw)

	return v, false, true, err
}

type arrayReverseIter struct {
	elemType format.ElementType
	inner    *array.ReverseIter
}

func (it *arrayReverseIter) Next() (any, bool, bool, error) {
	raw, isNull, ok, err := it.inner.Next()
	if err != nil {
		return nil, false, false, err
	}
	if !ok {
		return nil, false, false, nil
	}
	if isNull {
		return nil, true, true, nil
	}
	v, err := format.FromRawBits(it.elemType, raw)

	return v, false, true, err
}

func arrayDefinition() *Definition {
	return &Definition{
		ID:    blob.AlgorithmArray,
		Toast: ToastExternal,
		MakeCompressor: func(elemType format.ElementType) (Compressor, error) {
			if elemType.Width() == 0 {
				return nil, fmt.Errorf("%w: array element type %d", errs.ErrUnsupportedType, elemType)
			}

			return &arrayCompressor{inner: array.NewCompressor(elemType)}, nil
		},
		IterForward: func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error) {
			d, err := array.Parse(codecBlob)
			if err != nil {
				return nil, err
			}

			return &arrayForwardIter{elemType: elemType, inner: d.IterForward(n)}, nil
		},
		IterReverse: func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error) {
			d, err := array.Parse(codecBlob)
			if err != nil {
				return nil, err
			}

			return &arrayReverseIter{elemType: elemType, inner: d.IterReverse(n)}, nil
		},
		// Array has no bulk decode path: it is the uncompressed baseline,
		// not the optimization target.
		DecompressAllForward: func([]byte, format.ElementType, int) (arrow.Array, bool, error) {
			return nil, false, nil
		},
		Send: func(codecBlob []byte) ([]byte, error) { return codecBlob, nil },
		Recv: func(wire []byte) ([]byte, error) { return wire, nil },
	}
}

type deltaDeltaCompressor struct {
	inner *deltadelta.Compressor
}

func (c *deltaDeltaCompressor) AppendValue(v any) error { return c.inner.AppendValue(v) }
func (c *deltaDeltaCompressor) AppendNull() error       { return c.inner.AppendNull() }
func (c *deltaDeltaCompressor) Finish() []byte          { return c.inner.Finish() }

type deltaDeltaForwardIter struct {
	elemType format.ElementType
	inner    *deltadelta.ForwardIter
}

func (it *deltaDeltaForwardIter) Next() (any, bool, bool, error) {
	raw, isNull, ok, err := it.inner.Next()
	if err != nil {
		return nil, false, false, err
	}
	if !ok {
		return nil, false, false, nil
	}
	if isNull {
		return nil, true, true, nil
	}
	v, err := format.FromRawBits(it.elemType, raw)

	return v, false, true, err
}

func deltaDeltaDefinition() *Definition {
	return &Definition{
		ID:    blob.AlgorithmDeltaDelta,
		Toast: ToastExtended,
		MakeCompressor: func(elemType format.ElementType) (Compressor, error) {
			inner, err := deltadelta.NewCompressor(elemType)
			if err != nil {
				return nil, err
			}

			return &deltaDeltaCompressor{inner: inner}, nil
		},
		IterForward: func(codecBlob []byte, elemType format.ElementType, n int) (RowIterator, error) {
			d, err := deltadelta.Parse(codecBlob)
			if err != nil {
				return nil, err
			}

			return &deltaDeltaForwardIter{elemType: elemType, inner: d.IterForward(n)}, nil
		},
		// Delta-of-delta is inherently sequential: there is no reverse
		// cursor (see package deltadelta's Decompressor doc).
		IterReverse: nil,
		DecompressAllForward: func([]byte, format.ElementType, int) (arrow.Array, bool, error) {
			return nil, false, nil
		},
		Send: func(codecBlob []byte) ([]byte, error) { return codecBlob, nil },
		Recv: func(wire []byte) ([]byte, error) { return wire, nil },
	}
}

type dictionaryCompressor struct {
	inner *dictionary.Compressor
}

func (c *dictionaryCompressor) AppendValue(v any) error { return c.inner.AppendValue(v) }
func (c *dictionaryCompressor) AppendNull() error       { return c.inner.AppendNull() }
func (c *dictionaryCompressor) Finish() []byte          { return c.inner.Finish() }

type dictionaryForwardIter struct {
	inner *dictionary.ForwardIter
}

func (it *dictionaryForwardIter) Next() (any, bool, bool, error) {
	v, isNull, ok, err := it.inner.Next()
	if err != nil {
		return nil, false, false, err
	}
	if !ok {
		return nil, false, false, nil
	}
	if isNull {
		return nil, true, true, nil
	}

	return v, false, true, nil
}

func dictionaryDefinition() *Definition {
	return &Definition{
		ID:    blob.AlgorithmDictionary,
		Toast: ToastExtended,
		MakeCompressor: func(format.ElementType) (Compressor, error) {
			return &dictionaryCompressor{inner: dictionary.NewCompressor()}, nil
		},
		IterForward: func(codecBlob []byte, _ format.ElementType, n int) (RowIterator, error) {
			d, err := dictionary.Parse(codecBlob)
			if err != nil {
				return nil, err
			}

			return &dictionaryForwardIter{inner: d.IterForward(n)}, nil
		},
		// Dictionary codes reference entries by position in the blob's own
		// dictionary table, so reverse iteration has no extra anchor to
		// prime (unlike Gorilla's XOR chain); it is left out since
		// nothing scans Dictionary columns in reverse.
		IterReverse: nil,
		DecompressAllForward: func([]byte, format.ElementType, int) (arrow.Array, bool, error) {
			return nil, false, nil
		},
		Send: func(codecBlob []byte) ([]byte, error) { return codecBlob, nil },
		Recv: func(wire []byte) ([]byte, error) { return wire, nil },
	}
}
