// Package array implements the "Array" codec (algorithm ID 1): values are
// stored verbatim, each as its natural width in little-endian bytes, with
// a Simple8b-RLE null bitmap alongside — no compression, so this is the
// baseline every other codec is measured against. The registry never
// substitutes it on its own: a column uses it only when its ColumnInfo
// names it.
package array

import (
	"fmt"

	"github.com/tsdbcompress/columnar/endian"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/internal/pool"
	"github.com/tsdbcompress/columnar/simple8b"
)

// AlgorithmID is the 1-byte algorithm tag for Array blobs. Algorithm IDs
// are fixed by the on-disk format and must never change.
const AlgorithmID = 1

// Compressor appends raw fixed-width values and an optional null bitmap.
type Compressor struct {
	elemType format.ElementType
	hasNulls bool
	values   []uint64
	nulls    *simple8b.Encoder
	done     bool
}

// NewCompressor returns an empty Compressor for the given element type.
func NewCompressor(elemType format.ElementType) *Compressor {
	return &Compressor{elemType: elemType, nulls: simple8b.New()}
}

// AppendValue appends one non-null value.
func (c *Compressor) AppendValue(v any) error {
	if c.done {
		return fmt.Errorf("%w: array compressor", errs.ErrEncoderFinished)
	}

	raw, err := format.ToRawBits(c.elemType, v)
	if err != nil {
		return err
	}

	if err := c.nulls.Append(0); err != nil {
		return err
	}
	c.values = append(c.values, raw)

	return nil
}

// AppendNull appends a null row: the nulls bitmap records it but no value
// slot is consumed, keeping the values slice exactly as long as the
// non-null count.
func (c *Compressor) AppendNull() error {
	if c.done {
		return fmt.Errorf("%w: array compressor", errs.ErrEncoderFinished)
	}

	c.hasNulls = true

	return c.nulls.Append(1)
}

func widthBytes(elemType format.ElementType) int {
	return elemType.Width() / 8
}

// Finish serializes the blob: algorithm_id, element_type, has_nulls,
// nulls bitmap (framed), then each value's natural-width little-endian
// bytes in append order.
func (c *Compressor) Finish() []byte {
	engine := endian.GetLittleEndianEngine()
	width := widthBytes(c.elemType)

	bb := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(bb)

	buf := bb.Bytes()
	buf = append(buf, AlgorithmID, byte(c.elemType))
	if c.hasNulls {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	nullsBytes := c.nulls.Finish()
	buf = engine.AppendUint32(buf, uint32(len(nullsBytes))) //nolint:gosec // bounded stream sizes
	buf = append(buf, nullsBytes...)

	for _, raw := range c.values {
		switch width {
		case 2:
			buf = engine.AppendUint16(buf, uint16(raw))
		case 4:
			buf = engine.AppendUint32(buf, uint32(raw))
		default:
			buf = engine.AppendUint64(buf, raw)
		}
	}

	out := make([]byte, len(buf))
	copy(out, buf)

	c.done = true

	return out
}

// Decompressor parses an Array blob and drives forward/reverse iteration.
type Decompressor struct {
	elemType format.ElementType
	hasNulls bool
	nulls    *simple8b.Decoder
	values   []uint64
}

// Parse validates and parses the at-rest Array blob layout.
func Parse(blob []byte) (*Decompressor, error) {
	if len(blob) < 3+4 {
		return nil, fmt.Errorf("%w: array blob shorter than header", errs.ErrCorruptedData)
	}
	if blob[0] != AlgorithmID {
		return nil, fmt.Errorf("%w: expected algorithm id %d, got %d", errs.ErrInvalidAlgorithmID, AlgorithmID, blob[0])
	}

	elemType := format.ElementType(blob[1])
	width := widthBytes(elemType)
	if width == 0 {
		return nil, fmt.Errorf("%w: array element type %d", errs.ErrUnsupportedType, elemType)
	}
	if blob[2] > 1 {
		return nil, fmt.Errorf("%w: has_nulls byte out of range", errs.ErrCorruptedData)
	}
	hasNulls := blob[2] == 1

	engine := endian.GetLittleEndianEngine()
	n := int(engine.Uint32(blob[3:7]))
	offset := 7
	if n < 0 || offset+n > len(blob) {
		return nil, fmt.Errorf("%w: truncated nulls payload", errs.ErrCorruptedData)
	}

	nulls, err := simple8b.Wrap(blob[offset : offset+n])
	if err != nil {
		return nil, err
	}
	offset += n

	remaining := len(blob) - offset
	if remaining%width != 0 {
		return nil, fmt.Errorf("%w: array value payload not a multiple of element width", errs.ErrCorruptedData)
	}

	count := remaining / width
	values := make([]uint64, count)
	for i := range values {
		start := offset + i*width
		switch width {
		case 2:
			values[i] = uint64(engine.Uint16(blob[start : start+2]))
		case 4:
			values[i] = uint64(engine.Uint32(blob[start : start+4]))
		default:
			values[i] = engine.Uint64(blob[start : start+8])
		}
	}

	return &Decompressor{elemType: elemType, hasNulls: hasNulls, nulls: nulls, values: values}, nil
}

// ForwardIter reads N rows in append order.
type ForwardIter struct {
	d         *Decompressor
	nulls     *simple8b.ForwardCursor
	idx       int
	remaining int
}

// IterForward returns a forward iterator over n rows.
func (d *Decompressor) IterForward(n int) *ForwardIter {
	it := &ForwardIter{d: d, remaining: n}
	if d.hasNulls {
		it.nulls = d.nulls.IterForward()
	}

	return it
}

// Next returns (rawBits, isNull, ok, err). ok is false once n rows have
// been drawn; calling Next() again past that point reports ErrOutOfSync
// if the blob's value array still has entries left, catching a declared
// row count that undercounts what was actually encoded.
func (it *ForwardIter) Next() (uint64, bool, bool, error) {
	if it.remaining <= 0 {
		if it.idx < len(it.d.values) {
			return 0, false, false, fmt.Errorf("%w: array column has more rows than the declared count", errs.ErrOutOfSync)
		}

		return 0, false, false, nil
	}
	it.remaining--

	if it.d.hasNulls {
		nb, ok := it.nulls.Next()
		if !ok {
			return 0, false, false, fmt.Errorf("%w: nulls stream exhausted", errs.ErrCorruptedData)
		}
		if nb == 1 {
			return 0, true, true, nil
		}
		if nb != 0 {
			return 0, false, false, fmt.Errorf("%w: nulls bit not in {0,1}", errs.ErrCorruptedData)
		}
	}

	if it.idx >= len(it.d.values) {
		return 0, false, false, fmt.Errorf("%w: values stream exhausted", errs.ErrCorruptedData)
	}
	v := it.d.values[it.idx]
	it.idx++

	return v, false, true, nil
}

// ReverseIter reads N rows in reverse append order.
type ReverseIter struct {
	d         *Decompressor
	nulls     *simple8b.ReverseCursor
	idx       int
	remaining int
}

// IterReverse returns a reverse iterator over n rows.
func (d *Decompressor) IterReverse(n int) *ReverseIter {
	it := &ReverseIter{d: d, idx: len(d.values) - 1, remaining: n}
	if d.hasNulls {
		it.nulls = d.nulls.IterReverse()
	}

	return it
}

// Next returns (rawBits, isNull, ok, err) in reverse order. Same
// ok/ErrOutOfSync semantics as ForwardIter.Next.
func (it *ReverseIter) Next() (uint64, bool, bool, error) {
	if it.remaining <= 0 {
		if it.idx >= 0 {
			return 0, false, false, fmt.Errorf("%w: array column has more rows than the declared count", errs.ErrOutOfSync)
		}

		return 0, false, false, nil
	}
	it.remaining--

	if it.d.hasNulls {
		nb, ok := it.nulls.Next()
		if !ok {
			return 0, false, false, fmt.Errorf("%w: nulls stream exhausted", errs.ErrCorruptedData)
		}
		if nb == 1 {
			return 0, true, true, nil
		}
		if nb != 0 {
			return 0, false, false, fmt.Errorf("%w: nulls bit not in {0,1}", errs.ErrCorruptedData)
		}
	}

	if it.idx < 0 {
		return 0, false, false, fmt.Errorf("%w: values stream exhausted", errs.ErrCorruptedData)
	}
	v := it.d.values[it.idx]
	it.idx--

	return v, false, true, nil
}
