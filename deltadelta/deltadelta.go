// Package deltadelta implements the "DeltaDelta" codec (algorithm ID 4):
// zigzag+varint-encoded delta-of-delta for signed integer columns, the
// usual choice for monotonic timestamp streams. The first value is stored
// as a full zigzag+varint, the second as a delta, every value after that
// as a delta-of-delta; a Simple8b-RLE null bitmap alongside the payload
// lets it serve as a VALUE column codec under the same Compressor
// contract as Gorilla and Array. Floating-point columns are rejected as
// unsupported.
package deltadelta

import (
	"fmt"

	"github.com/tsdbcompress/columnar/endian"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/internal/pool"
	"github.com/tsdbcompress/columnar/simple8b"
)

// AlgorithmID is the 1-byte algorithm tag for DeltaDelta blobs.
const AlgorithmID = 4

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}

	return append(buf, byte(v))
}

func readVarint(buf []byte, offset int) (uint64, int, error) {
	var v uint64
	var shift uint
	for {
		if offset >= len(buf) {
			return 0, 0, fmt.Errorf("%w: truncated varint", errs.ErrCorruptedData)
		}
		b := buf[offset]
		offset++
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, 0, fmt.Errorf("%w: varint too long", errs.ErrCorruptedData)
		}
	}

	return v, offset, nil
}

// supportsType rejects floating-point element types: delta-of-delta is
// meaningless over IEEE-754 bit patterns.
func supportsType(t format.ElementType) bool {
	switch t {
	case format.ElementInt16, format.ElementInt32, format.ElementInt64:
		return true
	default:
		return false
	}
}

// Compressor builds the delta-of-delta stream for one signed-integer
// column of one compressed row.
type Compressor struct {
	elemType  format.ElementType
	hasAny    bool
	hasPrior  bool
	hasNulls  bool
	prevValue int64
	prevDelta int64
	payload   []byte
	nulls     *simple8b.Encoder
	done      bool
}

// NewCompressor returns an empty Compressor, or an error if elemType is a
// floating-point type.
func NewCompressor(elemType format.ElementType) (*Compressor, error) {
	if !supportsType(elemType) {
		return nil, fmt.Errorf("%w: deltadelta does not support %s", errs.ErrUnsupportedType, elemType)
	}

	return &Compressor{elemType: elemType, nulls: simple8b.New()}, nil
}

// AppendValue appends one non-null value.
func (c *Compressor) AppendValue(v any) error {
	if c.done {
		return fmt.Errorf("%w: deltadelta compressor", errs.ErrEncoderFinished)
	}

	raw, err := format.ToRawBits(c.elemType, v)
	if err != nil {
		return err
	}
	iv := signExtend(c.elemType, raw)

	if err := c.nulls.Append(0); err != nil {
		return err
	}

	switch {
	case !c.hasAny:
		c.payload = appendVarint(c.payload, zigzagEncode(iv))
	case !c.hasPrior:
		delta := iv - c.prevValue
		c.payload = appendVarint(c.payload, zigzagEncode(delta))
		c.prevDelta = delta
		c.hasPrior = true
	default:
		delta := iv - c.prevValue
		dod := delta - c.prevDelta
		c.payload = appendVarint(c.payload, zigzagEncode(dod))
		c.prevDelta = delta
	}

	c.prevValue = iv
	c.hasAny = true

	return nil
}

func signExtend(t format.ElementType, raw uint64) int64 {
	switch t {
	case format.ElementInt16:
		return int64(int16(raw)) //nolint:gosec // truncation intentional
	case format.ElementInt32:
		return int64(int32(raw)) //nolint:gosec // truncation intentional
	default:
		return int64(raw)
	}
}

// AppendNull appends a null row: advances only the nulls stream; the next
// non-null value resumes delta-of-delta from the last real value, exactly
// as Gorilla's AppendNull leaves prevValue untouched.
func (c *Compressor) AppendNull() error {
	if c.done {
		return fmt.Errorf("%w: deltadelta compressor", errs.ErrEncoderFinished)
	}

	c.hasNulls = true

	return c.nulls.Append(1)
}

// Finish serializes the blob: algorithm_id, element_type, has_nulls, nulls
// bitmap (framed), then the varint delta-of-delta payload.
func (c *Compressor) Finish() []byte {
	engine := endian.GetLittleEndianEngine()

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
	buf = append(buf, c.payload...)

	out := make([]byte, len(buf))
	copy(out, buf)

	c.done = true

	return out
}

// Decompressor parses a DeltaDelta blob and drives forward iteration.
// Delta-of-delta streams are inherently sequential (each value depends on
// the cumulative sum of all prior deltas), so unlike Gorilla there is no
// reverse cursor or bulk path: the registry's DeltaDelta definition has no
// IterReverse, and a reverse scan over such a column fails with
// errs.ErrUnsupportedType.
type Decompressor struct {
	elemType format.ElementType
	hasNulls bool
	nulls    *simple8b.Decoder
	payload  []byte
}

// Parse validates and parses the at-rest DeltaDelta blob layout.
func Parse(blob []byte) (*Decompressor, error) {
	if len(blob) < 3+4 {
		return nil, fmt.Errorf("%w: deltadelta blob shorter than header", errs.ErrCorruptedData)
	}
	if blob[0] != AlgorithmID {
		return nil, fmt.Errorf("%w: expected algorithm id %d, got %d", errs.ErrInvalidAlgorithmID, AlgorithmID, blob[0])
	}

	elemType := format.ElementType(blob[1])
	if !supportsType(elemType) {
		return nil, fmt.Errorf("%w: deltadelta element type %d", errs.ErrUnsupportedType, elemType)
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

	return &Decompressor{elemType: elemType, hasNulls: hasNulls, nulls: nulls, payload: blob[offset:]}, nil
}

// ForwardIter reads N rows in append order.
type ForwardIter struct {
	d         *Decompressor
	nulls     *simple8b.ForwardCursor
	offset    int
	hasAny    bool
	hasPrior  bool
	prevValue int64
	prevDelta int64
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

// Next returns the next row's raw bit pattern, isNull, ok, err. ok is
// false once n rows have been drawn; calling Next() again past that point
// reports ErrOutOfSync if the stream holding one entry per row (nulls when
// the column has nulls, otherwise the payload) still has data left,
// catching a declared row count that undercounts what was actually encoded.
func (it *ForwardIter) Next() (uint64, bool, bool, error) {
	if it.remaining <= 0 {
		if it.moreRowsAvailable() {
			return 0, false, false, fmt.Errorf("%w: deltadelta column has more rows than the declared count", errs.ErrOutOfSync)
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

	zz, next, err := readVarint(it.d.payload, it.offset)
	if err != nil {
		return 0, false, false, err
	}
	it.offset = next
	v := zigzagDecode(zz)

	var iv int64
	switch {
	case !it.hasAny:
		iv = v
		it.hasAny = true
	case !it.hasPrior:
		iv = it.prevValue + v
		it.prevDelta = v
		it.hasPrior = true
	default:
		delta := it.prevDelta + v
		iv = it.prevValue + delta
		it.prevDelta = delta
	}
	it.prevValue = iv

	return uint64(iv), false, true, nil //nolint:gosec // raw bit pattern round-trip
}

// moreRowsAvailable reports whether the stream holding one entry per row
// (nulls when the column has nulls, otherwise the payload) still has data
// beyond what this iterator's row budget has drawn.
func (it *ForwardIter) moreRowsAvailable() bool {
	if it.d.hasNulls {
		_, ok := it.nulls.Next()
		return ok
	}

	return it.offset < len(it.d.payload)
}
