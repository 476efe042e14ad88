// Package gorilla implements the XOR-based floating-point/integer codec:
// values are compared to the previous value with XOR, and the position
// and width of the changed bits are tracked across six sub-streams (tag0,
// tag1, leading-zeros, num-bits-used, xors, nulls) built on top of
// package simple8b (for the tag and null bitmaps) and package bitarray
// (for the leading-zero and xor payloads).
//
// The codec itself is width-agnostic: every appended value is a raw
// uint64 bit pattern. Callers own converting a domain value (int16/32/64,
// float32/64) to and from that pattern.
package gorilla

import (
	"fmt"
	"math/bits"

	"github.com/tsdbcompress/columnar/bitarray"
	"github.com/tsdbcompress/columnar/endian"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/internal/pool"
	"github.com/tsdbcompress/columnar/simple8b"
)

// AlgorithmID is the 1-byte algorithm tag for Gorilla blobs. Algorithm
// IDs are fixed by the on-disk format and must never change.
const AlgorithmID = 3

// ReuseThreshold is the empirically-chosen cutoff for the "reuse the
// previous leading/trailing width" decision: a small drift in width is
// cheaper than the 6-bit leading-zeros field plus a new simple8b entry.
// Implementations must match this constant exactly to produce identical
// bitstreams.
const ReuseThreshold = 12

const blobHeaderSize = 1 + 1 + 1 + 1 + 4 + 4 + 8 // algID, hasNulls, 2 bucket-bits, 2 bucket-counts, last_value

// Compressor builds the six Gorilla sub-streams for one column of one
// compressed row.
type Compressor struct {
	hasAny      bool
	hasPrior    bool
	hasNulls    bool
	prevValue   uint64
	prevLeading uint8
	prevXorBits uint8
	lastValue   uint64

	tag0         *simple8b.Encoder
	tag1         *simple8b.Encoder
	leadingZeros *bitarray.Array
	numBitsUsed  *simple8b.Encoder
	xors         *bitarray.Array
	nulls        *simple8b.Encoder

	done bool
}

// NewCompressor returns an empty Compressor.
func NewCompressor() *Compressor {
	return &Compressor{
		tag0:         simple8b.New(),
		tag1:         simple8b.New(),
		leadingZeros: bitarray.New(),
		numBitsUsed:  simple8b.New(),
		xors:         bitarray.New(),
		nulls:        simple8b.New(),
	}
}

// AppendValue appends the raw bit pattern of one non-null value.
func (c *Compressor) AppendValue(v uint64) error {
	if c.done {
		return fmt.Errorf("%w: gorilla compressor", errs.ErrEncoderFinished)
	}

	if err := c.nulls.Append(0); err != nil {
		return err
	}

	xor := c.prevValue ^ v

	if c.hasAny && xor == 0 {
		if err := c.tag0.Append(0); err != nil {
			return err
		}
	} else {
		var lz, tz uint8
		if xor == 0 {
			lz, tz = 63, 1
		} else {
			lz = uint8(bits.LeadingZeros64(xor))  //nolint:gosec // < 64
			tz = uint8(bits.TrailingZeros64(xor)) //nolint:gosec // < 64
		}

		reuse := c.hasPrior &&
			lz >= c.prevLeading &&
			tz >= (64-c.prevLeading-c.prevXorBits) &&
			int(lz-c.prevLeading)+int(tz-(64-c.prevLeading-c.prevXorBits)) <= ReuseThreshold

		if err := c.tag0.Append(1); err != nil {
			return err
		}

		var trailing uint8
		if reuse {
			if err := c.tag1.Append(0); err != nil {
				return err
			}
			trailing = 64 - c.prevLeading - c.prevXorBits
		} else {
			if err := c.tag1.Append(1); err != nil {
				return err
			}

			numBitsUsed := 64 - (lz + tz)
			c.prevLeading = lz
			c.prevXorBits = numBitsUsed
			c.hasPrior = true
			trailing = tz

			c.leadingZeros.Append(6, uint64(lz))
			if err := c.numBitsUsed.Append(uint64(numBitsUsed)); err != nil {
				return err
			}
		}

		c.xors.Append(int(c.prevXorBits), xor>>trailing)
	}

	c.prevValue = v
	c.hasAny = true
	c.lastValue = v

	return nil
}

// AppendNull appends a null row: it advances only the nulls stream.
func (c *Compressor) AppendNull() error {
	if c.done {
		return fmt.Errorf("%w: gorilla compressor", errs.ErrEncoderFinished)
	}

	c.hasNulls = true

	return c.nulls.Append(1)
}

func appendFramedSimple8b(buf []byte, engine endian.EndianEngine, enc *simple8b.Encoder) []byte {
	data := enc.Finish()
	buf = engine.AppendUint32(buf, uint32(len(data))) //nolint:gosec // bounded stream sizes
	buf = append(buf, data...)

	return buf
}

func appendFramedBitArray(buf []byte, engine endian.EndianEngine, arr *bitarray.Array) []byte {
	buf = engine.AppendUint32(buf, arr.NumWords())
	buf = append(buf, arr.BitsUsedInLastWord())
	buf = append(buf, arr.Bytes()...)

	return buf
}

// Finish serializes the at-rest blob: the fixed header (algorithm ID,
// has_nulls, per-stream bucket metadata, last value), then each
// sub-stream in layout order. The Compressor must not be used afterward.
func (c *Compressor) Finish() []byte {
	engine := endian.GetLittleEndianEngine()

	bb := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(bb)

	buf := bb.Bytes()
	buf = append(buf, AlgorithmID)
	if c.hasNulls {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, c.xors.BitsUsedInLastWord())
	buf = append(buf, c.leadingZeros.BitsUsedInLastWord())
	buf = engine.AppendUint32(buf, c.leadingZeros.NumWords())
	buf = engine.AppendUint32(buf, c.xors.NumWords())
	buf = engine.AppendUint64(buf, c.lastValue)

	buf = appendFramedSimple8b(buf, engine, c.tag0)
	buf = appendFramedSimple8b(buf, engine, c.tag1)
	buf = append(buf, c.leadingZeros.Bytes()...)
	buf = appendFramedSimple8b(buf, engine, c.numBitsUsed)
	buf = append(buf, c.xors.Bytes()...)
	if c.hasNulls {
		buf = appendFramedSimple8b(buf, engine, c.nulls)
	}

	out := make([]byte, len(buf))
	copy(out, buf)

	c.done = true

	return out
}

// Decompressor parses a Gorilla blob and builds forward/reverse
// iterators over it.
type Decompressor struct {
	hasNulls  bool
	lastValue uint64

	tag0         *simple8b.Decoder
	tag1         *simple8b.Decoder
	leadingZeros *bitarray.Array
	numBitsUsed  *simple8b.Decoder
	xors         *bitarray.Array
	nulls        *simple8b.Decoder
}

func readFramedSimple8b(blob []byte, offset int) (*simple8b.Decoder, int, error) {
	if offset+4 > len(blob) {
		return nil, 0, fmt.Errorf("%w: truncated simple8b length prefix", errs.ErrCorruptedData)
	}

	engine := endian.GetLittleEndianEngine()
	n := int(engine.Uint32(blob[offset : offset+4]))
	offset += 4

	if n < 0 || offset+n > len(blob) {
		return nil, 0, fmt.Errorf("%w: truncated simple8b payload", errs.ErrCorruptedData)
	}

	dec, err := simple8b.Wrap(blob[offset : offset+n])
	if err != nil {
		return nil, 0, err
	}

	return dec, offset + n, nil
}

// Parse validates and parses the at-rest Gorilla blob layout.
func Parse(blob []byte) (*Decompressor, error) {
	if len(blob) < blobHeaderSize {
		return nil, fmt.Errorf("%w: gorilla blob shorter than header", errs.ErrCorruptedData)
	}
	if blob[0] != AlgorithmID {
		return nil, fmt.Errorf("%w: expected algorithm id %d, got %d", errs.ErrInvalidAlgorithmID, AlgorithmID, blob[0])
	}
	if blob[1] > 1 {
		return nil, fmt.Errorf("%w: has_nulls byte out of range", errs.ErrCorruptedData)
	}

	hasNulls := blob[1] == 1
	bitsUsedXor := blob[2]
	bitsUsedLZ := blob[3]

	engine := endian.GetLittleEndianEngine()
	numLZBuckets := engine.Uint32(blob[4:8])
	numXorBuckets := engine.Uint32(blob[8:12])
	lastValue := engine.Uint64(blob[12:20])

	offset := blobHeaderSize

	tag0, offset, err := readFramedSimple8b(blob, offset)
	if err != nil {
		return nil, err
	}

	tag1, offset, err := readFramedSimple8b(blob, offset)
	if err != nil {
		return nil, err
	}

	lzByteLen := int(numLZBuckets) * 8
	if offset+lzByteLen > len(blob) {
		return nil, fmt.Errorf("%w: truncated leading_zeros stream", errs.ErrCorruptedData)
	}
	lzWords, err := bitarray.WordsFromBytes(blob[offset : offset+lzByteLen])
	if err != nil {
		return nil, err
	}
	leadingZeros, err := bitarray.Wrap(numLZBuckets, bitsUsedLZ, lzWords)
	if err != nil {
		return nil, err
	}
	offset += lzByteLen

	numBitsUsed, offset, err := readFramedSimple8b(blob, offset)
	if err != nil {
		return nil, err
	}

	xorByteLen := int(numXorBuckets) * 8
	if offset+xorByteLen > len(blob) {
		return nil, fmt.Errorf("%w: truncated xors stream", errs.ErrCorruptedData)
	}
	xorWords, err := bitarray.WordsFromBytes(blob[offset : offset+xorByteLen])
	if err != nil {
		return nil, err
	}
	xors, err := bitarray.Wrap(numXorBuckets, bitsUsedXor, xorWords)
	if err != nil {
		return nil, err
	}
	offset += xorByteLen

	var nulls *simple8b.Decoder
	if hasNulls {
		nulls, offset, err = readFramedSimple8b(blob, offset)
		if err != nil {
			return nil, err
		}
	}

	if offset != len(blob) {
		return nil, fmt.Errorf("%w: trailing bytes after gorilla blob", errs.ErrCorruptedData)
	}

	return &Decompressor{
		hasNulls:     hasNulls,
		lastValue:    lastValue,
		tag0:         tag0,
		tag1:         tag1,
		leadingZeros: leadingZeros,
		numBitsUsed:  numBitsUsed,
		xors:         xors,
		nulls:        nulls,
	}, nil
}

// ForwardIter reads N rows in append order.
type ForwardIter struct {
	d           *Decompressor
	tag0        *simple8b.ForwardCursor
	tag1        *simple8b.ForwardCursor
	lz          *bitarray.ForwardCursor
	numBitsUsed *simple8b.ForwardCursor
	xors        *bitarray.ForwardCursor
	nulls       *simple8b.ForwardCursor

	prevValue   uint64
	prevLeading uint8
	prevXorBits uint8

	remaining int
}

// IterForward returns a forward iterator over n rows.
func (d *Decompressor) IterForward(n int) *ForwardIter {
	it := &ForwardIter{
		d:           d,
		tag0:        d.tag0.IterForward(),
		tag1:        d.tag1.IterForward(),
		lz:          d.leadingZeros.IterForward(),
		numBitsUsed: d.numBitsUsed.IterForward(),
		xors:        d.xors.IterForward(),
		remaining:   n,
	}
	if d.hasNulls {
		it.nulls = d.nulls.IterForward()
	}

	return it
}

// Next returns the next row: (value, isNull, ok, err). ok is false once
// the iterator has produced n rows; calling Next() again past that point
// peeks the underlying streams and turns any row still sitting there into
// ErrOutOfSync, catching a declared row count that undercounts what the
// blob actually encodes.
func (it *ForwardIter) Next() (uint64, bool, bool, error) {
	if it.remaining <= 0 {
		if it.moreRowsAvailable() {
			return 0, false, false, fmt.Errorf("%w: gorilla column has more rows than the declared count", errs.ErrOutOfSync)
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

	t0, ok := it.tag0.Next()
	if !ok {
		return 0, false, false, fmt.Errorf("%w: tag0 stream exhausted", errs.ErrCorruptedData)
	}

	switch t0 {
	case 0:
		return it.prevValue, false, true, nil
	case 1:
		t1, ok := it.tag1.Next()
		if !ok {
			return 0, false, false, fmt.Errorf("%w: tag1 stream exhausted", errs.ErrCorruptedData)
		}

		switch t1 {
		case 1:
			lzRaw, ok := it.lz.Next(6)
			if !ok {
				return 0, false, false, fmt.Errorf("%w: leading_zeros stream exhausted", errs.ErrCorruptedData)
			}
			nbRaw, ok := it.numBitsUsed.Next()
			if !ok {
				return 0, false, false, fmt.Errorf("%w: num_bits_used stream exhausted", errs.ErrCorruptedData)
			}
			if lzRaw > 64 || nbRaw > 64 || lzRaw+nbRaw > 64 {
				return 0, false, false, fmt.Errorf("%w: leading_zeros/num_bits_used out of range", errs.ErrCorruptedData)
			}
			it.prevLeading = uint8(lzRaw)
			it.prevXorBits = uint8(nbRaw)
		case 0:
			// reuse current widths
		default:
			return 0, false, false, fmt.Errorf("%w: tag1 bit not in {0,1}", errs.ErrCorruptedData)
		}

		xorRaw, ok := it.xors.Next(int(it.prevXorBits))
		if !ok {
			return 0, false, false, fmt.Errorf("%w: xors stream exhausted", errs.ErrCorruptedData)
		}

		shift := 64 - int(it.prevLeading) - int(it.prevXorBits)
		var xor uint64
		if shift < 64 {
			xor = xorRaw << uint(shift)
		}

		it.prevValue ^= xor

		return it.prevValue, false, true, nil
	default:
		return 0, false, false, fmt.Errorf("%w: tag0 bit not in {0,1}", errs.ErrCorruptedData)
	}
}

// moreRowsAvailable peeks the stream that carries exactly one entry per
// row (nulls if present, tag0 otherwise) to see whether the blob encodes
// more rows than the budget this iterator was built with.
func (it *ForwardIter) moreRowsAvailable() bool {
	if it.d.hasNulls {
		_, ok := it.nulls.Next()
		return ok
	}

	_, ok := it.tag0.Next()
	return ok
}

// ReverseIter reads N rows in reverse append order, anchored on the
// blob's stored last_value.
//
// Priming: before the loop starts, the current active width is read once
// from the tail of leading_zeros/num_bits_used — it is already in effect
// for the last row. Inside the loop, a tag1==1 bit uses that cached width
// for its own row and only then reads the next (earlier) width entry, so
// there is exactly one fewer width read than there are tag1==1 bits.
type ReverseIter struct {
	d           *Decompressor
	tag0        *simple8b.ReverseCursor
	tag1        *simple8b.ReverseCursor
	lz          *bitarray.ReverseCursor
	numBitsUsed *simple8b.ReverseCursor
	xors        *bitarray.ReverseCursor
	nulls       *simple8b.ReverseCursor

	curValue   uint64
	curLeading uint8
	curXorBits uint8

	remaining int
}

// IterReverse returns a reverse iterator over n rows.
func (d *Decompressor) IterReverse(n int) (*ReverseIter, error) {
	it := &ReverseIter{
		d:           d,
		tag0:        d.tag0.IterReverse(),
		tag1:        d.tag1.IterReverse(),
		lz:          d.leadingZeros.IterReverse(),
		numBitsUsed: d.numBitsUsed.IterReverse(),
		xors:        d.xors.IterReverse(),
		curValue:    d.lastValue,
		remaining:   n,
	}
	if d.hasNulls {
		it.nulls = d.nulls.IterReverse()
	}

	lzRaw, lzOK := it.lz.Next(6)
	nbRaw, nbOK := it.numBitsUsed.Next()
	if lzOK {
		it.curLeading = uint8(lzRaw)
	}
	if nbOK {
		if nbRaw > 64 || lzRaw+nbRaw > 64 {
			return nil, fmt.Errorf("%w: leading_zeros/num_bits_used out of range", errs.ErrCorruptedData)
		}
		it.curXorBits = uint8(nbRaw)
	}

	return it, nil
}

// Next returns the next row in reverse order: (value, isNull, ok, err).
// Same ok/ErrOutOfSync semantics as ForwardIter.Next.
func (it *ReverseIter) Next() (uint64, bool, bool, error) {
	if it.remaining <= 0 {
		if it.moreRowsAvailable() {
			return 0, false, false, fmt.Errorf("%w: gorilla column has more rows than the declared count", errs.ErrOutOfSync)
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

	t0, ok := it.tag0.Next()
	if !ok {
		return 0, false, false, fmt.Errorf("%w: tag0 stream exhausted", errs.ErrCorruptedData)
	}

	switch t0 {
	case 0:
		return it.curValue, false, true, nil
	case 1:
		t1, ok := it.tag1.Next()
		if !ok {
			return 0, false, false, fmt.Errorf("%w: tag1 stream exhausted", errs.ErrCorruptedData)
		}

		var lz, xorBits uint8
		switch t1 {
		case 1:
			lz, xorBits = it.curLeading, it.curXorBits
			lzRaw, lzOK := it.lz.Next(6)
			nbRaw, nbOK := it.numBitsUsed.Next()
			if lzOK {
				it.curLeading = uint8(lzRaw)
			}
			if nbOK {
				if nbRaw > 64 || lzRaw+nbRaw > 64 {
					return 0, false, false, fmt.Errorf("%w: leading_zeros/num_bits_used out of range", errs.ErrCorruptedData)
				}
				it.curXorBits = uint8(nbRaw)
			}
		case 0:
			lz, xorBits = it.curLeading, it.curXorBits
		default:
			return 0, false, false, fmt.Errorf("%w: tag1 bit not in {0,1}", errs.ErrCorruptedData)
		}

		xorRaw, ok := it.xors.Next(int(xorBits))
		if !ok {
			return 0, false, false, fmt.Errorf("%w: xors stream exhausted", errs.ErrCorruptedData)
		}

		shift := 64 - int(lz) - int(xorBits)
		var xor uint64
		if shift < 64 {
			xor = xorRaw << uint(shift)
		}

		value := it.curValue
		it.curValue ^= xor

		return value, false, true, nil
	default:
		return 0, false, false, fmt.Errorf("%w: tag0 bit not in {0,1}", errs.ErrCorruptedData)
	}
}

// moreRowsAvailable mirrors ForwardIter.moreRowsAvailable for the reverse
// cursor direction.
func (it *ReverseIter) moreRowsAvailable() bool {
	if it.d.hasNulls {
		_, ok := it.nulls.Next()
		return ok
	}

	_, ok := it.tag0.Next()
	return ok
}

// Send writes the network wire form: has_nulls, last_value, then each
// sub-stream self-framed with its own length (and, for the two
// bit_array streams, bucket count/bits-used-in-last-bucket) since the
// wire message carries no shared header to hoist that metadata into.
func Send(d *Decompressor) []byte {
	engine := endian.GetLittleEndianEngine()

	buf := make([]byte, 0, 64)
	if d.hasNulls {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = engine.AppendUint64(buf, d.lastValue)

	buf = appendFramedSimple8bBlob(buf, engine, d.tag0)
	buf = appendFramedSimple8bBlob(buf, engine, d.tag1)
	buf = appendFramedBitArray(buf, engine, d.leadingZeros)
	buf = appendFramedSimple8bBlob(buf, engine, d.numBitsUsed)
	buf = appendFramedBitArray(buf, engine, d.xors)
	if d.hasNulls {
		buf = appendFramedSimple8bBlob(buf, engine, d.nulls)
	}

	return buf
}

// appendFramedSimple8bBlob re-serializes an already-decoded simple8b
// stream for the wire form (Send has no Encoder, only a Decoder, since it
// operates on an already-parsed blob).
func appendFramedSimple8bBlob(buf []byte, engine endian.EndianEngine, dec *simple8b.Decoder) []byte {
	data := dec.DecodeAllForward()

	enc := simple8b.New()
	for _, v := range data {
		// DecodeAllForward already validated these values came from a
		// well-formed stream, so re-encoding cannot overflow.
		_ = enc.Append(v)
	}

	return appendFramedSimple8b(buf, engine, enc)
}

func readFramedBitArray(blob []byte, offset int) (*bitarray.Array, int, error) {
	if offset+5 > len(blob) {
		return nil, 0, fmt.Errorf("%w: truncated bit_array frame", errs.ErrCorruptedData)
	}

	engine := endian.GetLittleEndianEngine()
	numWords := engine.Uint32(blob[offset : offset+4])
	bitsUsed := blob[offset+4]
	offset += 5

	byteLen := int(numWords) * 8
	if offset+byteLen > len(blob) {
		return nil, 0, fmt.Errorf("%w: truncated bit_array payload", errs.ErrCorruptedData)
	}

	words, err := bitarray.WordsFromBytes(blob[offset : offset+byteLen])
	if err != nil {
		return nil, 0, err
	}

	arr, err := bitarray.Wrap(numWords, bitsUsed, words)
	if err != nil {
		return nil, 0, err
	}

	return arr, offset + byteLen, nil
}

// Recv parses a wire message produced by Send and reconstructs the
// at-rest blob bytes, ready to be passed to Parse.
func Recv(wire []byte) ([]byte, error) {
	if len(wire) < 1+8 {
		return nil, fmt.Errorf("%w: gorilla wire message too short", errs.ErrCorruptedData)
	}
	if wire[0] > 1 {
		return nil, fmt.Errorf("%w: has_nulls byte out of range", errs.ErrCorruptedData)
	}

	hasNulls := wire[0] == 1
	engine := endian.GetLittleEndianEngine()
	lastValue := engine.Uint64(wire[1:9])
	offset := 9

	tag0, offset, err := readFramedSimple8b(wire, offset)
	if err != nil {
		return nil, err
	}
	tag1, offset, err := readFramedSimple8b(wire, offset)
	if err != nil {
		return nil, err
	}
	leadingZeros, offset, err := readFramedBitArray(wire, offset)
	if err != nil {
		return nil, err
	}
	numBitsUsed, offset, err := readFramedSimple8b(wire, offset)
	if err != nil {
		return nil, err
	}
	xors, offset, err := readFramedBitArray(wire, offset)
	if err != nil {
		return nil, err
	}

	var nulls *simple8b.Decoder
	if hasNulls {
		nulls, offset, err = readFramedSimple8b(wire, offset)
		if err != nil {
			return nil, err
		}
	}
	if offset != len(wire) {
		return nil, fmt.Errorf("%w: trailing bytes after gorilla wire message", errs.ErrCorruptedData)
	}

	buf := make([]byte, 0, blobHeaderSize)
	buf = append(buf, AlgorithmID)
	if hasNulls {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, xors.BitsUsedInLastWord())
	buf = append(buf, leadingZeros.BitsUsedInLastWord())
	buf = engine.AppendUint32(buf, leadingZeros.NumWords())
	buf = engine.AppendUint32(buf, xors.NumWords())
	buf = engine.AppendUint64(buf, lastValue)

	buf = appendFramedSimple8bBlob(buf, engine, tag0)
	buf = appendFramedSimple8bBlob(buf, engine, tag1)
	buf = append(buf, leadingZeros.Bytes()...)
	buf = appendFramedSimple8bBlob(buf, engine, numBitsUsed)
	buf = append(buf, xors.Bytes()...)
	if hasNulls {
		buf = appendFramedSimple8bBlob(buf, engine, nulls)
	}

	return buf, nil
}
