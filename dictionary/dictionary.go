// Package dictionary implements the "Dictionary" codec (algorithm ID 2):
// a value-to-code interning map for low-cardinality string columns, plus
// a code stream packed through the same Simple8b-RLE substrate Gorilla
// uses for its tag streams. The null-bitmap-alongside-the-value-stream
// shape matches Gorilla's own nulls stream rather than inventing a
// different null convention for this codec.
package dictionary

import (
	"fmt"

	"github.com/tsdbcompress/columnar/endian"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/internal/pool"
	"github.com/tsdbcompress/columnar/simple8b"
)

// AlgorithmID is the 1-byte algorithm tag for Dictionary blobs.
// Dictionary is defined over string-valued columns only.
const AlgorithmID = 2

// Compressor interns appended strings into a dictionary and records the
// per-row code stream.
type Compressor struct {
	hasNulls bool
	index    map[string]uint64
	dict     []string
	codes    *simple8b.Encoder
	nulls    *simple8b.Encoder
	done     bool
}

// NewCompressor returns an empty Compressor.
func NewCompressor() *Compressor {
	return &Compressor{index: make(map[string]uint64), codes: simple8b.New(), nulls: simple8b.New()}
}

// AppendValue appends one non-null string value.
func (c *Compressor) AppendValue(v any) error {
	if c.done {
		return fmt.Errorf("%w: dictionary compressor", errs.ErrEncoderFinished)
	}

	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: dictionary expects string, got %T", errs.ErrUnsupportedType, v)
	}

	if err := c.nulls.Append(0); err != nil {
		return err
	}

	code, known := c.index[s]
	if !known {
		code = uint64(len(c.dict))
		c.dict = append(c.dict, s)
		c.index[s] = code
	}

	return c.codes.Append(code)
}

// AppendNull appends a null row: only the nulls stream advances, no code
// is emitted, exactly as Gorilla's AppendNull leaves its other streams
// untouched.
func (c *Compressor) AppendNull() error {
	if c.done {
		return fmt.Errorf("%w: dictionary compressor", errs.ErrEncoderFinished)
	}

	c.hasNulls = true

	return c.nulls.Append(1)
}

// Finish serializes the blob: algorithm_id, has_nulls, nulls bitmap
// (framed), dictionary size and entries, then the code stream (framed).
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

	nullsBytes := c.nulls.Finish()
	buf = engine.AppendUint32(buf, uint32(len(nullsBytes))) //nolint:gosec // bounded stream sizes
	buf = append(buf, nullsBytes...)

	buf = engine.AppendUint32(buf, uint32(len(c.dict))) //nolint:gosec // dictionary bounded by row count
	for _, s := range c.dict {
		buf = engine.AppendUint32(buf, uint32(len(s))) //nolint:gosec // string length bounded by blob max
		buf = append(buf, s...)
	}

	codesBytes := c.codes.Finish()
	buf = engine.AppendUint32(buf, uint32(len(codesBytes))) //nolint:gosec // bounded stream sizes
	buf = append(buf, codesBytes...)

	out := make([]byte, len(buf))
	copy(out, buf)

	c.done = true

	return out
}

// Decompressor parses a Dictionary blob and drives forward iteration.
type Decompressor struct {
	hasNulls bool
	dict     []string
	codes    *simple8b.Decoder
	nulls    *simple8b.Decoder
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

// Parse validates and parses the at-rest Dictionary blob layout.
func Parse(blob []byte) (*Decompressor, error) {
	if len(blob) < 2 {
		return nil, fmt.Errorf("%w: dictionary blob shorter than header", errs.ErrCorruptedData)
	}
	if blob[0] != AlgorithmID {
		return nil, fmt.Errorf("%w: expected algorithm id %d, got %d", errs.ErrInvalidAlgorithmID, AlgorithmID, blob[0])
	}
	if blob[1] > 1 {
		return nil, fmt.Errorf("%w: has_nulls byte out of range", errs.ErrCorruptedData)
	}
	hasNulls := blob[1] == 1

	nulls, offset, err := readFramedSimple8b(blob, 2)
	if err != nil {
		return nil, err
	}

	engine := endian.GetLittleEndianEngine()
	if offset+4 > len(blob) {
		return nil, fmt.Errorf("%w: truncated dictionary size", errs.ErrCorruptedData)
	}
	dictSize := int(engine.Uint32(blob[offset : offset+4]))
	offset += 4

	dict := make([]string, dictSize)
	for i := 0; i < dictSize; i++ {
		if offset+4 > len(blob) {
			return nil, fmt.Errorf("%w: truncated dictionary entry length", errs.ErrCorruptedData)
		}
		strLen := int(engine.Uint32(blob[offset : offset+4]))
		offset += 4
		if strLen < 0 || offset+strLen > len(blob) {
			return nil, fmt.Errorf("%w: truncated dictionary entry", errs.ErrCorruptedData)
		}
		dict[i] = string(blob[offset : offset+strLen])
		offset += strLen
	}

	codes, offset, err := readFramedSimple8b(blob, offset)
	if err != nil {
		return nil, err
	}

	if offset != len(blob) {
		return nil, fmt.Errorf("%w: trailing bytes after dictionary blob", errs.ErrCorruptedData)
	}

	return &Decompressor{hasNulls: hasNulls, dict: dict, codes: codes, nulls: nulls}, nil
}

// ForwardIter reads N rows in append order.
type ForwardIter struct {
	d         *Decompressor
	codes     *simple8b.ForwardCursor
	nulls     *simple8b.ForwardCursor
	remaining int
}

// IterForward returns a forward iterator over n rows.
func (d *Decompressor) IterForward(n int) *ForwardIter {
	it := &ForwardIter{d: d, codes: d.codes.IterForward(), remaining: n}
	if d.hasNulls {
		it.nulls = d.nulls.IterForward()
	}

	return it
}

// Next returns the next row: (value, isNull, ok, err). ok is false once n
// rows have been drawn; calling Next() again past that point reports
// ErrOutOfSync if the underlying stream still has data left, catching a
// declared row count that undercounts what was actually encoded.
func (it *ForwardIter) Next() (string, bool, bool, error) {
	if it.remaining <= 0 {
		if it.moreRowsAvailable() {
			return "", false, false, fmt.Errorf("%w: dictionary column has more rows than the declared count", errs.ErrOutOfSync)
		}

		return "", false, false, nil
	}
	it.remaining--

	if it.d.hasNulls {
		nb, ok := it.nulls.Next()
		if !ok {
			return "", false, false, fmt.Errorf("%w: nulls stream exhausted", errs.ErrCorruptedData)
		}
		if nb == 1 {
			return "", true, true, nil
		}
		if nb != 0 {
			return "", false, false, fmt.Errorf("%w: nulls bit not in {0,1}", errs.ErrCorruptedData)
		}
	}

	code, ok := it.codes.Next()
	if !ok {
		return "", false, false, fmt.Errorf("%w: code stream exhausted", errs.ErrCorruptedData)
	}
	if code >= uint64(len(it.d.dict)) {
		return "", false, false, fmt.Errorf("%w: dictionary code %d out of range", errs.ErrCorruptedData, code)
	}

	return it.d.dict[code], false, true, nil
}

// moreRowsAvailable reports whether the stream that carries exactly one
// entry per row (nulls if present, codes otherwise) has data beyond what
// this iterator's row budget has drawn.
func (it *ForwardIter) moreRowsAvailable() bool {
	if it.d.hasNulls {
		_, ok := it.nulls.Next()
		return ok
	}

	_, ok := it.codes.Next()
	return ok
}
