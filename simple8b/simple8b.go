// Package simple8b implements the Simple8b-RLE variable-width integer
// packing substrate shared by every codec that needs a compact run of
// small unsigned values: Gorilla's tag0/tag1/num-bits-used/nulls
// streams (package gorilla) and the registry's Dictionary codec's code
// stream both sit on top of this package.
//
// Sixteen selectors describe how many items are packed into a 64-bit word
// and how many bits each occupies; the two 0-bit selectors (240 and 120
// items) only ever encode runs of the value zero and serve as the RLE
// fast path the package name refers to — an all-zero tag or null bitmap
// compresses to one word per full run of 240 rows; a shorter tail is packed
// with the selectors whose item counts it fills exactly.
package simple8b

import (
	"fmt"

	"github.com/tsdbcompress/columnar/endian"
	"github.com/tsdbcompress/columnar/errs"
)

type selectorDef struct {
	items int
	bits  uint
}

// selectors is the canonical Simple8b table: 16 entries, selector value
// is the table index, stored in the top 4 bits of each packed word.
var selectors = [16]selectorDef{
	{240, 0},
	{120, 0},
	{60, 1},
	{30, 2},
	{20, 3},
	{15, 4},
	{12, 5},
	{10, 6},
	{8, 7},
	{7, 8},
	{6, 10},
	{5, 12},
	{4, 15},
	{3, 20},
	{2, 30},
	{1, 60},
}

const maxValue = uint64(1) << 60

func fitsIn(bits uint, v uint64) bool {
	if bits == 0 {
		return v == 0
	}

	return v < (uint64(1) << bits)
}

// Encoder packs a stream of unsigned integers, each < 2^60, into
// Simple8b-RLE words.
type Encoder struct {
	pending []uint64
	words   []uint64
	done    bool
}

// New returns an empty Encoder.
func New() *Encoder {
	return &Encoder{}
}

// Append adds a single value to the stream. v must be less than 2^60.
func (e *Encoder) Append(v uint64) error {
	if e.done {
		return fmt.Errorf("%w: simple8b encoder", errs.ErrEncoderFinished)
	}
	if v >= maxValue {
		return fmt.Errorf("%w: simple8b value %d exceeds 60 bits", errs.ErrOverflow, v)
	}

	e.pending = append(e.pending, v)
	for len(e.pending) >= selectors[0].items {
		e.flushOne()
	}

	return nil
}

func (e *Encoder) chooseSelector() (sel int, items int) {
	for s, def := range selectors {
		if len(e.pending) < def.items {
			continue
		}

		ok := true
		for _, v := range e.pending[:def.items] {
			if !fitsIn(def.bits, v) {
				ok = false

				break
			}
		}
		if ok {
			return s, def.items
		}
	}

	// The bits=60, items=1 selector always fits a single value < 2^60.
	return 15, 1
}

func (e *Encoder) flushOne() {
	sel, items := e.chooseSelector()
	def := selectors[sel]

	word := uint64(sel) << 60
	if def.bits > 0 {
		for i := 0; i < items; i++ {
			word |= e.pending[i] << (uint(i) * def.bits)
		}
	}

	e.words = append(e.words, word)
	e.pending = e.pending[items:]
}

// Finish flushes any buffered values and serializes the stream to bytes
// (len(words)*8, little-endian). The Encoder must not be used afterward.
func (e *Encoder) Finish() []byte {
	for len(e.pending) > 0 {
		e.flushOne()
	}
	e.done = true

	engine := endian.GetLittleEndianEngine()
	out := make([]byte, len(e.words)*8)
	for i, w := range e.words {
		engine.PutUint64(out[i*8:i*8+8], w)
	}

	return out
}

// NumWords reports how many 64-bit words Finish will need for the values
// appended so far (the buffered tail counts as one more word), useful for
// blob headers that must record bucket counts ahead of serialization.
func (e *Encoder) NumWords() int {
	n := len(e.words)
	if len(e.pending) > 0 {
		n++
	}

	return n
}

// Decoder reads a previously serialized Simple8b-RLE word stream.
type Decoder struct {
	words []uint64
}

// Wrap attaches a Decoder to a serialized byte stream without copying the
// decoded values (it decodes words, not raw bytes, so a small copy into a
// []uint64 view happens once here).
func Wrap(raw []byte) (*Decoder, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%w: simple8b stream length %d not a multiple of 8", errs.ErrCorruptedData, len(raw))
	}

	engine := endian.GetLittleEndianEngine()
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = engine.Uint64(raw[i*8 : i*8+8])
	}

	return &Decoder{words: words}, nil
}

func decodeItem(word uint64, bits uint, idx int) uint64 {
	if bits == 0 {
		return 0
	}

	shift := uint(idx) * bits

	return (word >> shift) & ((uint64(1) << bits) - 1)
}

// ForwardCursor reads values in append order.
type ForwardCursor struct {
	words    []uint64
	wordIdx  int
	itemIdx  int
	curItems int
	curBits  uint
	curWord  uint64
}

// IterForward returns a cursor starting at the first appended value.
func (d *Decoder) IterForward() *ForwardCursor {
	return &ForwardCursor{words: d.words}
}

// Next returns the next decoded value, or ok=false once the stream is
// exhausted.
func (c *ForwardCursor) Next() (uint64, bool) {
	if c.itemIdx >= c.curItems {
		if c.wordIdx >= len(c.words) {
			return 0, false
		}

		w := c.words[c.wordIdx]
		c.wordIdx++
		sel := int(w >> 60)
		def := selectors[sel]
		c.curWord = w
		c.curItems = def.items
		c.curBits = def.bits
		c.itemIdx = 0
	}

	v := decodeItem(c.curWord, c.curBits, c.itemIdx)
	c.itemIdx++

	return v, true
}

// ReverseCursor reads values in reverse append order.
type ReverseCursor struct {
	words    []uint64
	wordIdx  int // one past the next word to consume
	itemIdx  int // next item index to emit within the current word, -1 once exhausted
	curItems int
	curBits  uint
	curWord  uint64
}

// IterReverse returns a cursor starting at the last appended value.
func (d *Decoder) IterReverse() *ReverseCursor {
	return &ReverseCursor{words: d.words, wordIdx: len(d.words), itemIdx: -1}
}

// Next returns the previous decoded value, or ok=false once exhausted.
func (c *ReverseCursor) Next() (uint64, bool) {
	if c.itemIdx < 0 {
		if c.wordIdx == 0 {
			return 0, false
		}

		c.wordIdx--
		w := c.words[c.wordIdx]
		sel := int(w >> 60)
		def := selectors[sel]
		c.curWord = w
		c.curItems = def.items
		c.curBits = def.bits
		c.itemIdx = def.items - 1
	}

	v := decodeItem(c.curWord, c.curBits, c.itemIdx)
	c.itemIdx--

	return v, true
}

// DecodeAllForward decodes the entire stream into a slice, for bulk
// consumers (the arrow-backed columnar decode path) that want every value
// at once rather than one at a time.
func (d *Decoder) DecodeAllForward() []uint64 {
	out := make([]uint64, 0, len(d.words))
	cur := d.IterForward()
	for {
		v, ok := cur.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}

	return out
}
