package gorilla

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"github.com/tsdbcompress/columnar/errs"
)

// decodeAllForward drains n rows off it into appendValue/appendNull, then draws once more to
// confirm the blob doesn't encode additional rows beyond n.
func decodeAllForward(it *ForwardIter, n int, appendValue func(uint64), appendNull func()) error {
	for i := 0; i < n; i++ {
		v, isNull, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: gorilla column exhausted before declared row count %d", errs.ErrOutOfSync, n)
		}
		if isNull {
			appendNull()

			continue
		}
		appendValue(v)
	}

	if _, _, ok, err := it.Next(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: gorilla column has more rows than declared count %d", errs.ErrOutOfSync, n)
	}

	return nil
}

// DecodeAllForwardInt32 materializes n rows as an arrow Int32 array in a
// single pass, for the batch executor's bulk column path (32- and 64-bit
// element widths only). Output is bit-identical to row-by-row forward
// decode; it is built on top of the same ForwardIter rather than a
// hand-unrolled lane decode so the two paths cannot drift apart.
func (d *Decompressor) DecodeAllForwardInt32(n int) (*array.Int32, error) {
	it := d.IterForward(n)
	b := array.NewInt32Builder(memory.DefaultAllocator)
	defer b.Release()

	err := decodeAllForward(it, n,
		func(v uint64) { b.Append(int32(uint32(v))) }, //nolint:gosec // raw bit pattern, truncation intentional
		b.AppendNull,
	)
	if err != nil {
		return nil, err
	}

	return b.NewInt32Array(), nil
}

// DecodeAllForwardInt64 is the 64-bit sibling of DecodeAllForwardInt32.
func (d *Decompressor) DecodeAllForwardInt64(n int) (*array.Int64, error) {
	it := d.IterForward(n)
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()

	err := decodeAllForward(it, n,
		func(v uint64) { b.Append(int64(v)) }, //nolint:gosec // raw bit pattern
		b.AppendNull,
	)
	if err != nil {
		return nil, err
	}

	return b.NewInt64Array(), nil
}

// DecodeAllForwardFloat32 decodes n rows as an arrow Float32 array,
// reinterpreting each raw uint64 pattern's low 32 bits as an IEEE-754
// float32.
func (d *Decompressor) DecodeAllForwardFloat32(n int) (*array.Float32, error) {
	it := d.IterForward(n)
	b := array.NewFloat32Builder(memory.DefaultAllocator)
	defer b.Release()

	err := decodeAllForward(it, n,
		func(v uint64) { b.Append(math.Float32frombits(uint32(v))) },
		b.AppendNull,
	)
	if err != nil {
		return nil, err
	}

	return b.NewFloat32Array(), nil
}

// DecodeAllForwardFloat64 decodes n rows as an arrow Float64 array,
// reinterpreting each raw uint64 pattern as an IEEE-754 float64.
func (d *Decompressor) DecodeAllForwardFloat64(n int) (*array.Float64, error) {
	it := d.IterForward(n)
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()

	err := decodeAllForward(it, n,
		func(v uint64) { b.Append(math.Float64frombits(v)) },
		b.AppendNull,
	)
	if err != nil {
		return nil, err
	}

	return b.NewFloat64Array(), nil
}
