package rowcompress

import (
	"fmt"

	"github.com/tsdbcompress/columnar/blob"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/registry"
	"github.com/tsdbcompress/columnar/toast"
)

// Direction selects which cursor a TupleIterator draws rows through.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// TupleIterator reconstructs uncompressed tuples from one CompressedRow,
// one registry.RowIterator per non-SEGMENT_BY column, all advanced in
// lockstep.
type TupleIterator struct {
	columns   []ColumnInfo
	segmentBy []any
	iters     map[string]registry.RowIterator
	count     int32
	drawn     int32
}

// NewTupleIterator builds a row decompressor over one CompressedRow. dir
// selects forward or reverse iteration for every column; a column whose
// codec has no reverse cursor makes Reverse fail immediately.
func NewTupleIterator(row CompressedRow, columns []ColumnInfo, dir Direction) (*TupleIterator, error) {
	if err := Validate(append([]ColumnInfo{}, columns...)); err != nil {
		return nil, err
	}

	ti := &TupleIterator{
		columns:   columns,
		segmentBy: row.SegmentBy,
		iters:     make(map[string]registry.RowIterator),
		count:     row.Count,
	}

	n := int(row.Count)
	for _, col := range columns {
		if col.Kind == SegmentBy {
			continue
		}

		stored, ok := row.Blobs[col.Name]
		if !ok {
			return nil, fmt.Errorf("%w: compressed row missing blob for column %q", errs.ErrCorruptedData, col.Name)
		}

		wrapped, err := toast.Unpack(stored)
		if err != nil {
			return nil, err
		}

		codecBlob, err := blob.Unwrap(wrapped)
		if err != nil {
			return nil, err
		}

		algID, err := blob.PeekAlgorithmID(codecBlob)
		if err != nil {
			return nil, err
		}
		if algID != col.Algorithm {
			return nil, fmt.Errorf("%w: column %q expected algorithm %d, blob has %d", errs.ErrInvalidAlgorithmID, col.Name, col.Algorithm, algID)
		}

		def, err := registry.Get(algID)
		if err != nil {
			return nil, err
		}

		var it registry.RowIterator
		switch dir {
		case Forward:
			it, err = def.IterForward(codecBlob, col.ElemType, n)
		case Reverse:
			if def.IterReverse == nil {
				return nil, fmt.Errorf("%w: column %q's codec has no reverse cursor", errs.ErrUnsupportedType, col.Name)
			}
			it, err = def.IterReverse(codecBlob, col.ElemType, n)
		default:
			return nil, fmt.Errorf("%w: unknown iteration direction", errs.ErrUnsupportedType)
		}
		if err != nil {
			return nil, err
		}

		ti.iters[col.Name] = it
	}

	return ti, nil
}

// Next returns the next uncompressed tuple, positionally aligned with the
// column list passed to NewTupleIterator, and whether a tuple was
// produced. Once Count tuples have been drawn it returns (nil, false,
// nil) — but only after confirming every column's iterator also reports
// itself exhausted at that point; a column blob encoding more rows than
// Count claims surfaces as ErrOutOfSync instead of being silently
// truncated.
func (ti *TupleIterator) Next() ([]any, bool, error) {
	if ti.drawn >= ti.count {
		return nil, false, nil
	}

	tuple := make([]any, len(ti.columns))
	for i, col := range ti.columns {
		if col.Kind == SegmentBy {
			tuple[i] = ti.segmentByValue(col.Name)

			continue
		}

		it := ti.iters[col.Name]
		v, isNull, ok, err := it.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, fmt.Errorf("%w: column %q exhausted before declared row count %d (drawn %d)", errs.ErrOutOfSync, col.Name, ti.count, ti.drawn)
		}
		if isNull {
			tuple[i] = nil

			continue
		}

		tuple[i] = v
	}
	ti.drawn++

	if ti.drawn == ti.count {
		if err := ti.verifyExhausted(); err != nil {
			return nil, false, err
		}
	}

	return tuple, true, nil
}

// verifyExhausted draws one more row from every non-SEGMENT BY column's
// iterator and confirms each reports itself done, catching a declared
// Count that undercounts what a column's blob actually encodes.
func (ti *TupleIterator) verifyExhausted() error {
	for name, it := range ti.iters {
		_, _, ok, err := it.Next()
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: column %q has more rows than declared count %d", errs.ErrOutOfSync, name, ti.count)
		}
	}

	return nil
}

// segmentByValue looks up a SEGMENT BY column's constant value by column
// name; the RowCompressor's segmentKey slice is parallel to the SegmentBy
// columns in column-list order.
func (ti *TupleIterator) segmentByValue(name string) any {
	idx := 0
	for _, col := range ti.columns {
		if col.Kind != SegmentBy {
			continue
		}
		if col.Name == name {
			return ti.segmentBy[idx]
		}
		idx++
	}

	return nil
}

// Remaining reports how many tuples are left to draw.
func (ti *TupleIterator) Remaining() int32 {
	return ti.count - ti.drawn
}
