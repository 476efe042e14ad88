package batchexec

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	arrowarray "github.com/apache/arrow/go/v18/arrow/array"

	"github.com/tsdbcompress/columnar/blob"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/registry"
	"github.com/tsdbcompress/columnar/rowcompress"
	"github.com/tsdbcompress/columnar/toast"
)

// CompressedRowSource yields one compressed row at a time, the shape a
// scan of the compressed table presents to the executor.
type CompressedRowSource interface {
	Next() (rowcompress.CompressedRow, bool, error)
}

type executorState int

const (
	stateUninitialized executorState = iota
	stateReady
)

// Executor is the streaming-scan operator between a compressed-table
// scan and its decompressed tuple stream. Each batch corresponds to one
// CompressedRow; per-column state (bulk arrow arrays, row iterators) is
// rebuilt fresh every batch transition and discarded at the next, so no
// state leaks from one batch into another.
type Executor struct {
	columns []rowcompress.ColumnInfo
	source  CompressedRowSource
	reverse bool

	state     executorState
	segmentBy []any
	total     int32
	cursor    int32
	bulk      map[string]arrow.Array
	iters     map[string]registry.RowIterator
}

// NewExecutor returns an executor scanning source's compressed rows,
// decompressing them according to columns. reverse selects reverse-order
// materialization within each batch (forward-only columns fail the batch
// with ErrUnsupportedType if reverse is requested).
func NewExecutor(columns []rowcompress.ColumnInfo, source CompressedRowSource, reverse bool) *Executor {
	return &Executor{columns: columns, source: source, reverse: reverse}
}

// Next returns the next decompressed tuple, or ok=false at end of
// stream.
func (e *Executor) Next() ([]any, bool, error) {
	for {
		switch e.state {
		case stateReady:
			if e.cursor >= e.total {
				e.state = stateUninitialized
				e.bulk = nil
				e.iters = nil

				continue
			}

			tuple, err := e.materialize()
			if err != nil {
				return nil, false, err
			}
			e.cursor++

			return tuple, true, nil

		case stateUninitialized:
			row, ok, err := e.source.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}

			if err := e.beginBatch(row); err != nil {
				return nil, false, err
			}
			e.state = stateReady
		}
	}
}

func (e *Executor) beginBatch(row rowcompress.CompressedRow) error {
	e.segmentBy = row.SegmentBy
	e.total = row.Count
	e.cursor = 0
	e.bulk = make(map[string]arrow.Array)
	e.iters = make(map[string]registry.RowIterator)

	for _, col := range e.columns {
		if col.Kind == rowcompress.SegmentBy {
			continue
		}

		stored, ok := row.Blobs[col.Name]
		if !ok {
			return fmt.Errorf("%w: compressed row missing blob for column %q", errs.ErrCorruptedData, col.Name)
		}

		wrapped, err := toast.Unpack(stored)
		if err != nil {
			return err
		}

		codecBlob, err := blob.Unwrap(wrapped)
		if err != nil {
			return err
		}

		algID, err := blob.PeekAlgorithmID(codecBlob)
		if err != nil {
			return err
		}
		if algID != col.Algorithm {
			return fmt.Errorf("%w: column %q expected algorithm %d, blob has %d", errs.ErrInvalidAlgorithmID, col.Name, col.Algorithm, algID)
		}

		def, err := registry.Get(algID)
		if err != nil {
			return err
		}

		if !e.reverse {
			arr, ok, err := def.DecompressAllForward(codecBlob, col.ElemType, int(e.total))
			if err != nil {
				return err
			}
			if ok {
				e.bulk[col.Name] = arr

				continue
			}
		}

		var it registry.RowIterator
		if e.reverse {
			if def.IterReverse == nil {
				return fmt.Errorf("%w: column %q's codec has no reverse cursor", errs.ErrUnsupportedType, col.Name)
			}
			it, err = def.IterReverse(codecBlob, col.ElemType, int(e.total))
		} else {
			it, err = def.IterForward(codecBlob, col.ElemType, int(e.total))
		}
		if err != nil {
			return err
		}

		e.iters[col.Name] = it
	}

	return nil
}

func (e *Executor) materialize() ([]any, error) {
	tuple := make([]any, len(e.columns))

	idx := int(e.cursor)
	if e.reverse {
		idx = int(e.total) - 1 - idx
	}
	last := e.cursor == e.total-1

	segIdx := 0
	for i, col := range e.columns {
		switch col.Kind {
		case rowcompress.SegmentBy:
			tuple[i] = e.segmentBy[segIdx]
			segIdx++
		default:
			if arr, ok := e.bulk[col.Name]; ok {
				if arr.IsNull(idx) {
					tuple[i] = nil
				} else {
					tuple[i] = arrowValueAt(arr, idx)
				}

				continue
			}

			it := e.iters[col.Name]
			v, isNull, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: column %q exhausted before declared row count %d", errs.ErrOutOfSync, col.Name, e.total)
			}
			if isNull {
				tuple[i] = nil
			} else {
				tuple[i] = v
			}
		}
	}

	if last {
		if err := e.verifyExhausted(); err != nil {
			return nil, err
		}
	}

	return tuple, nil
}

// verifyExhausted draws one more row from every non-bulk column's
// iterator after the last row of the batch has been materialized,
// confirming each reports itself done — catching a declared row count
// that undercounts what a column's blob actually encodes.
func (e *Executor) verifyExhausted() error {
	for name, it := range e.iters {
		_, _, ok, err := it.Next()
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: column %q has more rows than declared count %d", errs.ErrOutOfSync, name, e.total)
		}
	}

	return nil
}

// arrowValueAt expands a 64-bit validity-bitmap-backed arrow array's row
// directly off its typed accessor.
func arrowValueAt(arr arrow.Array, idx int) any {
	switch a := arr.(type) {
	case *arrowarray.Int32:
		return a.Value(idx)
	case *arrowarray.Int64:
		return a.Value(idx)
	case *arrowarray.Float32:
		return a.Value(idx)
	case *arrowarray.Float64:
		return a.Value(idx)
	default:
		return nil
	}
}
