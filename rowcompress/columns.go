// Package rowcompress implements the row compressor and row
// decompressor: the row compressor groups sorted input tuples into
// segments, drives one registry.Compressor per column, and emits one
// CompressedRow per flush; the row decompressor does the inverse,
// materializing uncompressed tuples one at a time from a CompressedRow's
// per-column iterators.
package rowcompress

import (
	"fmt"

	"github.com/tsdbcompress/columnar/blob"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/minmax"
)

// ColumnKind classifies an uncompressed column's role in the compressed
// table layout.
type ColumnKind int

const (
	SegmentBy ColumnKind = iota
	OrderBy
	Value
)

// ColumnInfo describes one uncompressed column's role, storage and (for
// ORDER BY) sort metadata. The order of a []ColumnInfo slice is the
// canonical column order used to index uncompressed row tuples ([]any)
// throughout this package.
type ColumnInfo struct {
	Name string
	Kind ColumnKind

	// Algorithm and ElemType apply to OrderBy and Value columns: which
	// codec compresses this column's blob, and what raw element width it
	// operates over (ignored by the Dictionary codec, which is string-only).
	Algorithm blob.AlgorithmID
	ElemType  format.ElementType

	// Compare orders this column's Datums for the min/max builder; required
	// for every OrderBy column (Validate rejects one without it).
	Compare minmax.CompareFunc
	// TrackMinMax requests a per-segment (min, max) pair be recorded for
	// this ORDER BY column. The first ORDER BY column's min/max is
	// mandatory; later ones are optional and may clear this.
	TrackMinMax bool

	// Asc and NullsFirst are carried for the batch executor's merge
	// comparator; the row compressor itself does not sort.
	Asc        bool
	NullsFirst bool
}

// Validate checks a column-info list is usable: every ORDER BY column
// carries a comparator, at least one ORDER BY column exists, and the
// first ORDER BY column tracks min/max.
func Validate(columns []ColumnInfo) error {
	seenOrderBy := false
	for i := range columns {
		col := &columns[i]
		switch col.Kind {
		case SegmentBy:
		case OrderBy:
			if col.Compare == nil {
				return fmt.Errorf("%w: order-by column %q missing a CompareFunc", errs.ErrUnsupportedType, col.Name)
			}
			if !seenOrderBy {
				col.TrackMinMax = true
			}
			seenOrderBy = true
		case Value:
		default:
			return fmt.Errorf("%w: column %q has unknown kind", errs.ErrUnsupportedType, col.Name)
		}
	}

	if !seenOrderBy {
		return fmt.Errorf("%w: column list has no ORDER BY column", errs.ErrUnsupportedType)
	}

	return nil
}
