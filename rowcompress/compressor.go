package rowcompress

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tsdbcompress/columnar/blob"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/internal/hash"
	"github.com/tsdbcompress/columnar/internal/options"
	"github.com/tsdbcompress/columnar/minmax"
	"github.com/tsdbcompress/columnar/registry"
	"github.com/tsdbcompress/columnar/toast"
)

// MaxRowsPerCompression is the default cap on uncompressed rows folded
// into one CompressedRow.
const MaxRowsPerCompression = 1000

// GlobalMaxRowsPerCompression is the ceiling tests may raise
// MaxRowsPerCompression to. Neither TupleIterator nor the batch executor
// checks a CompressedRow's declared Count against it.
const GlobalMaxRowsPerCompression = 1015

// SequenceNumGap is the per-flush increment reserved for later in-place
// insertions.
const SequenceNumGap = 10

// CompressedRow is one physical output row: segment-by scalars verbatim,
// one wrapped codec blob per ORDER BY/VALUE column, and the count/sequence
// metadata plus per-segment min/max.
type CompressedRow struct {
	SegmentBy   []any
	Blobs       map[string][]byte
	Count       int32
	SequenceNum int32
	MinMax      map[string][2]any
}

// RowCompressor groups sorted input tuples into segments and flushes one
// CompressedRow per open segment every MaxRowsPerCompression rows or on a
// segment-by change.
type RowCompressor struct {
	columns     []ColumnInfo
	maxRows     int32
	seqGap      int32
	startSeqNum int32
	toastMethod format.CompressionType

	open       bool
	segmentKey []any
	segmentSum uint64

	compressors map[string]registry.Compressor
	minmaxes    map[string]*minmax.Builder

	seqNum int32
	count  int32

	out []CompressedRow
}

// Option configures a RowCompressor at construction.
type Option = options.Option[*RowCompressor]

// WithMaxRowsPerCompression overrides MaxRowsPerCompression (tests use
// this to reach GlobalMaxRowsPerCompression).
func WithMaxRowsPerCompression(n int32) Option {
	return options.NoError(func(rc *RowCompressor) { rc.maxRows = n })
}

// WithSequenceGap overrides SequenceNumGap.
func WithSequenceGap(gap int32) Option {
	return options.NoError(func(rc *RowCompressor) { rc.seqGap = gap })
}

// WithStartSequenceNum overrides the sequence number a freshly opened
// segment starts at, for recompression continuing a pre-existing segment.
func WithStartSequenceNum(n int32) Option {
	return options.NoError(func(rc *RowCompressor) { rc.startSeqNum = n })
}

// WithToastMethod overrides the secondary compression algorithm tried for
// EXTENDED-preference columns (default format.CompressionZstd).
func WithToastMethod(method format.CompressionType) Option {
	return options.NoError(func(rc *RowCompressor) { rc.toastMethod = method })
}

// New returns a RowCompressor for the given column layout.
func New(columns []ColumnInfo, opts ...Option) (*RowCompressor, error) {
	if err := Validate(columns); err != nil {
		return nil, err
	}

	rc := &RowCompressor{
		columns:     columns,
		maxRows:     MaxRowsPerCompression,
		seqGap:      SequenceNumGap,
		startSeqNum: SequenceNumGap,
		toastMethod: format.CompressionZstd,
		compressors: make(map[string]registry.Compressor),
		minmaxes:    make(map[string]*minmax.Builder),
	}

	if err := options.Apply(rc, opts...); err != nil {
		return nil, err
	}

	return rc, nil
}

func segmentKeyHash(key []any) uint64 {
	var sb strings.Builder
	for _, v := range key {
		fmt.Fprintf(&sb, "%v\x00", v)
	}

	return hash.ID(sb.String())
}

func (rc *RowCompressor) sameSegment(key []any, sum uint64) bool {
	if sum != rc.segmentSum {
		return false
	}

	return reflect.DeepEqual(key, rc.segmentKey)
}

func (rc *RowCompressor) beginSegment(key []any, sum uint64, seqNum int32) error {
	rc.open = true
	rc.segmentKey = append([]any{}, key...)
	rc.segmentSum = sum
	rc.seqNum = seqNum
	rc.count = 0

	for i := range rc.columns {
		col := &rc.columns[i]
		if col.Kind == SegmentBy {
			continue
		}

		comp, err := registry.Get(col.Algorithm)
		if err != nil {
			return err
		}
		encoder, err := comp.MakeCompressor(col.ElemType)
		if err != nil {
			return err
		}
		rc.compressors[col.Name] = encoder

		if col.Kind == OrderBy && col.TrackMinMax {
			rc.minmaxes[col.Name] = minmax.New(col.Compare)
		}
	}

	return nil
}

// AppendRow appends one uncompressed tuple, positionally aligned with the
// column list passed to New. A nil entry means SQL NULL.
func (rc *RowCompressor) AppendRow(row []any) error {
	if len(row) != len(rc.columns) {
		return fmt.Errorf("%w: row has %d values, expected %d columns", errs.ErrCountMismatch, len(row), len(rc.columns))
	}

	var segKey []any
	for i, col := range rc.columns {
		if col.Kind == SegmentBy {
			segKey = append(segKey, row[i])
		}
	}
	segSum := segmentKeyHash(segKey)

	switch {
	case !rc.open:
		if err := rc.beginSegment(segKey, segSum, rc.startSeqNum); err != nil {
			return err
		}
	case !rc.sameSegment(segKey, segSum):
		if rc.count > 0 {
			row, err := rc.flushSegment()
			if err != nil {
				return err
			}
			rc.out = append(rc.out, row)
		}
		if err := rc.beginSegment(segKey, segSum, rc.startSeqNum); err != nil {
			return err
		}
	}

	for i, col := range rc.columns {
		switch col.Kind {
		case SegmentBy:
		case OrderBy:
			if row[i] == nil {
				return fmt.Errorf("%w: order-by column %q cannot be null", errs.ErrUnsupportedType, col.Name)
			}
			if err := rc.compressors[col.Name].AppendValue(row[i]); err != nil {
				return err
			}
			if col.TrackMinMax {
				rc.minmaxes[col.Name].Observe(row[i])
			}
		case Value:
			comp := rc.compressors[col.Name]
			if row[i] == nil {
				if err := comp.AppendNull(); err != nil {
					return err
				}
			} else if err := comp.AppendValue(row[i]); err != nil {
				return err
			}
		}
	}

	rc.count++
	if rc.count >= rc.maxRows {
		flushed, err := rc.flushSegment()
		if err != nil {
			return err
		}
		rc.out = append(rc.out, flushed)
		rc.seqNum += rc.seqGap
		rc.count = 0
		// Re-open the same segment's accumulators for the next run of rows.
		if err := rc.beginSegment(rc.segmentKey, rc.segmentSum, rc.seqNum); err != nil {
			return err
		}
	}

	return nil
}

// flushSegment materializes the currently accumulated rows into a
// CompressedRow without changing rc.seqNum; callers decide the next
// segment's starting sequence number.
func (rc *RowCompressor) flushSegment() (CompressedRow, error) {
	out := CompressedRow{
		SegmentBy:   append([]any{}, rc.segmentKey...),
		Blobs:       make(map[string][]byte),
		Count:       rc.count,
		SequenceNum: rc.seqNum,
	}

	for i := range rc.columns {
		col := &rc.columns[i]
		if col.Kind == SegmentBy {
			continue
		}

		codecBlob := rc.compressors[col.Name].Finish()
		wrapped, err := blob.Wrap(codecBlob)
		if err != nil {
			return CompressedRow{}, err
		}

		def, err := registry.Get(col.Algorithm)
		if err != nil {
			return CompressedRow{}, err
		}
		stored, err := toast.Pack(wrapped, def.Toast, rc.toastMethod)
		if err != nil {
			return CompressedRow{}, err
		}
		out.Blobs[col.Name] = stored

		if col.Kind == OrderBy && col.TrackMinMax {
			b := rc.minmaxes[col.Name]
			mn, ok := b.Min()
			if !ok {
				return CompressedRow{}, fmt.Errorf("%w: empty segment has no min/max for %q", errs.ErrCountMismatch, col.Name)
			}
			mx, _ := b.Max()
			if out.MinMax == nil {
				out.MinMax = make(map[string][2]any)
			}
			out.MinMax[col.Name] = [2]any{mn, mx}
		}
	}

	return out, nil
}

// Finish flushes any partially filled segment and returns every emitted
// CompressedRow.
func (rc *RowCompressor) Finish() ([]CompressedRow, error) {
	if rc.open && rc.count > 0 {
		row, err := rc.flushSegment()
		if err != nil {
			return nil, err
		}
		rc.out = append(rc.out, row)
		rc.count = 0
	}

	return rc.out, nil
}
