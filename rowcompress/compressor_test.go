package rowcompress_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsdbcompress/columnar/blob"
	"github.com/tsdbcompress/columnar/errs"
	"github.com/tsdbcompress/columnar/format"
	"github.com/tsdbcompress/columnar/minmax"
	"github.com/tsdbcompress/columnar/rowcompress"
)

func testColumns() []rowcompress.ColumnInfo {
	return []rowcompress.ColumnInfo{
		{Name: "device_id", Kind: rowcompress.SegmentBy},
		{
			Name:        "ts",
			Kind:        rowcompress.OrderBy,
			Algorithm:   blob.AlgorithmDeltaDelta,
			ElemType:    format.ElementInt64,
			Compare:     minmax.Int64,
			Asc:         true,
			TrackMinMax: true,
		},
		{
			Name:      "value",
			Kind:      rowcompress.Value,
			Algorithm: blob.AlgorithmGorilla,
			ElemType:  format.ElementFloat64,
		},
	}
}

// 2500 rows split 2000/500 across two segments must flush as row counts
// [1000, 1000, 500] with sequence numbers [10, 20, 10] — the third row
// resets because its segment differs.
func TestAppendRowSegmentBoundary(t *testing.T) {
	rc, err := rowcompress.New(testColumns())
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		require.NoError(t, rc.AppendRow([]any{"dev-a", int64(i), float64(i)}))
	}
	for i := 0; i < 500; i++ {
		require.NoError(t, rc.AppendRow([]any{"dev-b", int64(2000 + i), float64(i)}))
	}

	rows, err := rc.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, []int32{1000, 1000, 500}, []int32{rows[0].Count, rows[1].Count, rows[2].Count})
	require.Equal(t, []int32{10, 20, 10}, []int32{rows[0].SequenceNum, rows[1].SequenceNum, rows[2].SequenceNum})

	require.Equal(t, []any{"dev-a"}, rows[0].SegmentBy)
	require.Equal(t, []any{"dev-a"}, rows[1].SegmentBy)
	require.Equal(t, []any{"dev-b"}, rows[2].SegmentBy)

	mn, mx := rows[0].MinMax["ts"][0], rows[0].MinMax["ts"][1]
	require.Equal(t, int64(0), mn)
	require.Equal(t, int64(999), mx)
}

func TestAppendRowCountConservationRoundTrip(t *testing.T) {
	rc, err := rowcompress.New(testColumns())
	require.NoError(t, err)

	const total = 137
	var wantTS []int64
	var wantVal []float64
	for i := 0; i < total; i++ {
		ts := int64(i * 10)
		val := float64(i) * 1.5
		wantTS = append(wantTS, ts)
		wantVal = append(wantVal, val)
		require.NoError(t, rc.AppendRow([]any{"only-device", ts, val}))
	}

	rows, err := rc.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, total, rows[0].Count)

	it, err := rowcompress.NewTupleIterator(rows[0], testColumns(), rowcompress.Forward)
	require.NoError(t, err)

	var gotTS []int64
	var gotVal []float64
	for {
		tuple, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.Equal(t, "only-device", tuple[0])
		gotTS = append(gotTS, tuple[1].(int64))
		gotVal = append(gotVal, tuple[2].(float64))
	}

	require.Equal(t, wantTS, gotTS)
	require.Equal(t, wantVal, gotVal)
}

// A corrupted Count that undercounts what a column blob actually encodes
// must surface as ErrOutOfSync rather than being silently truncated.
func TestTupleIteratorDetectsUndercountedRowCount(t *testing.T) {
	rc, err := rowcompress.New(testColumns())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, rc.AppendRow([]any{"dev", int64(i), float64(i)}))
	}

	rows, err := rc.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows[0].Count = 5

	it, err := rowcompress.NewTupleIterator(rows[0], testColumns(), rowcompress.Forward)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, ok, err := it.Next()
		require.NoError(t, err)
		require.True(t, ok)
	}

	// The 5th draw satisfies the declared Count, which triggers the
	// exhaustion check against the underlying column streams; since the
	// blob actually encodes 10 rows, that check fails.
	_, ok, err := it.Next()
	require.ErrorIs(t, err, errs.ErrOutOfSync)
	require.False(t, ok)
}

func TestAppendRowWithNullValueColumn(t *testing.T) {
	rc, err := rowcompress.New(testColumns())
	require.NoError(t, err)

	require.NoError(t, rc.AppendRow([]any{"d", int64(0), 1.0}))
	require.NoError(t, rc.AppendRow([]any{"d", int64(1), nil}))
	require.NoError(t, rc.AppendRow([]any{"d", int64(2), 3.0}))

	rows, err := rc.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	it, err := rowcompress.NewTupleIterator(rows[0], testColumns(), rowcompress.Forward)
	require.NoError(t, err)

	tuple, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.0, tuple[2])

	tuple, ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, tuple[2])

	tuple, ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3.0, tuple[2])

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAppendRowOrderByCannotBeNull(t *testing.T) {
	rc, err := rowcompress.New(testColumns())
	require.NoError(t, err)

	err = rc.AppendRow([]any{"d", nil, 1.0})
	require.Error(t, err)
}

func TestNewRejectsColumnsWithoutOrderBy(t *testing.T) {
	_, err := rowcompress.New([]rowcompress.ColumnInfo{
		{Name: "device_id", Kind: rowcompress.SegmentBy},
	})
	require.Error(t, err)
}

func TestNewTupleIteratorReverseRejectsColumnWithoutReverseCursor(t *testing.T) {
	rc, err := rowcompress.New(testColumns())
	require.NoError(t, err)
	require.NoError(t, rc.AppendRow([]any{"d", int64(0), 1.0}))

	rows, err := rc.Finish()
	require.NoError(t, err)

	// ts is DeltaDelta, which has no reverse cursor.
	_, err = rowcompress.NewTupleIterator(rows[0], testColumns(), rowcompress.Reverse)
	require.Error(t, err)
}

func TestFlushAtMaxRowsBoundary(t *testing.T) {
	rc, err := rowcompress.New(testColumns(), rowcompress.WithMaxRowsPerCompression(10))
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		require.NoError(t, rc.AppendRow([]any{"d", int64(i), float64(i)}))
	}

	rows, err := rc.Finish()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []int32{10, 10, 5}, []int32{rows[0].Count, rows[1].Count, rows[2].Count})
	require.Equal(t, []int32{10, 20, 30}, []int32{rows[0].SequenceNum, rows[1].SequenceNum, rows[2].SequenceNum})
}
