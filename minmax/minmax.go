// Package minmax implements the segment min/max builder: a running
// (min, max) pair over one ORDER BY column's values across the rows of
// one compressed segment. Comparison is done through a caller-supplied
// CompareFunc, the way a btree operator class orders a column; this
// package has no notion of SQL types. The builder is a small struct
// mutated in place by one Observe call per row, with no allocation on
// the hot path.
package minmax

// CompareFunc orders two Datums the way a btree operator class would:
// negative if a < b, zero if equal, positive if a > b. Builder never
// calls this with a nil Datum; null ORDER BY values are rejected upstream
// by the row compressor before reaching the builder.
type CompareFunc func(a, b any) int

// Builder tracks the running min and max of one column across a segment.
type Builder struct {
	cmp    CompareFunc
	hasAny bool
	min    any
	max    any
}

// New returns an empty Builder using cmp to order observed values.
func New(cmp CompareFunc) *Builder {
	return &Builder{cmp: cmp}
}

// Observe folds one more value into the running min/max.
func (b *Builder) Observe(v any) {
	if !b.hasAny {
		b.min, b.max = v, v
		b.hasAny = true

		return
	}

	if b.cmp(v, b.min) < 0 {
		b.min = v
	}
	if b.cmp(v, b.max) > 0 {
		b.max = v
	}
}

// Min returns the running minimum and whether any value has been observed.
func (b *Builder) Min() (any, bool) { return b.min, b.hasAny }

// Max returns the running maximum and whether any value has been observed.
func (b *Builder) Max() (any, bool) { return b.max, b.hasAny }

// Reset clears the builder so it can be reused for another segment. The
// row compressor does not call it; it builds a fresh Builder per segment.
func (b *Builder) Reset() {
	b.hasAny = false
	b.min = nil
	b.max = nil
}

// Int64 is the CompareFunc for int64-valued columns (the common case for
// timestamp ORDER BY keys stored as epoch integers).
func Int64(a, b any) int {
	x, y := a.(int64), b.(int64)

	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Float64 is the CompareFunc for float64-valued columns.
func Float64(a, b any) int {
	x, y := a.(float64), b.(float64)

	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// String is the CompareFunc for string-valued columns.
func String(a, b any) int {
	x, y := a.(string), b.(string)

	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
