package format

import (
	"fmt"
	"math"

	"github.com/tsdbcompress/columnar/errs"
)

// ElementType tags the scalar type a VALUE column's codec operates over.
// The Gorilla, Array and DeltaDelta codecs all work on the same raw
// uint64 bit pattern internally; ElementType is what lets a caller convert
// a domain value to and from that pattern, and lets bulk (arrow) decode
// pick the right builder width.
type ElementType uint8

const (
	ElementInt16 ElementType = iota + 1
	ElementInt32
	ElementInt64
	ElementFloat32
	ElementFloat64
)

// String implements fmt.Stringer.
func (e ElementType) String() string {
	switch e {
	case ElementInt16:
		return "int16"
	case ElementInt32:
		return "int32"
	case ElementInt64:
		return "int64"
	case ElementFloat32:
		return "float32"
	case ElementFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// ToRawBits converts a domain value of the given element type to the raw
// uint64 bit pattern the codecs operate on (floats are reinterpreted
// through their IEEE-754 bits, integers are sign-extended into 64 bits so
// XOR-based codecs see the same bit pattern regardless of width).
func ToRawBits(t ElementType, v any) (uint64, error) {
	switch t {
	case ElementInt16:
		iv, ok := v.(int16)
		if !ok {
			return 0, fmt.Errorf("%w: expected int16, got %T", errs.ErrUnsupportedType, v)
		}

		return uint64(int64(iv)), nil
	case ElementInt32:
		iv, ok := v.(int32)
		if !ok {
			return 0, fmt.Errorf("%w: expected int32, got %T", errs.ErrUnsupportedType, v)
		}

		return uint64(int64(iv)), nil
	case ElementInt64:
		iv, ok := v.(int64)
		if !ok {
			return 0, fmt.Errorf("%w: expected int64, got %T", errs.ErrUnsupportedType, v)
		}

		return uint64(iv), nil
	case ElementFloat32:
		fv, ok := v.(float32)
		if !ok {
			return 0, fmt.Errorf("%w: expected float32, got %T", errs.ErrUnsupportedType, v)
		}

		return uint64(math.Float32bits(fv)), nil
	case ElementFloat64:
		fv, ok := v.(float64)
		if !ok {
			return 0, fmt.Errorf("%w: expected float64, got %T", errs.ErrUnsupportedType, v)
		}

		return math.Float64bits(fv), nil
	default:
		return 0, fmt.Errorf("%w: element type %d", errs.ErrUnsupportedType, t)
	}
}

// FromRawBits is the inverse of ToRawBits.
func FromRawBits(t ElementType, raw uint64) (any, error) {
	switch t {
	case ElementInt16:
		return int16(int64(raw)), nil //nolint:gosec // truncation intentional, round-trips ToRawBits
	case ElementInt32:
		return int32(int64(raw)), nil //nolint:gosec // truncation intentional, round-trips ToRawBits
	case ElementInt64:
		return int64(raw), nil
	case ElementFloat32:
		return math.Float32frombits(uint32(raw)), nil //nolint:gosec // truncation intentional
	case ElementFloat64:
		return math.Float64frombits(raw), nil
	default:
		return nil, fmt.Errorf("%w: element type %d", errs.ErrUnsupportedType, t)
	}
}

// Width reports the element's bit width (0 for an unknown type); the Array
// codec sizes its values by it and the registry rejects a zero width.
func (e ElementType) Width() int {
	switch e {
	case ElementInt16:
		return 16
	case ElementInt32, ElementFloat32:
		return 32
	case ElementInt64, ElementFloat64:
		return 64
	default:
		return 0
	}
}
