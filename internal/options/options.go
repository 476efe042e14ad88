// Package options implements the functional-options pattern generically, so
// RowCompressor (and anything else with construction-time knobs) can take a
// variadic opts... list without hand-writing an apply loop per type.
package options

// Option configures a *T, e.g. *rowcompress.RowCompressor.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain func(T) error into an Option[T].
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New wraps fn as an Option[T].
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// Apply runs opts against target in order, stopping at the first error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}

// NoError wraps a fn that can't fail as an Option[T], for the common case
// (WithMaxRowsPerCompression, WithToastMethod, ...) where setting a field never errors.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}
