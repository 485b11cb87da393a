// This package provides an optional data type, similar to Rust's `Option<T>` (and Haskell's `Maybe a`).
package option

// ideally Option would be defined as:
//
//	type Option[T any] struct {
//	  v *T
//	}
//
// but encoders (encoding/json, yaml.v3, go-toml) match the type's kind to decide if a value is
// "empty" or should be allocated when decoding, so only a pointer type round-trips as optional.
//
// However, this means that we cannot define methods on [Option], since its underlying type is *T.

// Option carries either a value of type T, or nothing.
type Option[T any] *T

func Some[T any](v T) Option[T] { return Option[T](&v) }
func None[T any]() Option[T]    { return Option[T](nil) }

func IsNone[T any](o Option[T]) bool { return o == nil }
func IsSome[T any](o Option[T]) bool { return !IsNone(o) }

// helpers

// Unwrap returns the Option's value, or panics if the Option [IsNone].
//
// Use [UnwrapOr] or [UnwrapOrDefault] for functions that do not panic.
func Unwrap[T any](o Option[T]) T {
	if IsNone(o) {
		panic("(Option).Unwrap called on a None value")
	}
	return *o
}

// UnwrapOrDefault returns the Option's value if it [IsSome], or the type's default value otherwise.
func UnwrapOrDefault[T any](o Option[T]) T {
	return UnwrapOr(o, *new(T))
}

// UnwrapOr returns the Option's value if it [IsSome], or v otherwise.
func UnwrapOr[T any](o Option[T], v T) T {
	if IsNone(o) {
		return v
	}
	return *o
}
