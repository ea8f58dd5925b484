// Package mathx holds small numeric helpers and a pointer-free 2D vector that
// can be stored in primitive memory.
package mathx

import (
	"cmp"
	"math"
)

// Number is any built-in integer or floating-point type.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Sqrt returns the square root of v, truncated toward zero for integer types.
// Negative inputs yield 0.
func Sqrt[T Number](v T) T {
	if v < 0 {
		return 0
	}
	return T(math.Sqrt(float64(v)))
}

// Min returns the smallest of its arguments. For floats, a NaN argument
// propagates as with the built-in min.
func Min[T cmp.Ordered](first T, rest ...T) T {
	m := first
	for _, v := range rest {
		m = min(m, v)
	}
	return m
}
