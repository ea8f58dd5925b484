package mathx

import "errors"

// ErrZeroLength indicates a vector that cannot be normalized.
var ErrZeroLength = errors.New("mathx: zero-length vector")

// Vector2 is a two-component vector. The zero value is (0, 0).
type Vector2[T Number] struct {
	X T
	Y T
}

// Vec2 returns (x, y).
func Vec2[T Number](x, y T) Vector2[T] { return Vector2[T]{X: x, Y: y} }

// Splat returns (v, v).
func Splat[T Number](v T) Vector2[T] { return Vector2[T]{X: v, Y: v} }

func (a Vector2[T]) Add(b Vector2[T]) Vector2[T] { return Vector2[T]{a.X + b.X, a.Y + b.Y} }

func (a Vector2[T]) Sub(b Vector2[T]) Vector2[T] { return Vector2[T]{a.X - b.X, a.Y - b.Y} }

// Mul multiplies component-wise.
func (a Vector2[T]) Mul(b Vector2[T]) Vector2[T] { return Vector2[T]{a.X * b.X, a.Y * b.Y} }

// Div divides component-wise. Integer division by a zero component panics
// like any Go integer division.
func (a Vector2[T]) Div(b Vector2[T]) Vector2[T] { return Vector2[T]{a.X / b.X, a.Y / b.Y} }

// Scale multiplies both components by s.
func (a Vector2[T]) Scale(s T) Vector2[T] { return Vector2[T]{a.X * s, a.Y * s} }

// Neg negates both components. For unsigned types this wraps.
func (a Vector2[T]) Neg() Vector2[T] { return Vector2[T]{-a.X, -a.Y} }

func (a Vector2[T]) Dot(b Vector2[T]) T { return a.X*b.X + a.Y*b.Y }

// Cross returns the z component of the 3D cross product of a and b.
func (a Vector2[T]) Cross(b Vector2[T]) T { return a.X*b.Y - a.Y*b.X }

// LengthSquared avoids the square root in Length.
func (a Vector2[T]) LengthSquared() T { return a.Dot(a) }

// Length returns the magnitude of a.
func (a Vector2[T]) Length() T { return Sqrt(a.LengthSquared()) }

// Normalized returns a scaled to unit length. Integer vectors truncate.
func (a Vector2[T]) Normalized() (Vector2[T], error) {
	l := a.Length()
	if l == 0 {
		return Vector2[T]{}, ErrZeroLength
	}
	return Vector2[T]{a.X / l, a.Y / l}, nil
}

func (a Vector2[T]) Equal(b Vector2[T]) bool { return a == b }

// Convert returns v with each component converted to U.
func Convert[U, T Number](v Vector2[T]) Vector2[U] {
	return Vector2[U]{X: U(v.X), Y: U(v.Y)}
}
