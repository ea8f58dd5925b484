package mem

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Destroyer is implemented by element types that need to run code when a
// value is destructed in place.
type Destroyer interface {
	Destroy()
}

// maxAlign is the payload alignment the heap guarantees.
const maxAlign = WordSize

// SizeOf returns the in-memory size of T.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// CheckLayout reports whether values of T may be stored in primitive memory:
// T must occupy at least one byte, need no more than word alignment, and
// hold no Go pointers (no strings, slices, maps, channels, funcs,
// interfaces or pointers, at any depth).
func CheckLayout[T any]() error {
	t := reflect.TypeFor[T]()
	if t.Size() == 0 {
		return fmt.Errorf("%w: %s has zero size", ErrUnsupportedType, t)
	}
	if t.Align() > maxAlign {
		return fmt.Errorf("%w: %s needs %d-byte alignment", ErrUnsupportedType, t, t.Align())
	}
	if path, ok := pointerPath(t); ok {
		return fmt.Errorf("%w: %s holds a Go pointer at %s", ErrUnsupportedType, t, path)
	}
	return nil
}

// pointerPath returns where t first holds a Go pointer.
func pointerPath(t reflect.Type) (string, bool) {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return "", false
	case reflect.Array:
		if t.Len() == 0 {
			return "", false
		}
		if p, ok := pointerPath(t.Elem()); ok {
			return "[]" + p, true
		}
		return "", false
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if p, ok := pointerPath(f.Type); ok {
				return "." + f.Name + p, true
			}
		}
		return "", false
	default:
		return " (" + t.Kind().String() + ")", true
	}
}

// At views the payload at p as a *T. It returns nil when p is not a live
// block or the block is smaller than T. T must satisfy CheckLayout.
func At[T any](a *Allocator, p Ptr) *T {
	b := a.Bytes(p)
	if len(b) < SizeOf[T]() || len(b) == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(&b[0]))
}

// SliceAt views the payload at p as n consecutive T values. It returns nil
// when p is not a live block or the block is smaller than n values.
func SliceAt[T any](a *Allocator, p Ptr, n int) []T {
	if n <= 0 {
		return nil
	}
	b := a.Bytes(p)
	size := SizeOf[T]()
	if size == 0 || len(b)/size < n {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

// Destroy destructs the value at v in place: it runs Destroy if *T
// implements Destroyer and then resets *v to the zero value.
func Destroy[T any](v *T) {
	if v == nil {
		return
	}
	if d, ok := any(v).(Destroyer); ok {
		d.Destroy()
	}
	var zero T
	*v = zero
}
