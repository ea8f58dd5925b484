// Package dynarray implements a contiguous, growable array whose backing
// buffer comes from the allocation primitive. Elements are constructed and
// destructed in place; element types must be pointer-free (see
// mem.CheckLayout) and comparable.
//
// Invariants: 0 <= Len() <= Cap(), and the buffer is Nil exactly when
// Cap() == 0. Slots [0, Len()) are live; the rest are zero.
//
// An Array is not safe for concurrent use.
package dynarray

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/logging"
	"github.com/joshuapare/memkit/mem"
)

var (
	// ErrIndexOutOfRange indicates an index outside the live elements.
	ErrIndexOutOfRange = errors.New("dynarray: index out of range")

	// ErrCapacityOverflow indicates a capacity whose byte size cannot be represented.
	ErrCapacityOverflow = errors.New("dynarray: capacity overflow")
)

// GrowthFactor is the rate at which capacity increases when the array is full.
const GrowthFactor = 1.4

// NextCapacity returns floor(capacity * GrowthFactor) + 1.
//
// Example:
//
//	NextCapacity(0) = 1
//	NextCapacity(6) = 9
//	NextCapacity(9) = 13
func NextCapacity(capacity int) (int, error) {
	grown := float64(capacity) * GrowthFactor
	if capacity < 0 || grown >= math.MaxInt {
		return 0, fmt.Errorf("%w: cannot grow capacity %d", ErrCapacityOverflow, capacity)
	}
	next, ok := buf.AddOverflowSafe(int(grown), 1)
	if !ok {
		return 0, fmt.Errorf("%w: cannot grow capacity %d", ErrCapacityOverflow, capacity)
	}
	return next, nil
}

// Array is a growable array of T in primitive memory.
type Array[T comparable] struct {
	a        *mem.Allocator
	buffer   mem.Ptr
	count    int
	capacity int
}

// New returns an empty array. No buffer is allocated until the first element
// is added.
func New[T comparable](a *mem.Allocator) (*Array[T], error) {
	if err := mem.CheckLayout[T](); err != nil {
		a.Logger().Record(err.Error(), logging.LevelError)
		return nil, err
	}
	return &Array[T]{a: a}, nil
}

// NewWithCapacity returns an empty array with room for capacity elements.
func NewWithCapacity[T comparable](a *mem.Allocator, capacity int) (*Array[T], error) {
	arr, err := New[T](a)
	if err != nil {
		return nil, err
	}
	if err := arr.SetCapacity(capacity); err != nil {
		return nil, err
	}
	return arr, nil
}

// Len returns the number of live elements.
func (arr *Array[T]) Len() int { return arr.count }

// Cap returns the number of elements the buffer can hold.
func (arr *Array[T]) Cap() int { return arr.capacity }

// slots views the whole buffer, live and spare slots alike.
func (arr *Array[T]) slots() []T {
	if arr.capacity == 0 {
		return nil
	}
	return mem.SliceAt[T](arr.a, arr.buffer, arr.capacity)
}

// Add appends a copy of v, growing the buffer when it is full.
func (arr *Array[T]) Add(v T) error {
	if arr.capacity-arr.count < 1 {
		if err := arr.expand(); err != nil {
			return err
		}
	}
	arr.slots()[arr.count] = v
	arr.count++
	return nil
}

// AddMove appends *v and resets *v to the zero value.
func (arr *Array[T]) AddMove(v *T) error {
	if v == nil {
		return arr.fail(fmt.Errorf("dynarray: add: %w", mem.ErrNilPointer))
	}
	if err := arr.Add(*v); err != nil {
		return err
	}
	var zero T
	*v = zero
	return nil
}

// Insert places v at index i, shifting [i, Len()) one slot to the right.
// Inserting at Len() is the same as Add.
func (arr *Array[T]) Insert(v T, i int) error {
	if i < 0 || i > arr.count {
		return arr.fail(fmt.Errorf("%w: insert at %d with %d elements", ErrIndexOutOfRange, i, arr.count))
	}
	if i == arr.count {
		return arr.Add(v)
	}
	if arr.capacity-arr.count < 1 {
		if err := arr.expand(); err != nil {
			return err
		}
	}
	s := arr.slots()
	copy(s[i+1:arr.count+1], s[i:arr.count])
	s[i] = v
	arr.count++
	return nil
}

// Remove destructs the element at i and shifts the elements after it one
// slot to the left. Capacity is unchanged. An out-of-range index leaves the
// array untouched.
func (arr *Array[T]) Remove(i int) error {
	if i < 0 || i >= arr.count {
		return arr.fail(fmt.Errorf("%w: remove %d with %d elements", ErrIndexOutOfRange, i, arr.count))
	}
	s := arr.slots()
	mem.Destroy(&s[i])
	copy(s[i:arr.count-1], s[i+1:arr.count])
	var zero T
	s[arr.count-1] = zero
	arr.count--
	return nil
}

// RemoveAll destructs every element. Capacity is unchanged.
func (arr *Array[T]) RemoveAll() {
	s := arr.slots()
	for i := range arr.count {
		mem.Destroy(&s[i])
	}
	arr.count = 0
}

// SetCapacity resizes the buffer to hold n elements. Setting the current
// capacity is a no-op; 0 destructs every element and releases the buffer.
// When n is below Len(), the trailing elements are destructed and Len()
// becomes n.
func (arr *Array[T]) SetCapacity(n int) error {
	if n < 0 {
		return arr.fail(fmt.Errorf("%w: negative capacity %d", ErrCapacityOverflow, n))
	}
	if n == arr.capacity {
		return nil
	}
	if n == 0 {
		arr.RemoveAll()
		return arr.deleteAllocation()
	}

	size, err := buf.SpanBytes(n, mem.SizeOf[T]())
	if err != nil {
		return arr.fail(fmt.Errorf("%w: %w", ErrCapacityOverflow, err))
	}

	if n < arr.count {
		s := arr.slots()
		for i := n; i < arr.count; i++ {
			mem.Destroy(&s[i])
		}
		arr.count = n
	}

	if arr.buffer == mem.Nil {
		p, err := arr.a.AllocateClass(size, alloc.ClassArray)
		if err != nil {
			return fmt.Errorf("dynarray: allocate buffer: %w", err)
		}
		arr.buffer = p
	} else {
		p, err := arr.a.Reallocate(arr.buffer, size)
		if err != nil {
			if p != arr.buffer {
				// Moved even though the call failed; only the new block is valid.
				arr.buffer = p
				arr.capacity = n
			}
			return fmt.Errorf("dynarray: reallocate buffer: %w", err)
		}
		arr.buffer = p
	}
	arr.capacity = n
	return nil
}

// FitCapacityToElements shrinks the capacity to Len().
func (arr *Array[T]) FitCapacityToElements() error {
	return arr.SetCapacity(arr.count)
}

// Contains reports whether v equals any live element.
func (arr *Array[T]) Contains(v T) bool {
	return arr.IndexOf(v) >= 0
}

// IndexOf returns the index of the first element equal to v, or -1.
func (arr *Array[T]) IndexOf(v T) int {
	for i, e := range arr.Slice() {
		if e == v {
			return i
		}
	}
	return -1
}

// At returns a copy of the element at i.
func (arr *Array[T]) At(i int) (T, error) {
	if i < 0 || i >= arr.count {
		var zero T
		return zero, fmt.Errorf("%w: at %d with %d elements", ErrIndexOutOfRange, i, arr.count)
	}
	return arr.slots()[i], nil
}

// Ref returns a pointer to the element at i, or nil when i is out of range.
// The pointer is invalidated by any operation that changes the capacity.
func (arr *Array[T]) Ref(i int) *T {
	if i < 0 || i >= arr.count {
		return nil
	}
	return &arr.slots()[i]
}

// Set destructs the element at i and stores v in its place.
func (arr *Array[T]) Set(i int, v T) error {
	if i < 0 || i >= arr.count {
		return arr.fail(fmt.Errorf("%w: set %d with %d elements", ErrIndexOutOfRange, i, arr.count))
	}
	s := arr.slots()
	mem.Destroy(&s[i])
	s[i] = v
	return nil
}

// Slice views the live elements. The view is invalidated by any operation
// that changes the capacity.
func (arr *Array[T]) Slice() []T {
	if arr.count == 0 {
		return nil
	}
	return arr.slots()[:arr.count:arr.count]
}

// All iterates over the live elements in order.
func (arr *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < arr.count; i++ {
			if !yield(i, arr.slots()[i]) {
				return
			}
		}
	}
}

// Release destructs every element and frees the buffer. The array is empty
// and reusable afterwards.
func (arr *Array[T]) Release() error {
	arr.RemoveAll()
	if err := arr.deleteAllocation(); err != nil {
		return arr.fail(fmt.Errorf("dynarray: could not deallocate buffer: %w", err))
	}
	return nil
}

// expand grows the capacity by GrowthFactor.
func (arr *Array[T]) expand() error {
	next, err := NextCapacity(arr.capacity)
	if err != nil {
		return arr.fail(err)
	}
	if err := arr.SetCapacity(next); err != nil {
		return fmt.Errorf("dynarray: could not expand capacity: %w", err)
	}
	return nil
}

// deleteAllocation frees the buffer without destructing elements and resets
// count and capacity.
func (arr *Array[T]) deleteAllocation() error {
	if arr.buffer != mem.Nil {
		if err := arr.a.Free(&arr.buffer); err != nil {
			return err
		}
	}
	arr.capacity = 0
	arr.count = 0
	return nil
}

func (arr *Array[T]) fail(err error) error {
	arr.a.Logger().Record(err.Error(), logging.LevelError)
	return err
}
