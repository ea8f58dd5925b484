// Package shared implements a reference-counted handle whose value and count
// live together in one block from the allocation primitive:
//
//	[value T][count u64]
//
// Handles are plain values, but assigning one does not add a reference: use
// Clone for that. Clone adds a reference, Move transfers one, and Release
// drops one; the value is destructed and the block freed exactly once, when
// the count falls from 1 to 0. A copy made by assignment that outlives the
// block reports ErrReleased as long as the block has not been reused.
// Handles are not safe for concurrent use.
package shared

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/logging"
	"github.com/joshuapare/memkit/mem"
)

var (
	// ErrEmpty indicates an operation that needs a reference on a handle that
	// holds none.
	ErrEmpty = errors.New("shared: handle holds no reference")

	// ErrReleased indicates a handle whose block was already freed through
	// another handle.
	ErrReleased = errors.New("shared: value already released")
)

// Shared is a reference-counted handle to a T stored in primitive memory.
// The zero value holds nothing.
type Shared[T any] struct {
	a     *mem.Allocator
	value mem.Ptr
	count mem.Ptr // value + sizeof(T)
}

// New allocates a block for v and its count, stores v, and returns a handle
// with a count of 1.
func New[T any](a *mem.Allocator, v T) (Shared[T], error) {
	return NewFunc(a, func(p *T) error {
		*p = v
		return nil
	})
}

// NewFunc allocates a block and constructs the value in place with init. If
// init fails the block is freed and no handle is returned.
func NewFunc[T any](a *mem.Allocator, init func(*T) error) (Shared[T], error) {
	if err := mem.CheckLayout[T](); err != nil {
		a.Logger().Record(err.Error(), logging.LevelError)
		return Shared[T]{}, err
	}
	size := mem.SizeOf[T]()
	p, err := a.AllocateClass(size+mem.WordSize, alloc.ClassShared)
	if err != nil {
		return Shared[T]{}, fmt.Errorf("shared: create: %w", err)
	}

	if init != nil {
		if err := init(mem.At[T](a, p)); err != nil {
			logging.Recordf(a.Logger(), logging.LevelError, "shared: constructing value failed: %v", err)
			if freeErr := a.Free(&p); freeErr != nil {
				return Shared[T]{}, errors.Join(err, freeErr)
			}
			return Shared[T]{}, err
		}
	}

	format.PutU64(a.Bytes(p), size, 1)
	return Shared[T]{a: a, value: p, count: p + mem.Ptr(size)}, nil
}

// IsHoldingReference reports whether s refers to a value.
func (s *Shared[T]) IsHoldingReference() bool {
	return s.value != mem.Nil
}

// ReferenceCount returns the number of handles sharing the value.
func (s *Shared[T]) ReferenceCount() (int, error) {
	if !s.IsHoldingReference() {
		return 0, ErrEmpty
	}
	n, err := readCountAt[T](s.a, s.value)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Get returns the shared value, or nil when s holds nothing. The pointer is
// valid only while some handle holds a reference.
func (s *Shared[T]) Get() *T {
	if !s.IsHoldingReference() {
		return nil
	}
	return mem.At[T](s.a, s.value)
}

// Clone returns a new handle to the same value and increments the count.
// Cloning an empty handle, or one whose value was already released, yields
// an empty handle; the latter is logged.
func (s *Shared[T]) Clone() Shared[T] {
	if !s.IsHoldingReference() {
		return Shared[T]{}
	}
	n, err := readCountAt[T](s.a, s.value)
	if err != nil {
		return Shared[T]{}
	}
	writeCountAt[T](s.a, s.value, n+1)
	return *s
}

// Move transfers the reference held by s to the returned handle and leaves s
// empty. The count is unchanged.
func (s *Shared[T]) Move() Shared[T] {
	out := *s
	*s = Shared[T]{}
	return out
}

// Same reports whether s and other refer to the same value.
func (s *Shared[T]) Same(other Shared[T]) bool {
	return s.IsHoldingReference() && s.value == other.value
}

// Release drops the reference held by s. When it was the last one, the value
// is destructed and its block freed. Afterwards s holds nothing. Releasing an
// empty handle is a no-op.
func (s *Shared[T]) Release() error {
	if !s.IsHoldingReference() {
		return nil
	}
	a, p := s.a, s.value
	*s = Shared[T]{}

	n, err := readCountAt[T](a, p)
	if err != nil {
		return fmt.Errorf("shared: release: %w", err)
	}
	if n > 1 {
		writeCountAt[T](a, p, n-1)
		return nil
	}

	mem.Destroy(mem.At[T](a, p))
	if err := a.Free(&p); err != nil {
		return fmt.Errorf("shared: release: %w", err)
	}
	return nil
}

// readCountAt reads the count stored after the value at p. A block that is no
// longer live yields ErrReleased, which is logged.
func readCountAt[T any](a *mem.Allocator, p mem.Ptr) (uint64, error) {
	b := a.Bytes(p)
	size := mem.SizeOf[T]()
	if len(b) < size+mem.WordSize {
		err := fmt.Errorf("%w: %s", ErrReleased, p)
		a.Logger().Record(err.Error(), logging.LevelError)
		return 0, err
	}
	return format.ReadU64(b, size), nil
}

// writeCountAt stores n after the value at p. Callers read the count first,
// so the block is known to be live.
func writeCountAt[T any](a *mem.Allocator, p mem.Ptr, n uint64) {
	format.PutU64(a.Bytes(p), mem.SizeOf[T](), n)
}
