package alloc

import "errors"

var (
	// ErrNoSpace indicates that no free cell was large enough and mapping a new bin failed
	// or would exceed Config.MaxBytes.
	ErrNoSpace = errors.New("alloc: no space")

	// ErrNeedSmall indicates a request for zero or fewer payload bytes.
	ErrNeedSmall = errors.New("alloc: need must be at least 1 byte")

	// ErrTooLarge indicates a request that cannot fit in a single bin.
	ErrTooLarge = errors.New("alloc: request exceeds maximum bin size")

	// ErrBadAddr indicates an address that does not point at a cell of a mapped bin.
	ErrBadAddr = errors.New("alloc: bad address")

	// ErrNotAllocated indicates an operation on a cell that is not allocated.
	ErrNotAllocated = errors.New("alloc: cell not allocated")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator closed")

	// ErrCorrupt indicates Verify found a broken heap invariant.
	ErrCorrupt = errors.New("alloc: heap invariant violated")
)
