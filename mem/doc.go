// Package mem is the allocation primitive: it hands out payload blocks from
// the platform heap, each prefixed by a hidden size word so the size can be
// recovered from the pointer alone.
//
// A block is laid out inside one heap cell as
//
//	[size word u64][payload ...]
//	               ^ Ptr
//
// Ptr is an opaque handle, not a Go pointer. Typed access goes through At and
// SliceAt, which view the payload as pointer-free Go values. A view stays
// valid until the block is reallocated or freed.
//
// Every failure is recorded on the allocator's Logger before it is returned:
// freeing Nil at warning severity, everything else at error severity.
//
// An Allocator is not safe for concurrent use.
package mem
