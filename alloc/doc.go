// Package alloc is the platform heap underneath memkit's allocation
// primitive: it maps page-aligned bins from a page source and carves them
// into size-prefixed cells.
//
// # Overview
//
// Every bin starts with a 16-byte header and is tiled by cells. A cell is a
// signed int32 size (negative = allocated, positive = free), a one-byte class
// tag, padding, and the payload:
//
//	[size int32][class u8][3 reserved][payload ...]
//
// Cells are 8-byte aligned, at least 16 bytes, and never cross a bin
// boundary. Bins never move once mapped, so an address stays valid until the
// cell is freed.
//
// # Allocator Interface
//
//   - Alloc(need, class): allocate a cell with at least need payload bytes
//   - Realloc(addr, need): resize, in place when possible, strong guarantee on failure
//   - Free(addr): release a cell and coalesce it with free neighbours
//   - Payload(addr): the payload bytes of an allocated cell
//
// # Implementations
//
// FastAllocator: segregated free lists
//
//   - Size classes built from a SizeClassConfig (linear then logarithmic)
//   - Min-heap per class for best-fit allocation
//   - O(1) forward and backward coalescing through offset indexes
//   - Empty bins are returned to the page source
//
// BumpAllocator: append-only
//
//   - Pure bump pointer inside the current bin
//   - Free only flips the sign bit; space is reclaimed at Close
//
// # Addresses
//
// An Addr packs the 1-based bin id in the high 32 bits and the cell offset
// inside that bin in the low 32 bits. Zero is never a valid address.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must synchronize access
// externally.
package alloc
