package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/format"
)

// Addr is the address of a cell: bin id in the high 32 bits, offset of the
// cell header inside the bin in the low 32 bits.
type Addr uint64

// MakeAddr builds an address from a bin id and an offset inside that bin.
func MakeAddr(bin uint32, off int) Addr {
	return Addr(uint64(bin)<<32 | uint64(uint32(off)))
}

// Bin returns the 1-based bin id.
func (a Addr) Bin() uint32 { return uint32(a >> 32) }

// Off returns the offset inside the bin.
func (a Addr) Off() int { return int(uint32(a)) }

// Add returns the address n bytes further into the same bin.
func (a Addr) Add(n int) Addr { return MakeAddr(a.Bin(), a.Off()+n) }

func (a Addr) String() string {
	return fmt.Sprintf("%d:0x%X", a.Bin(), a.Off())
}

// Class tags what a cell was allocated for.
type Class uint8

const (
	ClassRaw    Class = 1 // plain block from the allocation primitive
	ClassShared Class = 2 // shared value followed by its reference count
	ClassArray  Class = 3 // growable array buffer
)

func (c Class) String() string {
	switch c {
	case ClassRaw:
		return "raw"
	case ClassShared:
		return "shared"
	case ClassArray:
		return "array"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// maxPayload is the largest payload a single cell can carry.
const maxPayload = format.MaxBinSize - format.BinHeaderSize - format.CellHeaderSize

// Allocator defines the interface of the platform heap.
//
// Implementations:
//   - FastAllocator: free-list allocator with coalescing and bin release
//   - BumpAllocator: append-only allocator, Free only marks cells
type Allocator interface {
	// Alloc allocates a cell with room for at least need payload bytes.
	// Returns the cell address, the zeroed payload, and any error.
	Alloc(need int, cls Class) (Addr, []byte, error)

	// Realloc resizes the cell at addr to hold need payload bytes, preserving
	// the payload up to the smaller of the old and new sizes. On failure the
	// original cell is untouched and addr is returned unchanged, except when
	// the payload moved and only releasing the old cell failed: then the new
	// address and payload are returned with the error and addr is invalid.
	Realloc(addr Addr, need int) (Addr, []byte, error)

	// Free releases the cell at addr.
	Free(addr Addr) error

	// Payload returns the payload of the allocated cell at addr.
	Payload(addr Addr) ([]byte, error)

	// Stats returns a snapshot of allocator statistics.
	Stats() Stats

	// Verify walks every bin and checks the heap invariants.
	Verify() error

	// Close unmaps every bin. The allocator cannot be used afterwards.
	Close() error
}

// New builds the allocator selected by cfg.Strategy. A nil cfg uses DefaultConfig.
func New(cfg *Config) (Allocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	switch cfg.Strategy {
	case "", StrategyFast:
		return NewFast(cfg)
	case StrategyBump:
		return NewBump(cfg)
	default:
		return nil, fmt.Errorf("alloc: unknown strategy %q", cfg.Strategy)
	}
}
