package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/format"
)

// BumpAllocator is an append-only allocator. It uses a plain bump pointer
// inside the most recently mapped bin.
//
// Key characteristics:
//   - O(1) allocation: no free lists, no indexes, no maps
//   - Free only flips the sign bit, the cell becomes dead space
//   - Bins are mapped on demand and returned to the page source at Close
//
// It suits workloads that build a structure once and drop it wholesale.
type BumpAllocator struct {
	cfg  Config
	bins *binSet

	// cur is the bin the bump pointer lives in, nil until the first allocation.
	cur *bin

	// endBlocks is the offset in cur where the next allocation will occur.
	endBlocks int

	stats       allocatorStats
	liveByClass map[Class]int
	closed      bool
}

// NewBump creates a BumpAllocator. A nil cfg uses DefaultConfig; SizeClasses
// and ReleaseEmptyBins are ignored.
func NewBump(cfg *Config) (*BumpAllocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	c.Strategy = StrategyBump
	bins, err := newBinSet(c)
	if err != nil {
		return nil, err
	}
	return &BumpAllocator{cfg: c, bins: bins, liveByClass: make(map[Class]int)}, nil
}

// Alloc allocates a cell at the bump pointer, mapping a new bin when the
// current one is exhausted.
func (ba *BumpAllocator) Alloc(need int, cls Class) (Addr, []byte, error) {
	if ba.closed {
		return 0, nil, ErrClosed
	}
	if need <= 0 {
		return 0, nil, ErrNeedSmall
	}
	if need > maxPayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, need)
	}
	ba.stats.AllocCalls++

	size := format.CellSizeFor(need)
	if ba.cur == nil || ba.endBlocks+size > len(ba.cur.data) {
		if err := ba.grow(size); err != nil {
			return 0, nil, err
		}
		ba.stats.AllocSlowPath++
	} else {
		ba.stats.AllocFastPath++
	}

	b := ba.cur
	off := ba.endBlocks
	// A tail too small to describe as a free cell is absorbed.
	if rem := len(b.data) - (off + size); rem < format.MinCellSize {
		size += rem
	}
	ba.place(b, off, size, cls)
	return MakeAddr(b.id, off), b.data[off+format.CellHeaderSize : off+size], nil
}

// place writes an allocated cell at off and moves the bump pointer past it.
func (ba *BumpAllocator) place(b *bin, off, size int, cls Class) {
	format.PutCellHeader(b.data, off, size, uint8(cls))
	clear(b.data[off+format.CellHeaderSize : off+size])
	ba.endBlocks = off + size
	ba.markRemainder()

	b.used += size
	b.cells++
	ba.stats.BytesAllocated += int64(size)
	ba.liveByClass[cls]++
}

// markRemainder keeps the unused tail of the current bin described as one
// free cell so the bin stays walkable.
func (ba *BumpAllocator) markRemainder() {
	if rem := len(ba.cur.data) - ba.endBlocks; rem > 0 {
		format.PutFreeCellHeader(ba.cur.data, ba.endBlocks, rem)
	}
}

// Realloc grows or shrinks in place when the cell is the last one in the
// current bin; otherwise it allocates, copies, and marks the old cell free.
func (ba *BumpAllocator) Realloc(addr Addr, need int) (Addr, []byte, error) {
	if ba.closed {
		return addr, nil, ErrClosed
	}
	b, off, size, err := ba.bins.resolve(addr)
	if err != nil {
		return addr, nil, err
	}
	old := b.data[off+format.CellHeaderSize : off+size]
	if need <= 0 {
		return addr, old, ErrNeedSmall
	}
	if need > maxPayload {
		return addr, old, fmt.Errorf("%w: %d bytes", ErrTooLarge, need)
	}
	ba.stats.ReallocCalls++

	newSize := format.CellSizeFor(need)
	if newSize == size {
		ba.stats.ReallocInPlace++
		return addr, old, nil
	}

	last := b == ba.cur && off+size == ba.endBlocks
	if last && off+newSize <= len(b.data) {
		cls := b.data[off+format.CellClassOffset]
		if rem := len(b.data) - (off + newSize); rem < format.MinCellSize {
			newSize += rem
		}
		if newSize > size {
			clear(b.data[off+size : off+newSize])
			ba.stats.BytesAllocated += int64(newSize - size)
		} else {
			ba.stats.BytesFreed += int64(size - newSize)
		}
		format.PutCellHeader(b.data, off, newSize, cls)
		b.used += newSize - size
		ba.endBlocks = off + newSize
		ba.markRemainder()
		ba.stats.ReallocInPlace++
		return addr, b.data[off+format.CellHeaderSize : off+newSize], nil
	}

	if newSize <= size {
		// Shrinking a cell in the middle of a bin: the payload stays put.
		ba.stats.ReallocInPlace++
		return addr, b.data[off+format.CellHeaderSize : off+size], nil
	}

	cls := Class(b.data[off+format.CellClassOffset])
	naddr, npayload, err := ba.Alloc(need, cls)
	if err != nil {
		return addr, old, err
	}
	copy(npayload, old)
	if err := ba.Free(addr); err != nil {
		// The payload already lives at naddr and the old cell is gone.
		return naddr, npayload, fmt.Errorf("alloc: releasing moved cell: %w", err)
	}
	return naddr, npayload, nil
}

// Free marks a cell as free by flipping its size to positive. The space is
// not reused.
func (ba *BumpAllocator) Free(addr Addr) error {
	if ba.closed {
		return ErrClosed
	}
	b, off, size, err := ba.bins.resolve(addr)
	if err != nil {
		return err
	}
	ba.stats.FreeCalls++
	ba.stats.BytesFreed += int64(size)
	ba.liveByClass[Class(b.data[off+format.CellClassOffset])]--
	b.used -= size
	b.cells--
	format.PutFreeCellHeader(b.data, off, size)
	return nil
}

// Payload returns the payload of the allocated cell at addr.
func (ba *BumpAllocator) Payload(addr Addr) ([]byte, error) {
	if ba.closed {
		return nil, ErrClosed
	}
	b, off, size, err := ba.bins.resolve(addr)
	if err != nil {
		return nil, err
	}
	return b.data[off+format.CellHeaderSize : off+size], nil
}

// grow maps a new bin and points the bump pointer at its first cell.
func (ba *BumpAllocator) grow(size int) error {
	b, err := ba.bins.mapBin(size)
	if err != nil {
		return err
	}
	ba.stats.GrowCalls++
	ba.cur = b
	ba.endBlocks = format.BinHeaderSize
	ba.markRemainder()
	return nil
}

// Stats returns a snapshot of allocator statistics.
func (ba *BumpAllocator) Stats() Stats {
	s := Stats{
		Strategy:       StrategyBump,
		Backing:        ba.cfg.Backing,
		AllocCalls:     ba.stats.AllocCalls,
		AllocFastPath:  ba.stats.AllocFastPath,
		AllocSlowPath:  ba.stats.AllocSlowPath,
		ReallocCalls:   ba.stats.ReallocCalls,
		ReallocInPlace: ba.stats.ReallocInPlace,
		FreeCalls:      ba.stats.FreeCalls,
		GrowCalls:      ba.stats.GrowCalls,
		BinsMapped:     ba.bins.mappedTotal,
		BinsReleased:   ba.bins.releasedTotal,
		LiveBins:       ba.bins.live,
		BytesMapped:    ba.bins.mapped,
		BytesAllocated: ba.stats.BytesAllocated,
		BytesFreed:     ba.stats.BytesFreed,
		LiveByClass:    make(map[Class]int, len(ba.liveByClass)),
	}
	for _, b := range ba.bins.bins {
		if b != nil {
			s.BytesInUse += int64(b.used)
			s.LiveCells += b.cells
		}
	}
	if ba.cur != nil {
		if rem := len(ba.cur.data) - ba.endBlocks; rem > 0 {
			s.FreeCells = 1
			s.BytesFree = int64(rem)
			s.LargestFree = rem
		}
	}
	for cls, n := range ba.liveByClass {
		if n != 0 {
			s.LiveByClass[cls] = n
		}
	}
	return s
}

// Verify checks that every bin tiles exactly and that the per-bin counters
// agree with the cells.
func (ba *BumpAllocator) Verify() error {
	if ba.closed {
		return ErrClosed
	}
	return ba.bins.verifyAccounting()
}

// Close unmaps every bin.
func (ba *BumpAllocator) Close() error {
	if ba.closed {
		return nil
	}
	ba.closed = true
	ba.cur = nil
	return ba.bins.closeAll()
}

// Compile-time interface check
var _ Allocator = (*BumpAllocator)(nil)
