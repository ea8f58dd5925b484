package alloc

import (
	"container/heap"
	"fmt"
	"os"
	"sync"

	"github.com/joshuapare/memkit/internal/format"
)

const (
	// maxSlowPathScan bounds how many cells of one size class are inspected
	// when the smallest cell in the class is too small.
	maxSlowPathScan = 32

	// fitTolerance accepts a cell within this many bytes of the request
	// without scanning further.
	fitTolerance = 64
)

// FastAllocator is a best-fit allocator using a min-heap per size class.
//   - Min-heaps give O(log n) allocation/removal and best fit inside a class
//   - byOff maps a free cell's address to its heap entry for coalescing
//   - endIdx maps the end of a free cell to its start for backward coalescing
//   - the last free list collects every cell above the largest size class
type FastAllocator struct {
	cfg  Config
	bins *binSet

	// Size class configuration and lookup table
	sizeTable *sizeClassTable

	// Segregated free lists; index NumClasses() is the large list
	freeLists []freeList

	// Pool for reusing freeCell structs
	freeCellPool sync.Pool

	byOff  map[Addr]*freeCell
	endIdx map[Addr]Addr

	stats       allocatorStats
	liveByClass map[Class]int
	closed      bool
}

// freeList is a size-class-specific free list using a min-heap.
type freeList struct {
	heap  freeCellHeap // Min-heap keyed on size
	count int
}

// freeCell is one entry of a free list.
type freeCell struct {
	addr      Addr // Address of the cell header
	size      int  // Size including header
	sc        int  // Size class (which heap this belongs to)
	heapIndex int  // Position in heap (for heap.Remove)
}

// freeCellHeap implements heap.Interface for min-heap keyed on cell size.
// Smallest cells are at the top, giving best-fit allocation.
type freeCellHeap []*freeCell

func (h *freeCellHeap) Len() int { return len(*h) }

func (h *freeCellHeap) Less(i, j int) bool {
	return (*h)[i].size < (*h)[j].size
}

func (h *freeCellHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeCellHeap) Push(x any) {
	cell := x.(*freeCell) //nolint:errcheck // heap.Interface contract guarantees type
	cell.heapIndex = len(*h)
	*h = append(*h, cell)
}

func (h *freeCellHeap) Pop() any {
	old := *h
	n := len(old)
	cell := old[n-1]
	old[n-1] = nil
	cell.heapIndex = -1
	*h = old[0 : n-1]
	return cell
}

// allocatorStats holds internal allocator counters.
type allocatorStats struct {
	AllocCalls       int   // Total Alloc() calls
	AllocFastPath    int   // Allocations served from a free list
	AllocSlowPath    int   // Allocations that required a new bin
	ReallocCalls     int   // Total Realloc() calls
	ReallocInPlace   int   // Reallocs that kept their address
	FreeCalls        int   // Total Free() calls
	GrowCalls        int   // Bins mapped on demand
	BytesAllocated   int64 // Total bytes allocated (including headers)
	BytesFreed       int64 // Total bytes freed
	SplitCount       int   // Number of cell splits
	CoalesceForward  int   // Forward coalesce operations
	CoalesceBackward int   // Backward coalesce operations
	HeapPushes       int   // heap.Push() calls
	HeapRemoves      int   // heap.Pop()/heap.Remove() calls
}

// NewFast creates a free-list allocator. A nil cfg uses DefaultConfig.
// No bin is mapped until the first allocation.
func NewFast(cfg *Config) (*FastAllocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	bins, err := newBinSet(c)
	if err != nil {
		return nil, err
	}

	sizeTable := newSizeClassTable(c.SizeClasses)
	fa := &FastAllocator{
		cfg:         c,
		bins:        bins,
		sizeTable:   sizeTable,
		freeLists:   make([]freeList, sizeTable.NumClasses()+1),
		byOff:       make(map[Addr]*freeCell, 256),
		endIdx:      make(map[Addr]Addr, 256),
		liveByClass: make(map[Class]int),
	}
	fa.freeCellPool.New = func() any { return &freeCell{heapIndex: -1} }
	return fa, nil
}

// Alloc allocates a cell with room for at least need payload bytes. The
// returned payload covers the whole cell and is zeroed.
func (fa *FastAllocator) Alloc(need int, cls Class) (Addr, []byte, error) {
	if fa.closed {
		return 0, nil, ErrClosed
	}
	if need <= 0 {
		return 0, nil, ErrNeedSmall
	}
	if need > maxPayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, need)
	}
	fa.stats.AllocCalls++

	size := format.CellSizeFor(need)
	cell := fa.take(size)
	if cell != nil {
		fa.stats.AllocFastPath++
	} else {
		var err error
		cell, err = fa.grow(size)
		if err != nil {
			if logAlloc {
				fmt.Fprintf(os.Stderr, "[ALLOC] request of %d bytes failed: %v\n", need, err)
			}
			return 0, nil, err
		}
		fa.stats.AllocSlowPath++
	}

	addr, payload := fa.carve(cell, size, cls)
	if logAlloc && need > 1000 {
		fmt.Fprintf(os.Stderr, "[ALLOC] %d bytes -> cell %s (%d bytes)\n", need, addr, len(payload)+format.CellHeaderSize)
	}
	return addr, payload, nil
}

// Realloc resizes the cell at addr. Shrinking and growing into a free
// successor keep the address; otherwise the payload moves to a new cell.
// On failure the original cell is left exactly as it was.
func (fa *FastAllocator) Realloc(addr Addr, need int) (Addr, []byte, error) {
	if fa.closed {
		return addr, nil, ErrClosed
	}
	b, off, size, err := fa.bins.resolve(addr)
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
	fa.stats.ReallocCalls++

	cls := b.data[off+format.CellClassOffset]
	newSize := format.CellSizeFor(need)

	if newSize <= size {
		if rem := size - newSize; rem >= format.MinCellSize {
			format.PutCellHeader(b.data, off, newSize, cls)
			b.used -= rem
			fa.stats.BytesFreed += int64(rem)
			fa.stats.SplitCount++
			fa.release(b, off+newSize, rem)
			size = newSize
		}
		fa.stats.ReallocInPlace++
		return addr, b.data[off+format.CellHeaderSize : off+size], nil
	}

	if next, ok := fa.byOff[MakeAddr(b.id, off+size)]; ok && size+next.size >= newSize {
		total := size + next.size
		fa.removeFreeCell(next)
		if rem := total - newSize; rem >= format.MinCellSize {
			fa.insertFreeCell(b, off+newSize, rem)
			fa.stats.SplitCount++
			total = newSize
		}
		clear(b.data[off+size : off+total])
		format.PutCellHeader(b.data, off, total, cls)
		b.used += total - size
		fa.stats.BytesAllocated += int64(total - size)
		fa.stats.ReallocInPlace++
		return addr, b.data[off+format.CellHeaderSize : off+total], nil
	}

	naddr, npayload, err := fa.Alloc(need, Class(cls))
	if err != nil {
		return addr, old, err
	}
	copy(npayload, old)
	if err := fa.Free(addr); err != nil {
		// The payload already lives at naddr and the old cell is gone.
		return naddr, npayload, fmt.Errorf("alloc: releasing moved cell: %w", err)
	}
	return naddr, npayload, nil
}

// Free releases the cell at addr and merges it with free neighbours.
func (fa *FastAllocator) Free(addr Addr) error {
	if fa.closed {
		return ErrClosed
	}
	b, off, size, err := fa.bins.resolve(addr)
	if err != nil {
		return err
	}
	fa.stats.FreeCalls++
	fa.stats.BytesFreed += int64(size)
	fa.liveByClass[Class(b.data[off+format.CellClassOffset])]--
	b.used -= size
	b.cells--

	return fa.release(b, off, size)
}

// Payload returns the payload of the allocated cell at addr.
func (fa *FastAllocator) Payload(addr Addr) ([]byte, error) {
	if fa.closed {
		return nil, ErrClosed
	}
	b, off, size, err := fa.bins.resolve(addr)
	if err != nil {
		return nil, err
	}
	return b.data[off+format.CellHeaderSize : off+size], nil
}

// Class returns the class tag of the allocated cell at addr.
func (fa *FastAllocator) Class(addr Addr) (Class, error) {
	if fa.closed {
		return 0, ErrClosed
	}
	b, off, _, err := fa.bins.resolve(addr)
	if err != nil {
		return 0, err
	}
	return Class(b.data[off+format.CellClassOffset]), nil
}

// Close unmaps every bin.
func (fa *FastAllocator) Close() error {
	if fa.closed {
		return nil
	}
	fa.closed = true
	for i := range fa.freeLists {
		fa.freeLists[i] = freeList{}
	}
	clear(fa.byOff)
	clear(fa.endIdx)
	return fa.bins.closeAll()
}

// take removes and returns a free cell of at least size bytes, or nil.
func (fa *FastAllocator) take(size int) *freeCell {
	for sc := fa.sizeTable.getSizeClass(size); sc < len(fa.freeLists); sc++ {
		if cell := fa.allocFromSizeClass(sc, size); cell != nil {
			return cell
		}
	}
	return nil
}

func (fa *FastAllocator) allocFromSizeClass(sc int, need int) *freeCell {
	list := &fa.freeLists[sc]
	if list.heap.Len() == 0 {
		return nil
	}

	// Fast path: heap[0] is the smallest cell in this class.
	if list.heap[0].size >= need {
		cell := list.heap[0]
		fa.unlink(cell)
		return cell
	}

	// Slow path: heap[0] is too small, but larger cells in this class may fit.
	// Accept the first cell within fitTolerance, else the best seen. The large
	// list is scanned completely since it is rarely long.
	scanLimit := list.heap.Len()
	if sc < fa.sizeTable.NumClasses() {
		scanLimit = min(scanLimit, maxSlowPathScan)
	}
	bestIdx := -1
	bestSize := int(^uint(0) >> 1)
	maxAcceptable := need + fitTolerance

	for i := 1; i < scanLimit; i++ {
		cellSize := list.heap[i].size
		if cellSize < need {
			continue
		}
		if cellSize <= maxAcceptable {
			bestIdx = i
			break
		}
		if cellSize < bestSize {
			bestIdx = i
			bestSize = cellSize
		}
	}
	if bestIdx == -1 {
		return nil
	}

	cell := list.heap[bestIdx]
	fa.unlink(cell)
	return cell
}

// grow maps a new bin and returns its single free cell, not yet indexed.
func (fa *FastAllocator) grow(size int) (*freeCell, error) {
	b, err := fa.bins.mapBin(size)
	if err != nil {
		return nil, err
	}
	fa.stats.GrowCalls++

	cell := fa.getFreeCell()
	cell.addr = MakeAddr(b.id, format.BinHeaderSize)
	cell.size = len(b.data) - format.BinHeaderSize
	format.PutFreeCellHeader(b.data, format.BinHeaderSize, cell.size)
	return cell, nil
}

// carve turns an unlinked free cell into an allocated cell of size bytes,
// returning any remainder to the free lists.
func (fa *FastAllocator) carve(cell *freeCell, size int, cls Class) (Addr, []byte) {
	addr := cell.addr
	total := cell.size
	fa.putFreeCell(cell)

	b, _ := fa.bins.get(addr.Bin())
	off := addr.Off()
	if rem := total - size; rem >= format.MinCellSize {
		fa.insertFreeCell(b, off+size, rem)
		fa.stats.SplitCount++
		total = size
	}

	format.PutCellHeader(b.data, off, total, uint8(cls))
	payload := b.data[off+format.CellHeaderSize : off+total]
	clear(payload)

	b.used += total
	b.cells++
	fa.stats.BytesAllocated += int64(total)
	fa.liveByClass[cls]++
	return addr, payload
}

// release returns the span [off, off+size) of b to the free lists, merging it
// with free neighbours. A bin left without allocated cells is unmapped when
// ReleaseEmptyBins is set and another bin is live.
func (fa *FastAllocator) release(b *bin, off, size int) error {
	// Mark the span free before merging so a stale address into it reports
	// ErrNotAllocated instead of resolving as a live cell.
	format.PutFreeCellHeader(b.data, off, size)

	if next, ok := fa.byOff[MakeAddr(b.id, off+size)]; ok {
		fa.stats.CoalesceForward++
		size += next.size
		fa.removeFreeCell(next)
	}
	if prevAddr, ok := fa.endIdx[MakeAddr(b.id, off)]; ok {
		prev := fa.byOff[prevAddr]
		fa.stats.CoalesceBackward++
		off = prevAddr.Off()
		size += prev.size
		fa.removeFreeCell(prev)
	}

	if b.cells == 0 && fa.cfg.ReleaseEmptyBins && fa.bins.live > 1 {
		return fa.bins.unmap(b)
	}
	fa.insertFreeCell(b, off, size)
	return nil
}

// insertFreeCell writes a free header at off and indexes the cell.
func (fa *FastAllocator) insertFreeCell(b *bin, off, size int) {
	format.PutFreeCellHeader(b.data, off, size)

	cell := fa.getFreeCell()
	cell.addr = MakeAddr(b.id, off)
	cell.size = size
	cell.sc = fa.sizeTable.getSizeClass(size)

	fa.stats.HeapPushes++
	heap.Push(&fa.freeLists[cell.sc].heap, cell)
	fa.freeLists[cell.sc].count++

	fa.byOff[cell.addr] = cell
	fa.endIdx[cell.addr.Add(size)] = cell.addr
}

// unlink removes cell from its heap and the coalescing indexes.
func (fa *FastAllocator) unlink(cell *freeCell) {
	fa.stats.HeapRemoves++
	heap.Remove(&fa.freeLists[cell.sc].heap, cell.heapIndex)
	fa.freeLists[cell.sc].count--
	delete(fa.byOff, cell.addr)
	delete(fa.endIdx, cell.addr.Add(cell.size))
}

// removeFreeCell unlinks cell and returns it to the pool.
func (fa *FastAllocator) removeFreeCell(cell *freeCell) {
	fa.unlink(cell)
	fa.putFreeCell(cell)
}

func (fa *FastAllocator) getFreeCell() *freeCell {
	cell, ok := fa.freeCellPool.Get().(*freeCell)
	if !ok {
		return &freeCell{heapIndex: -1}
	}
	return cell
}

func (fa *FastAllocator) putFreeCell(cell *freeCell) {
	cell.heapIndex = -1
	cell.sc = 0
	fa.freeCellPool.Put(cell)
}

// Stats returns a snapshot of allocator statistics.
func (fa *FastAllocator) Stats() Stats {
	s := fa.baseStats()
	for _, list := range fa.freeLists {
		for _, c := range list.heap {
			s.FreeCells++
			s.BytesFree += int64(c.size)
			s.LargestFree = max(s.LargestFree, c.size)
		}
	}
	return s
}

func (fa *FastAllocator) baseStats() Stats {
	s := Stats{
		Strategy:         StrategyFast,
		Backing:          fa.cfg.Backing,
		SizeClasses:      fa.sizeTable.String(),
		AllocCalls:       fa.stats.AllocCalls,
		AllocFastPath:    fa.stats.AllocFastPath,
		AllocSlowPath:    fa.stats.AllocSlowPath,
		ReallocCalls:     fa.stats.ReallocCalls,
		ReallocInPlace:   fa.stats.ReallocInPlace,
		FreeCalls:        fa.stats.FreeCalls,
		GrowCalls:        fa.stats.GrowCalls,
		BinsMapped:       fa.bins.mappedTotal,
		BinsReleased:     fa.bins.releasedTotal,
		LiveBins:         fa.bins.live,
		BytesMapped:      fa.bins.mapped,
		BytesAllocated:   fa.stats.BytesAllocated,
		BytesFreed:       fa.stats.BytesFreed,
		SplitCount:       fa.stats.SplitCount,
		CoalesceForward:  fa.stats.CoalesceForward,
		CoalesceBackward: fa.stats.CoalesceBackward,
		HeapPushes:       fa.stats.HeapPushes,
		HeapRemoves:      fa.stats.HeapRemoves,
		LiveByClass:      make(map[Class]int, len(fa.liveByClass)),
	}
	for _, b := range fa.bins.bins {
		if b != nil {
			s.BytesInUse += int64(b.used)
			s.LiveCells += b.cells
		}
	}
	for cls, n := range fa.liveByClass {
		if n != 0 {
			s.LiveByClass[cls] = n
		}
	}
	return s
}

// Verify checks that the bins tile exactly, that every free cell is indexed
// with its true size, that no two free cells are adjacent, and that the
// per-bin counters agree with the cells.
func (fa *FastAllocator) Verify() error {
	if fa.closed {
		return ErrClosed
	}
	if err := fa.bins.verifyAccounting(); err != nil {
		return err
	}

	walkedFree := 0
	var prevFree Addr
	err := fa.bins.walk(func(b *bin, c format.Cell) error {
		addr := MakeAddr(b.id, c.Offset)
		if !c.Free {
			return nil
		}
		walkedFree++
		if prevFree != 0 && prevFree.Bin() == b.id {
			if prev := fa.byOff[prevFree]; prev != nil && prevFree.Add(prev.size) == addr {
				return fmt.Errorf("%w: adjacent free cells %s and %s", ErrCorrupt, prevFree, addr)
			}
		}
		prevFree = addr

		fc, ok := fa.byOff[addr]
		if !ok {
			return fmt.Errorf("%w: free cell %s not indexed", ErrCorrupt, addr)
		}
		if fc.size != c.Size {
			return fmt.Errorf("%w: free cell %s indexed as %d bytes, header says %d", ErrCorrupt, addr, fc.size, c.Size)
		}
		if start, ok := fa.endIdx[addr.Add(c.Size)]; !ok || start != addr {
			return fmt.Errorf("%w: free cell %s missing from end index", ErrCorrupt, addr)
		}
		list := fa.freeLists[fc.sc].heap
		if fc.heapIndex < 0 || fc.heapIndex >= len(list) || list[fc.heapIndex] != fc {
			return fmt.Errorf("%w: free cell %s has stale heap index %d", ErrCorrupt, addr, fc.heapIndex)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if walkedFree != len(fa.byOff) || walkedFree != len(fa.endIdx) {
		return fmt.Errorf("%w: walked %d free cells, indexed %d by start and %d by end",
			ErrCorrupt, walkedFree, len(fa.byOff), len(fa.endIdx))
	}
	return nil
}

var _ Allocator = (*FastAllocator)(nil)
