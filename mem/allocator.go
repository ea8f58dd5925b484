package mem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/logging"
)

// WordSize is the size of the hidden size word in front of every payload.
const WordSize = format.WordSize

// payloadOffset is the distance from a cell address to the payload.
const payloadOffset = format.CellHeaderSize + WordSize

// Ptr addresses the payload of a block. Nil is the null pointer.
type Ptr uint64

// Nil is the null pointer.
const Nil Ptr = 0

func ptrFor(addr alloc.Addr) Ptr { return Ptr(addr.Add(payloadOffset)) }

func (p Ptr) addr() alloc.Addr { return alloc.Addr(p).Add(-payloadOffset) }

func (p Ptr) String() string {
	if p == Nil {
		return "nil"
	}
	return alloc.Addr(p).String()
}

// Allocator is the allocation primitive.
type Allocator struct {
	heap  alloc.Allocator
	log   logging.Logger
	owned bool

	liveBlocks int
	liveBytes  int64
}

// Stats reports the blocks handed out by an Allocator.
type Stats struct {
	LiveBlocks int   // blocks allocated and not yet freed
	LiveBytes  int64 // sum of their requested sizes
	Heap       alloc.Stats
}

// New creates an Allocator over a platform heap built from opts.Heap. The
// heap is closed by Close.
func New(opts *Options) (*Allocator, error) {
	h, err := alloc.New(opts.heapConfig())
	if err != nil {
		return nil, fmt.Errorf("mem: creating heap: %w", err)
	}
	a := NewWithHeap(h, opts.logger())
	a.owned = true
	return a, nil
}

// NewWithHeap creates an Allocator over an existing heap. The caller keeps
// ownership of h. A nil log uses logging.Default().
func NewWithHeap(h alloc.Allocator, log logging.Logger) *Allocator {
	if log == nil {
		log = logging.Default()
	}
	return &Allocator{heap: h, log: log}
}

// Logger returns the sink failures are recorded on.
func (a *Allocator) Logger() logging.Logger { return a.log }

// Heap returns the underlying platform heap.
func (a *Allocator) Heap() alloc.Allocator { return a.heap }

// Allocate reserves n payload bytes plus the size word and returns a pointer
// to the payload. The payload is zeroed.
func (a *Allocator) Allocate(n int) (Ptr, error) {
	return a.AllocateClass(n, alloc.ClassRaw)
}

// AllocateClass is Allocate with an explicit cell class tag.
func (a *Allocator) AllocateClass(n int, cls alloc.Class) (Ptr, error) {
	if n <= 0 {
		return Nil, a.fail(fmt.Errorf("%w: allocate %d bytes", ErrZeroSize, n))
	}
	need, ok := buf.AddOverflowSafe(n, WordSize)
	if !ok {
		return Nil, a.fail(fmt.Errorf("%w: allocate %d bytes: size overflows", ErrOutOfMemory, n))
	}
	addr, payload, err := a.heap.Alloc(need, cls)
	if err != nil {
		return Nil, a.fail(heapError("allocate", n, err))
	}
	format.PutU64(payload, 0, uint64(n))
	a.liveBlocks++
	a.liveBytes += int64(n)
	return ptrFor(addr), nil
}

// Reallocate resizes the block at p to n bytes, preserving the payload up to
// the smaller of the two sizes, and returns the possibly moved pointer. On
// failure p is returned unchanged and still holds its original size. The one
// exception is a move whose old cell could not be released: the new pointer
// is returned together with the error and p must no longer be used.
func (a *Allocator) Reallocate(p Ptr, n int) (Ptr, error) {
	if p == Nil {
		return p, a.fail(fmt.Errorf("%w: reallocate", ErrNilPointer))
	}
	if n <= 0 {
		return p, a.fail(fmt.Errorf("%w: reallocate %s to %d bytes", ErrZeroSize, p, n))
	}
	need, ok := buf.AddOverflowSafe(n, WordSize)
	if !ok {
		return p, a.fail(fmt.Errorf("%w: reallocate %s to %d bytes: size overflows", ErrOutOfMemory, p, n))
	}
	old := a.Size(p)
	addr, payload, err := a.heap.Realloc(p.addr(), need)
	if err != nil {
		if addr == p.addr() || payload == nil {
			return p, a.fail(heapError("reallocate", n, err))
		}
		// The block moved but its old cell could not be released cleanly.
		// The new block is the only valid one, so hand it back.
		a.adopt(payload, n, old)
		return ptrFor(addr), a.fail(fmt.Errorf("mem: reallocate %s: %w", p, err))
	}
	a.adopt(payload, n, old)
	return ptrFor(addr), nil
}

// adopt records n as the size of a reallocated block that used to hold old bytes.
func (a *Allocator) adopt(payload []byte, n, old int) {
	format.PutU64(payload, 0, uint64(n))
	a.liveBytes += int64(n - old)
}

// Free releases the block at *p and sets *p to Nil. Freeing Nil is recorded
// as a warning and reported as ErrNilPointer.
func (a *Allocator) Free(p *Ptr) error {
	if p == nil || *p == Nil {
		err := fmt.Errorf("%w: free", ErrNilPointer)
		a.log.Record(fmt.Sprintf("Attempted to free a null pointer: %v", err), logging.LevelWarning)
		return err
	}
	n := a.Size(*p)
	if err := a.heap.Free(p.addr()); err != nil {
		return a.fail(fmt.Errorf("mem: free %s: %w", *p, err))
	}
	a.liveBlocks--
	a.liveBytes -= int64(n)
	*p = Nil
	return nil
}

// Size returns the byte count recorded for the block at p. It returns 0 for
// Nil and for pointers that do not address a live block.
func (a *Allocator) Size(p Ptr) int {
	payload := a.record(p)
	if payload == nil {
		return 0
	}
	return int(format.ReadU64(payload, 0))
}

// Bytes returns the payload of the block at p, exactly Size(p) bytes long,
// or nil if p does not address a live block.
func (a *Allocator) Bytes(p Ptr) []byte {
	payload := a.record(p)
	if payload == nil {
		return nil
	}
	b, ok := buf.Slice(payload, WordSize, int(format.ReadU64(payload, 0)))
	if !ok {
		return nil
	}
	return b[:len(b):len(b)]
}

// record returns the cell payload (size word included) behind p.
func (a *Allocator) record(p Ptr) []byte {
	if p == Nil {
		return nil
	}
	payload, err := a.heap.Payload(p.addr())
	if err != nil || len(payload) < WordSize {
		return nil
	}
	return payload
}

// Stats returns a snapshot of block and heap statistics.
func (a *Allocator) Stats() Stats {
	return Stats{
		LiveBlocks: a.liveBlocks,
		LiveBytes:  a.liveBytes,
		Heap:       a.heap.Stats(),
	}
}

// Close releases the heap when the Allocator created it.
func (a *Allocator) Close() error {
	if !a.owned {
		return nil
	}
	return a.heap.Close()
}

// fail records err at error severity and returns it.
func (a *Allocator) fail(err error) error {
	a.log.Record(err.Error(), logging.LevelError)
	return err
}

// heapError classifies a platform heap failure. Exhaustion becomes
// ErrOutOfMemory; anything else keeps the heap's own sentinel.
func heapError(op string, n int, err error) error {
	if errors.Is(err, alloc.ErrNoSpace) || errors.Is(err, alloc.ErrTooLarge) {
		return fmt.Errorf("%w: %s %d bytes: %w", ErrOutOfMemory, op, n, err)
	}
	return fmt.Errorf("mem: %s %d bytes: %w", op, n, err)
}
