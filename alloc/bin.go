package alloc

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/pages"
)

// Runtime debug flag for allocation tracing - controlled by MEMKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("MEMKIT_LOG_ALLOC") != ""

// bin is one mapped page range.
type bin struct {
	id    uint32
	data  []byte
	used  int // bytes held by allocated cells, headers included
	cells int // allocated cells
}

// binSet owns the mapped bins of an allocator. Bin ids are never reused, so
// an address into a released bin resolves to ErrBadAddr instead of aliasing
// newer memory.
type binSet struct {
	src      pages.Source
	bins     []*bin // index id-1; nil once released
	live     int
	mapped   int64
	maxBytes int64
	binSize  int

	mappedTotal   int
	releasedTotal int
}

func newBinSet(cfg Config) (*binSet, error) {
	src, err := pages.ForName(cfg.Backing)
	if err != nil {
		return nil, err
	}
	return &binSet{
		src:      src,
		maxBytes: cfg.MaxBytes,
		binSize:  cfg.BinSize,
	}, nil
}

// mapBin maps a bin large enough to hold a cell of cellSize bytes and writes
// its header. The bin's usable space is left for the caller to describe.
func (s *binSet) mapBin(cellSize int) (*bin, error) {
	size := max(s.binSize, format.AlignPage(format.BinHeaderSize+cellSize))
	if size > format.MaxBinSize {
		return nil, fmt.Errorf("%w: cell of %d bytes", ErrTooLarge, cellSize)
	}
	if s.maxBytes > 0 && s.mapped+int64(size) > s.maxBytes {
		return nil, fmt.Errorf("%w: mapping %d bytes would exceed limit %d (mapped %d)",
			ErrNoSpace, size, s.maxBytes, s.mapped)
	}

	data, err := s.src.Map(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSpace, err)
	}

	b := &bin{id: uint32(len(s.bins) + 1), data: data}
	format.PutBinHeader(data, b.id)
	s.bins = append(s.bins, b)
	s.live++
	s.mapped += int64(size)
	s.mappedTotal++

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] mapped bin %d: %d bytes from %s (total %d)\n",
			b.id, size, s.src.Name(), s.mapped)
	}
	return b, nil
}

// unmap returns b to the page source.
func (s *binSet) unmap(b *bin) error {
	s.bins[b.id-1] = nil
	s.live--
	s.mapped -= int64(len(b.data))
	s.releasedTotal++

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] released bin %d: %d bytes (total %d)\n",
			b.id, len(b.data), s.mapped)
	}

	data := b.data
	b.data = nil
	return s.src.Unmap(data)
}

// get returns the live bin with the given id.
func (s *binSet) get(id uint32) (*bin, bool) {
	if id == 0 || int(id) > len(s.bins) {
		return nil, false
	}
	b := s.bins[id-1]
	return b, b != nil
}

// resolve maps addr to its bin and the offset of an allocated cell header,
// returning the cell's total size.
func (s *binSet) resolve(addr Addr) (*bin, int, int, error) {
	b, ok := s.get(addr.Bin())
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: %s (no such bin)", ErrBadAddr, addr)
	}
	off := addr.Off()
	if off < format.BinHeaderSize || off%format.CellAlignment != 0 ||
		off+format.CellHeaderSize > len(b.data) {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrBadAddr, addr)
	}
	raw := format.ReadI32(b.data, off+format.CellSizeOffset)
	if raw >= 0 {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrNotAllocated, addr)
	}
	size := int(-raw)
	if off+size > len(b.data) {
		return nil, 0, 0, fmt.Errorf("%w: %s size %d", ErrBadAddr, addr, size)
	}
	return b, off, size, nil
}

// closeAll unmaps every live bin.
func (s *binSet) closeAll() error {
	var errs []error
	for _, b := range s.bins {
		if b != nil {
			errs = append(errs, s.unmap(b))
		}
	}
	s.bins = nil
	return errors.Join(errs...)
}

// walk visits every cell of every live bin in address order.
func (s *binSet) walk(fn func(b *bin, c format.Cell) error) error {
	for _, b := range s.bins {
		if b == nil {
			continue
		}
		if err := format.CheckBinHeader(b.data, b.id); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		off := format.BinHeaderSize
		for off < len(b.data) {
			c, err := format.ReadCell(b.data, off)
			if err != nil {
				return fmt.Errorf("%w: bin %d: %w", ErrCorrupt, b.id, err)
			}
			if err := fn(b, c); err != nil {
				return err
			}
			off += c.Size
		}
		if off != len(b.data) {
			return fmt.Errorf("%w: bin %d: cells end at %d, bin is %d bytes", ErrCorrupt, b.id, off, len(b.data))
		}
	}
	return nil
}

// verifyAccounting checks per-bin used/cells counters against a walk.
func (s *binSet) verifyAccounting() error {
	type tally struct{ used, cells int }
	seen := make(map[uint32]*tally)
	err := s.walk(func(b *bin, c format.Cell) error {
		if c.Free {
			return nil
		}
		t := seen[b.id]
		if t == nil {
			t = &tally{}
			seen[b.id] = t
		}
		t.used += c.Size
		t.cells++
		return nil
	})
	if err != nil {
		return err
	}
	for _, b := range s.bins {
		if b == nil {
			continue
		}
		var t tally
		if p := seen[b.id]; p != nil {
			t = *p
		}
		if t.used != b.used || t.cells != b.cells {
			return fmt.Errorf("%w: bin %d accounting used=%d cells=%d, walked used=%d cells=%d",
				ErrCorrupt, b.id, b.used, b.cells, t.used, t.cells)
		}
	}
	return nil
}
