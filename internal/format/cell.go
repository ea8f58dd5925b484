package format

import (
	"bytes"
	"fmt"
)

// Cell is a decoded cell header.
type Cell struct {
	Offset int   // Offset of the header within its bin
	Size   int   // Total size including header
	Free   bool  // True when the cell is marked free
	Class  uint8 // Class tag, zero for free cells
}

// PutCellHeader writes an allocated cell header of the given total size.
func PutCellHeader(b []byte, off, size int, class uint8) {
	PutI32(b, off+CellSizeOffset, -int32(size))
	b[off+CellClassOffset] = class
}

// PutFreeCellHeader writes a free cell header of the given total size.
func PutFreeCellHeader(b []byte, off, size int) {
	PutI32(b, off+CellSizeOffset, int32(size))
	b[off+CellClassOffset] = 0
}

// ReadCell decodes the cell header at off. The caller must ensure the header
// lies within the bin.
func ReadCell(b []byte, off int) (Cell, error) {
	if off < BinHeaderSize || off+CellHeaderSize > len(b) {
		return Cell{}, fmt.Errorf("cell at %d: %w", off, ErrTruncated)
	}
	raw := ReadI32(b, off+CellSizeOffset)
	if raw == 0 {
		return Cell{}, fmt.Errorf("cell at %d: %w", off, ErrZeroCell)
	}
	c := Cell{Offset: off, Free: raw > 0}
	if raw < 0 {
		raw = -raw
		c.Class = b[off+CellClassOffset]
	}
	c.Size = int(raw)
	if c.Size%CellAlignment != 0 || off+c.Size > len(b) {
		return Cell{}, fmt.Errorf("cell at %d size %d: %w", off, c.Size, ErrTruncated)
	}
	return c, nil
}

// PutBinHeader writes the header of a freshly mapped bin.
func PutBinHeader(b []byte, id uint32) {
	copy(b[BinSignatureOffset:], BinSignature)
	PutU32(b, BinIDOffset, id)
	PutU32(b, BinSizeOffset, uint32(len(b)))
}

// CheckBinHeader validates the header of a mapped bin against its expected id.
func CheckBinHeader(b []byte, id uint32) error {
	if len(b) < BinHeaderSize {
		return fmt.Errorf("bin %d: %w", id, ErrTruncated)
	}
	if !bytes.Equal(b[BinSignatureOffset:BinSignatureOffset+4], BinSignature) {
		return fmt.Errorf("bin %d: %w", id, ErrSignatureMismatch)
	}
	if got := ReadU32(b, BinIDOffset); got != id {
		return fmt.Errorf("bin %d: header id %d: %w", id, got, ErrSignatureMismatch)
	}
	if got := ReadU32(b, BinSizeOffset); int(got) != len(b) {
		return fmt.Errorf("bin %d: header size %d, mapped %d: %w", id, got, len(b), ErrTruncated)
	}
	return nil
}
