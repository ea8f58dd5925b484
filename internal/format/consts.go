// Package format defines the raw layout shared by the platform heap and the
// allocation primitive: bin headers, cell headers, the payload size word and
// the alignment rules that tie them together. Everything here works on plain
// byte slices so callers never need unsafe to read or write a header.
package format

// BinSignature is the four-byte signature at the start of every bin.
// Layout:
//
//	0x00  'm' 'b' 'i' 'n'
var BinSignature = []byte{'m', 'b', 'i', 'n'}

const (
	// WordSize is the width of the size word that prefixes every allocation
	// handed out by the allocation primitive.
	WordSize = 8

	// BinHeaderSize is the size of the bin header in bytes.
	//
	//	Offset  Size  Description
	//	0x00    4     Signature "mbin"
	//	0x04    4     Bin id (1-based)
	//	0x08    4     Bin size including this header
	//	0x0C    4     Reserved
	BinHeaderSize = 0x10

	BinSignatureOffset = 0x00
	BinIDOffset        = 0x04
	BinSizeOffset      = 0x08

	// CellHeaderSize is the number of bytes preceding every cell payload.
	//
	//	Offset  Size  Description
	//	0x00    4     Signed size. Negative => allocated, positive => free.
	//	              The absolute value includes this header.
	//	0x04    1     Class tag of an allocated cell (0 when free).
	//	0x05    3     Reserved
	CellHeaderSize = 8

	CellSizeOffset  = 0x00
	CellClassOffset = 0x04

	// CellAlignment is the required alignment of cells within a bin.
	CellAlignment     = 8
	CellAlignmentMask = CellAlignment - 1

	// MinCellSize is the smallest legal cell: header plus one word of payload.
	MinCellSize = CellHeaderSize + WordSize

	// PageSize is the granularity bins are mapped in.
	PageSize     = 0x1000
	PageSizeMask = PageSize - 1

	// MaxBinSize bounds a single bin so offsets and sizes fit in int32.
	MaxBinSize = 1 << 30
)
