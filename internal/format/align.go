package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n int) int {
	return (n + CellAlignmentMask) & ^CellAlignmentMask
}

// AlignPage returns n aligned up to the next page boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n int) int {
	return (n + PageSizeMask) & ^PageSizeMask
}

// CellSizeFor returns the total cell size needed to hold a payload of n bytes.
// The result is aligned and never smaller than MinCellSize.
func CellSizeFor(n int) int {
	size := Align8(n + CellHeaderSize)
	if size < MinCellSize {
		return MinCellSize
	}
	return size
}
