package alloc

import (
	"fmt"
	"io"
	"slices"
)

// Stats is a snapshot of allocator statistics.
type Stats struct {
	Strategy    Strategy
	Backing     string
	SizeClasses string // size class preset name, empty for the bump allocator

	AllocCalls     int
	AllocFastPath  int // served from a free list or the current bin
	AllocSlowPath  int // required mapping a bin
	ReallocCalls   int
	ReallocInPlace int
	FreeCalls      int
	GrowCalls      int

	BinsMapped   int // bins mapped over the allocator's lifetime
	BinsReleased int // bins returned to the page source
	LiveBins     int

	BytesMapped    int64 // bytes currently mapped
	BytesInUse     int64 // bytes held by allocated cells, headers included
	BytesFree      int64 // bytes in indexed free cells
	BytesAllocated int64 // cumulative
	BytesFreed     int64 // cumulative

	LiveCells   int
	FreeCells   int
	LargestFree int

	SplitCount       int
	CoalesceForward  int
	CoalesceBackward int
	HeapPushes       int
	HeapRemoves      int

	LiveByClass map[Class]int
}

// Utilization returns BytesInUse as a fraction of BytesMapped.
func (s Stats) Utilization() float64 {
	if s.BytesMapped == 0 {
		return 0
	}
	return float64(s.BytesInUse) / float64(s.BytesMapped)
}

// Fprint writes a human-readable summary of s to w.
func (s Stats) Fprint(w io.Writer) {
	fmt.Fprintf(w, "=== Allocator Statistics (%s, %s) ===\n", s.Strategy, s.Backing)
	if s.SizeClasses != "" {
		fmt.Fprintf(w, "Size classes:      %s\n", s.SizeClasses)
	}
	fmt.Fprintf(w, "Alloc calls:       %d (fast %d, slow %d)\n", s.AllocCalls, s.AllocFastPath, s.AllocSlowPath)
	fmt.Fprintf(w, "Realloc calls:     %d (in place %d)\n", s.ReallocCalls, s.ReallocInPlace)
	fmt.Fprintf(w, "Free calls:        %d\n", s.FreeCalls)
	fmt.Fprintf(w, "Bins:              %d live, %d mapped, %d released\n", s.LiveBins, s.BinsMapped, s.BinsReleased)
	fmt.Fprintf(w, "Bytes mapped:      %d\n", s.BytesMapped)
	fmt.Fprintf(w, "Bytes in use:      %d (%.1f%%)\n", s.BytesInUse, s.Utilization()*100)
	fmt.Fprintf(w, "Free cells:        %d (%d bytes, largest %d)\n", s.FreeCells, s.BytesFree, s.LargestFree)
	fmt.Fprintf(w, "Splits/coalesces:  %d / %d fwd, %d back\n", s.SplitCount, s.CoalesceForward, s.CoalesceBackward)

	classes := make([]Class, 0, len(s.LiveByClass))
	for cls := range s.LiveByClass {
		classes = append(classes, cls)
	}
	slices.Sort(classes)
	for _, cls := range classes {
		fmt.Fprintf(w, "Live %-8s       %d\n", cls.String()+":", s.LiveByClass[cls])
	}
}
