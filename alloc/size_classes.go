package alloc

import (
	"math"
	"strings"
)

// SizeClassConfig defines the allocation size class strategy.
// Different configurations trade free-list count against internal fragmentation.
type SizeClassConfig struct {
	// Name for this configuration (for stats and benchmarks)
	Name string

	// Small allocation settings (linear increments)
	SmallMin       int // Minimum cell size (typically 16)
	SmallMax       int // Max for linear increments (typically 256-512)
	SmallIncrement int // Increment size for small cells (8, 16, or 32)

	// Medium allocation settings (logarithmic growth)
	MediumMax    int     // Max before the large list (typically 16KB)
	GrowthFactor float64 // Exponential growth factor (1.5, 2.0, etc.)
}

// Predefined configurations.
var (
	// FineGrained: many small buckets, good for varied workloads.
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 8,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// Balanced: good balance between list count and granularity.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// Coarse: fewer buckets, faster operations, more internal fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// SmallObjects: tight packing for handle-sized blocks (shared values,
	// short arrays) that dominate typical workloads.
	SmallObjects = SizeClassConfig{
		Name:           "SmallObjects",
		SmallMin:       16,
		SmallMax:       128,
		SmallIncrement: 8,
		MediumMax:      16384,
		GrowthFactor:   1.3,
	}

	// DefaultSizeClasses is used when a Config leaves SizeClasses empty.
	DefaultSizeClasses = ConfigBalanced
)

// SizeClassPresets lists the predefined configurations by name.
var SizeClassPresets = []SizeClassConfig{ConfigFineGrained, ConfigBalanced, ConfigCoarse, SmallObjects}

// LookupSizeClasses returns the preset with the given name, ignoring case.
func LookupSizeClasses(name string) (SizeClassConfig, bool) {
	for _, c := range SizeClassPresets {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return SizeClassConfig{}, false
}

// sizeClassTable holds the computed size class boundaries.
type sizeClassTable struct {
	config     SizeClassConfig
	boundaries []int // Upper bound for each size class
	numClasses int
}

// newSizeClassTable computes size class boundaries from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config:     config,
		boundaries: make([]int, 0, 64),
	}

	// Phase 1: small cells (linear increments)
	if config.SmallIncrement > 0 {
		for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
			table.boundaries = append(table.boundaries, size+config.SmallIncrement-1)
		}
	}

	// Phase 2: medium cells (logarithmic growth)
	if config.SmallMax < config.MediumMax {
		size := config.SmallMax
		for size < config.MediumMax {
			next := int(math.Ceil(float64(size) * config.GrowthFactor))
			if next <= size {
				next = size + 1 // Ensure progress
			}
			table.boundaries = append(table.boundaries, next-1)
			size = next
		}
	}

	table.numClasses = len(table.boundaries)
	return table
}

// getSizeClass returns the size class index for a cell size.
// Returns numClasses for sizes beyond every boundary (the large list).
func (t *sizeClassTable) getSizeClass(size int) int {
	lo, hi := 0, t.numClasses-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return t.numClasses
}

func (t *sizeClassTable) String() string {
	return t.config.Name
}

// NumClasses returns the number of size classes (excluding the large list).
func (t *sizeClassTable) NumClasses() int {
	return t.numClasses
}
