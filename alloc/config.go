package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/pages"
)

// Strategy selects an Allocator implementation.
type Strategy string

const (
	StrategyFast Strategy = "fast"
	StrategyBump Strategy = "bump"
)

// Page sources a Config can name.
const (
	BackingGo   = pages.NameGo   // Go heap slices
	BackingMmap = pages.NameMmap // private anonymous mappings
)

// DefaultBinSize is the bin size used when Config.BinSize is zero.
const DefaultBinSize = 64 << 10

// Config configures an allocator. The zero value of every field means "use
// the default".
type Config struct {
	Strategy Strategy

	// Backing names the page source bins are mapped from.
	Backing string

	// SizeClasses shapes the FastAllocator free lists.
	SizeClasses SizeClassConfig

	// BinSize is the size of a regular bin. Requests that do not fit get a
	// dedicated bin rounded up to whole pages.
	BinSize int

	// MaxBytes caps the total bytes mapped at once. 0 means unlimited.
	MaxBytes int64

	// ReleaseEmptyBins returns a bin to the page source as soon as every cell
	// in it is free. The last mapped bin is always kept.
	ReleaseEmptyBins bool
}

// DefaultConfig is used when nil is passed to New, NewFast or NewBump.
var DefaultConfig = Config{
	Strategy:         StrategyFast,
	Backing:          BackingGo,
	SizeClasses:      DefaultSizeClasses,
	BinSize:          DefaultBinSize,
	ReleaseEmptyBins: true,
}

// normalize fills defaults and validates the result.
func (c Config) normalize() (Config, error) {
	if c.Strategy == "" {
		c.Strategy = StrategyFast
	}
	if c.Backing == "" {
		c.Backing = BackingGo
	}
	if c.SizeClasses.Name == "" && c.SizeClasses.MediumMax == 0 {
		c.SizeClasses = DefaultSizeClasses
	}
	if c.BinSize == 0 {
		c.BinSize = DefaultBinSize
	}
	if c.BinSize < format.PageSize || c.BinSize > format.MaxBinSize {
		return c, fmt.Errorf("alloc: bin size %d outside [%d, %d]", c.BinSize, format.PageSize, format.MaxBinSize)
	}
	c.BinSize = format.AlignPage(c.BinSize)
	if c.MaxBytes < 0 {
		return c, fmt.Errorf("alloc: negative MaxBytes %d", c.MaxBytes)
	}
	return c, nil
}
