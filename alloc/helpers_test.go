package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/internal/format"
)

// smallBinConfig returns a fast config with single-page bins so tests can
// reason about exact offsets.
func smallBinConfig() Config {
	return Config{
		Strategy:         StrategyFast,
		BinSize:          format.PageSize,
		ReleaseEmptyBins: true,
	}
}

// newFastForTest creates a FastAllocator with single-page bins, optionally
// adjusting the config first. The allocator is closed at test end.
func newFastForTest(t testing.TB, mutate ...func(*Config)) *FastAllocator {
	t.Helper()
	cfg := smallBinConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	fa, err := NewFast(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fa.Close() })
	return fa
}

// newBumpForTest creates a BumpAllocator with single-page bins.
func newBumpForTest(t testing.TB) *BumpAllocator {
	t.Helper()
	cfg := smallBinConfig()
	cfg.Strategy = StrategyBump
	ba, err := NewBump(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ba.Close() })
	return ba
}

// assertInvariants fails the test immediately if Verify reports a violation.
func assertInvariants(t testing.TB, a Allocator) {
	t.Helper()
	require.NoError(t, a.Verify())
}

// fillPattern writes a byte pattern derived from seed into b.
func fillPattern(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i*7)
	}
}

// checkPattern reports whether b holds the pattern written by fillPattern.
func checkPattern(b []byte, seed byte) bool {
	for i := range b {
		if b[i] != seed+byte(i*7) {
			return false
		}
	}
	return true
}

// cellSize returns the total size of the allocated cell at addr by reading
// its header.
func cellSize(t testing.TB, fa *FastAllocator, addr Addr) int {
	t.Helper()
	b, off, size, err := fa.bins.resolve(addr)
	require.NoError(t, err)
	require.Equal(t, int32(-size), format.ReadI32(b.data, off))
	return size
}
