package mem

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/logging"
)

// newTestAllocator creates an Allocator with single-page bins and a
// recording logger.
func newTestAllocator(t testing.TB, mutate ...func(*alloc.Config)) (*Allocator, *logging.Recorder) {
	t.Helper()
	cfg := alloc.Config{BinSize: format.PageSize, ReleaseEmptyBins: true}
	for _, m := range mutate {
		m(&cfg)
	}
	rec := &logging.Recorder{}
	a, err := New(&Options{Heap: &cfg, Logger: rec})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, rec
}

func TestAllocator_AllocateRecordsSize(t *testing.T) {
	a, rec := newTestAllocator(t)

	p, err := a.Allocate(16)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	assert.Equal(t, 16, a.Size(p))
	assert.Len(t, a.Bytes(p), 16)

	b := a.Bytes(p)
	for i := range b {
		b[i] = byte(i)
	}
	assert.Equal(t, byte(15), a.Bytes(p)[15])

	st := a.Stats()
	assert.Equal(t, 1, st.LiveBlocks)
	assert.Equal(t, int64(16), st.LiveBytes)
	assert.Zero(t, rec.Len())
}

func TestAllocator_SizeProperty(t *testing.T) {
	a, _ := newTestAllocator(t)
	rng := rand.New(rand.NewSource(42))

	ptrs := make(map[Ptr]int)
	for range 500 {
		n := 1 + rng.Intn(3000)
		p, err := a.Allocate(n)
		require.NoError(t, err)
		ptrs[p] = n
	}
	for p, n := range ptrs {
		require.Equal(t, n, a.Size(p))
	}
	for p := range ptrs {
		require.NoError(t, a.Free(&p))
		require.Equal(t, Nil, p)
	}
	assert.Zero(t, a.Stats().LiveBlocks)
	assert.Zero(t, a.Stats().LiveBytes)
	require.NoError(t, a.Heap().Verify())
}

func TestAllocator_AllocateZero(t *testing.T) {
	a, rec := newTestAllocator(t)

	p, err := a.Allocate(0)
	require.ErrorIs(t, err, ErrZeroSize)
	assert.Equal(t, Nil, p)

	_, err = a.Allocate(-1)
	require.ErrorIs(t, err, ErrZeroSize)

	require.Equal(t, 2, rec.Len())
	assert.Equal(t, logging.LevelError, rec.Entries()[0].Level)
}

func TestAllocator_Reallocate(t *testing.T) {
	a, rec := newTestAllocator(t)

	p, err := a.Allocate(10)
	require.NoError(t, err)
	copy(a.Bytes(p), "0123456789")

	grown, err := a.Reallocate(p, 3000)
	require.NoError(t, err)
	assert.Equal(t, 3000, a.Size(grown))
	assert.Equal(t, "0123456789", string(a.Bytes(grown)[:10]))

	shrunk, err := a.Reallocate(grown, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Size(shrunk))
	assert.Equal(t, "0123", string(a.Bytes(shrunk)))
	assert.Equal(t, int64(4), a.Stats().LiveBytes)
	assert.Zero(t, rec.Len())
}

func TestAllocator_ReallocateErrors(t *testing.T) {
	a, rec := newTestAllocator(t)

	p, err := a.Reallocate(Nil, 8)
	require.ErrorIs(t, err, ErrNilPointer)
	assert.Equal(t, Nil, p)

	q, err := a.Allocate(8)
	require.NoError(t, err)
	got, err := a.Reallocate(q, 0)
	require.ErrorIs(t, err, ErrZeroSize)
	assert.Equal(t, q, got)
	assert.Equal(t, 8, a.Size(q))

	assert.Equal(t, 2, rec.Len())
}

func TestAllocator_OutOfMemory(t *testing.T) {
	a, rec := newTestAllocator(t, func(c *alloc.Config) { c.MaxBytes = format.PageSize })

	p, err := a.Allocate(100)
	require.NoError(t, err)
	copy(a.Bytes(p), "keep me")

	_, err = a.Allocate(8000)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, alloc.ErrNoSpace)

	got, err := a.Reallocate(p, 8000)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, p, got, "original pointer returned")
	assert.Equal(t, 100, a.Size(p), "original size intact")
	assert.Equal(t, "keep me", string(a.Bytes(p)[:7]))

	assert.Equal(t, 2, rec.Len())
	for _, e := range rec.Entries() {
		assert.Equal(t, logging.LevelError, e.Level)
	}
}

func TestAllocator_FreeNullsPointer(t *testing.T) {
	a, rec := newTestAllocator(t)

	p, err := a.Allocate(32)
	require.NoError(t, err)
	require.NoError(t, a.Free(&p))
	assert.Equal(t, Nil, p)
	assert.Zero(t, rec.Len())
}

func TestAllocator_FreeNilWarns(t *testing.T) {
	a, rec := newTestAllocator(t)

	p := Nil
	err := a.Free(&p)
	require.ErrorIs(t, err, ErrNilPointer)
	require.ErrorIs(t, a.Free(nil), ErrNilPointer)

	require.Equal(t, 2, rec.Len())
	assert.Equal(t, logging.LevelWarning, rec.Entries()[0].Level)
	assert.Contains(t, rec.Entries()[0].Msg, "null pointer")
}

func TestAllocator_DoubleFree(t *testing.T) {
	a, rec := newTestAllocator(t)

	p, err := a.Allocate(32)
	require.NoError(t, err)
	q := p
	require.NoError(t, a.Free(&p))

	err = a.Free(&q)
	require.ErrorIs(t, err, alloc.ErrNotAllocated)
	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, 0, a.Size(q), "freed pointer has no size")
	assert.Zero(t, a.Stats().LiveBlocks)
}

func TestAllocator_ForeignPointer(t *testing.T) {
	a, _ := newTestAllocator(t)

	assert.Zero(t, a.Size(Nil))
	assert.Nil(t, a.Bytes(Nil))
	assert.Zero(t, a.Size(Ptr(alloc.MakeAddr(42, 64))))
}

func TestAllocator_ClassTag(t *testing.T) {
	a, _ := newTestAllocator(t)

	p, err := a.AllocateClass(24, alloc.ClassShared)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Stats().Heap.LiveByClass[alloc.ClassShared])
	require.NoError(t, a.Free(&p))
}

func TestNewWithHeap_DoesNotOwnHeap(t *testing.T) {
	h, err := alloc.NewFast(nil)
	require.NoError(t, err)
	defer h.Close()

	a := NewWithHeap(h, nil)
	p, err := a.Allocate(8)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Equal(t, 8, a.Size(p), "heap still open after Close")
	assert.NotNil(t, a.Logger())
}

func TestNew_BadConfig(t *testing.T) {
	_, err := New(&Options{Heap: &alloc.Config{BinSize: 10}})
	require.Error(t, err)
}

func TestAllocator_BumpStrategy(t *testing.T) {
	a, _ := newTestAllocator(t, func(c *alloc.Config) { c.Strategy = alloc.StrategyBump })

	p, err := a.Allocate(40)
	require.NoError(t, err)
	p, err = a.Reallocate(p, 4000)
	require.NoError(t, err)
	assert.Equal(t, 4000, a.Size(p))
	require.NoError(t, a.Free(&p))
	assert.Equal(t, alloc.StrategyBump, a.Stats().Heap.Strategy)
}

func TestAllocator_SizeOverflow(t *testing.T) {
	a, rec := newTestAllocator(t)

	_, err := a.Allocate(math.MaxInt)
	require.ErrorIs(t, err, ErrOutOfMemory)

	p, err := a.Allocate(16)
	require.NoError(t, err)
	got, err := a.Reallocate(p, math.MaxInt-WordSize+1)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, p, got)
	assert.Equal(t, 16, a.Size(p))
	assert.Equal(t, 2, rec.Count(logging.LevelError))
}

var errReleaseFailed = errors.New("release failed")

// moveReleaseFails reports an error for every reallocation that moved, the
// way a heap does when the old cell's bin cannot be returned to its source.
type moveReleaseFails struct{ alloc.Allocator }

func (h moveReleaseFails) Realloc(addr alloc.Addr, need int) (alloc.Addr, []byte, error) {
	naddr, payload, err := h.Allocator.Realloc(addr, need)
	if err == nil && naddr != addr {
		return naddr, payload, errReleaseFailed
	}
	return naddr, payload, err
}

func TestAllocator_ReallocateAdoptsMovedBlock(t *testing.T) {
	h, err := alloc.NewFast(nil)
	require.NoError(t, err)
	defer h.Close()
	rec := &logging.Recorder{}
	a := NewWithHeap(moveReleaseFails{h}, rec)

	p, err := a.Allocate(100)
	require.NoError(t, err)
	copy(a.Bytes(p), "moved payload")
	q, err := a.Allocate(100)
	require.NoError(t, err)

	// q sits right after p, so growing p has to move it.
	got, err := a.Reallocate(p, 1000)
	require.ErrorIs(t, err, errReleaseFailed)
	require.NotEqual(t, p, got)
	assert.Equal(t, 1000, a.Size(got))
	assert.Equal(t, "moved payload", string(a.Bytes(got)[:13]))

	st := a.Stats()
	assert.Equal(t, 2, st.LiveBlocks)
	assert.Equal(t, int64(1100), st.LiveBytes)
	assert.Equal(t, 1, rec.Count(logging.LevelError))

	require.NoError(t, a.Free(&got))
	require.NoError(t, a.Free(&q))
	assert.Zero(t, a.Stats().LiveBytes)
}
