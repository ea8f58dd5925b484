package dynarray

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/logging"
	"github.com/joshuapare/memkit/mem"
)

type sample struct {
	ID    int64
	Value float64
}

// tracked counts its destructions in destructs, keyed by ID.
type tracked struct {
	ID int64
}

var destructs = map[int64]int{}

func (v *tracked) Destroy() { destructs[v.ID]++ }

func newTestAllocator(t *testing.T) (*mem.Allocator, *logging.Recorder) {
	t.Helper()
	rec := &logging.Recorder{}
	a, err := mem.New(&mem.Options{Logger: rec})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, rec
}

func newArray[T comparable](t *testing.T, a *mem.Allocator, values ...T) *Array[T] {
	t.Helper()
	arr, err := New[T](a)
	require.NoError(t, err)
	t.Cleanup(func() { _ = arr.Release() })
	for _, v := range values {
		require.NoError(t, arr.Add(v))
	}
	return arr
}

func TestNextCapacity(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{1, 2},
		{2, 3},
		{3, 5},
		{6, 9},
		{9, 13},
		{13, 19},
	}
	for _, tt := range tests {
		got, err := NextCapacity(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "NextCapacity(%d)", tt.in)
	}

	_, err := NextCapacity(-1)
	require.ErrorIs(t, err, ErrCapacityOverflow)
}

func TestArray_Empty(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr := newArray[int32](t, a)

	assert.Zero(t, arr.Len())
	assert.Zero(t, arr.Cap())
	assert.Nil(t, arr.Slice())
	assert.False(t, arr.Contains(0))
	assert.Zero(t, a.Stats().LiveBlocks, "no buffer until first add")
}

func TestArray_AddGrows(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr := newArray[int64](t, a)

	require.NoError(t, arr.Add(1))
	assert.Equal(t, 1, arr.Cap())

	require.NoError(t, arr.Add(2))
	assert.Equal(t, 2, arr.Cap())
	require.NoError(t, arr.Add(3))
	assert.Equal(t, 3, arr.Cap())
	require.NoError(t, arr.Add(4))
	assert.Equal(t, 5, arr.Cap())
	assert.Equal(t, []int64{1, 2, 3, 4}, arr.Slice())

	assert.Equal(t, 1, a.Stats().LiveBlocks)
	assert.Equal(t, 1, a.Stats().Heap.LiveByClass[alloc.ClassArray])
}

func TestArray_GrowFromSix(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr, err := NewWithCapacity[int32](a, 6)
	require.NoError(t, err)
	defer arr.Release()

	for i := range int32(6) {
		require.NoError(t, arr.Add(i))
	}
	assert.Equal(t, 6, arr.Cap())

	require.NoError(t, arr.Add(6))
	assert.Equal(t, 7, arr.Len())
	assert.Equal(t, 9, arr.Cap())
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6}, arr.Slice())
}

func TestArray_RemoveAndInsert(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr := newArray[int32](t, a, 10, 20, 30)

	require.NoError(t, arr.Remove(1))
	assert.Equal(t, []int32{10, 30}, arr.Slice())

	require.NoError(t, arr.Insert(99, 1))
	assert.Equal(t, []int32{10, 99, 30}, arr.Slice())
	assert.True(t, arr.Contains(99))
	assert.False(t, arr.Contains(20))
	assert.Equal(t, 2, arr.IndexOf(30))
	assert.Equal(t, -1, arr.IndexOf(20))
}

func TestArray_InsertAtEndIsAdd(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr := newArray[int32](t, a, 1, 2)

	require.NoError(t, arr.Insert(3, arr.Len()))
	require.NoError(t, arr.Insert(0, 0))
	assert.Equal(t, []int32{0, 1, 2, 3}, arr.Slice())
}

func TestArray_InsertAtEndMatchesAddCapacity(t *testing.T) {
	a, _ := newTestAllocator(t)
	added := newArray[int32](t, a)
	inserted := newArray[int32](t, a)

	for i := range int32(50) {
		require.NoError(t, added.Add(i))
		require.NoError(t, inserted.Insert(i, inserted.Len()))
		require.Equal(t, added.Cap(), inserted.Cap(), "step %d", i)
		require.Equal(t, added.Len(), inserted.Len(), "step %d", i)
	}
	assert.Equal(t, added.Slice(), inserted.Slice())
}

func TestArray_InsertIntoEmpty(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr := newArray[int32](t, a)

	require.NoError(t, arr.Insert(5, 0))
	assert.Equal(t, []int32{5}, arr.Slice())
}

func TestArray_OutOfRange(t *testing.T) {
	a, rec := newTestAllocator(t)
	arr := newArray[int32](t, a, 1, 2, 3)
	capBefore := arr.Cap()

	require.ErrorIs(t, arr.Remove(3), ErrIndexOutOfRange)
	require.ErrorIs(t, arr.Remove(-1), ErrIndexOutOfRange)
	require.ErrorIs(t, arr.Insert(9, 4), ErrIndexOutOfRange)
	require.ErrorIs(t, arr.Insert(9, -1), ErrIndexOutOfRange)
	require.ErrorIs(t, arr.Set(3, 9), ErrIndexOutOfRange)

	_, err := arr.At(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Nil(t, arr.Ref(-1))

	assert.Equal(t, []int32{1, 2, 3}, arr.Slice(), "array untouched")
	assert.Equal(t, capBefore, arr.Cap())
	assert.Equal(t, 5, rec.Count(logging.LevelError))
}

func TestArray_RemoveAllKeepsCapacity(t *testing.T) {
	a, _ := newTestAllocator(t)
	clear(destructs)
	arr := newArray(t, a, tracked{ID: 1}, tracked{ID: 2}, tracked{ID: 3})
	capBefore := arr.Cap()

	arr.RemoveAll()
	assert.Zero(t, arr.Len())
	assert.Equal(t, capBefore, arr.Cap())
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, destructs)
	assert.Equal(t, 1, a.Stats().LiveBlocks, "buffer kept")

	allocs := a.Stats().Heap.AllocCalls
	require.NoError(t, arr.Add(tracked{ID: 5}))
	assert.Equal(t, capBefore, arr.Cap())
	assert.Equal(t, allocs, a.Stats().Heap.AllocCalls, "existing capacity reused")
}

func TestArray_RemoveDestructs(t *testing.T) {
	a, _ := newTestAllocator(t)
	clear(destructs)
	arr := newArray(t, a, tracked{ID: 1}, tracked{ID: 2}, tracked{ID: 3})

	require.NoError(t, arr.Remove(0))
	assert.Equal(t, map[int64]int{1: 1}, destructs)
	assert.Equal(t, []tracked{{ID: 2}, {ID: 3}}, arr.Slice())

	require.NoError(t, arr.Set(0, tracked{ID: 4}))
	assert.Equal(t, 1, destructs[2])
	assert.Equal(t, []tracked{{ID: 4}, {ID: 3}}, arr.Slice())
}

func TestArray_SetCapacity(t *testing.T) {
	a, _ := newTestAllocator(t)
	clear(destructs)
	arr := newArray(t, a, tracked{ID: 1}, tracked{ID: 2}, tracked{ID: 3}, tracked{ID: 4})

	require.NoError(t, arr.SetCapacity(10))
	assert.Equal(t, 10, arr.Cap())
	assert.Equal(t, 4, arr.Len())
	assert.Empty(t, destructs)

	require.NoError(t, arr.SetCapacity(10), "same capacity is a no-op")

	require.NoError(t, arr.SetCapacity(2))
	assert.Equal(t, 2, arr.Cap())
	assert.Equal(t, []tracked{{ID: 1}, {ID: 2}}, arr.Slice())
	assert.Equal(t, map[int64]int{3: 1, 4: 1}, destructs, "trailing elements destructed")

	require.NoError(t, arr.SetCapacity(0))
	assert.Zero(t, arr.Cap())
	assert.Zero(t, arr.Len())
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1, 4: 1}, destructs)
	assert.Zero(t, a.Stats().LiveBlocks, "buffer released")

	require.ErrorIs(t, arr.SetCapacity(-1), ErrCapacityOverflow)
}

func TestArray_FitCapacityToElements(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr, err := NewWithCapacity[int64](a, 13)
	require.NoError(t, err)
	defer arr.Release()
	for i := int64(1); i <= 7; i++ {
		require.NoError(t, arr.Add(i))
	}

	require.NoError(t, arr.FitCapacityToElements())
	assert.Equal(t, 7, arr.Cap())
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, arr.Slice())
	assert.Equal(t, int64(7*8), a.Stats().LiveBytes, "buffer sized to elements")
}

func TestArray_AddMove(t *testing.T) {
	a, rec := newTestAllocator(t)
	arr := newArray[sample](t, a)

	v := sample{ID: 3, Value: 2.5}
	require.NoError(t, arr.AddMove(&v))
	assert.Equal(t, sample{}, v, "source reset")
	assert.Equal(t, []sample{{ID: 3, Value: 2.5}}, arr.Slice())

	require.ErrorIs(t, arr.AddMove(nil), mem.ErrNilPointer)
	assert.Equal(t, 1, rec.Count(logging.LevelError))
}

func TestArray_AtRefAll(t *testing.T) {
	a, _ := newTestAllocator(t)
	arr := newArray[int32](t, a, 5, 6, 7)

	v, err := arr.At(2)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	*arr.Ref(0) = 50
	assert.Equal(t, int32(50), arr.Slice()[0])

	var got []int32
	for i, v := range arr.All() {
		assert.Equal(t, arr.Slice()[i], v)
		got = append(got, v)
		if i == 1 {
			break
		}
	}
	assert.Equal(t, []int32{50, 6}, got)
}

func TestArray_ReleaseAndReuse(t *testing.T) {
	a, _ := newTestAllocator(t)
	clear(destructs)
	arr := newArray(t, a, tracked{ID: 1}, tracked{ID: 2})

	require.NoError(t, arr.Release())
	assert.Equal(t, map[int64]int{1: 1, 2: 1}, destructs)
	assert.Zero(t, arr.Len())
	assert.Zero(t, arr.Cap())
	assert.Zero(t, a.Stats().LiveBlocks)

	require.NoError(t, arr.Release(), "release of an empty array is a no-op")

	require.NoError(t, arr.Add(tracked{ID: 9}))
	assert.Equal(t, 1, arr.Len())
}

func TestArray_UnsupportedType(t *testing.T) {
	a, rec := newTestAllocator(t)

	_, err := New[*int](a)
	require.ErrorIs(t, err, mem.ErrUnsupportedType)
	assert.Equal(t, 1, rec.Count(logging.LevelError))
}

func TestArray_AllocationFailure(t *testing.T) {
	rec := &logging.Recorder{}
	a, err := mem.New(&mem.Options{
		Heap:   &alloc.Config{BinSize: 4096, MaxBytes: 4096},
		Logger: rec,
	})
	require.NoError(t, err)
	defer a.Close()

	arr, err := New[int64](a)
	require.NoError(t, err)
	require.NoError(t, arr.Add(1))

	err = arr.SetCapacity(1000)
	require.ErrorIs(t, err, mem.ErrOutOfMemory)
	assert.Equal(t, 1, arr.Cap(), "capacity unchanged")
	assert.Equal(t, []int64{1}, arr.Slice())
	require.NoError(t, arr.Release())
}

// TestArray_MatchesSliceModel drives random operations against an Array and a
// Go slice and checks they agree after every step.
func TestArray_MatchesSliceModel(t *testing.T) {
	for _, seed := range []int64{1, 7, 2024} {
		a, _ := newTestAllocator(t)
		arr := newArray[int32](t, a)
		var model []int32
		rng := rand.New(rand.NewSource(seed))

		for step := range 2000 {
			switch op := rng.Intn(10); {
			case op < 4:
				v := rng.Int31()
				require.NoError(t, arr.Add(v))
				model = append(model, v)
			case op < 6:
				i := rng.Intn(len(model) + 1)
				v := rng.Int31()
				require.NoError(t, arr.Insert(v, i))
				model = slices.Insert(model, i, v)
			case op < 9:
				if len(model) == 0 {
					continue
				}
				i := rng.Intn(len(model))
				require.NoError(t, arr.Remove(i))
				model = slices.Delete(model, i, i+1)
			default:
				require.NoError(t, arr.FitCapacityToElements())
			}

			require.Equal(t, len(model), arr.Len(), "seed %d step %d", seed, step)
			require.LessOrEqual(t, arr.Len(), arr.Cap())
			if len(model) > 0 {
				require.Equal(t, model, arr.Slice(), "seed %d step %d", seed, step)
			}
		}
		require.NoError(t, arr.Release())
		assert.Zero(t, a.Stats().LiveBlocks)
	}
}
