//go:build unix

package pages

import (
	"testing"

	"github.com/joshuapare/memkit/internal/format"
)

func TestMmapSourceReadWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	src := Mmap()
	data, err := src.Map(format.PageSize)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	want := []byte{0xde, 0xad, 0xbe, 0xef, 0x42}
	copy(data[100:], want)
	for i, b := range want {
		if data[100+i] != b {
			t.Fatalf("byte %d mismatch: got 0x%x want 0x%x", i, data[100+i], b)
		}
	}
	if err := src.Unmap(data); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}

func TestMmapSourceUnmapEmpty(t *testing.T) {
	if err := Mmap().Unmap(nil); err != nil {
		t.Fatalf("Unmap(nil): %v", err)
	}
}
