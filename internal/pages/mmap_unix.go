//go:build unix

package pages

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type mmapSource struct{}

// Mmap returns a source backed by private anonymous mappings. The memory is
// invisible to the Go collector and is returned to the OS on Unmap.
func Mmap() Source { return mmapSource{} }

func (mmapSource) Map(n int) ([]byte, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("pages: mmap %d bytes: %w", n, err)
	}
	return data, nil
}

func (mmapSource) Unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	err := unix.Munmap(b)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func (mmapSource) Name() string { return NameMmap }
