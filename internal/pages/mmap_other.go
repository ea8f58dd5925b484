//go:build !unix

package pages

import "errors"

// ErrNotSupported is returned by the mmap source on platforms without
// anonymous mappings.
var ErrNotSupported = errors.New("pages: mmap not supported on this platform")

type mmapSource struct{}

// Mmap returns a source that fails every mapping on this platform.
func Mmap() Source { return mmapSource{} }

func (mmapSource) Map(int) ([]byte, error) { return nil, ErrNotSupported }

func (mmapSource) Unmap([]byte) error { return nil }

func (mmapSource) Name() string { return NameMmap }
