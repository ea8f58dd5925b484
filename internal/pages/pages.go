// Package pages supplies the raw page ranges the platform heap carves into
// bins. A Source hands out page-aligned byte ranges that never move for as
// long as they stay mapped.
package pages

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/internal/format"
)

// ErrBadSize indicates a mapping request that is not a positive multiple of
// the page size.
var ErrBadSize = errors.New("pages: size must be a positive multiple of the page size")

// Source maps and unmaps page ranges.
type Source interface {
	// Map returns n zeroed bytes. n must be a positive multiple of format.PageSize.
	Map(n int) ([]byte, error)

	// Unmap releases a range previously returned by Map. The slice must not
	// be used afterwards.
	Unmap(b []byte) error

	// Name identifies the source in stats and logs.
	Name() string
}

// Known source names.
const (
	NameGo   = "go"
	NameMmap = "mmap"
)

// ForName returns the source registered under name.
func ForName(name string) (Source, error) {
	switch name {
	case "", NameGo:
		return Go(), nil
	case NameMmap:
		return Mmap(), nil
	default:
		return nil, fmt.Errorf("pages: unknown source %q", name)
	}
}

func checkSize(n int) error {
	if n <= 0 || n%format.PageSize != 0 {
		return fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	return nil
}

type goSource struct{}

// Go returns a source backed by ordinary Go heap slices. Ranges stay put
// because the Go collector does not move heap objects; they are reclaimed by
// the collector once unmapped and unreferenced.
func Go() Source { return goSource{} }

func (goSource) Map(n int) ([]byte, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

func (goSource) Unmap([]byte) error { return nil }

func (goSource) Name() string { return NameGo }
