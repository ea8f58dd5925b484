package mem

import (
	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/logging"
)

// Options configures New. A nil *Options uses the defaults.
type Options struct {
	// Heap configures the platform heap. Nil uses alloc.DefaultConfig.
	Heap *alloc.Config

	// Logger receives failure diagnostics. Nil uses logging.Default().
	Logger logging.Logger
}

func (o *Options) heapConfig() *alloc.Config {
	if o == nil {
		return nil
	}
	return o.Heap
}

func (o *Options) logger() logging.Logger {
	if o == nil || o.Logger == nil {
		return logging.Default()
	}
	return o.Logger
}
