package format

import "errors"

var (
	// ErrSignatureMismatch indicates a bin header had an unexpected magic or id.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates a header or cell extends past the end of its bin.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrZeroCell indicates a cell header with a zero size.
	ErrZeroCell = errors.New("format: zero-length cell")
)
