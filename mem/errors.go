package mem

import "errors"

var (
	// ErrZeroSize indicates a request for zero (or fewer) bytes.
	ErrZeroSize = errors.New("mem: size must be greater than zero")

	// ErrNilPointer indicates an operation on Nil.
	ErrNilPointer = errors.New("mem: nil pointer")

	// ErrOutOfMemory indicates the platform heap could not satisfy a request.
	ErrOutOfMemory = errors.New("mem: out of memory")

	// ErrUnsupportedType indicates a type that cannot live in primitive memory.
	ErrUnsupportedType = errors.New("mem: unsupported element type")
)
