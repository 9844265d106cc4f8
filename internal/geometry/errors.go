package geometry

import "errors"

var (
	// ErrInvalidInput marks incomplete or out-of-range caller data: missing
	// style fields, malformed anchors, shapes below the minimum size.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionViolation marks vertices that break an ordering rule
	// their kind depends on (diamond west/north/east/south).
	ErrPreconditionViolation = errors.New("precondition violation")
)
