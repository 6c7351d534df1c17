package tier

import "errors"

var (
	// ErrTierNotFound is returned when the tier doesn't exist
	ErrTierNotFound = errors.New("tier not found")

	// ErrInvalidRange is returned when min/max points are inconsistent
	ErrInvalidRange = errors.New("invalid tier range")

	// ErrOverlappingRange is returned when a tier's range intersects
	// another active tier's range
	ErrOverlappingRange = errors.New("tier range overlaps an existing tier")
)
