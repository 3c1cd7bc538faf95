package replay

import "errors"

var (
	// ErrInvalidOrdering is returned when bar timestamps are not strictly increasing.
	ErrInvalidOrdering = errors.New("bars are not in strictly increasing timestamp order")

	// ErrMissingTimestamp is returned when a bar has a zero timestamp.
	ErrMissingTimestamp = errors.New("bar has no timestamp")

	// ErrSymbolMismatch is returned when a series contains bars of another symbol.
	ErrSymbolMismatch = errors.New("bar symbol does not match series")

	// ErrInvalidBar is returned when a bar has impossible prices or volume.
	ErrInvalidBar = errors.New("bar has invalid prices or volume")
)
