package pioline

import "github.com/pkg/errors"

// Error kinds returned by this package. Every returned error wraps one of
// these sentinels, check with errors.Is.
var (
	// ErrInvalidArgument marks a direction, edge or value outside the
	// enumerated set.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResource marks a missing or inaccessible sysfs path, a closed
	// descriptor or an underlying I/O failure.
	ErrResource = errors.New("gpio resource unavailable")

	// ErrUnknownPin marks a pin id absent from the pad table.
	ErrUnknownPin = errors.New("unknown pin")
)
