package rotation

import "errors"

var (
	// ErrDestinationNotEmpty is returned when entries survive a purge.
	ErrDestinationNotEmpty = errors.New("destination folder is not empty after purge")
	// ErrInsufficientCandidates is returned when the source holds fewer
	// folders than requested and the oversample policy is "fail".
	ErrInsufficientCandidates = errors.New("not enough source folders to sample from")
	// ErrRotationInProgress is returned when another run holds the lock.
	ErrRotationInProgress = errors.New("another rotation is already running")
)
