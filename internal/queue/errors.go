package queue

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrRunNotFound is returned when a scraper run id does not exist.
	ErrRunNotFound = errors.New("scraper run not found")

	// ErrJobTerminal is returned when a mutation targets a job whose status
	// permits no further transition.
	ErrJobTerminal = errors.New("job is in a terminal status")

	// ErrUnknownJobType is returned when a type is outside the enumeration.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidPayload is returned when a payload does not decode into the
	// shape its job type requires.
	ErrInvalidPayload = errors.New("invalid job payload")
)
