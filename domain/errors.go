package domain

import "errors"

var (
	// ErrParse marks an entry-scoped normalization failure. Non-fatal to the
	// frame the entry arrived in.
	ErrParse = errors.New("parse error")

	// ErrUnknownSensor is returned when a query references a sensor that is
	// not present in the registry. The whole request fails rather than
	// returning a partial answer.
	ErrUnknownSensor = errors.New("unknown sensor")

	// ErrInvalidRange is returned when a range query's bounds are reversed
	// or start in the future.
	ErrInvalidRange = errors.New("invalid range")

	// ErrStoreUnavailable wraps transient backing-store failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when a referenced group or tile does not exist.
	ErrNotFound = errors.New("not found")
)
