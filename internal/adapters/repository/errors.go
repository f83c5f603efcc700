package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	// ErrStorage wraps any failure of the underlying database.
	ErrStorage       = errors.New("storage failure")
	ErrInvalidEntry  = errors.New("entry needs a season and an id")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrMissingDSN    = errors.New("store driver needs a dsn")

	// ErrStaleStandings rejects a standing write computed before the last
	// invalidation.
	ErrStaleStandings = errors.New("standings computed from a stale snapshot")
)
