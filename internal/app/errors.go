package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrInvalidSeason    = errors.New("season is required")
	ErrBatchTooLarge    = errors.New("batch exceeds the maximum size")
	ErrJobNotFound      = errors.New("import job not found")
	ErrDuplicateRequest = errors.New("request id already submitted")
)
