package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("import queue is full")
	ErrClosed = errors.New("import queue is closed")
)
