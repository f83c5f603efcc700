package model

import "time"

// ImportJob is a raw batch queued for asynchronous import.
type ImportJob struct {
	ID         string
	Season     string
	RequestID  string
	Entries    []RawEntry
	EnqueuedAt time.Time
}
