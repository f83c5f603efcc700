// Package seasonsim generates a synthetic racing season, imports it into a
// running service over HTTP and verifies the report it gets back.
package seasonsim

import (
	"runtime"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Season     string        // Season to import into
	Entries    int           // Number of entries to generate
	Weeks      int           // Week slots per entry
	ChunkSize  int           // Entries per import request
	Workers    int           // Concurrent import requests
	Async      bool          // Submit queued jobs instead of synchronous imports
	Seed       uint64        // Generator seed; 0 picks one from the clock
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional file for the generated batch
	Verbose    bool          // Log per-request progress
}

// DefaultConfig returns the settings used by loftctl simulate.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://localhost:9080",
		Season:    "sim",
		Entries:   500,
		Weeks:     5,
		ChunkSize: 100,
		Workers:   runtime.NumCPU(),
		Timeout:   30 * time.Second,
	}
}

// Stats holds run statistics.
type Stats struct {
	EntriesGenerated int
	Requests         int
	Retries          int
	Imported         int
	Skipped          int
	Notes            int
	ReportEntries    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
