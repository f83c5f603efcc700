// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and LOFT_ environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
)

// Store drivers accepted by store_driver.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogMode selects the zap preset: dev or prod.
	LogMode string `koanf:"log_mode"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the entry store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the driver connection string. Required for postgres.
	StoreDSN string `koanf:"store_dsn"`

	// WeekSlots is the number of week slots (week1..weekN) per season.
	WeekSlots int `koanf:"week_slots"`

	// SeasonWeekSlots overrides WeekSlots for individual seasons.
	SeasonWeekSlots map[string]int `koanf:"season_week_slots"`

	// ImportConcurrency bounds how many entries of a batch normalize at once.
	ImportConcurrency int `koanf:"import_concurrency"`

	// QueueSize bounds the in-memory import job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of import workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the in-memory request id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RedisAddr enables the shared redis request id store when set.
	RedisAddr string `koanf:"redis_addr"`

	// FallbackReferenceScale divides deviations when the cohort has no field sizes.
	FallbackReferenceScale float64 `koanf:"fallback_reference_scale"`

	// CoefficientPlaces is the rounding precision of coefficients.
	CoefficientPlaces int `koanf:"coefficient_places"`

	// CacheStandings writes computed standings back to the store after a report.
	CacheStandings bool `koanf:"cache_standings"`

	// MaxBatchSize caps the number of entries in one import request.
	MaxBatchSize int `koanf:"max_batch_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogMode:                "prod",
		Addr:                   ":9080",
		StoreDriver:            StoreMemory,
		WeekSlots:              5,
		SeasonWeekSlots:        map[string]int{},
		ImportConcurrency:      runtime.NumCPU(),
		QueueSize:              1024,
		WorkerCount:            runtime.NumCPU(),
		DedupeSize:             50_000,
		FallbackReferenceScale: 1,
		CoefficientPlaces:      4,
		MaxBatchSize:           50_000,
	}
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WeekSlots < 1:
		return fmt.Errorf("%w: week_slots must be at least 1, got %d", ErrInvalidConfig, c.WeekSlots)
	case c.CoefficientPlaces < 0 || c.CoefficientPlaces > 12:
		return fmt.Errorf("%w: coefficient_places must be within 0..12, got %d", ErrInvalidConfig, c.CoefficientPlaces)
	case c.FallbackReferenceScale <= 0:
		return fmt.Errorf("%w: fallback_reference_scale must be positive", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	for season, n := range c.SeasonWeekSlots {
		if n < 1 {
			return fmt.Errorf("%w: season_week_slots[%s] must be at least 1", ErrInvalidConfig, season)
		}
	}
	return nil
}
