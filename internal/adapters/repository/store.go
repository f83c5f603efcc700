// Package repository persists scored season entries.
package repository

import (
	"context"

	"github.com/okian/loftrank/internal/domain/model"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store provides read/write access to season entries.
type Store interface {
	// Upsert fully replaces the entry stored under (season, id). Any cached
	// standing on the previous row is dropped.
	Upsert(ctx context.Context, e model.Entry) (model.Entry, error)

	// ListAll returns every entry of a season ordered by id ascending.
	ListAll(ctx context.Context, season string) ([]model.Entry, error)

	// InvalidateStandings clears the cached standings of a season and bumps
	// its generation.
	InvalidateStandings(ctx context.Context, season string) error

	// Generation returns the season's current standing generation. Read it
	// before ListAll and hand it back to SaveStandings.
	Generation(ctx context.Context, season string) (int64, error)

	// SaveStandings caches computed standings keyed by entry id. Unknown
	// ids are ignored. It writes nothing and returns ErrStaleStandings when
	// the season was invalidated after generation was read.
	SaveStandings(ctx context.Context, season string, generation int64, standings map[string]model.Standing) error

	// Count returns the number of entries across all seasons.
	Count(ctx context.Context) int

	Close() error
}

func validate(e model.Entry) error {
	if e.Season == "" || e.ID == "" {
		return ErrInvalidEntry
	}
	return nil
}
