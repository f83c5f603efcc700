package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const defaultSQLiteDSN = "file:loftrank?mode=memory&cache=shared"

// Open returns the store for driver. dsn is ignored by the memory driver;
// an empty sqlite dsn opens a shared in-memory database.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(ctx, opts...), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingDSN, driver)
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrStorage, driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; serialize rather than surface "database is locked"
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return NewGormStore(ctx, db, opts...)
}
