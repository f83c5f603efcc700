package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/pkg/logger"
	"github.com/okian/loftrank/pkg/metrics"
)

// entryRow is the persisted shape of an entry. Weeks live in one JSON
// column keyed by slot so the slot count can differ per season.
type entryRow struct {
	Season    string         `gorm:"primaryKey;size:64"`
	ID        string         `gorm:"primaryKey;size:128"`
	Line      string         `gorm:"size:255"`
	Family    string         `gorm:"size:255"`
	Sire      string         `gorm:"size:255"`
	Dam       string         `gorm:"size:255"`
	Remarks   string         `gorm:"type:text"`
	Weeks     datatypes.JSON `gorm:"not null"`
	UPR       string         `gorm:"column:upr;size:32;not null"`
	Standing  datatypes.JSON
	UpdatedAt time.Time
}

func (entryRow) TableName() string { return "season_entries" }

// generationRow counts standing invalidations per season. SaveStandings
// locks it so a write computed from an older snapshot is refused.
type generationRow struct {
	Season     string `gorm:"primaryKey;size:64"`
	Generation int64  `gorm:"not null;default:0"`
}

func (generationRow) TableName() string { return "season_generations" }

var upsertColumns = []string{
	"line", "family", "sire", "dam", "remarks", "weeks", "upr", "standing", "updated_at",
}

func toRow(e model.Entry) (entryRow, error) {
	weeks, err := json.Marshal(e.Weeks)
	if err != nil {
		return entryRow{}, fmt.Errorf("encode weeks: %w", err)
	}
	return entryRow{
		Season:    e.Season,
		ID:        e.ID,
		Line:      e.Line,
		Family:    e.Family,
		Sire:      e.Sire,
		Dam:       e.Dam,
		Remarks:   e.Remarks,
		Weeks:     datatypes.JSON(weeks),
		UPR:       e.Index.StringFixed(model.Places),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (r entryRow) toEntry() (model.Entry, error) {
	e := model.Entry{
		Season:  r.Season,
		ID:      r.ID,
		Line:    r.Line,
		Family:  r.Family,
		Sire:    r.Sire,
		Dam:     r.Dam,
		Remarks: r.Remarks,
		Weeks:   map[string][]model.WeekRecord{},
	}
	if len(r.Weeks) > 0 {
		if err := json.Unmarshal(r.Weeks, &e.Weeks); err != nil {
			return model.Entry{}, fmt.Errorf("decode weeks of %s: %w", r.ID, err)
		}
	}
	idx, err := decimal.NewFromString(r.UPR)
	if err != nil {
		return model.Entry{}, fmt.Errorf("decode upr of %s: %w", r.ID, err)
	}
	e.Index = idx
	if len(r.Standing) > 0 && string(r.Standing) != "null" {
		var st model.Standing
		if err := json.Unmarshal(r.Standing, &st); err != nil {
			return model.Entry{}, fmt.Errorf("decode standing of %s: %w", r.ID, err)
		}
		e.Standing = &st
	}
	return e, nil
}

// GormStore persists entries through gorm (sqlite or postgres).
type GormStore struct {
	db   *gorm.DB
	opts options

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewGormStore migrates the schema and returns a store on db.
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		db:       db,
		opts:     defaultOptions(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	if err := db.WithContext(ctx).AutoMigrate(&entryRow{}, &generationRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStorage, err)
	}
	s.startMetricsUpdater(ctx)
	return s, nil
}

// Close stops the metrics updater and closes the connection pool.
func (s *GormStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert implements Store.Upsert.
func (s *GormStore) Upsert(ctx context.Context, e model.Entry) (model.Entry, error) {
	if err := validate(e); err != nil {
		return model.Entry{}, err
	}
	row, err := toRow(e)
	if err != nil {
		return model.Entry{}, err
	}

	start := time.Now()
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "season"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(&row).Error
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.Entry{}, fmt.Errorf("%w: upsert %s/%s: %v", ErrStorage, e.Season, e.ID, err)
	}

	stored := e.Clone()
	stored.Standing = nil
	return stored, nil
}

// ListAll implements Store.ListAll.
func (s *GormStore) ListAll(ctx context.Context, season string) ([]model.Entry, error) {
	start := time.Now()
	var rows []entryRow
	err := s.db.WithContext(ctx).
		Where("season = ?", season).
		Order("id ASC").
		Find(&rows).Error
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrStorage, season, err)
	}

	out := make([]model.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// InvalidateStandings implements Store.InvalidateStandings.
func (s *GormStore) InvalidateStandings(ctx context.Context, season string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "season"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"generation": gorm.Expr("season_generations.generation + 1"),
			}),
		}).Create(&generationRow{Season: season, Generation: 1}).Error; err != nil {
			return err
		}
		return tx.Model(&entryRow{}).
			Where("season = ? AND standing IS NOT NULL", season).
			Update("standing", gorm.Expr("NULL")).Error
	})
	if err != nil {
		return fmt.Errorf("%w: invalidate standings %s: %v", ErrStorage, season, err)
	}
	return nil
}

// Generation implements Store.Generation. The row is created on first use
// so SaveStandings always has something to lock.
func (s *GormStore) Generation(ctx context.Context, season string) (int64, error) {
	var row generationRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&generationRow{Season: season}).Error; err != nil {
			return err
		}
		return tx.Where("season = ?", season).Take(&row).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read generation %s: %v", ErrStorage, season, err)
	}
	return row.Generation, nil
}

// SaveStandings implements Store.SaveStandings.
func (s *GormStore) SaveStandings(ctx context.Context, season string, generation int64, standings map[string]model.Standing) error {
	if len(standings) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current generationRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("season = ?", season).
			Take(&current).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if current.Generation != generation {
			return ErrStaleStandings
		}
		for id, st := range standings {
			b, err := json.Marshal(st)
			if err != nil {
				return err
			}
			if err := tx.Model(&entryRow{}).
				Where("season = ? AND id = ?", season, id).
				Update("standing", datatypes.JSON(b)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrStaleStandings):
		return err
	case err != nil:
		return fmt.Errorf("%w: save standings %s: %v", ErrStorage, season, err)
	}
	return nil
}

// Count implements Store.Count. Failures are logged and count as zero.
func (s *GormStore) Count(ctx context.Context) int {
	var n int64
	if err := s.db.WithContext(ctx).Model(&entryRow{}).Count(&n).Error; err != nil {
		if s.opts.logger != nil {
			s.opts.logger.Warn(ctx, "count entries failed", logger.Error(err))
		}
		return 0
	}
	return int(n)
}

func (s *GormStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRepositoryEntriesTotal(s.Count(ctx))
			}
		}
	}()
}
