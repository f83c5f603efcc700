package service

import (
	"context"
	"errors"
	"sort"
	"time"

	repository "github.com/okian/loftrank/internal/adapters/repository"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/types"
	"github.com/okian/loftrank/pkg/logger"
	"github.com/okian/loftrank/pkg/metrics"
)

// ReportOptions controls report assembly.
type ReportOptions struct {
	// SortByIndex orders entries by index descending; ties keep storage order.
	SortByIndex bool
}

// SeasonReport reads every stored entry of the season, computes the cohort
// statistics once and then each entry's standing against them.
func (s *Service) SeasonReport(ctx context.Context, season string, opts ReportOptions) (types.SeasonReport, error) {
	store, err := s.running()
	if err != nil {
		return types.SeasonReport{}, err
	}
	if season == "" {
		return types.SeasonReport{}, ErrInvalidSeason
	}

	start := time.Now()
	defer func() {
		metrics.RecordReportLatency(float64(time.Since(start).Milliseconds()))
	}()

	var generation int64
	if s.cacheStandings {
		if generation, err = store.Generation(ctx, season); err != nil {
			metrics.RecordStorageFailure()
			metrics.RecordErrorByComponent("service", "storage")
			return types.SeasonReport{}, err
		}
	}

	entries, err := store.ListAll(ctx, season)
	if err != nil {
		metrics.RecordStorageFailure()
		metrics.RecordErrorByComponent("service", "storage")
		return types.SeasonReport{}, err
	}

	stats, assessed := s.calculator.Assess(entries)
	if opts.SortByIndex {
		sort.SliceStable(assessed, func(i, j int) bool {
			return assessed[i].Index.GreaterThan(assessed[j].Index)
		})
	}

	report := types.SeasonReport{
		Season:                 season,
		AvgIndex:               stats.AvgIndex.StringFixed(model.Places),
		AvgParticipationFactor: stats.AvgParticipationFactor.StringFixed(model.Places),
		AvgFieldSize:           stats.AvgFieldSize.StringFixed(model.Places),
		ReferenceScale:         "0.00",
		EntryCount:             stats.Size,
		Empty:                  stats.Empty,
		Entries:                make([]types.ReportEntry, 0, len(assessed)),
	}
	metrics.RecordReportServed()
	metrics.UpdateCohortSize(season, stats.Size)
	if stats.Empty {
		metrics.RecordEmptyCohort()
		return report, nil
	}

	report.ReferenceScale = s.calculator.ReferenceScale(stats).StringFixed(model.Places)
	places := s.calculator.CoefficientPlaces()
	for _, e := range assessed {
		report.Entries = append(report.Entries, types.NewReportEntry(e, places))
	}

	if s.cacheStandings {
		s.saveStandings(ctx, store, season, generation, assessed)
	}
	return report, nil
}

// saveStandings writes the advisory standing cache. Failures are logged
// only; the report never depends on the cache. A write refused because an
// import invalidated the season meanwhile is expected and dropped.
func (s *Service) saveStandings(ctx context.Context, store repository.Store, season string, generation int64, entries []model.Entry) {
	standings := make(map[string]model.Standing, len(entries))
	for _, e := range entries {
		if e.Standing != nil {
			standings[e.ID] = *e.Standing
		}
	}
	err := store.SaveStandings(ctx, season, generation, standings)
	switch {
	case errors.Is(err, repository.ErrStaleStandings):
		s.logger.Debug(ctx, "skipping stale standings",
			logger.String("season", season),
			logger.Any("generation", generation),
		)
	case err != nil:
		metrics.RecordErrorByComponent("service", "standing_cache")
		s.logger.Warn(ctx, "caching standings failed",
			logger.String("season", season),
			logger.Error(err),
		)
	}
}
