package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	repository "github.com/okian/loftrank/internal/adapters/repository"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/scoring"
	"github.com/okian/loftrank/internal/domain/types"
	"github.com/okian/loftrank/pkg/logger"
	"github.com/okian/loftrank/pkg/metrics"
)

// Import modes, used as a metric label.
const (
	modeSync  = "sync"
	modeAsync = "async"
)

// normalized is the outcome of normalizing one raw entry.
type normalized struct {
	entry model.Entry
	notes []scoring.Note
	err   error
}

// ImportBatch normalizes each raw entry, computes its index and replaces the
// stored entry with the same id. Entries that fail to normalize are skipped
// and listed in the result. A storage failure stops the batch; the partial
// result is returned with the error.
func (s *Service) ImportBatch(ctx context.Context, season string, raws []model.RawEntry) (types.ImportResult, error) {
	store, err := s.running()
	if err != nil {
		return types.ImportResult{}, err
	}
	if err := s.validateBatch(season, raws); err != nil {
		return types.ImportResult{}, err
	}
	return s.importBatch(ctx, store, season, raws, modeSync)
}

func (s *Service) validateBatch(season string, raws []model.RawEntry) error {
	if season == "" {
		return ErrInvalidSeason
	}
	if s.maxBatchSize > 0 && len(raws) > s.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(raws), s.maxBatchSize)
	}
	return nil
}

func (s *Service) importBatch(ctx context.Context, store repository.Store, season string, raws []model.RawEntry, mode string) (types.ImportResult, error) {
	start := time.Now()
	metrics.RecordImportBatch(mode)
	result := types.ImportResult{
		Season: season,
		Errors: []types.ImportError{},
		Notes:  []types.ImportNote{},
	}
	defer func() {
		metrics.RecordImportLatency(float64(time.Since(start).Milliseconds()))
		metrics.RecordEntriesImported(result.ImportedCount)
		metrics.RecordEntriesSkipped(result.SkippedCount)
	}()

	outcomes, err := s.normalizeAll(ctx, season, raws)
	if err != nil {
		return result, err
	}

	// Upserts run in input order so a repeated id resolves to its last record.
	var storeErr error
	for i, o := range outcomes {
		id := raws[i].ID
		if o.err != nil {
			result.SkippedCount++
			result.Errors = append(result.Errors, types.ImportError{Identifier: id, Reason: o.err.Error()})
			s.logger.Warn(ctx, "skipping entry",
				logger.String("season", season),
				logger.String("id", id),
				logger.Error(o.err),
			)
			continue
		}

		if _, err := store.Upsert(ctx, o.entry); err != nil {
			storeErr = fmt.Errorf("upsert %s: %w", id, err)
			break
		}
		result.ImportedCount++

		for _, n := range o.notes {
			metrics.RecordDataQualityNote(string(n.Reason))
			result.Notes = append(result.Notes, types.ImportNote{
				Identifier: id,
				Slot:       n.Slot,
				Reason:     string(n.Reason),
				Detail:     n.Detail,
			})
			s.logger.Debug(ctx, "data quality note",
				logger.String("id", id),
				logger.String("slot", n.Slot),
				logger.String("reason", string(n.Reason)),
			)
		}
	}

	if result.ImportedCount > 0 {
		if err := store.InvalidateStandings(ctx, season); err != nil {
			storeErr = errors.Join(storeErr, fmt.Errorf("invalidate standings: %w", err))
		}
	}

	if storeErr != nil {
		metrics.RecordStorageFailure()
		metrics.RecordErrorByComponent("service", "storage")
		s.logger.Error(ctx, "import stopped by storage failure",
			logger.String("season", season),
			logger.Int("imported", result.ImportedCount),
			logger.Error(storeErr),
		)
		return result, storeErr
	}

	s.logger.Info(ctx, "batch imported",
		logger.String("season", season),
		logger.String("mode", mode),
		logger.Int("imported", result.ImportedCount),
		logger.Int("skipped", result.SkippedCount),
		logger.Int("notes", len(result.Notes)),
	)
	return result, nil
}

// normalizeAll fans normalization out across entries. Entries share no
// state, so completion order does not matter; results keep input order.
func (s *Service) normalizeAll(ctx context.Context, season string, raws []model.RawEntry) ([]normalized, error) {
	slots := s.slotsFor(season)
	outcomes := make([]normalized, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.importConcurrency)
	for i := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, notes, err := scoring.NormalizeEntry(season, raws[i], slots)
			outcomes[i] = normalized{entry: e, notes: notes, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
