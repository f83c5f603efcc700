package seasonsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/loftrank/internal/domain/types"
	"github.com/okian/loftrank/pkg/logger"
)

// ErrJobFailed is returned when a queued import finishes as failed.
var ErrJobFailed = errors.New("import job failed")

// Run executes a complete simulation: health check, generation, import,
// report fetch and verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("seasonsim")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting season simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("season", cfg.Season),
		logger.Int("entries", cfg.Entries),
		logger.Int("chunkSize", cfg.ChunkSize),
		logger.Int("workers", cfg.Workers),
		logger.Any("async", cfg.Async))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the season
	season, err := Generate(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("season generation failed: %w", err)
	}
	stats.EntriesGenerated = len(season.Entries)

	if cfg.OutputFile != "" {
		if err := saveBatch(cfg.OutputFile, season.Entries); err != nil {
			log.Warn(ctx, "failed to save generated season", logger.Error(err))
		}
	}

	// Step 3: Import in chunks
	if err := importChunks(ctx, client, cfg, season.Entries, stats); err != nil {
		return stats, fmt.Errorf("import failed: %w", err)
	}

	// Step 4: Fetch and verify the report
	report, err := client.Report(ctx, cfg.Season, true)
	if err != nil {
		return stats, fmt.Errorf("report retrieval failed: %w", err)
	}
	stats.ReportEntries = len(report.Entries)
	if err := Verify(report, season.Expected, true); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats, report)
	return stats, nil
}

// importChunks sends the batch in ChunkSize pieces with at most Workers
// requests in flight.
func importChunks(ctx context.Context, client *Client, cfg *Config, entries []map[string]any, stats *Stats) error {
	runID := uuid.NewString()
	chunk := max(cfg.ChunkSize, 1)

	var mu sync.Mutex
	record := func(res types.ImportResult, retries int) {
		mu.Lock()
		defer mu.Unlock()
		stats.Requests++
		stats.Retries += retries
		stats.Imported += res.ImportedCount
		stats.Skipped += res.SkippedCount
		stats.Notes += len(res.Notes)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for start := 0; start < len(entries); start += chunk {
		batch := entries[start:min(start+chunk, len(entries))]
		requestID := fmt.Sprintf("%s-%d", runID, start/chunk)
		g.Go(func() error {
			res, retries, err := importOne(gctx, client, cfg, requestID, batch)
			if err != nil {
				return err
			}
			record(res, retries)
			if cfg.Verbose {
				logger.Get().Info(gctx, "chunk imported",
					logger.String("requestID", requestID),
					logger.Int("imported", res.ImportedCount),
					logger.Int("retries", retries))
			}
			return nil
		})
	}
	return g.Wait()
}

// importOne imports one chunk, backing off while the service reports
// backpressure.
func importOne(ctx context.Context, client *Client, cfg *Config, requestID string, batch []map[string]any) (types.ImportResult, int, error) {
	for attempt := 0; ; attempt++ {
		res, err := importAttempt(ctx, client, cfg, requestID, batch)
		if err == nil || !errors.Is(err, ErrBackpressure) || attempt >= maxRetries {
			return res, attempt, err
		}
		select {
		case <-ctx.Done():
			return res, attempt, ctx.Err()
		case <-time.After(retryBaseDelay << attempt):
		}
	}
}

func importAttempt(ctx context.Context, client *Client, cfg *Config, requestID string, batch []map[string]any) (types.ImportResult, error) {
	if !cfg.Async {
		return client.Import(ctx, cfg.Season, batch)
	}
	job, _, err := client.Submit(ctx, cfg.Season, requestID, batch)
	if err != nil {
		return types.ImportResult{}, err
	}
	return waitForJob(ctx, client, job.ID)
}

func waitForJob(ctx context.Context, client *Client, id string) (types.ImportResult, error) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		job, err := client.Job(ctx, id)
		if err != nil {
			return types.ImportResult{}, err
		}
		switch job.Status {
		case types.JobDone:
			if job.Result == nil {
				return types.ImportResult{}, nil
			}
			return *job.Result, nil
		case types.JobFailed:
			return types.ImportResult{}, fmt.Errorf("%w: %s: %s", ErrJobFailed, id, job.Error)
		}
		select {
		case <-ctx.Done():
			return types.ImportResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// saveBatch writes the generated batch in the export file shape.
func saveBatch(filename string, entries []map[string]any) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPerm); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(map[string]any{"data": entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal season: %w", err)
	}
	if err := os.WriteFile(filename, data, filePerm); err != nil {
		return fmt.Errorf("failed to write season: %w", err)
	}
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, report types.SeasonReport) {
	var entriesPerSecond float64
	if stats.Duration > 0 {
		entriesPerSecond = float64(stats.Imported) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("entriesGenerated", stats.EntriesGenerated),
		logger.Int("requests", stats.Requests),
		logger.Int("retries", stats.Retries),
		logger.Int("imported", stats.Imported),
		logger.Int("skipped", stats.Skipped),
		logger.Int("notes", stats.Notes),
		logger.Int("reportEntries", stats.ReportEntries),
		logger.String("avgIndex", report.AvgIndex),
		logger.String("referenceScale", report.ReferenceScale),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("entriesPerSecond", entriesPerSecond))
}
