// Package service wires storage, scoring and the import job pipeline into
// the operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	eventqueue "github.com/okian/loftrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/loftrank/internal/adapters/mq/worker"
	repository "github.com/okian/loftrank/internal/adapters/repository"
	"github.com/okian/loftrank/internal/domain/dedupe"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/scoring"
	"github.com/okian/loftrank/pkg/logger"
	"github.com/okian/loftrank/pkg/metrics"
)

// Default service configuration.
const (
	defaultWeekSlots    = 5
	defaultQueueSize    = 1024
	defaultDedupeSize   = 50000
	defaultMaxBatchSize = 50000
	minJobHistory       = 1024
)

// Service implements the API dependencies for season scoring.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	jobQueue   eventqueue.Queue
	workerPool *workerpool.Pool
	calculator *scoring.Calculator
	jobs       *jobRegistry

	// Configuration
	workerCount       int
	queueSize         int
	dedupeSize        int
	importConcurrency int
	maxBatchSize      int
	weekSlots         int
	seasonWeekSlots   map[string]int
	cacheStandings    bool
	storeDriver       string
	storeDSN          string
	redisAddr         string
	calculatorOpts    []scoring.Option

	// State
	started  bool
	stopping bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued import jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the in-memory request id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithImportConcurrency bounds how many entries are normalized at once.
func WithImportConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.importConcurrency = n
		}
	}
}

// WithMaxBatchSize caps the number of entries in one import.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithWeekSlots sets the default number of week slots per season.
func WithWeekSlots(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.weekSlots = n
		}
	}
}

// WithSeasonWeekSlots overrides the slot count for specific seasons.
func WithSeasonWeekSlots(slots map[string]int) Option {
	return func(s *Service) {
		for season, n := range slots {
			if n > 0 {
				s.seasonWeekSlots[season] = n
			}
		}
	}
}

// WithCacheStandings writes computed standings back to storage on report.
func WithCacheStandings(enabled bool) Option {
	return func(s *Service) {
		s.cacheStandings = enabled
	}
}

// WithFallbackReferenceScale sets the coefficient divisor used when a
// cohort has no field sizes.
func WithFallbackReferenceScale(scale float64) Option {
	return func(s *Service) {
		s.calculatorOpts = append(s.calculatorOpts, scoring.WithFallbackReferenceScale(decimal.NewFromFloat(scale)))
	}
}

// WithCoefficientPlaces sets the coefficient precision.
func WithCoefficientPlaces(places int) Option {
	return func(s *Service) {
		s.calculatorOpts = append(s.calculatorOpts, scoring.WithCoefficientPlaces(int32(places)))
	}
}

// WithStoreDriver selects the storage driver opened on Start.
func WithStoreDriver(driver, dsn string) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
	}
}

// WithStore injects an already opened store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRedisAddr shares request id deduplication through redis.
func WithRedisAddr(addr string) Option {
	return func(s *Service) {
		s.redisAddr = addr
	}
}

// WithDeduper injects a request id deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU(),
		queueSize:         defaultQueueSize,
		dedupeSize:        defaultDedupeSize,
		importConcurrency: runtime.NumCPU(),
		maxBatchSize:      defaultMaxBatchSize,
		weekSlots:         defaultWeekSlots,
		seasonWeekSlots:   make(map[string]int),
		storeDriver:       repository.DriverMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.calculator = scoring.NewCalculator(s.calculatorOpts...)
	return s
}

// Start opens storage and starts the import workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting season scoring service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.storeDriver, s.storeDSN,
			repository.WithLogger(s.logger.Named("repository")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "store opened", logger.String("driver", s.storeDriver))
	}

	if s.deduper == nil {
		s.deduper = s.openDeduper(ctx)
	}

	s.jobs = newJobRegistry(max(s.queueSize*4, minJobHistory))
	s.jobQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "season scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("weekSlots", s.weekSlots),
		logger.Int("importConcurrency", s.importConcurrency),
	)
	return nil
}

func (s *Service) openDeduper(ctx context.Context) dedupe.Deduper {
	if s.redisAddr != "" {
		d := dedupe.NewRedisDeduper(dedupe.NewRedisClient(s.redisAddr),
			dedupe.WithRedisLogger(s.logger.Named("dedupe")))
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := d.Ping(pingCtx)
		if err == nil {
			s.logger.Info(ctx, "using redis request dedupe", logger.String("addr", s.redisAddr))
			return d
		}
		s.logger.Warn(ctx, "redis unreachable, using in-memory request dedupe",
			logger.String("addr", s.redisAddr), logger.Error(err))
		_ = d.Close()
	}
	return dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
}

// Stop drains queued imports and releases storage. Workers finish queued
// jobs before the store is closed.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	pool := s.workerPool
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping season scoring service...")

	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing store failed", logger.Error(err))
		}
		s.store = nil
	}
	if closer, ok := s.deduper.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.deduper = nil

	s.started = false
	s.stopping = false
	s.logger.Info(ctx, "season scoring service stopped")
}

// running returns the store if the service is started.
func (s *Service) running() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// slotsFor returns the configured week slot names of a season.
func (s *Service) slotsFor(season string) []string {
	n := s.weekSlots
	if v, ok := s.seasonWeekSlots[season]; ok {
		n = v
	}
	return model.SlotNames(n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"weekSlots":   s.weekSlots,
		"storeDriver": s.storeDriver,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		totalEntries := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalEntries"] = totalEntries
		stats["activeWorkers"] = s.workerPool.Active()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["jobs"] = s.jobs.countByStatus()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRepositoryEntriesTotal(totalEntries)
		metrics.UpdateWorkerActiveCount(s.workerPool.Active())
	}

	return stats
}
