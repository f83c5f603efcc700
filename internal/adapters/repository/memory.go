package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/pkg/metrics"
)

// MemoryStore keeps entries in process memory, keyed by season then id.
// Entries are cloned on the way in and out.
type MemoryStore struct {
	mu          sync.RWMutex
	seasons     map[string]map[string]model.Entry
	generations map[string]int64
	opts        options

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs an in-memory store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		seasons:     make(map[string]map[string]model.Entry),
		generations: make(map[string]int64),
		opts:        defaultOptions(),
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert.
func (s *MemoryStore) Upsert(_ context.Context, e model.Entry) (model.Entry, error) {
	if err := validate(e); err != nil {
		return model.Entry{}, err
	}
	start := time.Now()
	stored := e.Clone()
	stored.Standing = nil

	s.mu.Lock()
	season, ok := s.seasons[e.Season]
	if !ok {
		season = make(map[string]model.Entry)
		s.seasons[e.Season] = season
	}
	season[e.ID] = stored
	s.mu.Unlock()

	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	return stored.Clone(), nil
}

// ListAll implements Store.ListAll.
func (s *MemoryStore) ListAll(_ context.Context, season string) ([]model.Entry, error) {
	start := time.Now()
	s.mu.RLock()
	byID := s.seasons[season]
	out := make([]model.Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// InvalidateStandings implements Store.InvalidateStandings.
func (s *MemoryStore) InvalidateStandings(_ context.Context, season string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[season]++
	for id, e := range s.seasons[season] {
		if e.Standing != nil {
			e.Standing = nil
			s.seasons[season][id] = e
		}
	}
	return nil
}

// Generation implements Store.Generation.
func (s *MemoryStore) Generation(_ context.Context, season string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[season], nil
}

// SaveStandings implements Store.SaveStandings.
func (s *MemoryStore) SaveStandings(_ context.Context, season string, generation int64, standings map[string]model.Standing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[season] != generation {
		return ErrStaleStandings
	}
	byID := s.seasons[season]
	for id, st := range standings {
		e, ok := byID[id]
		if !ok {
			continue
		}
		st := st
		e.Standing = &st
		byID[id] = e
	}
	return nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byID := range s.seasons {
		n += len(byID)
	}
	return n
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
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
