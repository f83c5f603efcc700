package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/loftrank/internal/adapters/mq/queue"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/types"
	"github.com/okian/loftrank/pkg/logger"
	"github.com/okian/loftrank/pkg/metrics"
)

// SubmitImport queues a batch for asynchronous import. A repeated requestID
// returns the job created by the first submission with duplicate set.
func (s *Service) SubmitImport(ctx context.Context, season, requestID string, raws []model.RawEntry) (job types.Job, duplicate bool, err error) {
	s.mu.RLock()
	started, jobQueue, deduper, jobs := s.started && !s.stopping, s.jobQueue, s.deduper, s.jobs
	s.mu.RUnlock()
	if !started {
		return types.Job{}, false, ErrNotStarted
	}
	if err := s.validateBatch(season, raws); err != nil {
		return types.Job{}, false, err
	}

	id := uuid.NewString()
	if requestID != "" {
		if owner, seen := deduper.SeenAndRecord(ctx, requestID, id); seen {
			metrics.RecordDuplicateRequest()
			if existing, ok := jobs.get(owner); ok {
				return existing, true, nil
			}
			// recorded by another instance or evicted from history
			return types.Job{}, true, fmt.Errorf("%w: job %s", ErrDuplicateRequest, owner)
		}
	}

	job = types.Job{
		ID:         id,
		Season:     season,
		RequestID:  requestID,
		Status:     types.JobQueued,
		EntryCount: len(raws),
		CreatedAt:  time.Now().UTC(),
	}
	jobs.put(job)

	ok := jobQueue.Enqueue(ctx, model.ImportJob{
		ID:         id,
		Season:     season,
		RequestID:  requestID,
		Entries:    raws,
		EnqueuedAt: job.CreatedAt,
	})
	if !ok {
		jobs.remove(id)
		if requestID != "" {
			deduper.Unrecord(ctx, requestID)
		}
		if jobQueue.IsClosed() {
			return types.Job{}, false, eventqueue.ErrClosed
		}
		return types.Job{}, false, eventqueue.ErrFull
	}

	metrics.RecordJobStatus(string(types.JobQueued))
	s.logger.Info(ctx, "import job queued",
		logger.String("jobID", id),
		logger.String("season", season),
		logger.Int("entries", len(raws)),
	)
	return job, false, nil
}

// Job returns the current state of an import job.
func (s *Service) Job(_ context.Context, id string) (types.Job, error) {
	if _, err := s.running(); err != nil {
		return types.Job{}, err
	}
	job, ok := s.jobs.get(id)
	if !ok {
		return types.Job{}, ErrJobNotFound
	}
	return job, nil
}

// Process runs a queued import job. It is called by the worker pool.
func (s *Service) Process(ctx context.Context, j model.ImportJob) error { //nolint:gocritic // hugeParam: ImportJob arrives by value from the queue
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return ErrNotStarted
	}

	s.jobs.update(j.ID, func(job *types.Job) { job.Status = types.JobRunning })
	metrics.RecordJobStatus(string(types.JobRunning))

	result, err := s.importBatch(ctx, store, j.Season, j.Entries, modeAsync)
	finished := time.Now().UTC()
	status := types.JobDone
	if err != nil {
		status = types.JobFailed
	}
	s.jobs.update(j.ID, func(job *types.Job) {
		job.Status = status
		job.Result = &result
		job.FinishedAt = &finished
		if err != nil {
			job.Error = err.Error()
		}
	})
	metrics.RecordJobStatus(string(status))
	return err
}

// jobRegistry keeps recent jobs for polling. Beyond its limit the oldest
// finished jobs are forgotten; unfinished jobs are always kept.
type jobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]types.Job
	order []string
	limit int
}

func newJobRegistry(limit int) *jobRegistry {
	return &jobRegistry{
		jobs:  make(map[string]types.Job),
		limit: limit,
	}
}

func (r *jobRegistry) put(job types.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; !exists {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = job
	r.trim()
}

func (r *jobRegistry) get(id string) (types.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

func (r *jobRegistry) update(id string, fn func(*types.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	fn(&job)
	r.jobs[id] = job
}

func (r *jobRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *jobRegistry) countByStatus() map[types.JobStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[types.JobStatus]int)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts
}

// trim must be called with r.mu held.
func (r *jobRegistry) trim() {
	if len(r.order) <= r.limit {
		return
	}
	kept := r.order[:0]
	excess := len(r.order) - r.limit
	for _, id := range r.order {
		if excess > 0 && r.jobs[id].Status.Terminal() {
			delete(r.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}
