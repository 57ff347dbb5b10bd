package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dvloznov/merchant-categorizer/internal/jobs"
)

// DefaultMaxFinished bounds how many completed or failed jobs a Store keeps.
const DefaultMaxFinished = 1000

// Store is an in-memory implementation of JobStore.
// It stores jobs in memory and is safe for concurrent use.
// Data is lost on service restart.
//
// Finished jobs beyond maxFinished are evicted oldest first; pending and
// running jobs are never evicted.
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*jobs.CategorizeJob
	maxFinished int
}

// NewStore creates a new in-memory job store keeping DefaultMaxFinished
// finished jobs.
func NewStore() *Store {
	return NewStoreWithLimit(DefaultMaxFinished)
}

// NewStoreWithLimit creates a store keeping at most maxFinished finished
// jobs. Zero or less disables the limit.
func NewStoreWithLimit(maxFinished int) *Store {
	return &Store{
		jobs:        make(map[string]*jobs.CategorizeJob),
		maxFinished: maxFinished,
	}
}

func finished(job *jobs.CategorizeJob) bool {
	return job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed
}

// SaveJob implements the JobStore interface.
// It saves or updates a job in memory.
func (s *Store) SaveJob(ctx context.Context, job *jobs.CategorizeJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so later changes by the caller are not visible to readers.
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	if finished(&jobCopy) {
		s.evictLocked()
	}
	return nil
}

func (s *Store) evictLocked() {
	if s.maxFinished <= 0 {
		return
	}
	var done []*jobs.CategorizeJob
	for _, job := range s.jobs {
		if finished(job) {
			done = append(done, job)
		}
	}
	if len(done) <= s.maxFinished {
		return
	}
	slices.SortFunc(done, func(a, b *jobs.CategorizeJob) int {
		return completedAt(a).Compare(completedAt(b))
	})
	for _, job := range done[:len(done)-s.maxFinished] {
		delete(s.jobs, job.JobID)
	}
}

func completedAt(job *jobs.CategorizeJob) time.Time {
	if job.CompletedAt != nil {
		return *job.CompletedAt
	}
	return job.CreatedAt
}

// Prune deletes finished jobs that completed before cutoff and returns how
// many were removed.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if finished(job) && completedAt(job).Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// GetJob implements the JobStore interface.
// It retrieves a job by ID from memory.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.CategorizeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
// It returns matching jobs newest first, without their record payloads.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.CategorizeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.CategorizeJob

	for _, job := range s.jobs {
		if filter.Source != "" && job.Source != filter.Source {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		result = append(result, job.Summary())
	}

	slices.SortFunc(result, func(a, b *jobs.CategorizeJob) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.JobID, b.JobID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.CategorizeJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
// It updates the status of a job in memory.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
