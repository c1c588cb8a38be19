package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the queue repository interfaces for testing and
// local development.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	// Indexes for efficient queries
	byLane   map[Lane][]uuid.UUID
	byStatus map[JobStatus][]uuid.UUID

	// Lock management
	lockTicker *time.Ticker
	done       chan struct{}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		jobs:     make(map[uuid.UUID]*Job),
		byLane:   make(map[Lane][]uuid.UUID),
		byStatus: make(map[JobStatus][]uuid.UUID),
		done:     make(chan struct{}),
	}

	// Start lock expiration manager
	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutines
func (ms *MemoryStorage) Close() error {
	close(ms.done)
	ms.lockTicker.Stop()
	return nil
}

// CreateJob implements EnqueuerRepository
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	// Clone job to prevent external modifications
	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy

	ms.byLane[job.Lane] = append(ms.byLane[job.Lane], job.ID)
	ms.byStatus[job.Status] = append(ms.byStatus[job.Status], job.ID)

	return nil
}

// CancelJob implements EnqueuerRepository. Only pending jobs can be cancelled;
// a claimed or finished job is past the point of no return.
func (ms *MemoryStorage) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrScheduleNotFound
	}

	if job.Status != JobStatusPending {
		return ErrScheduleNotCancellable
	}

	ms.removeFromStatusIndex(jobID, JobStatusPending)
	job.Status = JobStatusCancelled
	ms.byStatus[JobStatusCancelled] = append(ms.byStatus[JobStatusCancelled], jobID)

	return nil
}

// ClaimJob implements WorkerRepository
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, lane Lane, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job

	// Earliest scheduled time wins within a lane; priority ordering across
	// lanes is the worker's concern, not the storage's.
	for _, jobID := range ms.byStatus[JobStatusPending] {
		job := ms.jobs[jobID]

		if job.Lane != lane {
			continue
		}

		// Skip jobs scheduled for future execution (delayed jobs)
		if job.ScheduledAt.After(now) {
			continue
		}

		if job.LockedUntil != nil && job.LockedUntil.After(now) {
			continue
		}

		if best == nil || job.ScheduledAt.Before(best.ScheduledAt) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = JobStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	ms.removeFromStatusIndex(best.ID, JobStatusPending)
	ms.byStatus[JobStatusProcessing] = append(ms.byStatus[JobStatusProcessing], best.ID)

	// Return a copy to prevent external modifications
	jobCopy := *best
	return &jobCopy, nil
}

// CompleteJob implements WorkerRepository
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("job %s not found", jobID)
	}

	if job.Status != JobStatusProcessing {
		return fmt.Errorf("job %s is not in processing state", jobID)
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil

	ms.removeFromStatusIndex(jobID, JobStatusProcessing)
	ms.byStatus[JobStatusCompleted] = append(ms.byStatus[JobStatusCompleted], jobID)

	return nil
}

// FailJob implements WorkerRepository
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("job %s not found", jobID)
	}

	if job.Status != JobStatusProcessing {
		return fmt.Errorf("job %s is not in processing state", jobID)
	}

	job.RetryCount++
	job.Error = &errorMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if job.RetryCount >= job.MaxRetries {
		job.Status = JobStatusFailed
		ms.removeFromStatusIndex(jobID, JobStatusProcessing)
		ms.byStatus[JobStatusFailed] = append(ms.byStatus[JobStatusFailed], jobID)
	} else {
		// Reset to pending for redelivery with a short linear backoff to
		// avoid hammering a persistently failing handler
		job.Status = JobStatusPending
		ms.removeFromStatusIndex(jobID, JobStatusProcessing)
		ms.byStatus[JobStatusPending] = append(ms.byStatus[JobStatusPending], jobID)

		backoff := time.Duration(job.RetryCount) * 30 * time.Second
		job.ScheduledAt = time.Now().Add(backoff)
	}

	return nil
}

// Helper methods

func (ms *MemoryStorage) removeFromStatusIndex(jobID uuid.UUID, status JobStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == jobID
	})
}

// lockExpirationManager runs in background to recover jobs from dead workers.
// Without it, jobs locked by a crashed worker would be lost forever.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

// expireLocks resets processing jobs whose lock has passed back to pending,
// preserving their retry count. This is what makes delivery at-least-once.
func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()

	// Collect first: resetting a job shrinks the processing index mid-range,
	// and DeleteFunc zeroes the vacated tail slot
	var expired []uuid.UUID
	for _, jobID := range ms.byStatus[JobStatusProcessing] {
		job := ms.jobs[jobID]
		if job.LockedUntil != nil && job.LockedUntil.Before(now) {
			expired = append(expired, jobID)
		}
	}

	for _, jobID := range expired {
		job := ms.jobs[jobID]
		job.Status = JobStatusPending
		job.LockedUntil = nil
		job.LockedBy = nil

		ms.removeFromStatusIndex(jobID, JobStatusProcessing)
		ms.byStatus[JobStatusPending] = append(ms.byStatus[JobStatusPending], jobID)
	}
}
