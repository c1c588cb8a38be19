package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the persistence operations required for job
// creation and schedule cancellation.
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error

	// CancelJob cancels a still-pending job. Implementations return
	// ErrScheduleNotFound for unknown ids and ErrScheduleNotCancellable for
	// jobs that have already been claimed or finished.
	CancelJob(ctx context.Context, jobID uuid.UUID) error
}

// Enqueuer submits jobs for immediate, delayed, or absolutely-scheduled
// execution.
type Enqueuer struct {
	repo        EnqueuerRepository
	defaultLane Lane
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultLane: DefaultLane,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:        repo,
		defaultLane: options.defaultLane,
	}, nil
}

// Enqueue adds a new job to the queue for immediate or delayed execution.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	_, err := e.submit(ctx, payload, nil, opts...)
	return err
}

// ScheduleAt submits a job for execution at an absolute time and returns a
// cancellable schedule handle. The job is placed on the scheduled lane unless
// a lane option overrides it.
func (e *Enqueuer) ScheduleAt(ctx context.Context, payload any, at time.Time, opts ...EnqueueOption) (uuid.UUID, error) {
	if !at.After(time.Now()) {
		return uuid.Nil, ErrScheduleInPast
	}

	laneOpts := append([]EnqueueOption{WithLane(LaneScheduled)}, opts...)
	return e.submit(ctx, payload, &at, laneOpts...)
}

// CancelSchedule cancels a previously scheduled job if it has not been
// claimed yet.
func (e *Enqueuer) CancelSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	return e.repo.CancelJob(ctx, scheduleID)
}

func (e *Enqueuer) submit(ctx context.Context, payload any, scheduledAt *time.Time, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		lane:       e.defaultLane,
		maxRetries: 3,
	}

	for _, opt := range opts {
		opt(options)
	}

	if !options.lane.Valid() {
		return uuid.Nil, ErrInvalidLane
	}

	// Explicit schedule time wins over a relative delay
	if scheduledAt == nil {
		scheduledAt = options.scheduledAt
	}

	job, err := e.buildJob(payload, options, scheduledAt)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job %q in lane %q: %w", job.Name, job.Lane, err)
	}

	return job.ID, nil
}

// buildJob constructs a Job from payload and options
func (e *Enqueuer) buildJob(payload any, options *enqueueOptions, scheduledAt *time.Time) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	name := options.jobName
	if name == "" {
		name = qualifiedStructName(payload)
	}

	runAt := time.Now()
	if scheduledAt != nil {
		runAt = *scheduledAt
	} else if options.delay > 0 {
		runAt = runAt.Add(options.delay)
	}

	return &Job{
		ID:          uuid.New(),
		Lane:        options.lane,
		Name:        name,
		Payload:     payloadBytes,
		Status:      JobStatusPending,
		RetryCount:  0,
		MaxRetries:  options.maxRetries,
		ScheduledAt: runAt,
		CreatedAt:   time.Now(),
	}, nil
}
