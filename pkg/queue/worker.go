package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimJob atomically claims the next due job in the given lane
	ClaimJob(ctx context.Context, workerID uuid.UUID, lane Lane, lockDuration time.Duration) (*Job, error)

	// CompleteJob marks a job as completed
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob marks a job as failed and increments its redelivery count
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error
}

// Worker pulls jobs from a set of lanes and dispatches them to registered
// handlers. Each lane has an independent parallelism bound so a burst on one
// lane cannot starve another.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	lanes    map[Lane]chan struct{}
	workerID uuid.UUID
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	pullInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new lane worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		lanes:        DefaultLaneConcurrency(),
		pullInterval: time.Second,
		lockTimeout:  5 * time.Minute,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	lanes := make(map[Lane]chan struct{}, len(options.lanes))
	for lane, bound := range options.lanes {
		if bound < 1 {
			bound = 1
		}
		lanes[lane] = make(chan struct{}, bound)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		lanes:        lanes,
		workerID:     uuid.New(),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		logger:       options.logger,
	}, nil
}

// RegisterHandler registers a single job handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple job handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing jobs in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("queue worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("lanes", len(w.lanes)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("queue worker stopping, waiting for active jobs",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("queue worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop. Every tick each lane with a free slot is
// polled once; lanes never block each other.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for lane, sem := range w.lanes {
				select {
				case sem <- struct{}{}:
					// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
					w.stopMu.Lock()
					if w.stopping.Load() {
						w.stopMu.Unlock()
						<-sem
						return
					}
					w.wg.Add(1)
					w.stopMu.Unlock()

					go func(lane Lane, sem chan struct{}) {
						defer w.wg.Done()
						defer func() { <-sem }()

						if err := w.pullAndProcess(lane); err != nil {
							if !errors.Is(err, ErrHandlerNotFound) {
								w.logger.Error("failed to process job",
									slog.String("worker_id", w.workerID.String()),
									slog.String("lane", string(lane)),
									slog.String("error", err.Error()))
							}
						}
					}(lane, sem)
				default:
					// Lane at its parallelism bound, skip this tick
				}
			}
		}
	}
}

// pullAndProcess claims one job from the lane and processes it
func (w *Worker) pullAndProcess(lane Lane) error {
	job, err := w.repo.ClaimJob(w.ctx, w.workerID, lane, w.lockTimeout)
	if err != nil {
		// An empty lane is normal, not an error
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	if job == nil {
		return nil
	}

	w.logger.Debug("claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.String("lane", string(job.Lane)))

	return w.processJob(job)
}

// processJob executes a job with its handler
func (w *Worker) processJob(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("job_id", job.ID.String()),
				slog.String("job_name", job.Name),
				slog.Any("panic", r))
			_ = w.handleJobFailure(job, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(job)
	}

	// Timeout is not tied to worker lifecycle so graceful shutdown lets
	// in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := handler.Handle(ctx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleJobFailure(job, err, duration)
	}

	return w.handleJobSuccess(job, duration)
}

// handleMissingHandler fails jobs with no registered handler. Redelivery
// cannot help without a handler, so the error is recorded and the job is
// failed terminally by exhausting its retries.
func (w *Worker) handleMissingHandler(job *Job) error {
	w.logger.Error("no handler registered for job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name))

	errorMsg := "no handler registered for job: " + job.Name
	if err := w.repo.FailJob(w.ctx, job.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
	}

	return ErrHandlerNotFound
}

// handleJobFailure records the error and lets the repository decide between
// redelivery and terminal failure based on the job's retry budget.
func (w *Worker) handleJobFailure(job *Job, execErr error, duration time.Duration) error {
	w.logger.Error("job failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.Int("retry_count", int(job.RetryCount)),
		slog.Int("max_retries", int(job.MaxRetries)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if err := w.repo.FailJob(w.ctx, job.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update job %s status to failed: %w", job.ID, err)
	}

	return nil
}

// handleJobSuccess marks the job completed
func (w *Worker) handleJobSuccess(job *Job, duration time.Duration) error {
	if err := w.repo.CompleteJob(w.ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s as completed: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.String("lane", string(job.Lane)),
		slog.Duration("duration", duration))

	return nil
}
