package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	lanes        map[Lane]int
	pullInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger
}

// WithLanes sets which lanes the worker pulls from and their parallelism bounds
func WithLanes(lanes map[Lane]int) WorkerOption {
	return func(o *workerOptions) {
		if len(lanes) > 0 {
			o.lanes = lanes
		}
	}
}

// WithLaneConcurrency overrides the parallelism bound for a single lane
func WithLaneConcurrency(lane Lane, bound int) WorkerOption {
	return func(o *workerOptions) {
		if bound > 0 {
			o.lanes[lane] = bound
		}
	}
}

// WithPullInterval sets how often the worker checks lanes for due jobs
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the lock duration for claimed jobs
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
