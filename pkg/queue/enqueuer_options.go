package queue

import "time"

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultLane Lane
}

// WithDefaultLane sets the default lane for jobs enqueued without an explicit one
func WithDefaultLane(lane Lane) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if lane.Valid() {
			o.defaultLane = lane
		}
	}
}

// EnqueueOption is a functional option for the Enqueue and ScheduleAt methods
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	lane        Lane
	maxRetries  int8
	delay       time.Duration
	scheduledAt *time.Time
	jobName     string
}

// WithLane routes the job to a specific lane
func WithLane(lane Lane) EnqueueOption {
	return func(o *enqueueOptions) {
		if lane != "" {
			o.lane = lane
		}
	}
}

// WithMaxRetries sets the maximum number of queue-level redeliveries (0-10).
// Capped at 10 to prevent infinite retry loops on persistent failures.
func WithMaxRetries(maxRetries int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}

// WithDelay sets a delay before the job can be processed
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithScheduledAt sets a specific time for the job to be processed
func WithScheduledAt(scheduledAt time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &scheduledAt
	}
}

// WithJobName sets a custom job name
func WithJobName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.jobName = name
		}
	}
}
