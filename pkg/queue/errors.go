package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidLane is returned when a job targets an unknown lane
	ErrInvalidLane = errors.New("unknown queue lane")

	// ErrHandlerNotFound is returned when no handler is registered for a job
	ErrHandlerNotFound = errors.New("no handler registered for job name")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrNoJobToClaim is returned by repositories when a lane has no due jobs
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrScheduleNotFound is returned when cancelling an unknown schedule
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrScheduleNotCancellable is returned when the scheduled job has already
	// been claimed or finished
	ErrScheduleNotCancellable = errors.New("schedule is no longer cancellable")

	// ErrScheduleInPast is returned when ScheduleAt is given a non-future time
	ErrScheduleInPast = errors.New("scheduled time must be in the future")
)
