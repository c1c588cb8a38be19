package queue

import (
	"time"

	"github.com/google/uuid"
)

// Lane is a named queue partition with its own parallelism bound.
// Lanes let a burst of low-priority jobs coexist with critical dispatch
// without starving it.
type Lane string

const (
	LaneCritical  Lane = "critical"
	LaneHigh      Lane = "high"
	LaneNormal    Lane = "normal"
	LaneLow       Lane = "low"
	LaneScheduled Lane = "scheduled"
	LaneRetry     Lane = "retry"
)

// DefaultLane is used when no lane is specified on enqueue.
const DefaultLane = LaneNormal

// DefaultLaneConcurrency returns the per-lane parallelism bounds applied by
// NewWorker when no explicit bounds are configured.
func DefaultLaneConcurrency() map[Lane]int {
	return map[Lane]int{
		LaneCritical:  10,
		LaneHigh:      8,
		LaneNormal:    5,
		LaneLow:       3,
		LaneScheduled: 4,
		LaneRetry:     2,
	}
}

// Valid reports whether the lane is one of the known partitions.
func (l Lane) Valid() bool {
	switch l {
	case LaneCritical, LaneHigh, LaneNormal, LaneLow, LaneScheduled, LaneRetry:
		return true
	}
	return false
}

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Job represents a unit of work in the queue.
//
// A Job is immutable once persisted; queue-level redelivery is tracked via
// RetryCount and MaxRetries. Domain-level retry policy (backoff, caps) is the
// responsibility of the payload owner, not the queue.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Lane        Lane       `json:"lane"`
	Name        string     `json:"name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      JobStatus  `json:"status"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
