package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/queue"
)

type testPayload struct {
	Value string `json:"value"`
}

// captureRepo records created jobs without persisting anything.
type captureRepo struct {
	mu        sync.Mutex
	jobs      []*queue.Job
	cancelled []uuid.UUID
	cancelErr error
}

func (r *captureRepo) CreateJob(ctx context.Context, job *queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *captureRepo) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelErr != nil {
		return r.cancelErr
	}
	r.cancelled = append(r.cancelled, jobID)
	return nil
}

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	_, err := queue.NewEnqueuer(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	enq, err := queue.NewEnqueuer(&captureRepo{})
	require.NoError(t, err)
	assert.NotNil(t, enq)
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := &captureRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, testPayload{Value: "hello"}))
		require.Len(t, repo.jobs, 1)

		job := repo.jobs[0]
		assert.Equal(t, queue.LaneNormal, job.Lane)
		assert.Equal(t, "queue_test.testPayload", job.Name)
		assert.Equal(t, queue.JobStatusPending, job.Status)
		assert.Equal(t, int8(3), job.MaxRetries)
		assert.JSONEq(t, `{"value":"hello"}`, string(job.Payload))
		assert.WithinDuration(t, time.Now(), job.ScheduledAt, time.Second)
	})

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(&captureRepo{})
		require.NoError(t, err)
		assert.ErrorIs(t, enq.Enqueue(ctx, nil), queue.ErrPayloadNil)
	})

	t.Run("lane and retry options", func(t *testing.T) {
		t.Parallel()

		repo := &captureRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, testPayload{},
			queue.WithLane(queue.LaneCritical),
			queue.WithMaxRetries(0),
			queue.WithJobName("custom.name")))
		require.Len(t, repo.jobs, 1)

		job := repo.jobs[0]
		assert.Equal(t, queue.LaneCritical, job.Lane)
		assert.Equal(t, int8(0), job.MaxRetries)
		assert.Equal(t, "custom.name", job.Name)
	})

	t.Run("invalid lane", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(&captureRepo{})
		require.NoError(t, err)
		assert.ErrorIs(t, enq.Enqueue(ctx, testPayload{}, queue.WithLane("bogus")), queue.ErrInvalidLane)
	})

	t.Run("delay pushes the run time", func(t *testing.T) {
		t.Parallel()

		repo := &captureRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithDelay(time.Hour)))
		require.Len(t, repo.jobs, 1)
		assert.WithinDuration(t, time.Now().Add(time.Hour), repo.jobs[0].ScheduledAt, time.Second)
	})

	t.Run("default lane override", func(t *testing.T) {
		t.Parallel()

		repo := &captureRepo{}
		enq, err := queue.NewEnqueuer(repo, queue.WithDefaultLane(queue.LaneLow))
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, testPayload{}))
		require.Len(t, repo.jobs, 1)
		assert.Equal(t, queue.LaneLow, repo.jobs[0].Lane)
	})
}

func TestEnqueuer_ScheduleAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("future schedule", func(t *testing.T) {
		t.Parallel()

		repo := &captureRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		at := time.Now().Add(time.Hour)
		id, err := enq.ScheduleAt(ctx, testPayload{}, at)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		require.Len(t, repo.jobs, 1)
		job := repo.jobs[0]
		assert.Equal(t, id, job.ID, "returned handle identifies the job")
		assert.Equal(t, queue.LaneScheduled, job.Lane)
		assert.Equal(t, at, job.ScheduledAt)
	})

	t.Run("past time rejected", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(&captureRepo{})
		require.NoError(t, err)

		_, err = enq.ScheduleAt(ctx, testPayload{}, time.Now().Add(-time.Minute))
		assert.ErrorIs(t, err, queue.ErrScheduleInPast)
	})

	t.Run("cancel delegates to the repository", func(t *testing.T) {
		t.Parallel()

		repo := &captureRepo{}
		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		id, err := enq.ScheduleAt(ctx, testPayload{}, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, enq.CancelSchedule(ctx, id))
		require.Len(t, repo.cancelled, 1)
		assert.Equal(t, id, repo.cancelled[0])
	})
}
