package queue_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/queue"
)

func TestNewWorker(t *testing.T) {
	t.Parallel()

	_, err := queue.NewWorker(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	w, err := queue.NewWorker(queue.NewMemoryStorage())
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, w.Start(context.Background()), queue.ErrNoHandlers)
	})

	t.Run("double start", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(queue.NewMemoryStorage())
		require.NoError(t, err)
		require.NoError(t, w.RegisterHandler(queue.NewJobHandler(func(ctx context.Context, p testPayload) error {
			return nil
		})))

		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()
		assert.Error(t, w.Start(context.Background()))
	})

	t.Run("stop without start", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.Error(t, w.Stop())
	})
}

func TestWorker_ProcessesJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	defer func() { _ = storage.Close() }()

	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var processed atomic.Int32
	var got atomic.Value

	w, err := queue.NewWorker(storage, queue.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandler(queue.NewJobHandler(func(ctx context.Context, p testPayload) error {
		got.Store(p.Value)
		processed.Add(1)
		return nil
	})))

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.NoError(t, enq.Enqueue(ctx, testPayload{Value: "work"}))

	require.Eventually(t, func() bool {
		return processed.Load() == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "work", got.Load())

	// No redelivery of a completed job
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), processed.Load())
}

func TestWorker_LaneRouting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	defer func() { _ = storage.Close() }()

	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var normal atomic.Int32

	// Worker that only serves the normal lane
	w, err := queue.NewWorker(storage,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithLanes(map[queue.Lane]int{queue.LaneNormal: 2}))
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandler(queue.NewJobHandler(func(ctx context.Context, p testPayload) error {
		normal.Add(1)
		return nil
	})))

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithLane(queue.LaneNormal)))
	require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithLane(queue.LaneCritical)))

	require.Eventually(t, func() bool {
		return normal.Load() == 1
	}, 3*time.Second, 10*time.Millisecond)

	// The critical-lane job stays untouched by this worker
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), normal.Load())
}

func TestWorker_PanicRecovery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	defer func() { _ = storage.Close() }()

	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var calls atomic.Int32

	w, err := queue.NewWorker(storage, queue.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandler(queue.NewJobHandler(func(ctx context.Context, p testPayload) error {
		if calls.Add(1) == 1 && p.Value == "explode" {
			panic("boom")
		}
		return nil
	})))

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	// MaxRetries 0 keeps the panicking job from redelivering with its 30s
	// backoff inside the test window
	require.NoError(t, enq.Enqueue(ctx, testPayload{Value: "explode"}, queue.WithMaxRetries(0)))
	require.NoError(t, enq.Enqueue(ctx, testPayload{Value: "fine"}))

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond, "worker must survive a handler panic")
}
