package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/notify"
)

func storedNotification(tenantID string, status notify.Status) *notify.Notification {
	now := time.Now()
	return &notify.Notification{
		ID:          uuid.New(),
		TenantID:    tenantID,
		RecipientID: "member_1",
		Category:    notify.CategorySystem,
		Priority:    notify.PriorityNormal,
		Title:       "title",
		Message:     "message",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notify.NewMemoryRepository()

	n := storedNotification("gym_1", notify.StatusPending)
	d := &notify.Delivery{
		ID:             uuid.New(),
		NotificationID: n.ID,
		Channel:        notify.ChannelInApp,
		Address:        "member_1",
		Status:         notify.StatusPending,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, repo.CreateNotification(ctx, n, []*notify.Delivery{d}))

	got, deliveries, err := repo.GetNotification(ctx, n.ID.String())
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, d.ID, deliveries[0].ID)

	// Returned records are copies
	got.Title = "mutated"
	again, _, err := repo.GetNotification(ctx, n.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "title", again.Title)

	_, _, err = repo.GetNotification(ctx, uuid.NewString())
	assert.ErrorIs(t, err, notify.ErrNotificationNotFound)
}

func TestMemoryRepository_FindByDedupKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notify.NewMemoryRepository()

	queued := storedNotification("gym_1", notify.StatusQueued)
	queued.DedupKey = "key-1"
	require.NoError(t, repo.CreateNotification(ctx, queued, nil))

	failed := storedNotification("gym_1", notify.StatusFailed)
	failed.DedupKey = "key-2"
	require.NoError(t, repo.CreateNotification(ctx, failed, nil))

	t.Run("finds queued match", func(t *testing.T) {
		t.Parallel()

		got, err := repo.FindByDedupKey(ctx, "gym_1", "key-1")
		require.NoError(t, err)
		assert.Equal(t, queued.ID, got.ID)
	})

	t.Run("failed notifications do not block re-creation", func(t *testing.T) {
		t.Parallel()

		_, err := repo.FindByDedupKey(ctx, "gym_1", "key-2")
		assert.ErrorIs(t, err, notify.ErrNotificationNotFound)
	})

	t.Run("dedup is tenant scoped", func(t *testing.T) {
		t.Parallel()

		_, err := repo.FindByDedupKey(ctx, "gym_2", "key-1")
		assert.ErrorIs(t, err, notify.ErrNotificationNotFound)
	})
}

func TestMemoryRepository_DueRetries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notify.NewMemoryRepository()

	n := storedNotification("gym_1", notify.StatusQueued)

	mkDelivery := func(nextRetry *time.Time, status notify.Status) *notify.Delivery {
		return &notify.Delivery{
			ID:             uuid.New(),
			NotificationID: n.ID,
			Channel:        notify.ChannelEmail,
			Address:        "a@example.com",
			Status:         status,
			NextRetryAt:    nextRetry,
			CreatedAt:      time.Now(),
		}
	}

	now := time.Now()
	older := now.Add(-10 * time.Minute)
	recent := now.Add(-1 * time.Minute)
	future := now.Add(10 * time.Minute)

	dueOld := mkDelivery(&older, notify.StatusFailed)
	dueRecent := mkDelivery(&recent, notify.StatusFailed)
	notDue := mkDelivery(&future, notify.StatusFailed)
	sent := mkDelivery(nil, notify.StatusSent)
	require.NoError(t, repo.CreateNotification(ctx, n, []*notify.Delivery{dueOld, dueRecent, notDue, sent}))

	due, err := repo.DueRetries(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, dueOld.ID, due[0].ID, "oldest first")
	assert.Equal(t, dueRecent.ID, due[1].ID)

	due, err = repo.DueRetries(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueOld.ID, due[0].ID)
}

func TestMemoryRepository_DeleteOlderThan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notify.NewMemoryRepository()

	cutoff := time.Now().Add(-90 * 24 * time.Hour)

	oldSent := storedNotification("gym_1", notify.StatusSent)
	oldSent.CreatedAt = cutoff.Add(-time.Hour)
	oldDelivery := &notify.Delivery{
		ID:             uuid.New(),
		NotificationID: oldSent.ID,
		Channel:        notify.ChannelInApp,
		Address:        "member_1",
		Status:         notify.StatusSent,
		CreatedAt:      oldSent.CreatedAt,
	}
	require.NoError(t, repo.CreateNotification(ctx, oldSent, []*notify.Delivery{oldDelivery}))

	oldQueued := storedNotification("gym_1", notify.StatusQueued)
	oldQueued.CreatedAt = cutoff.Add(-time.Hour)
	require.NoError(t, repo.CreateNotification(ctx, oldQueued, nil))

	freshSent := storedNotification("gym_1", notify.StatusSent)
	require.NoError(t, repo.CreateNotification(ctx, freshSent, nil))

	removed, err := repo.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, _, err = repo.GetNotification(ctx, oldSent.ID.String())
	assert.ErrorIs(t, err, notify.ErrNotificationNotFound)
	_, err = repo.GetDelivery(ctx, oldDelivery.ID.String())
	assert.ErrorIs(t, err, notify.ErrDeliveryNotFound, "deliveries are removed with their notification")

	_, _, err = repo.GetNotification(ctx, oldQueued.ID.String())
	assert.NoError(t, err, "non-terminal notifications are kept regardless of age")
	_, _, err = repo.GetNotification(ctx, freshSent.ID.String())
	assert.NoError(t, err)
}
