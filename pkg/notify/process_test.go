package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/notify"
)

func TestService_Process(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("successful delivery marks everything sent", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, stored.Status)
		assert.NotNil(t, stored.SentAt)
		for _, d := range deliveries {
			assert.Equal(t, notify.StatusSent, d.Status)
			assert.NotEmpty(t, d.ExternalID)
			assert.NotNil(t, d.SentAt)
		}
	})

	t.Run("processing is idempotent", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))
		require.NoError(t, env.svc.Process(ctx, id))

		assert.Equal(t, 1, env.email.calls, "terminal deliveries are not re-sent")
	})

	t.Run("unknown notification is a benign no-op", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		assert.NoError(t, env.svc.Process(ctx, "3f34b5f4-3b7f-4c96-9e2a-1c53b5d3a001"))
		assert.Zero(t, env.email.calls)
	})

	t.Run("expired notification is cancelled before any send", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		params := createParams()
		past := time.Now().Add(-time.Minute)
		params.ExpiresAt = &past

		res, err := env.svc.Create(ctx, params)
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusCancelled, stored.Status)
		assert.Equal(t, notify.ReasonExpired, stored.CancelReason)
		for _, d := range deliveries {
			assert.Equal(t, notify.StatusCancelled, d.Status)
		}
		assert.Zero(t, env.email.calls)
		assert.Zero(t, env.inApp.calls)
	})

	t.Run("disabled channel blocks only that delivery", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		prefs := notify.DefaultPreferences("gym_1", "member_1")
		prefs.EmailEnabled = false
		env.prefs.Set(prefs)

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, stored.Status, "in-app delivery still counts as success")

		for _, d := range deliveries {
			switch d.Channel {
			case notify.ChannelEmail:
				assert.Equal(t, notify.StatusCancelled, d.Status)
				assert.Equal(t, string(notify.ReasonChannelDisabled), d.FailureReason)
			case notify.ChannelInApp:
				assert.Equal(t, notify.StatusSent, d.Status)
			}
		}
		assert.Zero(t, env.email.calls)
	})

	t.Run("disabled category blocks all deliveries", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		prefs := notify.DefaultPreferences("gym_1", "member_1")
		prefs.Billing = false
		env.prefs.Set(prefs)

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status, "nothing went out")
		for _, d := range deliveries {
			assert.Equal(t, notify.StatusCancelled, d.Status)
			assert.Equal(t, string(notify.ReasonCategoryDisabled), d.FailureReason)
		}
	})

	t.Run("quiet hours block normal priority", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		// Window covering every hour keeps the test independent of wall time
		prefs := notify.DefaultPreferences("gym_1", "member_1")
		prefs.QuietHoursStart = hourPtr(0)
		prefs.QuietHoursEnd = hourPtr(23)
		env.prefs.Set(prefs)

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status)
		for _, d := range deliveries {
			assert.Equal(t, notify.StatusCancelled, d.Status)
			assert.Equal(t, string(notify.ReasonQuietHours), d.FailureReason)
		}
	})

	t.Run("critical priority bypasses quiet hours", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		prefs := notify.DefaultPreferences("gym_1", "member_1")
		prefs.QuietHoursStart = hourPtr(0)
		prefs.QuietHoursEnd = hourPtr(23)
		env.prefs.Set(prefs)

		params := createParams()
		params.Priority = notify.PriorityCritical
		res, err := env.svc.Create(ctx, params)
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, _, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, stored.Status)
	})

	t.Run("daily cap blocks once reached", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		prefs := notify.DefaultPreferences("gym_1", "member_1")
		prefs.MaxDailyEmail = 1
		env.prefs.Set(prefs)

		require.NoError(t, env.counter.Incr(ctx, "gym_1", "member_1", notify.ChannelEmail, time.Now()))

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		_, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)
		for _, d := range deliveries {
			if d.Channel == notify.ChannelEmail {
				assert.Equal(t, notify.StatusCancelled, d.Status)
				assert.Equal(t, string(notify.ReasonDailyLimitExceeded), d.FailureReason)
			}
		}
		assert.Zero(t, env.email.calls)
	})

	t.Run("successful send increments the daily counter", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		require.NoError(t, env.svc.Process(ctx, res.Notification.ID.String()))

		count, err := env.counter.Count(ctx, "gym_1", "member_1", notify.ChannelEmail, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestService_Retry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("transient failure schedules a retry with backoff", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.email.failures = 1

		res, err := env.svc.Create(ctx, createParams())
		require.NoError(t, err)
		id := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, id))

		stored, deliveries, err := env.repo.GetNotification(ctx, id)
		require.NoError(t, err)

		var emailDelivery *notify.Delivery
		for _, d := range deliveries {
			if d.Channel == notify.ChannelEmail {
				emailDelivery = d
			}
		}
		require.NotNil(t, emailDelivery)
		assert.Equal(t, notify.StatusFailed, emailDelivery.Status)
		assert.Equal(t, 1, emailDelivery.RetryCount)
		require.NotNil(t, emailDelivery.NextRetryAt)
		assert.Equal(t, 1, env.enqueuer.retryJobs())

		// The in-app send already succeeded, so the aggregate is sent
		assert.Equal(t, notify.StatusSent, stored.Status)

		// Retry succeeds on the second attempt
		require.NoError(t, env.svc.Retry(ctx, emailDelivery.ID.String()))
		got, err := env.repo.GetDelivery(ctx, emailDelivery.ID.String())
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, got.Status)
		assert.Nil(t, got.NextRetryAt)
	})

	t.Run("retries exhaust after the budget", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.inApp.failures = 100

		params := createParams()
		params.Channels = []notify.Channel{notify.ChannelInApp}
		res, err := env.svc.Create(ctx, params)
		require.NoError(t, err)
		nid := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, nid))

		_, deliveries, err := env.repo.GetNotification(ctx, nid)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		id := deliveries[0].ID.String()

		// Two retries on top of the initial attempt spend the budget of three
		for i := 0; i < 2; i++ {
			require.NoError(t, env.svc.Retry(ctx, id))
		}

		d, err := env.repo.GetDelivery(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, d.Status)
		assert.Equal(t, 3, d.RetryCount)
		assert.Nil(t, d.NextRetryAt, "exhausted delivery must not retry again")
		assert.Equal(t, 3, env.inApp.calls)

		stored, _, err := env.repo.GetNotification(ctx, nid)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status)

		// Further retry calls are no-ops
		require.NoError(t, env.svc.Retry(ctx, id))
		assert.Equal(t, 3, env.inApp.calls)
	})

	t.Run("retry of unknown delivery is a benign no-op", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		assert.NoError(t, env.svc.Retry(ctx, "3f34b5f4-3b7f-4c96-9e2a-1c53b5d3a002"))
	})

	t.Run("retry of cancelled notification voids the delivery", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.email.failures = 100

		params := createParams()
		params.Channels = []notify.Channel{notify.ChannelEmail}
		res, err := env.svc.Create(ctx, params)
		require.NoError(t, err)
		nid := res.Notification.ID.String()
		require.NoError(t, env.svc.Process(ctx, nid))

		_, deliveries, err := env.repo.GetNotification(ctx, nid)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)

		require.NoError(t, env.svc.Cancel(ctx, nid))
		require.NoError(t, env.svc.Retry(ctx, deliveries[0].ID.String()))

		d, err := env.repo.GetDelivery(ctx, deliveries[0].ID.String())
		require.NoError(t, err)
		assert.Equal(t, notify.StatusCancelled, d.Status)
		assert.Equal(t, 1, env.email.calls, "no send after cancellation")
	})
}

func TestService_SweepDueRetries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.inApp.failures = 100

	params := createParams()
	params.Channels = []notify.Channel{notify.ChannelInApp}
	res, err := env.svc.Create(ctx, params)
	require.NoError(t, err)
	nid := res.Notification.ID.String()
	require.NoError(t, env.svc.Process(ctx, nid))

	// The retry is scheduled in the future, so a sweep finds nothing yet
	enqueued, err := env.svc.SweepDueRetries(ctx)
	require.NoError(t, err)
	assert.Zero(t, enqueued)

	// Backdate the retry far enough past the grace period
	_, deliveries, err := env.repo.GetNotification(ctx, nid)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	d := deliveries[0]
	stale := time.Now().Add(-time.Hour)
	d.NextRetryAt = &stale
	require.NoError(t, env.repo.UpdateDelivery(ctx, d))

	enqueued, err = env.svc.SweepDueRetries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)
	assert.Equal(t, 2, env.enqueuer.retryJobs(), "one from failure, one from sweep")
}

func TestService_Cleanup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, notify.WithRetentionPeriod(time.Hour))

	// Delivered long ago
	old, err := env.svc.Create(ctx, createParams())
	require.NoError(t, err)
	oldID := old.Notification.ID.String()
	require.NoError(t, env.svc.Process(ctx, oldID))

	stored, _, err := env.repo.GetNotification(ctx, oldID)
	require.NoError(t, err)
	stored.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, env.repo.UpdateNotification(ctx, stored))

	// Still pending, must survive regardless of age
	params := createParams()
	params.RecipientID = "member_2"
	fresh, err := env.svc.Create(ctx, params)
	require.NoError(t, err)

	removed, err := env.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, _, err = env.repo.GetNotification(ctx, oldID)
	assert.ErrorIs(t, err, notify.ErrNotificationNotFound)
	_, _, err = env.repo.GetNotification(ctx, fresh.Notification.ID.String())
	assert.NoError(t, err)
}
