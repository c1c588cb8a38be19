package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gymstack/gymkit/pkg/queue"
)

// RetryBackoff returns the delay before the next attempt after retryCount
// failed attempts: base·2^retryCount, capped at max. With the defaults that is
// 1m, 2m, 4m, 8m, ... up to 1h.
func RetryBackoff(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Process runs the delivery pipeline for one notification: expiry check,
// preference gate, then one send attempt per pending delivery. It is the
// handler body for the processing job and is safe to re-run; already-terminal
// deliveries are skipped.
func (s *Service) Process(ctx context.Context, notificationID string) error {
	n, deliveries, err := s.repo.GetNotification(ctx, notificationID)
	if err != nil {
		// Already cleaned up; a duplicate queue invocation is benign
		if errors.Is(err, ErrNotificationNotFound) {
			return nil
		}
		return err
	}
	if n.Status.Terminal() {
		s.log.DebugContext(ctx, "skipping terminal notification",
			slog.String("notification_id", n.ID.String()),
			slog.String("status", string(n.Status)))
		return nil
	}

	now := time.Now()
	if n.IsExpired(now) {
		return s.cancelAll(ctx, n, deliveries, ReasonExpired)
	}

	prefs, err := s.prefs.Get(ctx, n.TenantID, n.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs == nil {
		prefs = DefaultPreferences(n.TenantID, n.RecipientID)
	}

	for _, d := range deliveries {
		if d.Status.Terminal() || d.AwaitingRetry() {
			continue
		}
		if reason, blocked := s.gate(ctx, n, d, prefs, now); blocked {
			d.Status = StatusCancelled
			d.FailureReason = string(reason)
			d.UpdatedAt = time.Now()
			if err := s.repo.UpdateDelivery(ctx, d); err != nil {
				return fmt.Errorf("failed to record blocked delivery: %w", err)
			}
			s.log.InfoContext(ctx, "delivery blocked by preferences",
				slog.String("delivery_id", d.ID.String()),
				slog.String("channel", string(d.Channel)),
				slog.String("reason", string(reason)))
			continue
		}
		if err := s.attempt(ctx, n, d); err != nil {
			return err
		}
	}

	return s.recomputeStatus(ctx, n, deliveries)
}

// gate applies the preference checks in order: channel toggle, category
// toggle, quiet hours, daily cap. Critical notifications bypass quiet hours
// but never the toggles or caps.
func (s *Service) gate(ctx context.Context, n *Notification, d *Delivery, prefs *Preferences, now time.Time) (CancelReason, bool) {
	if !prefs.ChannelEnabled(d.Channel) {
		return ReasonChannelDisabled, true
	}
	if !prefs.CategoryEnabled(n.Category) {
		return ReasonCategoryDisabled, true
	}
	if n.Priority != PriorityCritical && prefs.InQuietHours(now) {
		return ReasonQuietHours, true
	}
	if limit := prefs.DailyLimit(d.Channel); limit > 0 {
		count, err := s.counter.Count(ctx, n.TenantID, n.RecipientID, d.Channel, now)
		if err != nil {
			// Fail open: a counter outage must not silence notifications
			s.log.ErrorContext(ctx, "send counter unavailable, allowing delivery",
				slog.Any("error", err),
				slog.String("delivery_id", d.ID.String()))
			return "", false
		}
		if count >= limit {
			return ReasonDailyLimitExceeded, true
		}
	}
	return "", false
}

// attempt performs one send and records the outcome. Failures schedule a retry
// through the queue until the retry budget is exhausted.
func (s *Service) attempt(ctx context.Context, n *Notification, d *Delivery) error {
	sender, ok := s.senders[d.Channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, d.Channel)
	}

	// Persist the queued transition before the send so a crash mid-send is
	// visible as an in-flight attempt
	if d.Status != StatusQueued {
		d.Status = StatusQueued
		d.UpdatedAt = time.Now()
		if err := s.repo.UpdateDelivery(ctx, d); err != nil {
			return fmt.Errorf("failed to mark delivery queued: %w", err)
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	receipt, err := sender.Send(sendCtx, n, d)
	cancel()

	now := time.Now()
	d.UpdatedAt = now

	if err != nil {
		return s.recordFailure(ctx, n, d, err)
	}

	d.Status = StatusSent
	d.SentAt = &now
	d.NextRetryAt = nil
	d.FailureReason = ""
	if receipt != nil {
		d.ExternalID = receipt.ExternalID
		d.Cost = receipt.Cost
	}
	if err := s.repo.UpdateDelivery(ctx, d); err != nil {
		return fmt.Errorf("failed to record sent delivery: %w", err)
	}

	if err := s.counter.Incr(ctx, n.TenantID, n.RecipientID, d.Channel, now); err != nil {
		s.log.ErrorContext(ctx, "failed to increment send counter",
			slog.Any("error", err),
			slog.String("delivery_id", d.ID.String()))
	}

	s.log.InfoContext(ctx, "delivery sent",
		slog.String("delivery_id", d.ID.String()),
		slog.String("notification_id", n.ID.String()),
		slog.String("channel", string(d.Channel)),
		slog.Int("retry_count", d.RetryCount))
	return nil
}

// recordFailure marks the attempt failed and either schedules the next retry
// or finalizes the delivery once the budget is spent.
func (s *Service) recordFailure(ctx context.Context, n *Notification, d *Delivery, sendErr error) error {
	d.RetryCount++
	d.FailureReason = sendErr.Error()
	d.Status = StatusFailed

	if d.RetryCount >= s.maxRetries {
		d.NextRetryAt = nil
		if err := s.repo.UpdateDelivery(ctx, d); err != nil {
			return fmt.Errorf("failed to record exhausted delivery: %w", err)
		}
		s.log.ErrorContext(ctx, "delivery failed permanently",
			slog.Any("error", sendErr),
			slog.String("delivery_id", d.ID.String()),
			slog.String("channel", string(d.Channel)),
			slog.Int("retry_count", d.RetryCount))
		return nil
	}

	delay := RetryBackoff(d.RetryCount, s.baseRetryDelay, s.maxRetryDelay)
	next := time.Now().Add(delay)
	d.NextRetryAt = &next
	if err := s.repo.UpdateDelivery(ctx, d); err != nil {
		return fmt.Errorf("failed to record failed delivery: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, RetryDeliveryPayload{DeliveryID: d.ID.String()},
		queue.WithLane(queue.LaneRetry),
		queue.WithDelay(delay),
	); err != nil {
		// The sweep will pick the delivery up from NextRetryAt
		s.log.ErrorContext(ctx, "failed to enqueue retry, deferring to sweep",
			slog.Any("error", err),
			slog.String("delivery_id", d.ID.String()))
	}

	s.log.WarnContext(ctx, "delivery failed, retry scheduled",
		slog.Any("error", sendErr),
		slog.String("delivery_id", d.ID.String()),
		slog.String("channel", string(d.Channel)),
		slog.Int("retry_count", d.RetryCount),
		slog.Duration("delay", delay))
	return nil
}

// Retry re-attempts a single failed delivery. Preference toggles were already
// honored on the first pass; a retry repeats only the send so a recipient who
// flips a toggle mid-retry does not strand an accepted notification.
func (s *Service) Retry(ctx context.Context, deliveryID string) error {
	d, err := s.repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, ErrDeliveryNotFound) {
			return nil
		}
		return err
	}
	if !d.AwaitingRetry() {
		s.log.DebugContext(ctx, "delivery no longer awaiting retry",
			slog.String("delivery_id", d.ID.String()),
			slog.String("status", string(d.Status)))
		return nil
	}

	n, deliveries, err := s.repo.GetNotification(ctx, d.NotificationID.String())
	if err != nil {
		return err
	}
	// A cancelled notification voids its retries; a sent one does not, the
	// remaining channels still get their attempts.
	if n.Status == StatusCancelled {
		d.Status = StatusCancelled
		d.NextRetryAt = nil
		d.UpdatedAt = time.Now()
		return s.repo.UpdateDelivery(ctx, d)
	}
	if n.IsExpired(time.Now()) {
		return s.cancelAll(ctx, n, deliveries, ReasonExpired)
	}

	if err := s.attempt(ctx, n, d); err != nil {
		return err
	}

	// attempt mutated d in place; deliveries contains the same record
	for i, existing := range deliveries {
		if existing.ID == d.ID {
			deliveries[i] = d
		}
	}
	return s.recomputeStatus(ctx, n, deliveries)
}

// SweepDueRetries re-enqueues deliveries whose retry job was lost: anything
// past NextRetryAt by more than the grace period. Duplicate attempts are
// acceptable under at-least-once semantics.
func (s *Service) SweepDueRetries(ctx context.Context) (int, error) {
	due, err := s.repo.DueRetries(ctx, time.Now().Add(-retryGracePeriod), s.sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due retries: %w", err)
	}

	enqueued := 0
	for _, d := range due {
		if err := s.enqueuer.Enqueue(ctx, RetryDeliveryPayload{DeliveryID: d.ID.String()},
			queue.WithLane(queue.LaneRetry),
		); err != nil {
			s.log.ErrorContext(ctx, "failed to re-enqueue due retry",
				slog.Any("error", err),
				slog.String("delivery_id", d.ID.String()))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.log.InfoContext(ctx, "recovered stalled retries", slog.Int("count", enqueued))
	}
	return enqueued, nil
}

// cancelAll moves the notification and all its non-terminal deliveries to
// cancelled with the given reason.
func (s *Service) cancelAll(ctx context.Context, n *Notification, deliveries []*Delivery, reason CancelReason) error {
	now := time.Now()
	for _, d := range deliveries {
		if d.Status.Terminal() && !d.AwaitingRetry() {
			continue
		}
		d.Status = StatusCancelled
		d.FailureReason = string(reason)
		d.NextRetryAt = nil
		d.UpdatedAt = now
		if err := s.repo.UpdateDelivery(ctx, d); err != nil {
			return fmt.Errorf("failed to cancel delivery: %w", err)
		}
	}

	n.Status = StatusCancelled
	n.CancelReason = reason
	n.UpdatedAt = now
	if err := s.repo.UpdateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}

	s.log.InfoContext(ctx, "notification cancelled",
		slog.String("notification_id", n.ID.String()),
		slog.String("reason", string(reason)))
	return nil
}

// recomputeStatus derives the notification status from its deliveries: any
// successful send makes the notification sent; it stays queued while retries
// are pending; once every delivery failed or was blocked it becomes failed.
// Notification-level cancelled is reserved for expiry and explicit voiding,
// which go through cancelAll.
func (s *Service) recomputeStatus(ctx context.Context, n *Notification, deliveries []*Delivery) error {
	if n.Status.Terminal() {
		return nil
	}

	now := time.Now()

	if len(deliveries) == 0 {
		n.Status = StatusFailed
		n.UpdatedAt = now
		return s.repo.UpdateNotification(ctx, n)
	}

	anySent := false
	allTerminal := true
	for _, d := range deliveries {
		if d.Status == StatusSent {
			anySent = true
		}
		if !d.Status.Terminal() || d.AwaitingRetry() {
			allTerminal = false
		}
	}

	switch {
	case anySent:
		n.Status = StatusSent
		n.SentAt = &now
	case !allTerminal:
		return nil // retries still in flight
	default:
		n.Status = StatusFailed
	}

	n.UpdatedAt = now
	if err := s.repo.UpdateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return nil
}
