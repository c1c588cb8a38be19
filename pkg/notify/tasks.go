package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/gymstack/gymkit/pkg/queue"
)

// cleanupInterval is how often terminal notifications past retention are
// purged.
const cleanupInterval = 24 * time.Hour

// DeliverNotificationPayload triggers the delivery pipeline for one
// notification.
type DeliverNotificationPayload struct {
	NotificationID string `json:"notification_id"`
}

// RetryDeliveryPayload re-attempts one failed delivery.
type RetryDeliveryPayload struct {
	DeliveryID string `json:"delivery_id"`
}

// SweepRetriesPayload runs one pass of the stalled-retry sweep and reschedules
// itself.
type SweepRetriesPayload struct{}

// CleanupPayload runs one retention purge and reschedules itself.
type CleanupPayload struct{}

// Handlers returns the queue handlers the engine consumes. Register them all
// with the worker that serves the notification lanes.
func (s *Service) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewJobHandler(func(ctx context.Context, p DeliverNotificationPayload) error {
			return s.Process(ctx, p.NotificationID)
		}),
		queue.NewJobHandler(func(ctx context.Context, p RetryDeliveryPayload) error {
			return s.Retry(ctx, p.DeliveryID)
		}),
		queue.NewJobHandler(func(ctx context.Context, p SweepRetriesPayload) error {
			if _, err := s.SweepDueRetries(ctx); err != nil {
				return err
			}
			return s.rescheduleSweep(ctx)
		}),
		queue.NewJobHandler(func(ctx context.Context, p CleanupPayload) error {
			if _, err := s.Cleanup(ctx); err != nil {
				return err
			}
			return s.rescheduleCleanup(ctx)
		}),
	}
}

// StartHousekeeping seeds the self-rescheduling sweep and cleanup jobs. Call
// it once at startup; duplicate seeds only cause extra no-op passes.
func (s *Service) StartHousekeeping(ctx context.Context) error {
	if err := s.enqueuer.Enqueue(ctx, SweepRetriesPayload{}, queue.WithLane(queue.LaneScheduled)); err != nil {
		return err
	}
	return s.enqueuer.Enqueue(ctx, CleanupPayload{}, queue.WithLane(queue.LaneScheduled))
}

func (s *Service) rescheduleSweep(ctx context.Context) error {
	err := s.enqueuer.Enqueue(ctx, SweepRetriesPayload{},
		queue.WithLane(queue.LaneScheduled),
		queue.WithDelay(s.sweepInterval))
	if err != nil {
		s.log.ErrorContext(ctx, "failed to reschedule retry sweep", slog.Any("error", err))
	}
	return err
}

func (s *Service) rescheduleCleanup(ctx context.Context) error {
	err := s.enqueuer.Enqueue(ctx, CleanupPayload{},
		queue.WithLane(queue.LaneScheduled),
		queue.WithDelay(cleanupInterval))
	if err != nil {
		s.log.ErrorContext(ctx, "failed to reschedule cleanup", slog.Any("error", err))
	}
	return err
}
