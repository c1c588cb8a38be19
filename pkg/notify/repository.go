package notify

import (
	"context"
	"time"
)

// Repository persists notifications and their deliveries. Implementations must
// keep a notification and its deliveries consistent: CreateNotification stores
// the aggregate atomically, UpdateNotification and UpdateDelivery replace the
// stored records by id.
type Repository interface {
	// CreateNotification stores a notification together with its initial
	// delivery records.
	CreateNotification(ctx context.Context, n *Notification, deliveries []*Delivery) error

	// GetNotification returns a notification with its deliveries, or
	// ErrNotificationNotFound.
	GetNotification(ctx context.Context, id string) (*Notification, []*Delivery, error)

	// FindByDedupKey returns the most recent notification for the tenant
	// carrying the dedup key in a non-discarded state (queued or sent), or
	// ErrNotificationNotFound when none exists.
	FindByDedupKey(ctx context.Context, tenantID, dedupKey string) (*Notification, error)

	// UpdateNotification replaces the stored notification.
	UpdateNotification(ctx context.Context, n *Notification) error

	// GetDelivery returns a single delivery, or ErrDeliveryNotFound.
	GetDelivery(ctx context.Context, id string) (*Delivery, error)

	// UpdateDelivery replaces the stored delivery.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// DueRetries returns deliveries whose NextRetryAt has come due, oldest
	// first, up to limit.
	DueRetries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// Stats aggregates delivery counts for a tenant within [from, to).
	Stats(ctx context.Context, tenantID string, from, to time.Time) (*Stats, error)

	// DeleteOlderThan removes terminal notifications (and their deliveries)
	// created before cutoff. Non-terminal records are kept regardless of
	// age. Returns the number of notifications removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
