package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for development and testing.
// All returned records are copies; mutations only take effect through the
// Update methods.
type MemoryRepository struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	deliveries    map[string]*Delivery
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		notifications: make(map[string]*Notification),
		deliveries:    make(map[string]*Delivery),
	}
}

func (r *MemoryRepository) CreateNotification(ctx context.Context, n *Notification, deliveries []*Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *n
	r.notifications[n.ID.String()] = &cp
	for _, d := range deliveries {
		dcp := *d
		r.deliveries[d.ID.String()] = &dcp
	}
	return nil
}

func (r *MemoryRepository) GetNotification(ctx context.Context, id string) (*Notification, []*Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, nil, ErrNotificationNotFound
	}

	ncp := *n
	var deliveries []*Delivery
	for _, d := range r.deliveries {
		if d.NotificationID == n.ID {
			dcp := *d
			deliveries = append(deliveries, &dcp)
		}
	}
	sort.Slice(deliveries, func(i, j int) bool {
		return deliveries[i].CreatedAt.Before(deliveries[j].CreatedAt)
	})
	return &ncp, deliveries, nil
}

func (r *MemoryRepository) FindByDedupKey(ctx context.Context, tenantID, dedupKey string) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Notification
	for _, n := range r.notifications {
		if n.TenantID != tenantID || n.DedupKey != dedupKey {
			continue
		}
		if n.Status != StatusQueued && n.Status != StatusSent {
			continue
		}
		if found == nil || n.CreatedAt.After(found.CreatedAt) {
			found = n
		}
	}
	if found == nil {
		return nil, ErrNotificationNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *MemoryRepository) UpdateNotification(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[n.ID.String()]; !ok {
		return ErrNotificationNotFound
	}
	cp := *n
	r.notifications[n.ID.String()] = &cp
	return nil
}

func (r *MemoryRepository) GetDelivery(ctx context.Context, id string) (*Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.deliveries[id]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) UpdateDelivery(ctx context.Context, d *Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deliveries[d.ID.String()]; !ok {
		return ErrDeliveryNotFound
	}
	cp := *d
	r.deliveries[d.ID.String()] = &cp
	return nil
}

func (r *MemoryRepository) DueRetries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*Delivery
	for _, d := range r.deliveries {
		if d.AwaitingRetry() && !d.NextRetryAt.After(now) {
			cp := *d
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(*due[j].NextRetryAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryRepository) Stats(ctx context.Context, tenantID string, from, to time.Time) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{
		TenantID:   tenantID,
		ByChannel:  make(map[Channel]*ChannelStats),
		ByCategory: make(map[Category]int64),
	}

	for _, d := range r.deliveries {
		n, ok := r.notifications[d.NotificationID.String()]
		if !ok || n.TenantID != tenantID {
			continue
		}
		if d.CreatedAt.Before(from) || !d.CreatedAt.Before(to) {
			continue
		}

		cs, ok := stats.ByChannel[d.Channel]
		if !ok {
			cs = &ChannelStats{}
			stats.ByChannel[d.Channel] = cs
		}

		stats.Total++
		stats.ByCategory[n.Category]++
		switch {
		case d.Status == StatusSent:
			stats.Sent++
			cs.Sent++
			stats.TotalCost += d.Cost
			cs.Cost += d.Cost
		case d.Status == StatusCancelled:
			stats.Cancelled++
			cs.Cancelled++
		case d.Status == StatusFailed && !d.AwaitingRetry():
			stats.Failed++
			cs.Failed++
		default:
			stats.Pending++
			cs.Pending++
		}
	}
	return stats, nil
}

func (r *MemoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, n := range r.notifications {
		if !n.Status.Terminal() || !n.CreatedAt.Before(cutoff) {
			continue
		}
		delete(r.notifications, id)
		removed++
		for did, d := range r.deliveries {
			if d.NotificationID == n.ID {
				delete(r.deliveries, did)
			}
		}
	}
	return removed, nil
}
