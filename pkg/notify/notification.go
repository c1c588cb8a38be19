package notify

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// Valid reports whether the channel is one the engine knows how to deliver.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelInApp:
		return true
	}
	return false
}

// Category drives per-recipient preference checks.
type Category string

const (
	CategoryBilling    Category = "billing"
	CategoryRetention  Category = "retention"
	CategoryEngagement Category = "engagement"
	CategoryWorkflow   Category = "workflow"
	CategorySystem     Category = "system"
	CategorySocial     Category = "social"
)

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	switch c {
	case CategoryBilling, CategoryRetention, CategoryEngagement, CategoryWorkflow, CategorySystem, CategorySocial:
		return true
	}
	return false
}

// NotificationPriority drives lane selection, batching delay, and quiet-hours
// bypass.
type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityNormal   NotificationPriority = "normal"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

// Valid reports whether the priority is known.
func (p NotificationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the notification lifecycle state. Transitions are monotonic:
// pending → queued → sent | failed | cancelled, and no transition ever leaves
// a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status absorbs all further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CancelReason records why a notification or delivery was cancelled without a
// send. Preference blocks are deliberate outcomes, not errors.
type CancelReason string

const (
	ReasonExpired            CancelReason = "expired"
	ReasonVoided             CancelReason = "voided"
	ReasonChannelDisabled    CancelReason = "channel_disabled"
	ReasonCategoryDisabled   CancelReason = "category_disabled"
	ReasonQuietHours         CancelReason = "quiet_hours"
	ReasonDailyLimitExceeded CancelReason = "daily_limit_exceeded"
)

// Notification is one logical event a recipient should be told about,
// independent of channel. Channel-specific attempts hang off it as Deliveries.
type Notification struct {
	ID           uuid.UUID            `json:"id"`
	TenantID     string               `json:"tenant_id"`
	RecipientID  string               `json:"recipient_id"`
	MembershipID string               `json:"membership_id,omitempty"`
	Type         string               `json:"type"`
	Category     Category             `json:"category"`
	Priority     NotificationPriority `json:"priority"`
	Title        string               `json:"title"`
	Message      string               `json:"message"`
	ActionURL    string               `json:"action_url,omitempty"`
	ActionLabel  string               `json:"action_label,omitempty"`
	Data         map[string]any       `json:"data,omitempty"`
	TemplateID   string               `json:"template_id,omitempty"`
	TemplateVars map[string]string    `json:"template_vars,omitempty"`
	DedupKey     string               `json:"dedup_key,omitempty"`
	GroupKey     string               `json:"group_key,omitempty"`
	ScheduledFor *time.Time           `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	Status       Status               `json:"status"`
	CancelReason CancelReason         `json:"cancel_reason,omitempty"`
	ScheduleID   *uuid.UUID           `json:"schedule_id,omitempty"` // Queue schedule handle for future-dated notifications
	SentAt       *time.Time           `json:"sent_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// IsExpired returns true if the notification's delivery window has passed.
func (n *Notification) IsExpired(now time.Time) bool {
	if n.ExpiresAt == nil {
		return false
	}
	return now.After(*n.ExpiresAt)
}

// Delivery is one channel-specific attempt record, owned by exactly one
// Notification. A Delivery never changes channel; terminal states are sent,
// failed (after exhausting retries), and cancelled (preference-blocked or
// notification expired/voided).
type Delivery struct {
	ID             uuid.UUID  `json:"id"`
	NotificationID uuid.UUID  `json:"notification_id"`
	Channel        Channel    `json:"channel"`
	Address        string     `json:"address"` // Resolved recipient address for the channel
	Status         Status     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	ExternalID     string     `json:"external_id,omitempty"` // Provider message id
	FailureReason  string     `json:"failure_reason,omitempty"`
	Cost           float64    `json:"cost,omitempty"` // For budget accounting
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AwaitingRetry reports whether the delivery failed transiently and still has
// retry budget left. Terminally failed deliveries have no NextRetryAt.
func (d *Delivery) AwaitingRetry() bool {
	return d.Status == StatusFailed && d.NextRetryAt != nil
}
