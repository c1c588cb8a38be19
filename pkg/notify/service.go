package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gymstack/gymkit/pkg/queue"
)

// Defaults for the retry and housekeeping machinery.
const (
	DefaultMaxRetries      = 3
	DefaultBaseRetryDelay  = time.Minute
	DefaultMaxRetryDelay   = time.Hour
	DefaultSendTimeout     = 30 * time.Second
	DefaultRetentionPeriod = 90 * 24 * time.Hour
	DefaultSweepInterval   = time.Minute
	DefaultSweepBatchSize  = 100

	// retryGracePeriod is how long past NextRetryAt a delivery must be before
	// the sweep re-enqueues it. The primary retry path is a delayed queue job;
	// the sweep only recovers jobs that were lost.
	retryGracePeriod = 2 * time.Minute
)

// batchDelay is the send-batching window per priority. Lower priorities wait
// longer so bursts of low-value notifications coalesce behind urgent ones.
func batchDelay(p NotificationPriority) time.Duration {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 30 * time.Second
	case PriorityLow:
		return 5 * time.Minute
	default:
		return 2 * time.Minute
	}
}

// laneFor maps a notification priority to its queue lane.
func laneFor(p NotificationPriority) queue.Lane {
	switch p {
	case PriorityCritical:
		return queue.LaneCritical
	case PriorityHigh:
		return queue.LaneHigh
	case PriorityLow:
		return queue.LaneLow
	default:
		return queue.LaneNormal
	}
}

// Enqueuer is the queue surface the service submits work through.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
	ScheduleAt(ctx context.Context, payload any, at time.Time, opts ...queue.EnqueueOption) (uuid.UUID, error)
	CancelSchedule(ctx context.Context, scheduleID uuid.UUID) error
}

// Service is the notification delivery engine: it creates notifications,
// fans them out to channel deliveries, runs the preference gate, and drives
// the retry pipeline through the job queue.
type Service struct {
	repo     Repository
	enqueuer Enqueuer
	prefs    PreferenceStore
	counter  SendCounter
	resolver AddressResolver
	senders  map[Channel]ChannelSender
	log      *slog.Logger

	maxRetries      int
	baseRetryDelay  time.Duration
	maxRetryDelay   time.Duration
	sendTimeout     time.Duration
	retentionPeriod time.Duration
	sweepInterval   time.Duration
	sweepBatchSize  int
}

// NewService creates a notification service. At least one channel sender must
// be registered; preference store, send counter, and address resolver are
// optional and default to allow-everything behavior.
func NewService(repo Repository, enqueuer Enqueuer, senders []ChannelSender, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	if len(senders) == 0 {
		return nil, ErrNoSenders
	}

	s := &Service{
		repo:            repo,
		enqueuer:        enqueuer,
		prefs:           nopPreferenceStore{},
		counter:         NewMemorySendCounter(),
		senders:         make(map[Channel]ChannelSender, len(senders)),
		log:             slog.Default(),
		maxRetries:      DefaultMaxRetries,
		baseRetryDelay:  DefaultBaseRetryDelay,
		maxRetryDelay:   DefaultMaxRetryDelay,
		sendTimeout:     DefaultSendTimeout,
		retentionPeriod: DefaultRetentionPeriod,
		sweepInterval:   DefaultSweepInterval,
		sweepBatchSize:  DefaultSweepBatchSize,
	}

	for _, sender := range senders {
		if !sender.Channel().Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, sender.Channel())
		}
		s.senders[sender.Channel()] = sender
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// CreateParams describes one notification to create.
type CreateParams struct {
	TenantID     string
	RecipientID  string
	MembershipID string
	Type         string
	Category     Category
	Priority     NotificationPriority
	Title        string
	Message      string
	ActionURL    string
	ActionLabel  string
	Data         map[string]any
	TemplateID   string
	TemplateVars map[string]string
	Channels     []Channel
	DedupKey     string
	GroupKey     string
	ScheduledFor *time.Time
	ExpiresAt    *time.Time
}

func (p CreateParams) validate() error {
	if p.TenantID == "" {
		return ErrTenantRequired
	}
	if p.RecipientID == "" {
		return ErrRecipientRequired
	}
	if p.Title == "" {
		return ErrTitleRequired
	}
	if p.Message == "" {
		return ErrMessageRequired
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, p.Category)
	}
	if p.Priority != "" && !p.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, p.Priority)
	}
	for _, c := range p.Channels {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidChannel, c)
		}
	}
	return nil
}

// CreateResult is what Create returns: the stored notification with its
// deliveries, and whether an existing notification was returned instead of
// creating a new one.
type CreateResult struct {
	Notification *Notification
	Deliveries   []*Delivery
	Deduplicated bool
}

// Create registers a notification and enqueues its delivery. When the params
// carry a DedupKey and a queued or sent notification with the same key already
// exists for the tenant, that notification is returned with Deduplicated set
// and nothing new is created, so callers may retry Create safely.
func (s *Service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	if params.DedupKey != "" {
		existing, err := s.repo.FindByDedupKey(ctx, params.TenantID, params.DedupKey)
		if err == nil {
			s.log.DebugContext(ctx, "duplicate notification suppressed",
				slog.String("tenant_id", params.TenantID),
				slog.String("dedup_key", params.DedupKey),
				slog.String("notification_id", existing.ID.String()))
			full, deliveries, err := s.repo.GetNotification(ctx, existing.ID.String())
			if err != nil {
				return nil, err
			}
			return &CreateResult{Notification: full, Deliveries: deliveries, Deduplicated: true}, nil
		}
		if !errors.Is(err, ErrNotificationNotFound) {
			return nil, fmt.Errorf("dedup lookup failed: %w", err)
		}
	}

	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	channels := params.Channels
	if len(channels) == 0 {
		channels = []Channel{ChannelInApp}
	}

	now := time.Now()
	n := &Notification{
		ID:           uuid.New(),
		TenantID:     params.TenantID,
		RecipientID:  params.RecipientID,
		MembershipID: params.MembershipID,
		Type:         params.Type,
		Category:     params.Category,
		Priority:     priority,
		Title:        params.Title,
		Message:      params.Message,
		ActionURL:    params.ActionURL,
		ActionLabel:  params.ActionLabel,
		Data:         params.Data,
		TemplateID:   params.TemplateID,
		TemplateVars: params.TemplateVars,
		DedupKey:     params.DedupKey,
		GroupKey:     params.GroupKey,
		ScheduledFor: params.ScheduledFor,
		ExpiresAt:    params.ExpiresAt,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	deliveries, err := s.buildDeliveries(ctx, n, channels)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateNotification(ctx, n, deliveries); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	// Queued before the job is visible: a worker that claims it immediately
	// may finish processing before Create returns, and a late status write
	// here would regress sent back to queued. Marking queued up front also
	// lets future-dated notifications dedup.
	n.Status = StatusQueued
	n.UpdatedAt = time.Now()
	if err := s.repo.UpdateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to mark notification queued: %w", err)
	}

	if err := s.enqueueDelivery(ctx, n); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "notification created",
		slog.String("notification_id", n.ID.String()),
		slog.String("tenant_id", n.TenantID),
		slog.String("recipient_id", n.RecipientID),
		slog.String("category", string(n.Category)),
		slog.String("priority", string(n.Priority)),
		slog.Int("deliveries", len(deliveries)))

	return &CreateResult{Notification: n, Deliveries: deliveries}, nil
}

// buildDeliveries resolves one delivery record per requested channel. Channels
// without a registered sender or a resolvable address are skipped.
func (s *Service) buildDeliveries(ctx context.Context, n *Notification, channels []Channel) ([]*Delivery, error) {
	now := time.Now()
	deliveries := make([]*Delivery, 0, len(channels))
	for _, c := range channels {
		if _, ok := s.senders[c]; !ok {
			s.log.WarnContext(ctx, "no sender registered for channel, skipping",
				slog.String("channel", string(c)),
				slog.String("notification_id", n.ID.String()))
			continue
		}

		addr, err := s.resolveAddress(ctx, n, c)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s address: %w", c, err)
		}
		if addr == "" {
			s.log.WarnContext(ctx, "no address for channel, skipping",
				slog.String("channel", string(c)),
				slog.String("recipient_id", n.RecipientID))
			continue
		}

		deliveries = append(deliveries, &Delivery{
			ID:             uuid.New(),
			NotificationID: n.ID,
			Channel:        c,
			Address:        addr,
			Status:         StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return deliveries, nil
}

// resolveAddress determines the channel address for a recipient. In-app
// deliveries address the recipient directly; email goes through the resolver,
// with a preference-level override taking precedence.
func (s *Service) resolveAddress(ctx context.Context, n *Notification, c Channel) (string, error) {
	if c == ChannelInApp {
		return n.RecipientID, nil
	}

	if c == ChannelEmail {
		prefs, err := s.prefs.Get(ctx, n.TenantID, n.RecipientID)
		if err != nil {
			return "", err
		}
		if prefs != nil && prefs.EmailOverride != "" {
			return prefs.EmailOverride, nil
		}
	}

	if s.resolver == nil {
		return "", nil
	}
	return s.resolver.Resolve(ctx, n.TenantID, n.RecipientID, c)
}

// enqueueDelivery submits the processing job, future-dated when the
// notification is scheduled, otherwise delayed by the priority batching
// window.
func (s *Service) enqueueDelivery(ctx context.Context, n *Notification) error {
	payload := DeliverNotificationPayload{NotificationID: n.ID.String()}

	if n.ScheduledFor != nil && n.ScheduledFor.After(time.Now()) {
		scheduleID, err := s.enqueuer.ScheduleAt(ctx, payload, *n.ScheduledFor)
		if err != nil {
			return fmt.Errorf("failed to schedule notification: %w", err)
		}
		n.ScheduleID = &scheduleID
		n.UpdatedAt = time.Now()
		if err := s.repo.UpdateNotification(ctx, n); err != nil {
			return fmt.Errorf("failed to store schedule handle: %w", err)
		}
		return nil
	}

	opts := []queue.EnqueueOption{queue.WithLane(laneFor(n.Priority))}
	if delay := batchDelay(n.Priority); delay > 0 {
		opts = append(opts, queue.WithDelay(delay))
	}
	if err := s.enqueuer.Enqueue(ctx, payload, opts...); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// Get returns a notification together with its deliveries.
func (s *Service) Get(ctx context.Context, id string) (*Notification, []*Delivery, error) {
	return s.repo.GetNotification(ctx, id)
}

// Cancel voids a not-yet-delivered notification: its schedule handle is
// cancelled if still pending, and all non-terminal deliveries move to
// cancelled. Returns ErrAlreadyTerminal when the notification already reached
// a terminal status.
func (s *Service) Cancel(ctx context.Context, id string) error {
	n, deliveries, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.Status.Terminal() {
		return ErrAlreadyTerminal
	}

	if n.ScheduleID != nil {
		if err := s.enqueuer.CancelSchedule(ctx, *n.ScheduleID); err != nil &&
			!errors.Is(err, queue.ErrScheduleNotFound) && !errors.Is(err, queue.ErrScheduleNotCancellable) {
			return fmt.Errorf("failed to cancel schedule: %w", err)
		}
	}

	now := time.Now()
	for _, d := range deliveries {
		// Deliveries awaiting a retry are voided too, or the sweep would
		// resurrect them
		if d.Status.Terminal() && !d.AwaitingRetry() {
			continue
		}
		d.Status = StatusCancelled
		d.FailureReason = string(ReasonVoided)
		d.NextRetryAt = nil
		d.UpdatedAt = now
		if err := s.repo.UpdateDelivery(ctx, d); err != nil {
			return fmt.Errorf("failed to cancel delivery: %w", err)
		}
	}

	n.Status = StatusCancelled
	n.CancelReason = ReasonVoided
	n.UpdatedAt = now
	if err := s.repo.UpdateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}

	s.log.InfoContext(ctx, "notification cancelled",
		slog.String("notification_id", n.ID.String()),
		slog.String("tenant_id", n.TenantID))
	return nil
}

// Stats aggregates delivery outcomes for a tenant within [from, to).
func (s *Service) Stats(ctx context.Context, tenantID string, from, to time.Time) (*Stats, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return s.repo.Stats(ctx, tenantID, from, to)
}

// Cleanup deletes terminal notifications older than the retention period and
// returns how many were removed.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retentionPeriod)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	if removed > 0 {
		s.log.InfoContext(ctx, "expired notifications removed",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return removed, nil
}
