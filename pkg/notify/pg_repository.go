package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository is the PostgreSQL-backed Repository. Notifications and their
// deliveries live in two tables tied by a cascading foreign key; see the
// migrations directory for the schema.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a Repository backed by the given connection pool.
func NewPgRepository(pool *pgxpool.Pool) (*PgRepository, error) {
	if pool == nil {
		return nil, ErrRepositoryNil
	}
	return &PgRepository{pool: pool}, nil
}

const insertNotificationSQL = `
	INSERT INTO notifications (
		id, tenant_id, recipient_id, membership_id, type, category, priority,
		title, message, action_url, action_label, data, template_id,
		template_vars, dedup_key, group_key, scheduled_for, expires_at,
		status, cancel_reason, schedule_id, sent_at, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24
	)`

const insertDeliverySQL = `
	INSERT INTO notification_deliveries (
		id, notification_id, channel, address, status, retry_count,
		next_retry_at, external_id, failure_reason, cost, sent_at,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (r *PgRepository) CreateNotification(ctx context.Context, n *Notification, deliveries []*Delivery) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertNotificationSQL,
		n.ID, n.TenantID, n.RecipientID, nullStr(n.MembershipID), n.Type,
		n.Category, n.Priority, n.Title, n.Message, nullStr(n.ActionURL),
		nullStr(n.ActionLabel), n.Data, nullStr(n.TemplateID), n.TemplateVars,
		nullStr(n.DedupKey), nullStr(n.GroupKey), n.ScheduledFor, n.ExpiresAt,
		n.Status, nullStr(string(n.CancelReason)), n.ScheduleID, n.SentAt,
		n.CreatedAt, n.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	for _, d := range deliveries {
		if _, err := tx.Exec(ctx, insertDeliverySQL,
			d.ID, d.NotificationID, d.Channel, d.Address, d.Status,
			d.RetryCount, d.NextRetryAt, nullStr(d.ExternalID),
			nullStr(d.FailureReason), d.Cost, d.SentAt, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert delivery: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const selectNotificationSQL = `
	SELECT id, tenant_id, recipient_id, COALESCE(membership_id, ''), type,
		category, priority, title, message, COALESCE(action_url, ''),
		COALESCE(action_label, ''), data, COALESCE(template_id, ''),
		template_vars, COALESCE(dedup_key, ''), COALESCE(group_key, ''),
		scheduled_for, expires_at, status, COALESCE(cancel_reason, ''),
		schedule_id, sent_at, created_at, updated_at
	FROM notifications`

const selectDeliverySQL = `
	SELECT id, notification_id, channel, address, status, retry_count,
		next_retry_at, COALESCE(external_id, ''), COALESCE(failure_reason, ''),
		cost, sent_at, created_at, updated_at
	FROM notification_deliveries`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.TenantID, &n.RecipientID, &n.MembershipID,
		&n.Type, &n.Category, &n.Priority, &n.Title, &n.Message, &n.ActionURL,
		&n.ActionLabel, &n.Data, &n.TemplateID, &n.TemplateVars, &n.DedupKey,
		&n.GroupKey, &n.ScheduledFor, &n.ExpiresAt, &n.Status, &n.CancelReason,
		&n.ScheduleID, &n.SentAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.NotificationID, &d.Channel, &d.Address,
		&d.Status, &d.RetryCount, &d.NextRetryAt, &d.ExternalID,
		&d.FailureReason, &d.Cost, &d.SentAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) GetNotification(ctx context.Context, id string) (*Notification, []*Delivery, error) {
	n, err := scanNotification(r.pool.QueryRow(ctx, selectNotificationSQL+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotificationNotFound
		}
		return nil, nil, fmt.Errorf("failed to load notification: %w", err)
	}

	rows, err := r.pool.Query(ctx, selectDeliverySQL+" WHERE notification_id = $1 ORDER BY created_at", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}
	return n, deliveries, nil
}

func (r *PgRepository) FindByDedupKey(ctx context.Context, tenantID, dedupKey string) (*Notification, error) {
	n, err := scanNotification(r.pool.QueryRow(ctx,
		selectNotificationSQL+` WHERE tenant_id = $1 AND dedup_key = $2
			AND status IN ('queued', 'sent')
			ORDER BY created_at DESC LIMIT 1`,
		tenantID, dedupKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}
	return n, nil
}

func (r *PgRepository) UpdateNotification(ctx context.Context, n *Notification) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET
			status = $2, cancel_reason = $3, schedule_id = $4, sent_at = $5,
			updated_at = $6
		WHERE id = $1`,
		n.ID, n.Status, nullStr(string(n.CancelReason)), n.ScheduleID,
		n.SentAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PgRepository) GetDelivery(ctx context.Context, id string) (*Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, selectDeliverySQL+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to load delivery: %w", err)
	}
	return d, nil
}

func (r *PgRepository) UpdateDelivery(ctx context.Context, d *Delivery) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries SET
			status = $2, retry_count = $3, next_retry_at = $4, external_id = $5,
			failure_reason = $6, cost = $7, sent_at = $8, updated_at = $9
		WHERE id = $1`,
		d.ID, d.Status, d.RetryCount, d.NextRetryAt, nullStr(d.ExternalID),
		nullStr(d.FailureReason), d.Cost, d.SentAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *PgRepository) DueRetries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error) {
	rows, err := r.pool.Query(ctx,
		selectDeliverySQL+` WHERE status = 'failed' AND next_retry_at IS NOT NULL
			AND next_retry_at <= $1
			ORDER BY next_retry_at LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due retries: %w", err)
	}
	defer rows.Close()

	var due []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *PgRepository) Stats(ctx context.Context, tenantID string, from, to time.Time) (*Stats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.channel, n.category, d.status,
			d.status = 'failed' AND d.next_retry_at IS NOT NULL AS awaiting_retry,
			COUNT(*), COALESCE(SUM(d.cost), 0)
		FROM notification_deliveries d
		JOIN notifications n ON n.id = d.notification_id
		WHERE n.tenant_id = $1 AND d.created_at >= $2 AND d.created_at < $3
		GROUP BY 1, 2, 3, 4`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{
		TenantID:   tenantID,
		ByChannel:  make(map[Channel]*ChannelStats),
		ByCategory: make(map[Category]int64),
	}

	for rows.Next() {
		var (
			channel       Channel
			category      Category
			status        Status
			awaitingRetry bool
			count         int64
			cost          float64
		)
		if err := rows.Scan(&channel, &category, &status, &awaitingRetry, &count, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}

		cs, ok := stats.ByChannel[channel]
		if !ok {
			cs = &ChannelStats{}
			stats.ByChannel[channel] = cs
		}

		stats.Total += count
		stats.ByCategory[category] += count
		switch {
		case status == StatusSent:
			stats.Sent += count
			cs.Sent += count
			stats.TotalCost += cost
			cs.Cost += cost
		case status == StatusCancelled:
			stats.Cancelled += count
			cs.Cancelled += count
		case status == StatusFailed && !awaitingRetry:
			stats.Failed += count
			cs.Failed += count
		default:
			stats.Pending += count
			cs.Pending += count
		}
	}
	return stats, rows.Err()
}

func (r *PgRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed', 'cancelled') AND created_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// nullStr maps an empty string to NULL so COALESCE round-trips cleanly.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PgPreferenceStore is the PostgreSQL-backed PreferenceStore, with an Upsert
// for the tenant-facing settings surface.
type PgPreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPgPreferenceStore creates a PreferenceStore backed by the given pool.
func NewPgPreferenceStore(pool *pgxpool.Pool) (*PgPreferenceStore, error) {
	if pool == nil {
		return nil, ErrRepositoryNil
	}
	return &PgPreferenceStore{pool: pool}, nil
}

func (s *PgPreferenceStore) Get(ctx context.Context, tenantID, recipientID string) (*Preferences, error) {
	var p Preferences
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id, recipient_id, email_enabled, in_app_enabled,
			billing, retention, engagement, workflow, system, social,
			quiet_hours_start, quiet_hours_end, max_daily_email,
			max_daily_in_app, COALESCE(email_override, '')
		FROM notification_preferences
		WHERE tenant_id = $1 AND recipient_id = $2`,
		tenantID, recipientID,
	).Scan(&p.TenantID, &p.RecipientID, &p.EmailEnabled, &p.InAppEnabled,
		&p.Billing, &p.Retention, &p.Engagement, &p.Workflow, &p.System,
		&p.Social, &p.QuietHoursStart, &p.QuietHoursEnd, &p.MaxDailyEmail,
		&p.MaxDailyInApp, &p.EmailOverride)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &p, nil
}

// Upsert stores the preferences record, replacing any existing one for the
// same (tenant, recipient) pair.
func (s *PgPreferenceStore) Upsert(ctx context.Context, p *Preferences) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_preferences (
			tenant_id, recipient_id, email_enabled, in_app_enabled,
			billing, retention, engagement, workflow, system, social,
			quiet_hours_start, quiet_hours_end, max_daily_email,
			max_daily_in_app, email_override, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (tenant_id, recipient_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			billing = EXCLUDED.billing,
			retention = EXCLUDED.retention,
			engagement = EXCLUDED.engagement,
			workflow = EXCLUDED.workflow,
			system = EXCLUDED.system,
			social = EXCLUDED.social,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			max_daily_email = EXCLUDED.max_daily_email,
			max_daily_in_app = EXCLUDED.max_daily_in_app,
			email_override = EXCLUDED.email_override,
			updated_at = now()`,
		p.TenantID, p.RecipientID, p.EmailEnabled, p.InAppEnabled,
		p.Billing, p.Retention, p.Engagement, p.Workflow, p.System, p.Social,
		p.QuietHoursStart, p.QuietHoursEnd, p.MaxDailyEmail, p.MaxDailyInApp,
		nullStr(p.EmailOverride))
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}
