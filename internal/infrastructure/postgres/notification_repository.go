package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vn.io.arda/marketplace-notification/internal/domain"
)

const notificationColumns = `id, user_id, kind, subject, content, email, status, sent_at, read_at, metadata, source_event_id, created_at`

// NotificationRepository is the PostgreSQL implementation of domain.NotificationRepository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new postgres NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a new notification record.
func (r *NotificationRepository) Create(ctx context.Context, input domain.CreateNotificationInput) (*domain.Notification, error) {
	metaJSON, err := json.Marshal(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	var sourceEventID *string
	if input.SourceEventID != "" {
		sourceEventID = &input.SourceEventID
	}
	status := input.Status
	if status == "" {
		status = domain.StatusPending
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, kind, subject, content, email, status, metadata, source_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_event_id) WHERE source_event_id IS NOT NULL DO NOTHING
		RETURNING `+notificationColumns,
		input.UserID, string(input.Kind), input.Subject, input.Content, input.Email, string(status), metaJSON, sourceEventID)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Duplicate source_event_id: already handled, not an error
			return nil, nil
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// UpdateStatus moves a PENDING row to its terminal status. Terminal rows are left untouched.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, sentAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = $1, sent_at = $2
		WHERE id = $3 AND status = 'PENDING'
	`, string(status), sentAt, id)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s not pending: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByUser fetches the newest notifications for a user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var results []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// CountUnread returns the count of unread notifications for a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&count)
	return count, err
}

// MarkRead sets read_at once; marking an already read notification keeps the first timestamp.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, userID string) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// PurgeReadOlderThan deletes read notifications older than the given number of days.
func (r *NotificationRepository) PurgeReadOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row scannable) (*domain.Notification, error) {
	var n domain.Notification
	var metaJSON []byte
	var sourceEventID *string

	err := row.Scan(
		&n.ID, &n.UserID, &n.Kind, &n.Subject, &n.Content, &n.Email, &n.Status,
		&n.SentAt, &n.ReadAt, &metaJSON, &sourceEventID, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sourceEventID != nil {
		n.SourceEventID = *sourceEventID
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of notification %s: %w", n.ID, err)
		}
	}
	return &n, nil
}
