package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the notification does not exist or belongs to another
// recipient.
var ErrNotFound = errors.New("notification: not found")

// Execer is satisfied by both pgxpool.Pool and pgx.Tx, letting callers stage
// inserts inside their own transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists the per-recipient notification inbox.
type Repository interface {
	Insert(ctx context.Context, db Execer, n Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	Delete(ctx context.Context, recipientID, id string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed notification repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert writes the notification through db, which is the caller's
// transaction when the insert must commit atomically with a state change.
func (r *PGRepository) Insert(ctx context.Context, db Execer, n Notification) error {
	const query = `
		INSERT INTO notifications (id, recipient_id, type, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := db.Exec(ctx, query, n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt); err != nil {
		return fmt.Errorf("notification: insert: %w", err)
	}
	return nil
}

// ListByRecipient returns the newest notifications for the recipient.
func (r *PGRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	const query = `
		SELECT id, recipient_id, type, title, message, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("notification: list: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notification: scan: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification: iterate: %w", err)
	}
	return items, nil
}

// UnreadCount derives the badge count from persisted state.
func (r *PGRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT read`

	var count int
	if err := r.pool.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("notification: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flips the read flag on a single notification owned by the recipient.
func (r *PGRepository) MarkRead(ctx context.Context, recipientID, id string) error {
	const query = `UPDATE notifications SET read = true WHERE id = $1 AND recipient_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("notification: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead clears the recipient's unread set. Safe to call repeatedly.
func (r *PGRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	const query = `UPDATE notifications SET read = true WHERE recipient_id = $1 AND NOT read`

	if _, err := r.pool.Exec(ctx, query, recipientID); err != nil {
		return fmt.Errorf("notification: mark all read: %w", err)
	}
	return nil
}

// Delete removes a notification owned by the recipient.
func (r *PGRepository) Delete(ctx context.Context, recipientID, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("notification: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
