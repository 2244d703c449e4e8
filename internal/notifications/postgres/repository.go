// Package postgres provides PostgreSQL implementation of the notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const insertQuery = `
	INSERT INTO notifications (customer_id, title, message)
	VALUES ($1, $2, $3)
	RETURNING id, created_at
`

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *domain.Notification) error {
	err := r.db.QueryRow(ctx, insertQuery, n.CustomerID, n.Title, n.Message).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateTx inserts a notification within a caller-owned transaction.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, n *domain.Notification) error {
	err := tx.QueryRow(ctx, insertQuery, n.CustomerID, n.Title, n.Message).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Get retrieves a notification by ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.QueryRow(ctx,
		`SELECT id, customer_id, title, message, read, created_at
		 FROM notifications WHERE id = $1`, id).
		Scan(&n.ID, &n.CustomerID, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

// ListByCustomer lists a customer's notifications, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, customer_id, title, message, read, created_at
		 FROM notifications
		 WHERE customer_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	list := make([]*domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}

// CountUnread counts a customer's unread notifications.
func (r *Repository) CountUnread(ctx context.Context, customerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE customer_id = $1 AND read = false`,
		customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks a customer's notification as read.
func (r *Repository) MarkRead(ctx context.Context, id, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND customer_id = $2`,
		id, customerID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks all of a customer's notifications as read.
func (r *Repository) MarkAllRead(ctx context.Context, customerID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = true WHERE customer_id = $1 AND read = false`,
		customerID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}
