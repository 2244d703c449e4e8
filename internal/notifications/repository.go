// Package notifications provides the customer notification feed and
// outbound message delivery.
package notifications

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
)

// Repository defines the interface for notification feed data access.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	CreateTx(ctx context.Context, tx pgx.Tx, n *domain.Notification) error
	Get(ctx context.Context, id string) (*domain.Notification, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, customerID string) (int, error)
	// MarkRead marks a notification read. The customer ID guards against
	// marking another customer's notification.
	MarkRead(ctx context.Context, id, customerID string) error
	MarkAllRead(ctx context.Context, customerID string) error
}
