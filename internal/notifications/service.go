package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
)

// Service manages the customer notification feed. The feed is
// append-only: notifications are created by the incident and itinerary
// services and only their read flag ever changes.
type Service struct {
	repo Repository
}

// NewService creates a new notifications service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create appends a notification to a customer's feed.
func (s *Service) Create(ctx context.Context, n *domain.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	recordNotificationCreated()
	return nil
}

// CreateTx appends a notification within a caller-owned transaction, so
// the notification commits or rolls back with the triggering change.
func (s *Service) CreateTx(ctx context.Context, tx pgx.Tx, n *domain.Notification) error {
	if err := s.repo.CreateTx(ctx, tx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	recordNotificationCreated()
	return nil
}

// ListForCustomer lists a customer's notifications, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Notification, error) {
	return s.repo.ListByCustomer(ctx, customerID, limit, offset)
}

// UnreadCount returns the customer's unread notification count.
func (s *Service) UnreadCount(ctx context.Context, customerID string) (int, error) {
	return s.repo.CountUnread(ctx, customerID)
}

// MarkRead marks one of the customer's notifications as read. Marking
// an already-read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, id, customerID string) error {
	return s.repo.MarkRead(ctx, id, customerID)
}

// MarkAllRead marks all of the customer's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, customerID string) error {
	return s.repo.MarkAllRead(ctx, customerID)
}
