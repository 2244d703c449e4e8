// Package itinerary manages trips, trip segments and the travel service
// catalog, including segment status tracking and its customer
// notifications.
package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NotificationSink records customer-facing notifications inside the
// service's transaction.
type NotificationSink interface {
	CreateTx(ctx context.Context, tx pgx.Tx, n *domain.Notification) error
}

// spanishLower lowercases service type display names for message bodies.
var spanishLower = cases.Lower(language.Spanish)

// Service manages trips, segments and the service catalog.
type Service struct {
	repo Repository
	sink NotificationSink
	now  func() time.Time
}

// NewService creates a new itinerary service.
func NewService(repo Repository, sink NotificationSink) *Service {
	return &Service{
		repo: repo,
		sink: sink,
		now:  time.Now,
	}
}

// WithClock overrides the service clock. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateService adds a travel service to the catalog.
func (s *Service) CreateService(ctx context.Context, service *domain.TravelService) error {
	if service.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if !service.Type.IsValid() {
		return fmt.Errorf("%w: unknown service type %q", ErrInvalidArgument, service.Type)
	}
	return s.repo.CreateService(ctx, service)
}

// GetService retrieves a catalog service by ID.
func (s *Service) GetService(ctx context.Context, id string) (*domain.TravelService, error) {
	return s.repo.GetService(ctx, id)
}

// ListServices lists catalog services.
func (s *Service) ListServices(ctx context.Context, filter ServiceFilter) ([]*domain.TravelService, error) {
	return s.repo.ListServices(ctx, filter)
}

// ListTripsForCustomer lists a customer's trips.
func (s *Service) ListTripsForCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error) {
	return s.repo.ListTripsByCustomer(ctx, customerID)
}

// TripDetail is a trip with its scheduled segments.
type TripDetail struct {
	Trip     *domain.Trip          `json:"trip"`
	Segments []*domain.TripSegment `json:"segments"`
}

// GetTripForCustomer retrieves a trip with segments, checking ownership.
func (s *Service) GetTripForCustomer(ctx context.Context, id, customerID string) (*TripDetail, error) {
	trip, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.CustomerID != customerID {
		return nil, ErrTripNotFound
	}

	segments, err := s.repo.ListSegmentsByTrip(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	return &TripDetail{Trip: trip, Segments: segments}, nil
}

// Itinerary is the customer's day view: the active trip, today's
// segments and the next three days of upcoming segments.
type Itinerary struct {
	Trip     *domain.Trip          `json:"trip,omitempty"`
	Today    []*domain.TripSegment `json:"today"`
	Upcoming []*domain.TripSegment `json:"upcoming"`
}

// GetItinerary builds the customer's current itinerary. The active trip
// is the one covering today, falling back to the next upcoming trip. A
// customer without trips gets an empty itinerary, not an error.
func (s *Service) GetItinerary(ctx context.Context, customerID string) (*Itinerary, error) {
	now := s.now()
	itinerary := &Itinerary{
		Today:    []*domain.TripSegment{},
		Upcoming: []*domain.TripSegment{},
	}

	trip, err := s.repo.ActiveTrip(ctx, customerID, now)
	if err != nil {
		if errors.Is(err, ErrTripNotFound) {
			return itinerary, nil
		}
		return nil, fmt.Errorf("active trip: %w", err)
	}
	itinerary.Trip = trip

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	today, err := s.repo.ListSegmentsBetween(ctx, trip.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("today segments: %w", err)
	}
	itinerary.Today = today

	upcoming, err := s.repo.ListSegmentsBetween(ctx, trip.ID, dayEnd, dayStart.AddDate(0, 0, 4))
	if err != nil {
		return nil, fmt.Errorf("upcoming segments: %w", err)
	}
	itinerary.Upcoming = upcoming

	return itinerary, nil
}

// GetSegment retrieves a segment by ID.
func (s *Service) GetSegment(ctx context.Context, id string) (*domain.TripSegment, error) {
	return s.repo.GetSegment(ctx, id)
}

// GetSegmentForCustomer retrieves a segment, checking the customer owns it.
func (s *Service) GetSegmentForCustomer(ctx context.Context, id, customerID string) (*domain.TripSegment, error) {
	segment, err := s.repo.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	if segment.CustomerID != customerID {
		return nil, ErrSegmentNotFound
	}
	return segment, nil
}

// GetSegmentByVoucher retrieves a segment by its voucher code.
func (s *Service) GetSegmentByVoucher(ctx context.Context, code string) (*domain.TripSegment, error) {
	return s.repo.GetSegmentByVoucher(ctx, code)
}

// UpdateSegmentStatus moves a segment to a new operational status.
// Entering en_route or completed notifies the customer in the same
// transaction; completed also stamps the actual time once. Setting the
// current status again is a no-op.
func (s *Service) UpdateSegmentStatus(ctx context.Context, id string, next domain.SegmentStatus) (*domain.TripSegment, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: unknown segment status %q", ErrInvalidArgument, next)
	}

	segment, err := s.repo.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}

	if segment.Status == next {
		return segment, nil
	}

	segment.Status = next
	if next == domain.SegmentStatusCompleted && segment.ActualAt == nil {
		actualAt := s.now()
		segment.ActualAt = &actualAt
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := s.repo.UpdateSegmentStatusTx(ctx, tx, segment.ID, segment.Status, segment.ActualAt); err != nil {
		return nil, fmt.Errorf("update segment status: %w", err)
	}

	if notification := segmentStatusNotification(segment); notification != nil {
		if err := s.sink.CreateTx(ctx, tx, notification); err != nil {
			return nil, fmt.Errorf("create notification: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	recordSegmentStatusChange(string(next))
	slog.Info("segment status updated",
		"segment_id", segment.ID,
		"status", segment.Status,
	)

	return segment, nil
}

// segmentStatusNotification builds the customer message for a status
// change, or nil when the status carries no customer message.
func segmentStatusNotification(segment *domain.TripSegment) *domain.Notification {
	typeName := spanishLower.String(segment.ServiceType.DisplayName())

	switch segment.Status {
	case domain.SegmentStatusEnRoute:
		return &domain.Notification{
			CustomerID: segment.CustomerID,
			Title:      fmt.Sprintf("¡Tu %s está en camino!", typeName),
			Message:    fmt.Sprintf("%s llegará pronto. Revisa los detalles en tu itinerario.", segment.ServiceName),
		}
	case domain.SegmentStatusCompleted:
		return &domain.Notification{
			CustomerID: segment.CustomerID,
			Title:      fmt.Sprintf("%s completado", segment.ServiceName),
			Message:    fmt.Sprintf("¡Esperamos que hayas disfrutado tu %s!", typeName),
		}
	}
	return nil
}

// MarkDelayed flags segments still pending or confirmed past the delay
// threshold and notifies their customers. Per-segment failures are
// logged and do not abort the run. Returns the segments marked.
func (s *Service) MarkDelayed(ctx context.Context, now time.Time, threshold time.Duration) ([]*domain.TripSegment, error) {
	late, err := s.repo.ListLateSegments(ctx, now.Add(-threshold))
	if err != nil {
		return nil, fmt.Errorf("list late segments: %w", err)
	}

	var marked []*domain.TripSegment
	for _, segment := range late {
		if err := s.markSegmentDelayed(ctx, segment); err != nil {
			slog.Error("failed to mark segment delayed",
				"segment_id", segment.ID,
				"error", err,
			)
			continue
		}
		marked = append(marked, segment)
		recordSegmentDelayed()
	}

	return marked, nil
}

func (s *Service) markSegmentDelayed(ctx context.Context, segment *domain.TripSegment) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	segment.Status = domain.SegmentStatusDelayed
	if err := s.repo.UpdateSegmentStatusTx(ctx, tx, segment.ID, segment.Status, segment.ActualAt); err != nil {
		return fmt.Errorf("update segment status: %w", err)
	}

	notification := &domain.Notification{
		CustomerID: segment.CustomerID,
		Title:      fmt.Sprintf("Servicio atrasado: %s", segment.ServiceName),
		Message:    "Te contactaremos pronto con información actualizada.",
	}
	if err := s.sink.CreateTx(ctx, tx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return tx.Commit(ctx)
}

// ActiveIncidentCounter exposes the incident counters the operations
// dashboard needs.
type ActiveIncidentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// OperationsDashboard aggregates today's operational picture for staff.
type OperationsDashboard struct {
	Arrivals        []*domain.TripSegment `json:"arrivals"`
	EnRoute         []*domain.TripSegment `json:"en_route"`
	ActiveIncidents int                   `json:"active_incidents"`
}

// Dashboard builds the staff operations dashboard: today's flight
// arrivals, services currently en route and the active incident count.
func (s *Service) Dashboard(ctx context.Context, incidents ActiveIncidentCounter) (*OperationsDashboard, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	arrivals, err := s.repo.ListArrivals(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list arrivals: %w", err)
	}

	enRoute, err := s.repo.ListEnRoute(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list en route: %w", err)
	}

	active, err := incidents.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active incidents: %w", err)
	}

	return &OperationsDashboard{
		Arrivals:        arrivals,
		EnRoute:         enRoute,
		ActiveIncidents: active,
	}, nil
}
