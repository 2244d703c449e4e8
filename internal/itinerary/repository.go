package itinerary

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
)

// Repository defines the interface for itinerary data operations.
type Repository interface {
	// Catalog services
	CreateService(ctx context.Context, service *domain.TravelService) error
	GetService(ctx context.Context, id string) (*domain.TravelService, error)
	ListServices(ctx context.Context, filter ServiceFilter) ([]*domain.TravelService, error)

	// Trips
	GetTrip(ctx context.Context, id string) (*domain.Trip, error)
	ListTripsByCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error)
	// ActiveTrip returns the trip covering today, falling back to the
	// next upcoming trip. Returns ErrTripNotFound when the customer has
	// neither.
	ActiveTrip(ctx context.Context, customerID string, today time.Time) (*domain.Trip, error)

	// Segments
	GetSegment(ctx context.Context, id string) (*domain.TripSegment, error)
	GetSegmentByVoucher(ctx context.Context, code string) (*domain.TripSegment, error)
	ListSegmentsByTrip(ctx context.Context, tripID string) ([]*domain.TripSegment, error)
	ListSegmentsBetween(ctx context.Context, tripID string, from, to time.Time) ([]*domain.TripSegment, error)
	// ListLateSegments returns pending or confirmed segments scheduled
	// before the cutoff.
	ListLateSegments(ctx context.Context, cutoff time.Time) ([]*domain.TripSegment, error)
	// ListArrivals returns flight segments scheduled within the window.
	ListArrivals(ctx context.Context, from, to time.Time) ([]*domain.TripSegment, error)
	// ListEnRoute returns en_route segments scheduled within the window.
	ListEnRoute(ctx context.Context, from, to time.Time) ([]*domain.TripSegment, error)

	// Transaction methods
	BeginTx(ctx context.Context) (pgx.Tx, error)
	UpdateSegmentStatusTx(ctx context.Context, tx pgx.Tx, id string, status domain.SegmentStatus, actualAt *time.Time) error
}

// ServiceFilter represents filter criteria for listing catalog services.
type ServiceFilter struct {
	Type     *domain.ServiceType
	Location *string
}
