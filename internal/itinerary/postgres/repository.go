// Package postgres provides PostgreSQL implementation of the itinerary repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/itinerary"
)

// Repository implements itinerary.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateService adds a travel service to the catalog.
func (r *Repository) CreateService(ctx context.Context, service *domain.TravelService) error {
	query := `
		INSERT INTO travel_services (name, type, description, location, duration_hours, includes, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		service.Name,
		service.Type,
		service.Description,
		service.Location,
		service.DurationHours,
		service.Includes,
		service.Recommendations,
	).Scan(&service.ID)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

const serviceColumns = `id, name, type, description, location, duration_hours, includes, recommendations`

func scanService(row pgx.Row) (*domain.TravelService, error) {
	var service domain.TravelService
	err := row.Scan(
		&service.ID,
		&service.Name,
		&service.Type,
		&service.Description,
		&service.Location,
		&service.DurationHours,
		&service.Includes,
		&service.Recommendations,
	)
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// GetService retrieves a catalog service by ID.
func (r *Repository) GetService(ctx context.Context, id string) (*domain.TravelService, error) {
	query := `SELECT ` + serviceColumns + ` FROM travel_services WHERE id = $1`

	service, err := scanService(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itinerary.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return service, nil
}

// ListServices lists catalog services.
func (r *Repository) ListServices(ctx context.Context, filter itinerary.ServiceFilter) ([]*domain.TravelService, error) {
	query := `SELECT ` + serviceColumns + ` FROM travel_services WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, *filter.Type)
		argNum++
	}
	if filter.Location != nil {
		query += fmt.Sprintf(" AND location ILIKE $%d", argNum)
		args = append(args, "%"+*filter.Location+"%")
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]*domain.TravelService, 0)
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

const tripColumns = `id, customer_id, destination, start_date, end_date, total_passengers, status, created_at`

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var trip domain.Trip
	err := row.Scan(
		&trip.ID,
		&trip.CustomerID,
		&trip.Destination,
		&trip.StartDate,
		&trip.EndDate,
		&trip.TotalPassengers,
		&trip.Status,
		&trip.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetTrip retrieves a trip by ID.
func (r *Repository) GetTrip(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itinerary.ErrTripNotFound
		}
		return nil, fmt.Errorf("get trip: %w", err)
	}
	return trip, nil
}

// ListTripsByCustomer lists a customer's trips, most recent first.
func (r *Repository) ListTripsByCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE customer_id = $1 ORDER BY start_date DESC`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := make([]*domain.Trip, 0)
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// ActiveTrip returns the trip covering today, falling back to the next
// upcoming trip.
func (r *Repository) ActiveTrip(ctx context.Context, customerID string, today time.Time) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips
		WHERE customer_id = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY start_date LIMIT 1`

	trip, err := scanTrip(r.db.QueryRow(ctx, query, customerID, today))
	if err == nil {
		return trip, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("active trip: %w", err)
	}

	query = `SELECT ` + tripColumns + ` FROM trips
		WHERE customer_id = $1 AND start_date > $2
		ORDER BY start_date LIMIT 1`

	trip, err = scanTrip(r.db.QueryRow(ctx, query, customerID, today))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itinerary.ErrTripNotFound
		}
		return nil, fmt.Errorf("next trip: %w", err)
	}
	return trip, nil
}

// segmentColumns includes service and customer fields loaded via joins.
const segmentColumns = `
	ts.id, ts.trip_id, ts.service_id, ts.scheduled_at, ts.actual_at,
	ts.pickup_location, ts.destination_location, ts.provider,
	ts.provider_contact, ts.voucher_code, ts.status, ts.notes, ts.created_at,
	s.name, s.type, t.customer_id
`

const segmentJoins = `
	FROM trip_segments ts
	JOIN travel_services s ON s.id = ts.service_id
	JOIN trips t ON t.id = ts.trip_id
`

func scanSegment(row pgx.Row) (*domain.TripSegment, error) {
	var segment domain.TripSegment
	err := row.Scan(
		&segment.ID,
		&segment.TripID,
		&segment.ServiceID,
		&segment.ScheduledAt,
		&segment.ActualAt,
		&segment.PickupLocation,
		&segment.DestinationLocation,
		&segment.Provider,
		&segment.ProviderContact,
		&segment.VoucherCode,
		&segment.Status,
		&segment.Notes,
		&segment.CreatedAt,
		&segment.ServiceName,
		&segment.ServiceType,
		&segment.CustomerID,
	)
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

// GetSegment retrieves a segment by ID.
func (r *Repository) GetSegment(ctx context.Context, id string) (*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + ` WHERE ts.id = $1`

	segment, err := scanSegment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itinerary.ErrSegmentNotFound
		}
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return segment, nil
}

// GetSegmentByVoucher retrieves a segment by voucher code.
func (r *Repository) GetSegmentByVoucher(ctx context.Context, code string) (*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + ` WHERE ts.voucher_code = $1`

	segment, err := scanSegment(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itinerary.ErrSegmentNotFound
		}
		return nil, fmt.Errorf("get segment by voucher: %w", err)
	}
	return segment, nil
}

// ListSegmentsByTrip lists a trip's segments in schedule order.
func (r *Repository) ListSegmentsByTrip(ctx context.Context, tripID string) ([]*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + `
		WHERE ts.trip_id = $1 ORDER BY ts.scheduled_at`

	return r.querySegments(ctx, query, tripID)
}

// ListSegmentsBetween lists a trip's segments scheduled in [from, to).
func (r *Repository) ListSegmentsBetween(ctx context.Context, tripID string, from, to time.Time) ([]*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + `
		WHERE ts.trip_id = $1 AND ts.scheduled_at >= $2 AND ts.scheduled_at < $3
		ORDER BY ts.scheduled_at`

	return r.querySegments(ctx, query, tripID, from, to)
}

// ListLateSegments lists pending or confirmed segments scheduled before
// the cutoff.
func (r *Repository) ListLateSegments(ctx context.Context, cutoff time.Time) ([]*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + `
		WHERE ts.scheduled_at < $1 AND ts.status IN ('pending', 'confirmed')
		ORDER BY ts.scheduled_at`

	return r.querySegments(ctx, query, cutoff)
}

// ListArrivals lists flight segments scheduled within the window.
func (r *Repository) ListArrivals(ctx context.Context, from, to time.Time) ([]*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + `
		WHERE s.type = 'flight' AND ts.scheduled_at >= $1 AND ts.scheduled_at < $2
		ORDER BY ts.scheduled_at`

	return r.querySegments(ctx, query, from, to)
}

// ListEnRoute lists en_route segments scheduled within the window.
func (r *Repository) ListEnRoute(ctx context.Context, from, to time.Time) ([]*domain.TripSegment, error) {
	query := `SELECT ` + segmentColumns + segmentJoins + `
		WHERE ts.status = 'en_route' AND ts.scheduled_at >= $1 AND ts.scheduled_at < $2
		ORDER BY ts.scheduled_at`

	return r.querySegments(ctx, query, from, to)
}

func (r *Repository) querySegments(ctx context.Context, query string, args ...interface{}) ([]*domain.TripSegment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segments := make([]*domain.TripSegment, 0)
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

// BeginTx starts a transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// UpdateSegmentStatusTx updates status and actual_at within a
// transaction. actual_at is only ever written when previously null.
func (r *Repository) UpdateSegmentStatusTx(ctx context.Context, tx pgx.Tx, id string, status domain.SegmentStatus, actualAt *time.Time) error {
	query := `
		UPDATE trip_segments SET
			status = $2,
			actual_at = COALESCE(actual_at, $3)
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, id, status, actualAt)
	if err != nil {
		return fmt.Errorf("update segment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return itinerary.ErrSegmentNotFound
	}
	return nil
}
