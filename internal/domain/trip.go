package domain

import "time"

// TripStatus represents the booking status of a trip.
type TripStatus string

// Trip statuses.
const (
	TripStatusConfirmed TripStatus = "confirmed"
	TripStatusPending   TripStatus = "pending"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
)

// Trip is a booked journey for a customer.
type Trip struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	Destination     string     `json:"destination"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	TotalPassengers int        `json:"total_passengers"`
	Status          TripStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ServiceType classifies a catalog service.
type ServiceType string

// Service types.
const (
	ServiceTypeFlight   ServiceType = "flight"
	ServiceTypeTransfer ServiceType = "transfer"
	ServiceTypeHotel    ServiceType = "hotel"
	ServiceTypeTour     ServiceType = "tour"
	ServiceTypeActivity ServiceType = "activity"
)

// IsValid checks if the service type is valid.
func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceTypeFlight, ServiceTypeTransfer, ServiceTypeHotel,
		ServiceTypeTour, ServiceTypeActivity:
		return true
	}
	return false
}

// DisplayName returns the customer-facing Spanish name for the type.
func (t ServiceType) DisplayName() string {
	switch t {
	case ServiceTypeFlight:
		return "Vuelo"
	case ServiceTypeTransfer:
		return "Traslado"
	case ServiceTypeHotel:
		return "Hotel"
	case ServiceTypeTour:
		return "Tour"
	case ServiceTypeActivity:
		return "Actividad"
	}
	return string(t)
}

// TravelService is a bookable service from the catalog (a flight, a
// hotel stay, a tour and so on).
type TravelService struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Type            ServiceType `json:"type"`
	Description     string      `json:"description,omitempty"`
	Location        string      `json:"location,omitempty"`
	DurationHours   *float64    `json:"duration_hours,omitempty"`
	Includes        string      `json:"includes,omitempty"`
	Recommendations string      `json:"recommendations,omitempty"`
}

// SegmentStatus represents the operational status of a trip segment.
type SegmentStatus string

// Segment statuses.
const (
	SegmentStatusConfirmed SegmentStatus = "confirmed"
	SegmentStatusPending   SegmentStatus = "pending"
	SegmentStatusEnRoute   SegmentStatus = "en_route"
	SegmentStatusCompleted SegmentStatus = "completed"
	SegmentStatusCancelled SegmentStatus = "cancelled"
	SegmentStatusDelayed   SegmentStatus = "delayed"
)

// IsValid checks if the segment status is valid.
func (s SegmentStatus) IsValid() bool {
	switch s {
	case SegmentStatusConfirmed, SegmentStatusPending, SegmentStatusEnRoute,
		SegmentStatusCompleted, SegmentStatusCancelled, SegmentStatusDelayed:
		return true
	}
	return false
}

// TripSegment is one scheduled service unit within a trip.
type TripSegment struct {
	ID                  string        `json:"id"`
	TripID              string        `json:"trip_id"`
	ServiceID           string        `json:"service_id"`
	ScheduledAt         time.Time     `json:"scheduled_at"`
	ActualAt            *time.Time    `json:"actual_at,omitempty"`
	PickupLocation      string        `json:"pickup_location,omitempty"`
	DestinationLocation string        `json:"destination_location,omitempty"`
	Provider            string        `json:"provider,omitempty"`
	ProviderContact     string        `json:"provider_contact,omitempty"`
	VoucherCode         string        `json:"voucher_code"`
	Status              SegmentStatus `json:"status"`
	Notes               string        `json:"notes,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`

	// Loaded via joins.
	ServiceName string      `json:"service_name,omitempty"`
	ServiceType ServiceType `json:"service_type,omitempty"`
	CustomerID  string      `json:"customer_id,omitempty"`
}
