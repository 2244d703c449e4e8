package domain

import (
	"math"
	"time"
)

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusOpen       IncidentStatus = "open"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusResolved   IncidentStatus = "resolved"
	IncidentStatusClosed     IncidentStatus = "closed"
)

// IncidentSeverity represents the severity level of an incident.
type IncidentSeverity string

// Severity levels.
const (
	IncidentSeverityLow      IncidentSeverity = "low"
	IncidentSeverityMedium   IncidentSeverity = "medium"
	IncidentSeverityHigh     IncidentSeverity = "high"
	IncidentSeverityCritical IncidentSeverity = "critical"
)

// IncidentCategory classifies what the incident is about.
type IncidentCategory string

// Incident categories.
const (
	IncidentCategoryTransport      IncidentCategory = "transport"
	IncidentCategoryAccommodation  IncidentCategory = "accommodation"
	IncidentCategoryServiceQuality IncidentCategory = "service_quality"
	IncidentCategorySchedule       IncidentCategory = "schedule"
	IncidentCategorySafety         IncidentCategory = "safety"
	IncidentCategoryWeather        IncidentCategory = "weather"
	IncidentCategoryHealth         IncidentCategory = "health"
	IncidentCategoryDocumentation  IncidentCategory = "documentation"
	IncidentCategoryCommunication  IncidentCategory = "communication"
	IncidentCategoryOther          IncidentCategory = "other"
)

// Incident represents a problem reported by a customer against a trip segment.
type Incident struct {
	ID                   string           `json:"id"`
	SegmentID            string           `json:"segment_id"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	Category             IncidentCategory `json:"category"`
	Severity             IncidentSeverity `json:"severity"`
	Status               IncidentStatus   `json:"status"`
	Location             string           `json:"location,omitempty"`
	OccurredAt           time.Time        `json:"occurred_at"`
	AffectedPassengers   int              `json:"affected_passengers"`
	ReporterContact      string           `json:"reporter_contact,omitempty"`
	ReportedAt           time.Time        `json:"reported_at"`
	ResolvedAt           *time.Time       `json:"resolved_at"`
	ResolutionNotes      string           `json:"resolution_notes,omitempty"`
	InternalNotes        string           `json:"internal_notes,omitempty"`
	EvidenceDescription  string           `json:"evidence_description,omitempty"`
	AssignedTo           *string          `json:"assigned_to,omitempty"`
	RequiresFollowup     bool             `json:"requires_followup"`
	CustomerSatisfaction *int             `json:"customer_satisfaction"`

	// Denormalized, loaded via joins for notifications and alerting.
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
}

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInProgress,
		IncidentStatusResolved, IncidentStatusClosed:
		return true
	}
	return false
}

// IsValid checks if the severity is valid.
func (s IncidentSeverity) IsValid() bool {
	switch s {
	case IncidentSeverityLow, IncidentSeverityMedium,
		IncidentSeverityHigh, IncidentSeverityCritical:
		return true
	}
	return false
}

// IsValid checks if the category is valid.
func (c IncidentCategory) IsValid() bool {
	switch c {
	case IncidentCategoryTransport, IncidentCategoryAccommodation,
		IncidentCategoryServiceQuality, IncidentCategorySchedule,
		IncidentCategorySafety, IncidentCategoryWeather,
		IncidentCategoryHealth, IncidentCategoryDocumentation,
		IncidentCategoryCommunication, IncidentCategoryOther:
		return true
	}
	return false
}

// SLA returns the maximum unresolved duration before incidents of this
// severity are considered overdue.
func (s IncidentSeverity) SLA() time.Duration {
	switch s {
	case IncidentSeverityCritical:
		return 4 * time.Hour
	case IncidentSeverityHigh:
		return 12 * time.Hour
	case IncidentSeverityMedium:
		return 24 * time.Hour
	default:
		return 48 * time.Hour
	}
}

// allowedTransitions holds the legal forward edges of the incident
// state machine. Closed is terminal.
var allowedTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusOpen:       {IncidentStatusInProgress, IncidentStatusResolved},
	IncidentStatusInProgress: {IncidentStatusResolved},
	IncidentStatusResolved:   {IncidentStatusClosed},
	IncidentStatusClosed:     {},
}

// CanTransitionTo reports whether the state machine allows moving from the
// current status to next. A transition to the same status is not an edge;
// callers treat it as a no-op.
func (i *Incident) CanTransitionTo(next IncidentStatus) bool {
	for _, s := range allowedTransitions[i.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// IsResolved reports whether the incident has reached a resolved state.
func (i *Incident) IsResolved() bool {
	return i.Status == IncidentStatusResolved || i.Status == IncidentStatusClosed
}

// ResponseTimeAt returns elapsed time between report and resolution in
// fractional hours, rounded to two decimal places. For unresolved
// incidents the clock keeps running against now.
func (i *Incident) ResponseTimeAt(now time.Time) float64 {
	end := now
	if i.ResolvedAt != nil {
		end = *i.ResolvedAt
	}
	hours := end.Sub(i.ReportedAt).Hours()
	return math.Round(hours*100) / 100
}

// IsOverdueAt reports whether the incident has exceeded its severity SLA.
// Resolved incidents are never overdue.
func (i *Incident) IsOverdueAt(now time.Time) bool {
	if i.IsResolved() {
		return false
	}
	return i.ResponseTimeAt(now) > i.Severity.SLA().Hours()
}
