// Package incidents implements the incident lifecycle engine: state
// transitions, SLA accounting and their notification side effects.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
)

// SegmentResolver resolves trip segments for incident reporting.
type SegmentResolver interface {
	GetSegment(ctx context.Context, id string) (*domain.TripSegment, error)
}

// NotificationSink records customer-facing notifications inside the
// engine's transaction so the status change and its notification commit
// or roll back together.
type NotificationSink interface {
	CreateTx(ctx context.Context, tx pgx.Tx, n *domain.Notification) error
}

// OutboundMessenger delivers best-effort messages outside the
// transaction (WhatsApp, email). Delivery failure never fails the
// triggering operation.
type OutboundMessenger interface {
	SendToCustomer(ctx context.Context, customerID, subject, body string) error
}

// Service is the incident engine. It is the sole authority for status
// transitions and for the derived response-time and overdue fields.
type Service struct {
	repo      Repository
	segments  SegmentResolver
	sink      NotificationSink
	messenger OutboundMessenger
	now       func() time.Time
}

// NewService creates a new incident service.
func NewService(repo Repository, segments SegmentResolver, sink NotificationSink, messenger OutboundMessenger) *Service {
	return &Service{
		repo:      repo,
		segments:  segments,
		sink:      sink,
		messenger: messenger,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// statusMessages maps a newly entered status to the customer-facing
// message sent with the transition.
var statusMessages = map[domain.IncidentStatus]string{
	domain.IncidentStatusInProgress: "Nuestro equipo está trabajando en resolver tu caso",
	domain.IncidentStatusResolved:   "Tu incidencia ha sido resuelta",
	domain.IncidentStatusClosed:     "Tu caso ha sido cerrado",
}

// ReportInput holds data for reporting an incident.
type ReportInput struct {
	SegmentID          string
	Title              string
	Description        string
	Category           domain.IncidentCategory
	Severity           domain.IncidentSeverity
	Location           string
	OccurredAt         *time.Time
	AffectedPassengers int
	ReporterContact    string
}

// Report creates a new incident with status open and notifies the
// reporting customer. reporterCustomerID must own the segment.
func (s *Service) Report(ctx context.Context, input ReportInput, reporterCustomerID string) (*domain.Incident, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidArgument)
	}
	if input.AffectedPassengers < 0 {
		return nil, fmt.Errorf("%w: affected_passengers must be at least 1", ErrInvalidArgument)
	}
	if input.AffectedPassengers == 0 {
		input.AffectedPassengers = 1
	}
	if input.Category == "" {
		input.Category = domain.IncidentCategoryOther
	} else if !input.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, input.Category)
	}
	if input.Severity == "" {
		input.Severity = domain.IncidentSeverityMedium
	} else if !input.Severity.IsValid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidArgument, input.Severity)
	}

	segment, err := s.segments.GetSegment(ctx, input.SegmentID)
	if err != nil {
		if errors.Is(err, ErrSegmentNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, fmt.Errorf("get segment: %w", err)
	}
	if segment.CustomerID != reporterCustomerID {
		return nil, ErrPermissionDenied
	}

	now := s.now()
	occurredAt := now
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}

	incident := &domain.Incident{
		SegmentID:          input.SegmentID,
		Title:              input.Title,
		Description:        input.Description,
		Category:           input.Category,
		Severity:           input.Severity,
		Status:             domain.IncidentStatusOpen,
		Location:           input.Location,
		OccurredAt:         occurredAt,
		AffectedPassengers: input.AffectedPassengers,
		ReporterContact:    input.ReporterContact,
		ReportedAt:         now,
		CustomerID:         segment.CustomerID,
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

	if err := s.repo.CreateTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	notification := &domain.Notification{
		CustomerID: segment.CustomerID,
		Title:      "Incidencia reportada",
		Message:    fmt.Sprintf("Hemos recibido tu reporte: '%s'. Código de seguimiento: #%s", incident.Title, incident.ID),
	}
	if err := s.sink.CreateTx(ctx, tx, notification); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	recordIncidentReported(string(incident.Severity), string(incident.Category))
	slog.Info("incident reported",
		"incident_id", incident.ID,
		"segment_id", incident.SegmentID,
		"severity", incident.Severity,
	)

	return incident, nil
}

// Transition moves an incident to a new status. Transitions follow the
// state machine edges only; a transition to the current status is a
// no-op, except on a closed incident, which rejects every target.
// Entering resolved or closed stamps resolved_at exactly once. The
// customer notification commits in the same transaction as the status
// change.
func (s *Service) Transition(ctx context.Context, id string, next domain.IncidentStatus) (*domain.Incident, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, next)
	}

	incident, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if incident.Status == domain.IncidentStatusClosed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, incident.Status, next)
	}
	if incident.Status == next {
		return incident, nil
	}

	if !incident.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, incident.Status, next)
	}

	from := incident.Status
	incident.Status = next
	if incident.IsResolved() && incident.ResolvedAt == nil {
		resolvedAt := s.now()
		incident.ResolvedAt = &resolvedAt
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

	if err := s.repo.UpdateStatusTx(ctx, tx, incident.ID, incident.Status, incident.ResolvedAt); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	message := statusMessages[next]
	notification := &domain.Notification{
		CustomerID: incident.CustomerID,
		Title:      fmt.Sprintf("Actualización incidencia #%s", incident.ID),
		Message:    message,
	}
	if err := s.sink.CreateTx(ctx, tx, notification); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	recordIncidentTransition(string(from), string(next))

	// Best-effort WhatsApp delivery after the transaction commits.
	if s.messenger != nil {
		if err := s.messenger.SendToCustomer(ctx, incident.CustomerID, notification.Title, message); err != nil {
			slog.Warn("failed to send outbound message",
				"incident_id", incident.ID,
				"error", err,
			)
		}
	}

	return incident, nil
}

// Assign sets the staff member responsible for an incident. No status
// change, no notification.
func (s *Service) Assign(ctx context.Context, id string, assignedTo *string) (*domain.Incident, error) {
	incident, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAssignee(ctx, id, assignedTo); err != nil {
		return nil, fmt.Errorf("update assignee: %w", err)
	}

	incident.AssignedTo = assignedTo
	return incident, nil
}

// RateSatisfaction records the reporting customer's rating for a
// resolved incident. Only the reporter may rate, only once, only after
// resolution, and only with a value between 1 and 5.
func (s *Service) RateSatisfaction(ctx context.Context, id string, rating int, customerID string) (*domain.Incident, error) {
	incident, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if incident.CustomerID != customerID {
		return nil, ErrPermissionDenied
	}
	if !incident.IsResolved() {
		return nil, ErrNotResolved
	}
	if incident.CustomerSatisfaction != nil {
		return nil, ErrAlreadyRated
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidArgument)
	}

	if err := s.repo.SetSatisfaction(ctx, id, rating); err != nil {
		return nil, fmt.Errorf("set satisfaction: %w", err)
	}

	incident.CustomerSatisfaction = &rating
	recordSatisfactionRating(rating)
	return incident, nil
}

// NotesInput holds staff-editable follow-up fields.
type NotesInput struct {
	ResolutionNotes     *string
	InternalNotes       *string
	EvidenceDescription *string
	RequiresFollowup    *bool
}

// UpdateNotes updates staff resolution and internal notes.
func (s *Service) UpdateNotes(ctx context.Context, id string, input NotesInput) (*domain.Incident, error) {
	incident, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ResolutionNotes != nil {
		incident.ResolutionNotes = *input.ResolutionNotes
	}
	if input.InternalNotes != nil {
		incident.InternalNotes = *input.InternalNotes
	}
	if input.EvidenceDescription != nil {
		incident.EvidenceDescription = *input.EvidenceDescription
	}
	if input.RequiresFollowup != nil {
		incident.RequiresFollowup = *input.RequiresFollowup
	}

	if err := s.repo.Update(ctx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	return incident, nil
}

// Get retrieves an incident by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.Get(ctx, id)
}

// GetForCustomer retrieves an incident, checking the customer owns it.
func (s *Service) GetForCustomer(ctx context.Context, id, customerID string) (*domain.Incident, error) {
	incident, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if incident.CustomerID != customerID {
		return nil, ErrIncidentNotFound
	}
	return incident, nil
}

// ListForCustomer lists a customer's incidents.
func (s *Service) ListForCustomer(ctx context.Context, customerID string, filters Filters) ([]*domain.Incident, error) {
	return s.repo.ListByCustomer(ctx, customerID, filters)
}

// List lists incidents with staff filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]*domain.Incident, error) {
	return s.repo.List(ctx, filters)
}

// ResponseTime returns the incident's response time in fractional
// hours, rounded to two decimals. Unresolved incidents accrue time
// against the engine clock.
func (s *Service) ResponseTime(incident *domain.Incident) float64 {
	return incident.ResponseTimeAt(s.now())
}

// IsOverdue reports whether the incident currently exceeds its SLA.
func (s *Service) IsOverdue(incident *domain.Incident) bool {
	return incident.IsOverdueAt(s.now())
}

// CountActive returns the number of unresolved incidents.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active incidents: %w", err)
	}
	return len(active), nil
}

// DashboardStats aggregates staff dashboard metrics.
type DashboardStats struct {
	TotalOpen           int                             `json:"total_open"`
	TotalInProgress     int                             `json:"total_in_progress"`
	Overdue             int                             `json:"overdue"`
	ResolvedToday       int                             `json:"resolved_today"`
	AverageSatisfaction *float64                        `json:"avg_satisfaction"`
	ByCategory          map[domain.IncidentCategory]int `json:"by_category"`
}

// Stats computes the staff dashboard statistics. Overdue counts apply
// the same SLA predicate the engine and the sweep use.
func (s *Service) Stats(ctx context.Context) (*DashboardStats, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}

	now := s.now()
	stats := &DashboardStats{}
	for _, i := range active {
		switch i.Status {
		case domain.IncidentStatusOpen:
			stats.TotalOpen++
		case domain.IncidentStatusInProgress:
			stats.TotalInProgress++
		}
		if i.IsOverdueAt(now) {
			stats.Overdue++
		}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	resolvedToday, err := s.repo.CountResolvedSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("count resolved today: %w", err)
	}
	stats.ResolvedToday = resolvedToday

	avg, err := s.repo.AverageSatisfaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("average satisfaction: %w", err)
	}
	stats.AverageSatisfaction = avg

	byCategory, err := s.repo.CountActiveByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	stats.ByCategory = byCategory

	return stats, nil
}
