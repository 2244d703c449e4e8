// Package postgres provides PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/incidents"
)

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// incidentColumns is the select list shared by all incident queries.
// Customer identity comes from the segment -> trip -> customer joins.
const incidentColumns = `
	i.id, i.segment_id, i.title, i.description, i.category, i.severity,
	i.status, i.location, i.occurred_at, i.affected_passengers,
	i.reporter_contact, i.reported_at, i.resolved_at, i.resolution_notes,
	i.internal_notes, i.evidence_description, i.assigned_to,
	i.requires_followup, i.customer_satisfaction,
	c.id, u.full_name
`

const incidentJoins = `
	FROM incidents i
	JOIN trip_segments ts ON ts.id = i.segment_id
	JOIN trips t ON t.id = ts.trip_id
	JOIN customers c ON c.id = t.customer_id
	JOIN users u ON u.id = c.user_id
`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.SegmentID,
		&incident.Title,
		&incident.Description,
		&incident.Category,
		&incident.Severity,
		&incident.Status,
		&incident.Location,
		&incident.OccurredAt,
		&incident.AffectedPassengers,
		&incident.ReporterContact,
		&incident.ReportedAt,
		&incident.ResolvedAt,
		&incident.ResolutionNotes,
		&incident.InternalNotes,
		&incident.EvidenceDescription,
		&incident.AssignedTo,
		&incident.RequiresFollowup,
		&incident.CustomerSatisfaction,
		&incident.CustomerID,
		&incident.CustomerName,
	)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// Get retrieves an incident by ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + incidentJoins + ` WHERE i.id = $1`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

// ListByCustomer retrieves a customer's incidents, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string, filters incidents.Filters) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + incidentJoins + ` WHERE c.id = $1`
	args := []interface{}{customerID}

	query, args = appendFilters(query, args, filters)

	return r.queryIncidents(ctx, query, args...)
}

// List retrieves incidents with staff filters, newest first.
func (r *Repository) List(ctx context.Context, filters incidents.Filters) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + incidentJoins + ` WHERE 1=1`
	args := []interface{}{}

	query, args = appendFilters(query, args, filters)

	return r.queryIncidents(ctx, query, args...)
}

// ListActive retrieves unresolved incidents for the sweep and dashboard.
func (r *Repository) ListActive(ctx context.Context) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + incidentJoins + `
		WHERE i.status IN ('open', 'in_progress') AND i.resolved_at IS NULL
		ORDER BY i.reported_at ASC`

	return r.queryIncidents(ctx, query)
}

func appendFilters(query string, args []interface{}, filters incidents.Filters) (string, []interface{}) {
	argNum := len(args) + 1

	if filters.Status != nil {
		query += fmt.Sprintf(" AND i.status = $%d", argNum)
		args = append(args, *filters.Status)
		argNum++
	}
	if filters.Category != nil {
		query += fmt.Sprintf(" AND i.category = $%d", argNum)
		args = append(args, *filters.Category)
		argNum++
	}
	if filters.Severity != nil {
		query += fmt.Sprintf(" AND i.severity = $%d", argNum)
		args = append(args, *filters.Severity)
		argNum++
	}

	query += " ORDER BY i.reported_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	return query, args
}

func (r *Repository) queryIncidents(ctx context.Context, query string, args ...interface{}) ([]*domain.Incident, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	list := make([]*domain.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		list = append(list, incident)
	}

	return list, rows.Err()
}

// Update persists staff-editable fields.
func (r *Repository) Update(ctx context.Context, incident *domain.Incident) error {
	query := `
		UPDATE incidents SET
			resolution_notes = $2,
			internal_notes = $3,
			evidence_description = $4,
			requires_followup = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.ResolutionNotes,
		incident.InternalNotes,
		incident.EvidenceDescription,
		incident.RequiresFollowup,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// UpdateAssignee sets the assigned staff member.
func (r *Repository) UpdateAssignee(ctx context.Context, id string, assignedTo *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE incidents SET assigned_to = $2 WHERE id = $1`, id, assignedTo)
	if err != nil {
		return fmt.Errorf("update assignee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// SetSatisfaction records the customer rating. The guard against double
// rating lives in the service; the WHERE clause keeps the write idempotent
// under races.
func (r *Repository) SetSatisfaction(ctx context.Context, id string, rating int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE incidents SET customer_satisfaction = $2
		 WHERE id = $1 AND customer_satisfaction IS NULL`,
		id, rating)
	if err != nil {
		return fmt.Errorf("set satisfaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrAlreadyRated
	}
	return nil
}

// CountResolvedSince counts incidents resolved at or after the given instant.
func (r *Repository) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM incidents WHERE resolved_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count resolved: %w", err)
	}
	return count, nil
}

// AverageSatisfaction returns the mean customer rating, or nil when no
// incident has been rated yet.
func (r *Repository) AverageSatisfaction(ctx context.Context) (*float64, error) {
	var avg *float64
	err := r.db.QueryRow(ctx,
		`SELECT AVG(customer_satisfaction) FROM incidents WHERE customer_satisfaction IS NOT NULL`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average satisfaction: %w", err)
	}
	return avg, nil
}

// CountActiveByCategory counts unresolved incidents per category.
func (r *Repository) CountActiveByCategory(ctx context.Context) (map[domain.IncidentCategory]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT category, COUNT(*) FROM incidents
		 WHERE status IN ('open', 'in_progress')
		 GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.IncidentCategory]int)
	for rows.Next() {
		var category domain.IncidentCategory
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = count
	}

	return counts, rows.Err()
}

// BeginTx starts a transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateTx inserts a new incident within a transaction.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (
			segment_id, title, description, category, severity, status,
			location, occurred_at, affected_passengers, reporter_contact,
			reported_at, resolution_notes, internal_notes,
			evidence_description, requires_followup
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		incident.SegmentID,
		incident.Title,
		incident.Description,
		incident.Category,
		incident.Severity,
		incident.Status,
		incident.Location,
		incident.OccurredAt,
		incident.AffectedPassengers,
		incident.ReporterContact,
		incident.ReportedAt,
		incident.ResolutionNotes,
		incident.InternalNotes,
		incident.EvidenceDescription,
		incident.RequiresFollowup,
	).Scan(&incident.ID)

	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// UpdateStatusTx updates status and resolved_at within a transaction.
// resolved_at is only ever written when previously null so the first
// resolution timestamp sticks.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id string, status domain.IncidentStatus, resolvedAt *time.Time) error {
	query := `
		UPDATE incidents SET
			status = $2,
			resolved_at = COALESCE(resolved_at, $3)
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, id, status, resolvedAt)
	if err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}
