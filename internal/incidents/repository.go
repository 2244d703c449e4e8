package incidents

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
)

// Repository defines the interface for incident storage.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Incident, error)
	ListByCustomer(ctx context.Context, customerID string, filters Filters) ([]*domain.Incident, error)
	List(ctx context.Context, filters Filters) ([]*domain.Incident, error)
	// ListActive returns unresolved incidents (status open or in_progress,
	// resolved_at null), used by the sweep and dashboard stats.
	ListActive(ctx context.Context) ([]*domain.Incident, error)
	Update(ctx context.Context, incident *domain.Incident) error
	UpdateAssignee(ctx context.Context, id string, assignedTo *string) error
	SetSatisfaction(ctx context.Context, id string, rating int) error

	CountResolvedSince(ctx context.Context, since time.Time) (int, error)
	AverageSatisfaction(ctx context.Context) (*float64, error)
	CountActiveByCategory(ctx context.Context) (map[domain.IncidentCategory]int, error)

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id string, status domain.IncidentStatus, resolvedAt *time.Time) error
}

// Filters holds filter options for listing incidents.
type Filters struct {
	Status   *domain.IncidentStatus
	Category *domain.IncidentCategory
	Severity *domain.IncidentSeverity
	Limit    int
	Offset   int
}
