package incidents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jhenriquezf/clmundo/internal/domain"
)

// AlertChannel raises escalation alerts to the operations team.
type AlertChannel interface {
	Alert(ctx context.Context, incidentID, message string) error
}

// SweeperConfig contains escalation sweep configuration.
type SweeperConfig struct {
	Interval time.Duration
}

// DefaultSweeperConfig returns default sweep configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 15 * time.Minute,
	}
}

// Sweeper periodically scans unresolved incidents for SLA breaches and
// raises one alert per breaching incident. It never mutates incident
// state and keeps no dedup state: an incident that stays overdue is
// re-alerted on every run.
type Sweeper struct {
	config SweeperConfig
	repo   Repository
	alerts AlertChannel
	now    func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a new escalation sweeper.
func NewSweeper(config SweeperConfig, repo Repository, alerts AlertChannel) *Sweeper {
	return &Sweeper{
		config: config,
		repo:   repo,
		alerts: alerts,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// WithClock overrides the sweeper clock. Used in tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Start launches the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("starting escalation sweeper", "interval", s.config.Interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("escalation sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.now()); err != nil {
				slog.Error("escalation sweep failed", "error", err)
			}
		}
	}
}

// Sweep selects unresolved critical and high severity incidents past
// their SLA at the given instant and emits one ops alert for each.
// Medium and low severities are intentionally excluded from active
// alerting. Alert delivery failures are logged per incident and do not
// abort the sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]*domain.Incident, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}

	var overdue []*domain.Incident
	for _, incident := range active {
		if incident.Severity != domain.IncidentSeverityCritical &&
			incident.Severity != domain.IncidentSeverityHigh {
			continue
		}
		if !incident.IsOverdueAt(now) {
			continue
		}
		overdue = append(overdue, incident)

		message := fmt.Sprintf(
			"ALERTA: Incidencia vencida #%s\nLa incidencia #%s lleva %.2f horas sin resolver.\nSeveridad: %s\nCliente: %s\nTítulo: %s",
			incident.ID,
			incident.ID,
			incident.ResponseTimeAt(now),
			incident.Severity,
			incident.CustomerName,
			incident.Title,
		)

		if err := s.alerts.Alert(ctx, incident.ID, message); err != nil {
			slog.Error("failed to send escalation alert",
				"incident_id", incident.ID,
				"severity", incident.Severity,
				"error", err,
			)
			recordSweepAlert("failed")
			continue
		}
		recordSweepAlert("sent")
	}

	recordSweepRun(len(overdue))
	if len(overdue) > 0 {
		slog.Info("escalation sweep completed", "overdue", len(overdue))
	}

	return overdue, nil
}
