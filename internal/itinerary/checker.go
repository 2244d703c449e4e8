package itinerary

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CheckerConfig contains delayed-service check configuration.
type CheckerConfig struct {
	Interval  time.Duration
	Threshold time.Duration
}

// DefaultCheckerConfig returns default delay check configuration.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Interval:  10 * time.Minute,
		Threshold: 15 * time.Minute,
	}
}

// Checker periodically marks segments that are past their schedule but
// still pending or confirmed as delayed.
type Checker struct {
	config  CheckerConfig
	service *Service
	now     func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewChecker creates a new delayed-service checker.
func NewChecker(config CheckerConfig, service *Service) *Checker {
	return &Checker{
		config:  config,
		service: service,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the periodic check loop.
func (c *Checker) Start(ctx context.Context) {
	slog.Info("starting delayed-service checker",
		"interval", c.config.Interval,
		"threshold", c.config.Threshold,
	)

	c.wg.Add(1)
	go c.run(ctx)
}

// Stop gracefully stops the check loop.
func (c *Checker) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	slog.Info("delayed-service checker stopped")
}

func (c *Checker) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			marked, err := c.service.MarkDelayed(ctx, c.now(), c.config.Threshold)
			if err != nil {
				slog.Error("delayed-service check failed", "error", err)
				continue
			}
			if len(marked) > 0 {
				slog.Info("delayed-service check completed", "marked", len(marked))
			}
		}
	}
}
