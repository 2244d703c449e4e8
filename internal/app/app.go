// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhenriquezf/clmundo/internal/alerts"
	"github.com/jhenriquezf/clmundo/internal/alerts/webhook"
	"github.com/jhenriquezf/clmundo/internal/config"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/identity"
	"github.com/jhenriquezf/clmundo/internal/identity/jwt"
	identitypostgres "github.com/jhenriquezf/clmundo/internal/identity/postgres"
	"github.com/jhenriquezf/clmundo/internal/incidents"
	incidentspostgres "github.com/jhenriquezf/clmundo/internal/incidents/postgres"
	"github.com/jhenriquezf/clmundo/internal/itinerary"
	itinerarypostgres "github.com/jhenriquezf/clmundo/internal/itinerary/postgres"
	"github.com/jhenriquezf/clmundo/internal/notifications"
	"github.com/jhenriquezf/clmundo/internal/notifications/email"
	notificationspostgres "github.com/jhenriquezf/clmundo/internal/notifications/postgres"
	"github.com/jhenriquezf/clmundo/internal/notifications/whatsapp"
	"github.com/jhenriquezf/clmundo/internal/pkg/ctxlog"
	"github.com/jhenriquezf/clmundo/internal/pkg/httputil"
	"github.com/jhenriquezf/clmundo/internal/pkg/metrics"
	"github.com/jhenriquezf/clmundo/internal/pkg/postgres"
	"github.com/jhenriquezf/clmundo/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	sweeper       *incidents.Sweeper
	checker       *itinerary.Checker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.MigrationsPath != "" {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop background loops first
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.checker != nil {
		a.checker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// customerDirectory adapts the identity repository to the outbound
// dispatcher's customer lookup.
type customerDirectory struct {
	repo identity.Repository
}

func (d customerDirectory) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	return d.repo.GetCustomerByID(ctx, customerID)
}

// segmentDirectory adapts the itinerary repository to the incident
// engine's segment lookup, translating its not-found sentinel. Other
// errors pass through untouched.
type segmentDirectory struct {
	repo itinerary.Repository
}

func (d segmentDirectory) GetSegment(ctx context.Context, id string) (*domain.TripSegment, error) {
	segment, err := d.repo.GetSegment(ctx, id)
	if err != nil {
		if errors.Is(err, itinerary.ErrSegmentNotFound) {
			return nil, incidents.ErrSegmentNotFound
		}
		return nil, err
	}
	return segment, nil
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>CLMundo Travel API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	// Outbound senders
	whatsappSender, err := whatsapp.NewSender(whatsapp.Config{
		Enabled:    a.config.Notifications.WhatsApp.Enabled,
		AccountSID: a.config.Notifications.WhatsApp.AccountSID,
		AuthToken:  a.config.Notifications.WhatsApp.AuthToken,
		FromNumber: a.config.Notifications.WhatsApp.FromNumber,
		APIBaseURL: a.config.Notifications.WhatsApp.APIBaseURL,
		RateLimit:  a.config.Notifications.WhatsApp.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create whatsapp sender: %w", err)
	}

	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Notifications.Email.Enabled,
		SMTPHost:     a.config.Notifications.Email.SMTPHost,
		SMTPPort:     a.config.Notifications.Email.SMTPPort,
		SMTPUser:     a.config.Notifications.Email.SMTPUser,
		SMTPPassword: a.config.Notifications.Email.SMTPPassword,
		FromAddress:  a.config.Notifications.Email.FromAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	slog.Info("outbound channels configured",
		"whatsapp_enabled", a.config.Notifications.WhatsApp.Enabled,
		"email_enabled", a.config.Notifications.Email.Enabled,
	)

	identityRepo := identitypostgres.NewRepository(a.db)

	var senders []notifications.Sender
	if a.config.Notifications.WhatsApp.Enabled {
		senders = append(senders, whatsappSender)
	} else {
		slog.Warn("whatsapp sender is disabled: login codes and updates fall back to email")
	}
	if a.config.Notifications.Email.Enabled {
		senders = append(senders, emailSender)
	} else {
		slog.Warn("email sender is disabled: email delivery will be skipped")
	}

	dispatcher := notifications.NewDispatcher(customerDirectory{identityRepo}, senders...)

	// In-app notification feed
	notificationsRepo := notificationspostgres.NewRepository(a.db)
	notificationsService := notifications.NewService(notificationsRepo)

	// Identity
	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:       a.config.JWT.SecretKey,
		AccessTokenTTL:  a.config.JWT.AccessTokenDuration,
		RefreshTokenTTL: a.config.JWT.RefreshTokenDuration,
	}, identityRepo)
	if err != nil {
		return nil, fmt.Errorf("create jwt authenticator: %w", err)
	}
	identityService := identity.NewService(identityRepo, jwtAuth, dispatcher)
	identityHandler := identity.NewHandler(identityService)

	// Itinerary
	itineraryRepo := itinerarypostgres.NewRepository(a.db)
	itineraryService := itinerary.NewService(itineraryRepo, notificationsService)

	// Incidents
	incidentsRepo := incidentspostgres.NewRepository(a.db)
	incidentsService := incidents.NewService(incidentsRepo, segmentDirectory{repo: itineraryRepo}, notificationsService, dispatcher)

	notificationsHandler := notifications.NewHandler(notificationsService, identityService)
	itineraryHandler := itinerary.NewHandler(itineraryService, incidentsService, identityService)
	incidentsHandler := incidents.NewHandler(incidentsService, identityService)

	// Escalation sweep over unresolved critical/high incidents
	if a.config.Sweep.Enabled {
		a.sweeper = incidents.NewSweeper(incidents.SweeperConfig{
			Interval: a.config.Sweep.Interval,
		}, incidentsRepo, a.alertChannels(emailSender))
		a.sweeper.Start(ctx)
	}

	// Delayed-service check over pending segments past their start time
	if a.config.DelayCheck.Enabled {
		a.checker = itinerary.NewChecker(itinerary.CheckerConfig{
			Interval:  a.config.DelayCheck.Interval,
			Threshold: a.config.DelayCheck.Threshold,
		}, itineraryService)
		a.checker.Start(ctx)
	}

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(jwtAuth))

			identityHandler.RegisterProtectedRoutes(r)
			notificationsHandler.RegisterCustomerRoutes(r)
			itineraryHandler.RegisterCustomerRoutes(r)
			incidentsHandler.RegisterCustomerRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleStaff))
				itineraryHandler.RegisterStaffRoutes(r)
				incidentsHandler.RegisterStaffRoutes(r)
			})
		})
	})

	return r, nil
}

// alertChannels assembles the escalation alert fanout from the sweep
// configuration. Without a webhook or ops address, alerts go to the log.
func (a *App) alertChannels(emailSender *email.Sender) alerts.Channel {
	var fanout alerts.Fanout

	if url := a.config.Sweep.OpsWebhookURL; url != "" {
		sender, err := webhook.NewSender(webhook.Config{URL: url})
		if err != nil {
			slog.Error("invalid ops webhook config", "error", err)
		} else {
			fanout = append(fanout, sender)
		}
	}

	if addr := a.config.Sweep.OpsEmail; addr != "" && a.config.Notifications.Email.Enabled {
		fanout = append(fanout, alerts.NewEmailChannel(emailSender, addr))
	}

	if len(fanout) == 0 {
		return alerts.LogChannel{}
	}
	return fanout
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
