package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/intake-engine/internal/api/router"
	"github.com/wolfman30/intake-engine/internal/app/bootstrap"
	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/business"
	appconfig "github.com/wolfman30/intake-engine/internal/config"
	httpmiddleware "github.com/wolfman30/intake-engine/internal/http/middleware"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/internal/notify"
	"github.com/wolfman30/intake-engine/internal/observability/metrics"
	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/internal/webchat"
	"github.com/wolfman30/intake-engine/internal/widget"
	notifyworker "github.com/wolfman30/intake-engine/internal/worker/notify"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting intake-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.close()

	go app.widgets.Run(ctx, sweepInterval(cfg.WidgetIdleTimeout), cfg.WidgetIdleTimeout)
	if app.limiter != nil {
		go app.limiter.Run(ctx, time.Minute)
	}
	go app.retry.Run(ctx)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.widgets.CloseAll(shutdownCtx)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler http.Handler
	widgets *webchat.Manager
	limiter *httpmiddleware.RateLimiter
	retry   *notifyworker.RetrySender
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApplication wires every dependency from config. Without Redis or a
// database it runs entirely in memory.
func buildApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{}
	metricsHandler, intakeMetrics := setupMetrics()
	checks := map[string]router.HealthCheck{}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	var leadRepo leads.Repository = leads.NewInMemoryRepository()
	var bookingRepo booking.Repository = booking.NewMemoryRepository()
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
		checks["postgres"] = pool.Ping
		leadRepo = leads.NewPostgresRepository(pool)
		bookingRepo = booking.NewPostgresRepository(pool)
	} else {
		logger.Warn("no database configured; leads and appointments are kept in memory")
	}

	var awsCfg *aws.Config
	if cfg.NeedsAWS() {
		loaded, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}
	publisher := bootstrap.BuildPublisher(cfg, awsCfg, logger)
	emailSender := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	var outbox notifyworker.Outbox = notifyworker.NewMemoryOutbox()
	if redisClient != nil {
		outbox = notifyworker.NewRedisOutbox(redisClient)
	}
	app.retry = notifyworker.NewRetrySender(outbox, emailSender, logger)
	notifier := notify.NewNotifier(emailSender, cfg.BusinessName, cfg.NotifyEmail, logger).WithRetry(app.retry)

	seed, err := bootstrap.BuildBusinessProfile(cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	profiles := bootstrap.BuildProfileStore(redisClient, seed)

	leadService := leads.NewService(leadRepo, publisher, intakeMetrics, logger).WithNotifier(notifier)
	bookingService := booking.NewService(profiles, bookingRepo, publisher, notifier, booking.Config{
		SlotDuration: cfg.SlotDuration,
		Capacity:     cfg.SlotCapacity,
	}, intakeMetrics, logger)

	replyService, err := bootstrap.BuildReplyService(ctx, cfg, awsCfg, seed, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	if closer, ok := replyService.(io.Closer); ok {
		app.closers = append(app.closers, func() { _ = closer.Close() })
	}

	sessions := session.NewStore(bootstrap.BuildSessionKV(redisClient, logger), session.Options{
		TTL:     cfg.SessionTTL,
		Welcome: cfg.WelcomeText,
	}, logger)
	commands := intake.NewCommandBus()

	app.widgets = webchat.NewManager(widget.Dependencies{
		Sessions: sessions,
		Profiles: profiles,
		Replies:  replyService,
		Contacts: leadService,
		Bookings: bootstrap.BuildBookingEndpoint(cfg, bookingService, logger),
		Commands: commands,
		Metrics:  intakeMetrics,
		Logger:   logger,
	}, widget.Options{
		Limited:      cfg.ReplyLimited,
		ReplyLimit:   cfg.ReplyLimit,
		ReplyTimeout: cfg.ReplyTimeout,
		SlotDuration: cfg.SlotDuration,
	}, logger)

	if cfg.RateLimitPerSecond > 0 {
		app.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}

	app.handler = router.New(&router.Config{
		Logger:             logger,
		WidgetHandler:      webchat.NewHandler(app.widgets, commands, logger),
		LeadsHandler:       leads.NewHandler(leadService, logger),
		BookingHandler:     booking.NewHandler(bookingService, logger),
		BusinessHandler:    business.NewHandler(profiles, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        app.limiter,
		HealthChecks:       checks,
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}
	return app, nil
}

func setupMetrics() (http.Handler, *metrics.IntakeMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewIntakeMetrics(registry)
}

// sweepInterval checks for idle widgets a few times per idle window.
func sweepInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}
