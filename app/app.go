package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/discord"
	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	"github.com/davidhouweling/guilty-spark-sub001/app/eventbus"
	identityservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/application"
	seriesservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/series/application"
	timelineservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/application"
	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinehandlers "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/handlers"
	trackerservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/application"
	trackerhandlers "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/handlers"
	trackerqueue "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/queue"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
	"github.com/davidhouweling/guilty-spark-sub001/config"
	"github.com/davidhouweling/guilty-spark-sub001/db/bundb"
)

// App wires the identity, series, timeline, and tracker modules together
// with their shared infrastructure.
type App struct {
	Cfg      *config.Config
	Identity identityservice.Service
	Series   seriesservice.Service
	Timeline timelineservice.Service
	Tracker  trackerservice.Service

	db       *bundb.DBService
	eventBus eventbus.EventBus
	queue    trackerqueue.QueueService
	session  *discordgo.Session
	server   *http.Server
	logger   *slog.Logger
}

// NewApp initializes the application with the necessary services and configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewPrometheusMetrics(registry, cfg.Observability.MetricsNamespace)
	tracer := otel.Tracer("guilty-spark")

	dbService, err := bundb.NewBunDBService(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	eventBus, err := eventbus.NewEventBus(ctx, cfg.NATS.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	haloClient := halo.NewClient(cfg.Halo, logger)
	messenger := discord.NewMessenger(session, logger)

	identity := identityservice.NewIdentityService(
		dbService.IdentityDB, haloClient, haloClient, logger, metrics, tracer)
	series := seriesservice.NewSeriesService(haloClient, identity, logger, metrics, tracer)
	timeline := timelineservice.NewTimelineService(
		dbService.TimelineDB, series, []byte(cfg.Timeline.TokenSecret), logger, metrics, tracer)

	queueService, err := trackerqueue.NewService(ctx, dbService.GetDB(), cfg.Postgres.DSN, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracker queue: %w", err)
	}

	tracker := trackerservice.NewTrackerService(
		dbService.TrackerDB,
		series,
		messenger,
		queueService,
		cfg.Tracker.TickInterval,
		time.Duration(cfg.Tracker.MaxBackoffMinutes)*time.Minute,
		logger,
		metrics,
		tracer,
	)
	queueService.SetTickInvoker(tracker)

	webhookHandlers := timelinehandlers.NewWebhookHandlers(timeline, dbService.SecretDB, eventBus, logger)
	trackerHTTP := trackerhandlers.NewTrackerHandlers(tracker, logger)

	router := chi.NewRouter()
	router.Mount("/webhooks", webhookHandlers.Routes())
	router.Mount("/trackers", trackerHTTP.Routes())
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &App{
		Cfg:      cfg,
		Identity: identity,
		Series:   series,
		Timeline: timeline,
		Tracker:  tracker,
		db:       dbService,
		eventBus: eventBus,
		queue:    queueService,
		session:  session,
		server:   &http.Server{Addr: cfg.HTTP.ListenAddress, Handler: router},
		logger:   logger,
	}, nil
}

// Run starts the queue worker, the queue event consumer, and the HTTP
// server, then blocks until the context is cancelled or the server fails.
func (app *App) Run(ctx context.Context) error {
	if err := app.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	if err := app.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker queue: %w", err)
	}

	messages, err := app.eventBus.Subscribe(ctx, timelineevents.TopicQueueEventReceived)
	if err != nil {
		return fmt.Errorf("failed to subscribe to queue events: %w", err)
	}
	consumer := trackerhandlers.NewQueueEventConsumer(app.Tracker, app.db.TrackerDB, app.logger)
	go consumer.Run(ctx, messages)

	errCh := make(chan error, 1)
	go func() {
		app.logger.InfoContext(ctx, "HTTP server listening", slog.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Close shuts the application down in reverse dependency order.
func (app *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("Failed to shut down HTTP server", slog.Any("error", err))
	}
	if err := app.queue.Stop(shutdownCtx); err != nil {
		app.logger.Warn("Failed to stop tracker queue", slog.Any("error", err))
	}
	if err := app.eventBus.Close(); err != nil {
		app.logger.Warn("Failed to close event bus", slog.Any("error", err))
	}
	if err := app.session.Close(); err != nil {
		app.logger.Warn("Failed to close Discord session", slog.Any("error", err))
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn("Failed to close database", slog.Any("error", err))
	}
}
