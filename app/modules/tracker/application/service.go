package trackerservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
)

const serviceName = "TrackerService"

const (
	// maxConsecutiveErrors is the persistent-outage threshold: the tick
	// that records the tenth consecutive failure stops and purges.
	maxConsecutiveErrors = 10

	// perfLogEvery controls the observability-only performance log.
	perfLogEvery = 10

	defaultTickInterval = 3 * time.Minute
	defaultMaxBackoff   = 30 * time.Minute
)

// TrackerService implements the Service interface.
type TrackerService struct {
	trackers  trackerdb.Repository
	assembler SeriesAssembler
	messenger Messenger
	scheduler TickScheduler

	tickInterval time.Duration
	maxBackoff   time.Duration

	logger  *slog.Logger
	metrics observability.TrackerMetrics
	tracer  trace.Tracer
}

// NewTrackerService creates a new TrackerService. Zero durations fall back
// to the defaults.
func NewTrackerService(
	trackers trackerdb.Repository,
	assembler SeriesAssembler,
	messenger Messenger,
	scheduler TickScheduler,
	tickInterval time.Duration,
	maxBackoff time.Duration,
	logger *slog.Logger,
	metrics observability.TrackerMetrics,
	tracer trace.Tracer,
) *TrackerService {
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &TrackerService{
		trackers:     trackers,
		assembler:    assembler,
		messenger:    messenger,
		scheduler:    scheduler,
		tickInterval: tickInterval,
		maxBackoff:   maxBackoff,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
	}
}

var _ Service = (*TrackerService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *TrackerService) withTelemetry(
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) error,
) (err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
		}
	}()

	if err = op(ctx); err != nil {
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(err)
		return err
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return nil
}
