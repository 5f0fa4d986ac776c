package timelineservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
)

const serviceName = "TimelineService"

// TimelineService implements the Service interface.
type TimelineService struct {
	timelines   timelinedb.Repository
	assembler   SeriesAssembler
	tokenSecret []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
	metrics     observability.ReplayMetrics
	tracer      trace.Tracer
}

// NewTimelineService creates a new TimelineService. The token secret signs
// resumption tokens; their lifetime matches the timeline TTL.
func NewTimelineService(
	timelines timelinedb.Repository,
	assembler SeriesAssembler,
	tokenSecret []byte,
	logger *slog.Logger,
	metrics observability.ReplayMetrics,
	tracer trace.Tracer,
) *TimelineService {
	return &TimelineService{
		timelines:   timelines,
		assembler:   assembler,
		tokenSecret: tokenSecret,
		tokenTTL:    timelinedb.DefaultTTL,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
	}
}

var _ Service = (*TimelineService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *TimelineService) withTelemetry(
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
