package identityservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	identitydb "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
)

const serviceName = "IdentityService"

// IdentityService implements the Service interface.
type IdentityService struct {
	repo    identitydb.Repository
	finder  AccountFinder
	probe   HistoryProbe
	logger  *slog.Logger
	metrics observability.OperationMetrics
	tracer  trace.Tracer
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(
	repo identitydb.Repository,
	finder AccountFinder,
	probe HistoryProbe,
	logger *slog.Logger,
	metrics observability.OperationMetrics,
	tracer trace.Tracer,
) *IdentityService {
	return &IdentityService{
		repo:    repo,
		finder:  finder,
		probe:   probe,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

var _ Service = (*IdentityService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func (s *IdentityService) withTelemetry(
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
