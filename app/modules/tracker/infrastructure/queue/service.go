package trackerqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
)

// TickInvoker is the callback a fired tick job lands on. It is bound after
// construction because the tracker service and the queue service reference
// each other.
type TickInvoker interface {
	Tick(ctx context.Context, key trackerdb.TrackerKey) error
}

// QueueService schedules and cancels tracker tick jobs.
type QueueService interface {
	ScheduleTick(ctx context.Context, key trackerdb.TrackerKey, at time.Time) error
	CancelTicks(ctx context.Context, key trackerdb.TrackerKey) error
	GetScheduledJobs(ctx context.Context, key trackerdb.TrackerKey) ([]JobInfo, error)
	SetTickInvoker(invoker TickInvoker)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service handles tick scheduling using River.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	db      *bun.DB
	logger  *slog.Logger
	metrics observability.OperationMetrics

	invoker TickInvoker
}

var _ QueueService = (*Service)(nil)

// NewService creates a River-based queue service for tracker ticks. River
// needs its own pgx pool; bun is only used to query the river_job table
// for cancellation.
func NewService(
	ctx context.Context,
	bunDB *bun.DB,
	dsn string,
	logger *slog.Logger,
	metrics observability.OperationMetrics,
) (*Service, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	service := &Service{
		pool:    pool,
		db:      bunDB,
		logger:  logger,
		metrics: metrics,
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &tickWorker{service: service, logger: logger})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			"tracker":          {MaxWorkers: 25},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	service.client = riverClient
	logger.Info("Tracker queue service initialized")
	return service, nil
}

// SetTickInvoker binds the tick callback. Must be called before Start.
func (s *Service) SetTickInvoker(invoker TickInvoker) {
	s.invoker = invoker
}

// Start starts the River client.
func (s *Service) Start(ctx context.Context) error {
	if s.invoker == nil {
		return fmt.Errorf("tick invoker not bound")
	}
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.Info("Tracker queue service started")
	return nil
}

// Stop stops the River client and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.pool.Close()
	s.logger.Info("Tracker queue service stopped")
	return nil
}

// ScheduleTick arms the tracker's next wake-up. Args-uniqueness makes the
// call idempotent for a given key and time.
func (s *Service) ScheduleTick(ctx context.Context, key trackerdb.TrackerKey, at time.Time) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "schedule_tick", "river")

	job := TrackerTickJob{Key: key}
	result, err := s.client.Insert(ctx, job, &river.InsertOpts{
		Queue:       "tracker",
		ScheduledAt: at,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "schedule_tick", "river")
		return fmt.Errorf("failed to schedule tick: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "schedule_tick", "river")
	s.metrics.RecordOperationDuration(ctx, "schedule_tick", "river", time.Since(start))

	s.logger.Debug("Tick scheduled",
		attr.String("tracker", key.String()),
		attr.Time("at", at),
		attr.Int64("job_id", result.Job.ID),
	)
	return nil
}

// CancelTicks cancels every pending tick for the key.
func (s *Service) CancelTicks(ctx context.Context, key trackerdb.TrackerKey) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "cancel_ticks", "river")

	keyArgs, err := json.Marshal(key)
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "cancel_ticks", "river")
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	type riverJobRow struct {
		ID int64 `bun:"id"`
	}
	var jobs []riverJobRow
	err = s.db.NewSelect().
		Table("river_job").
		Column("id").
		Where("kind = ?", TrackerTickJob{}.Kind()).
		Where("state IN (?, ?)", "available", "scheduled").
		Where("args->'key' = ?", string(keyArgs)).
		Scan(ctx, &jobs)
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "cancel_ticks", "river")
		return fmt.Errorf("failed to query pending ticks: %w", err)
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			s.logger.Warn("Failed to cancel tick job",
				attr.Int64("job_id", job.ID),
				attr.Error(err),
			)
			continue
		}
		cancelled++
	}

	s.metrics.RecordOperationSuccess(ctx, "cancel_ticks", "river")
	s.metrics.RecordOperationDuration(ctx, "cancel_ticks", "river", time.Since(start))

	s.logger.Info("Pending ticks cancelled",
		attr.String("tracker", key.String()),
		attr.Int("cancelled", cancelled),
	)
	return nil
}

// GetScheduledJobs returns pending tick jobs for a key, for debugging.
func (s *Service) GetScheduledJobs(ctx context.Context, key trackerdb.TrackerKey) ([]JobInfo, error) {
	keyArgs, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	type riverJobRow struct {
		ID          int64      `bun:"id"`
		Kind        string     `bun:"kind"`
		State       string     `bun:"state"`
		ScheduledAt *time.Time `bun:"scheduled_at"`
		Attempt     int        `bun:"attempt"`
		MaxAttempts int        `bun:"max_attempts"`
	}
	var rows []riverJobRow
	err = s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "scheduled_at", "attempt", "max_attempts").
		Where("kind = ?", TrackerTickJob{}.Kind()).
		Where("args->'key' = ?", string(keyArgs)).
		OrderExpr("scheduled_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	out := make([]JobInfo, 0, len(rows))
	for _, row := range rows {
		info := JobInfo{
			ID:          row.ID,
			Kind:        row.Kind,
			State:       row.State,
			Attempt:     row.Attempt,
			MaxAttempts: row.MaxAttempts,
		}
		if row.ScheduledAt != nil {
			info.ScheduledAt = row.ScheduledAt.Format(time.RFC3339)
		}
		out = append(out, info)
	}
	return out, nil
}

// tickWorker executes fired tick jobs.
type tickWorker struct {
	river.WorkerDefaults[TrackerTickJob]

	service *Service
	logger  *slog.Logger
}

func (w *tickWorker) Work(ctx context.Context, job *river.Job[TrackerTickJob]) error {
	if w.service.invoker == nil {
		return fmt.Errorf("tick invoker not bound")
	}
	if err := w.service.invoker.Tick(ctx, job.Args.Key); err != nil {
		w.logger.Error("Tick execution failed",
			attr.String("tracker", job.Args.Key.String()),
			attr.Error(err),
		)
		return err
	}
	return nil
}
