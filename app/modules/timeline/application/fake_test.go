package timelineservice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// FakeTimelineRepository is an in-memory timeline store with a call trace.
type FakeTimelineRepository struct {
	Trace     []string
	Timelines map[timelinedb.TimelineKey][]timelineevents.TimelineEvent

	GetFunc    func(ctx context.Context, key timelinedb.TimelineKey) ([]timelineevents.TimelineEvent, error)
	AppendFunc func(ctx context.Context, key timelinedb.TimelineKey, event timelineevents.TimelineEvent) error
	ClearFunc  func(ctx context.Context, key timelinedb.TimelineKey) error
}

func NewFakeTimelineRepository() *FakeTimelineRepository {
	return &FakeTimelineRepository{
		Timelines: make(map[timelinedb.TimelineKey][]timelineevents.TimelineEvent),
	}
}

func (f *FakeTimelineRepository) Get(ctx context.Context, key timelinedb.TimelineKey) ([]timelineevents.TimelineEvent, error) {
	f.Trace = append(f.Trace, "Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	events, ok := f.Timelines[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return events, nil
}

func (f *FakeTimelineRepository) Append(ctx context.Context, key timelinedb.TimelineKey, event timelineevents.TimelineEvent) error {
	f.Trace = append(f.Trace, fmt.Sprintf("Append:%s", event.Payload.Action()))
	if f.AppendFunc != nil {
		return f.AppendFunc(ctx, key, event)
	}
	f.Timelines[key] = append(f.Timelines[key], event)
	return nil
}

func (f *FakeTimelineRepository) Clear(ctx context.Context, key timelinedb.TimelineKey) error {
	f.Trace = append(f.Trace, "Clear")
	if f.ClearFunc != nil {
		return f.ClearFunc(ctx, key)
	}
	delete(f.Timelines, key)
	return nil
}

func (f *FakeTimelineRepository) PurgeExpired(ctx context.Context) (int64, error) {
	f.Trace = append(f.Trace, "PurgeExpired")
	return 0, nil
}

// assemblerCall captures one window handed to the fake assembler.
type assemblerCall struct {
	Teams       [][]sharedtypes.MatchPlayer
	Start, End  time.Time
	IsSubSeries bool
}

// FakeAssembler records every window and serves canned matches per call.
type FakeAssembler struct {
	Calls []assemblerCall

	AssembleFunc func(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error)
}

func (f *FakeAssembler) AssembleForTeams(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error) {
	f.Calls = append(f.Calls, assemblerCall{Teams: teams, Start: start, End: end, IsSubSeries: isSubSeries})
	if f.AssembleFunc != nil {
		return f.AssembleFunc(ctx, teams, start, end, isSubSeries)
	}
	return nil, nil
}

var testTokenSecret = []byte("test-signing-secret")

func newTestService(repo timelinedb.Repository, assembler SeriesAssembler) *TimelineService {
	return NewTimelineService(
		repo,
		assembler,
		testTokenSecret,
		observability.NoOpLogger,
		observability.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test"),
	)
}
