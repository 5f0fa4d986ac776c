package trackerservice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// FakeTrackerRepository is an in-memory tracker store.
type FakeTrackerRepository struct {
	Trace    []string
	Trackers map[trackerdb.TrackerKey]*trackerdb.Tracker

	GetFunc    func(ctx context.Context, key trackerdb.TrackerKey) (*trackerdb.Tracker, error)
	SaveFunc   func(ctx context.Context, tracker *trackerdb.Tracker) error
	DeleteFunc func(ctx context.Context, key trackerdb.TrackerKey) error
}

func NewFakeTrackerRepository() *FakeTrackerRepository {
	return &FakeTrackerRepository{Trackers: make(map[trackerdb.TrackerKey]*trackerdb.Tracker)}
}

func (f *FakeTrackerRepository) Get(ctx context.Context, key trackerdb.TrackerKey) (*trackerdb.Tracker, error) {
	f.Trace = append(f.Trace, "Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	tracker, ok := f.Trackers[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *tracker
	return &copied, nil
}

func (f *FakeTrackerRepository) ListByQueue(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID, queueNumber sharedtypes.QueueNumber) ([]*trackerdb.Tracker, error) {
	f.Trace = append(f.Trace, "ListByQueue")
	var out []*trackerdb.Tracker
	for key, tracker := range f.Trackers {
		if key.GuildID == guildID && key.ChannelID == channelID && key.QueueNumber == queueNumber {
			copied := *tracker
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *FakeTrackerRepository) Save(ctx context.Context, tracker *trackerdb.Tracker) error {
	f.Trace = append(f.Trace, "Save")
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, tracker)
	}
	copied := *tracker
	f.Trackers[tracker.Key()] = &copied
	return nil
}

func (f *FakeTrackerRepository) Delete(ctx context.Context, key trackerdb.TrackerKey) error {
	f.Trace = append(f.Trace, "Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, key)
	}
	delete(f.Trackers, key)
	return nil
}

// FakeSeriesAssembler serves canned matches per tick.
type FakeSeriesAssembler struct {
	Calls        int
	AssembleFunc func(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error)
}

func (f *FakeSeriesAssembler) AssembleForTeams(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error) {
	f.Calls++
	if f.AssembleFunc != nil {
		return f.AssembleFunc(ctx, teams, start, end, isSubSeries)
	}
	return nil, nil
}

// FakeMessenger records message operations in order.
type FakeMessenger struct {
	Trace []string

	nextID int

	CreateFunc func(ctx context.Context, channelID sharedtypes.ChannelID, content string) (sharedtypes.MessageID, error)
	EditFunc   func(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, content string) error
	DeleteFunc func(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) error
}

func (f *FakeMessenger) CreateMessage(ctx context.Context, channelID sharedtypes.ChannelID, content string) (sharedtypes.MessageID, error) {
	f.Trace = append(f.Trace, "Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, channelID, content)
	}
	f.nextID++
	return sharedtypes.MessageID(fmt.Sprintf("msg-%d", f.nextID)), nil
}

func (f *FakeMessenger) EditMessage(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, content string) error {
	f.Trace = append(f.Trace, fmt.Sprintf("Edit:%s", messageID))
	if f.EditFunc != nil {
		return f.EditFunc(ctx, channelID, messageID, content)
	}
	return nil
}

func (f *FakeMessenger) DeleteMessage(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) error {
	f.Trace = append(f.Trace, fmt.Sprintf("Delete:%s", messageID))
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, channelID, messageID)
	}
	return nil
}

// FakeScheduler records armed and cancelled ticks.
type FakeScheduler struct {
	Scheduled []time.Time
	Cancels   int

	ScheduleFunc func(ctx context.Context, key trackerdb.TrackerKey, at time.Time) error
}

func (f *FakeScheduler) ScheduleTick(ctx context.Context, key trackerdb.TrackerKey, at time.Time) error {
	f.Scheduled = append(f.Scheduled, at)
	if f.ScheduleFunc != nil {
		return f.ScheduleFunc(ctx, key, at)
	}
	return nil
}

func (f *FakeScheduler) CancelTicks(ctx context.Context, key trackerdb.TrackerKey) error {
	f.Cancels++
	return nil
}

type testDeps struct {
	repo      *FakeTrackerRepository
	assembler *FakeSeriesAssembler
	messenger *FakeMessenger
	scheduler *FakeScheduler
}

func newTestService() (*TrackerService, *testDeps) {
	deps := &testDeps{
		repo:      NewFakeTrackerRepository(),
		assembler: &FakeSeriesAssembler{},
		messenger: &FakeMessenger{},
		scheduler: &FakeScheduler{},
	}
	svc := NewTrackerService(
		deps.repo,
		deps.assembler,
		deps.messenger,
		deps.scheduler,
		3*time.Minute,
		30*time.Minute,
		observability.NoOpLogger,
		observability.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test"),
	)
	return svc, deps
}
