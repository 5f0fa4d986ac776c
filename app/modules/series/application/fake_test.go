package seriesservice

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	identityservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/application"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// FakeStatsClient serves canned histories and details and records call
// order for pagination assertions.
type FakeStatsClient struct {
	Trace []string

	// Histories holds each account's full history, newest first. ListMatches
	// slices pages out of it.
	Histories map[sharedtypes.XboxUserID][]sharedtypes.MatchSummary
	Details   map[sharedtypes.MatchID]sharedtypes.MatchDetail

	ListMatchesFunc     func(ctx context.Context, id sharedtypes.XboxUserID, start, count int) ([]sharedtypes.MatchSummary, error)
	GetMatchDetailsFunc func(ctx context.Context, ids []sharedtypes.MatchID) ([]sharedtypes.MatchDetail, error)
}

func (f *FakeStatsClient) ListMatches(ctx context.Context, id sharedtypes.XboxUserID, start, count int) ([]sharedtypes.MatchSummary, error) {
	f.Trace = append(f.Trace, fmt.Sprintf("ListMatches:%s:%d", id, start))
	if f.ListMatchesFunc != nil {
		return f.ListMatchesFunc(ctx, id, start, count)
	}
	history := f.Histories[id]
	if start >= len(history) {
		return nil, nil
	}
	end := start + count
	if end > len(history) {
		end = len(history)
	}
	return history[start:end], nil
}

func (f *FakeStatsClient) GetMatchDetails(ctx context.Context, ids []sharedtypes.MatchID) ([]sharedtypes.MatchDetail, error) {
	f.Trace = append(f.Trace, fmt.Sprintf("GetMatchDetails:%d", len(ids)))
	if f.GetMatchDetailsFunc != nil {
		return f.GetMatchDetailsFunc(ctx, ids)
	}
	out := make([]sharedtypes.MatchDetail, 0, len(ids))
	for _, id := range ids {
		if d, ok := f.Details[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// FakeResolver stands in for the identity service so assembler tests
// control exactly which accounts are retrievable.
type FakeResolver struct {
	Trace []string

	ResolveFunc      func(ctx context.Context, teams [][]sharedtypes.MatchPlayer, window sharedtypes.TimeWindow) (*identityservice.Resolution, error)
	FuzzyResolveFunc func(ctx context.Context, resolution *identityservice.Resolution, teamAccounts [][]halo.Account) (int, error)

	// FuzzyTeamAccounts captures what the assembler handed to the late pass.
	FuzzyTeamAccounts [][]halo.Account
}

func (f *FakeResolver) Resolve(ctx context.Context, teams [][]sharedtypes.MatchPlayer, window sharedtypes.TimeWindow) (*identityservice.Resolution, error) {
	f.Trace = append(f.Trace, "Resolve")
	if f.ResolveFunc != nil {
		return f.ResolveFunc(ctx, teams, window)
	}
	return &identityservice.Resolution{}, nil
}

func (f *FakeResolver) FuzzyResolve(ctx context.Context, resolution *identityservice.Resolution, teamAccounts [][]halo.Account) (int, error) {
	f.Trace = append(f.Trace, "FuzzyResolve")
	f.FuzzyTeamAccounts = teamAccounts
	if f.FuzzyResolveFunc != nil {
		return f.FuzzyResolveFunc(ctx, resolution, teamAccounts)
	}
	return 0, nil
}

func newTestService(client StatsClient, resolver identityservice.Service) *SeriesService {
	return NewSeriesService(
		client,
		resolver,
		observability.NoOpLogger,
		observability.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test"),
	)
}
