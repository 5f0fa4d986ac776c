package timelineservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

var (
	t0 = time.Date(2025, 8, 12, 20, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Minute)
	t2 = t0.Add(70 * time.Minute)

	playerA = sharedtypes.MatchPlayer{ID: "a", Username: "alpha"}
	playerB = sharedtypes.MatchPlayer{ID: "b", Username: "bravo"}
	playerC = sharedtypes.MatchPlayer{ID: "c", Username: "charlie"}
	playerD = sharedtypes.MatchPlayer{ID: "d", Username: "delta"}
	playerE = sharedtypes.MatchPlayer{ID: "e", Username: "echo"}

	testRef = timelineevents.QueueRef{
		GuildID:         "guild-1",
		ChannelID:       "channel-1",
		SourceChannelID: "source-1",
		QueueNumber:     7,
	}
	testKey = timelinedb.KeyFor(testRef)
)

func winnerIndex(i int) *int { return &i }

func seedTimeline(repo *FakeTimelineRepository, events ...timelineevents.TimelineEvent) {
	repo.Timelines[testKey] = events
}

func match(id sharedtypes.MatchID, start time.Time) sharedtypes.MatchDetail {
	return sharedtypes.MatchDetail{MatchID: id, StartTime: start, Duration: 10 * time.Minute}
}

func TestReplaySubstitutionSplitsWindows(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA, playerB}, {playerC, playerD}},
		}},
		timelineevents.TimelineEvent{Timestamp: t1, Payload: timelineevents.Substitution{
			QueueRef:  testRef,
			PlayerOut: playerB,
			PlayerIn:  playerE,
			TeamIndex: 0,
		}},
		timelineevents.TimelineEvent{Timestamp: t2, Payload: timelineevents.MatchCompleted{
			QueueRef:         testRef,
			WinningTeamIndex: winnerIndex(0),
		}},
	)

	assembler := &FakeAssembler{
		AssembleFunc: func(_ context.Context, _ [][]sharedtypes.MatchPlayer, start, _ time.Time, _ bool) ([]sharedtypes.MatchDetail, error) {
			if start.Equal(t0) {
				return []sharedtypes.MatchDetail{match("m1", t0.Add(5*time.Minute))}, nil
			}
			return []sharedtypes.MatchDetail{match("m2", t1.Add(5*time.Minute))}, nil
		},
	}
	svc := newTestService(repo, assembler)

	result, err := svc.Replay(context.Background(), testKey)
	require.NoError(t, err)

	require.Len(t, assembler.Calls, 2)

	first := assembler.Calls[0]
	assert.True(t, first.Start.Equal(t0) && first.End.Equal(t1))
	assert.Equal(t, [][]sharedtypes.MatchPlayer{{playerA, playerB}, {playerC, playerD}}, first.Teams)
	assert.True(t, first.IsSubSeries)

	second := assembler.Calls[1]
	assert.True(t, second.Start.Equal(t1) && second.End.Equal(t2))
	assert.Equal(t, [][]sharedtypes.MatchPlayer{{playerA, playerE}, {playerC, playerD}}, second.Teams)
	assert.True(t, second.IsSubSeries)

	require.Len(t, result.Matches, 2)
	assert.Equal(t, sharedtypes.MatchID("m1"), result.Matches[0].MatchID)
	assert.Equal(t, sharedtypes.MatchID("m2"), result.Matches[1].MatchID)
	require.NotNil(t, result.WinningTeamIndex)
	assert.Equal(t, 0, *result.WinningTeamIndex)

	// Cleared on success.
	assert.Contains(t, repo.Trace, "Clear")
	assert.NotContains(t, repo.Timelines, testKey)
}

func TestReplayNoSubstitutionsIsOneWindow(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA}, {playerC}},
		}},
		timelineevents.TimelineEvent{Timestamp: t2, Payload: timelineevents.MatchCompleted{
			QueueRef:         testRef,
			WinningTeamIndex: winnerIndex(1),
		}},
	)
	assembler := &FakeAssembler{}
	svc := newTestService(repo, assembler)

	_, err := svc.Replay(context.Background(), testKey)
	require.NoError(t, err)

	require.Len(t, assembler.Calls, 1)
	call := assembler.Calls[0]
	assert.True(t, call.Start.Equal(t0) && call.End.Equal(t2))
	assert.Equal(t, [][]sharedtypes.MatchPlayer{{playerA}, {playerC}}, call.Teams)
}

func TestReplayMatchCancelledClearsWithoutAssembling(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA}, {playerC}},
		}},
		timelineevents.TimelineEvent{Timestamp: t1, Payload: timelineevents.MatchCancelled{QueueRef: testRef}},
	)
	assembler := &FakeAssembler{}
	svc := newTestService(repo, assembler)

	result, err := svc.Replay(context.Background(), testKey)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Empty(t, assembler.Calls)
	assert.NotContains(t, repo.Timelines, testKey)
}

func TestReplayNoWinnerIsCancelled(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA}, {playerC}},
		}},
		timelineevents.TimelineEvent{Timestamp: t2, Payload: timelineevents.MatchCompleted{QueueRef: testRef}},
	)
	assembler := &FakeAssembler{}
	svc := newTestService(repo, assembler)

	result, err := svc.Replay(context.Background(), testKey)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Empty(t, assembler.Calls)
	assert.NotContains(t, repo.Timelines, testKey)
}

func TestReplayMissingTimeline(t *testing.T) {
	svc := newTestService(NewFakeTimelineRepository(), &FakeAssembler{})

	_, err := svc.Replay(context.Background(), testKey)
	require.Error(t, err)

	uf, ok := errs.AsUserFacing(err)
	require.True(t, ok)
	assert.Equal(t, errs.SeverityWarning, uf.Severity)
}

func TestReplayOneFailedWindowIsSkipped(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA, playerB}, {playerC, playerD}},
		}},
		timelineevents.TimelineEvent{Timestamp: t1, Payload: timelineevents.Substitution{
			QueueRef: testRef, PlayerOut: playerB, PlayerIn: playerE, TeamIndex: 0,
		}},
		timelineevents.TimelineEvent{Timestamp: t2, Payload: timelineevents.MatchCompleted{
			QueueRef: testRef, WinningTeamIndex: winnerIndex(0),
		}},
	)
	assembler := &FakeAssembler{
		AssembleFunc: func(_ context.Context, _ [][]sharedtypes.MatchPlayer, start, _ time.Time, _ bool) ([]sharedtypes.MatchDetail, error) {
			if start.Equal(t0) {
				return nil, errors.New("upstream outage")
			}
			return []sharedtypes.MatchDetail{match("m2", t1.Add(5*time.Minute))}, nil
		},
	}
	svc := newTestService(repo, assembler)

	result, err := svc.Replay(context.Background(), testKey)
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, sharedtypes.MatchID("m2"), result.Matches[0].MatchID)
}

func TestReplayAllWindowsFailedCarriesResumptionToken(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA, playerB}, {playerC, playerD}},
		}},
		timelineevents.TimelineEvent{Timestamp: t1, Payload: timelineevents.Substitution{
			QueueRef: testRef, PlayerOut: playerB, PlayerIn: playerE, TeamIndex: 0,
		}},
		timelineevents.TimelineEvent{Timestamp: t2, Payload: timelineevents.MatchCompleted{
			QueueRef: testRef, WinningTeamIndex: winnerIndex(0),
		}},
	)
	assembler := &FakeAssembler{
		AssembleFunc: func(context.Context, [][]sharedtypes.MatchPlayer, time.Time, time.Time, bool) ([]sharedtypes.MatchDetail, error) {
			return nil, errors.New("upstream outage")
		},
	}
	svc := newTestService(repo, assembler)

	_, err := svc.Replay(context.Background(), testKey)
	require.Error(t, err)

	uf, ok := errs.AsUserFacing(err)
	require.True(t, ok)
	assert.Equal(t, errs.SeverityError, uf.Severity)
	assert.True(t, uf.HasAction(errs.ActionRetry))

	token, ok := uf.Data["resumption_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	claims, err := errs.ParseResumptionToken(token, testTokenSecret)
	require.NoError(t, err)
	assert.Equal(t, testRef.GuildID, claims.GuildID)
	assert.Equal(t, testRef.QueueNumber, claims.QueueNumber)
	assert.True(t, claims.StartedAt.Equal(t0))
	assert.True(t, claims.CompletedAt.Equal(t2))
	require.Len(t, claims.Substitutions, 1)

	// The failed reconstruction leaves the timeline for its TTL.
	assert.Contains(t, repo.Timelines, testKey)
}

func TestRetryIsEquivalentToReplay(t *testing.T) {
	claims := errs.ResumptionClaims{
		GuildID:     testRef.GuildID,
		ChannelID:   testRef.ChannelID,
		QueueNumber: testRef.QueueNumber,
		StartedAt:   t0,
		CompletedAt: t2,
		Teams:       [][]sharedtypes.MatchPlayer{{playerA, playerB}, {playerC, playerD}},
		Substitutions: []sharedtypes.Substitution{{
			PlayerOut:  playerB,
			PlayerIn:   playerE,
			TeamIndex:  0,
			OccurredAt: t1,
		}},
	}
	token, err := errs.SignResumptionToken(claims, testTokenSecret, time.Hour)
	require.NoError(t, err)

	assembler := &FakeAssembler{
		AssembleFunc: func(_ context.Context, _ [][]sharedtypes.MatchPlayer, start, _ time.Time, _ bool) ([]sharedtypes.MatchDetail, error) {
			return []sharedtypes.MatchDetail{match(sharedtypes.MatchID("m-"+start.Format("150405")), start)}, nil
		},
	}
	svc := newTestService(NewFakeTimelineRepository(), assembler)

	result, err := svc.Retry(context.Background(), token)
	require.NoError(t, err)

	// Same two windows the timeline walk would have produced.
	require.Len(t, assembler.Calls, 2)
	assert.True(t, assembler.Calls[0].Start.Equal(t0) && assembler.Calls[0].End.Equal(t1))
	assert.True(t, assembler.Calls[1].Start.Equal(t1) && assembler.Calls[1].End.Equal(t2))
	assert.Equal(t, [][]sharedtypes.MatchPlayer{{playerA, playerE}, {playerC, playerD}}, assembler.Calls[1].Teams)
	assert.Len(t, result.Matches, 2)
}

func TestRetryRejectsTamperedToken(t *testing.T) {
	claims := errs.ResumptionClaims{GuildID: testRef.GuildID, StartedAt: t0, CompletedAt: t2}
	token, err := errs.SignResumptionToken(claims, []byte("some-other-secret"), time.Hour)
	require.NoError(t, err)

	svc := newTestService(NewFakeTimelineRepository(), &FakeAssembler{})

	_, err = svc.Retry(context.Background(), token)
	require.Error(t, err)

	uf, ok := errs.AsUserFacing(err)
	require.True(t, ok)
	assert.Equal(t, errs.SeverityError, uf.Severity)
}

func TestAppendStoresEventUnderDerivedKey(t *testing.T) {
	repo := NewFakeTimelineRepository()
	svc := newTestService(repo, &FakeAssembler{})

	err := svc.Append(context.Background(), timelineevents.TimelineEvent{
		Timestamp: t0,
		Payload:   timelineevents.JoinQueue{QueueRef: testRef, Player: playerA},
	})
	require.NoError(t, err)

	require.Len(t, repo.Timelines[testKey], 1)
	assert.Equal(t, timelineevents.ActionJoinQueue, repo.Timelines[testKey][0].Payload.Action())
}

func TestReplayQueueStillOpen(t *testing.T) {
	repo := NewFakeTimelineRepository()
	seedTimeline(repo,
		timelineevents.TimelineEvent{Timestamp: t0, Payload: timelineevents.TeamsCreated{
			QueueRef: testRef,
			Teams:    [][]sharedtypes.MatchPlayer{{playerA}, {playerC}},
		}},
	)
	svc := newTestService(repo, &FakeAssembler{})

	_, err := svc.Replay(context.Background(), testKey)
	require.Error(t, err)

	uf, ok := errs.AsUserFacing(err)
	require.True(t, ok)
	assert.True(t, uf.HasAction(errs.ActionRetry))
	// Still open, so nothing was cleared.
	assert.Contains(t, repo.Timelines, testKey)
}
