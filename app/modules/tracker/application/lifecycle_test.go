package trackerservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

var testKey = trackerdb.TrackerKey{
	GuildID:     "guild-1",
	ChannelID:   "channel-1",
	UserID:      "user-1",
	QueueNumber: 7,
}

func testTeams() [][]sharedtypes.MatchPlayer {
	return [][]sharedtypes.MatchPlayer{
		{{ID: "a", Username: "alpha"}, {ID: "b", Username: "bravo"}},
		{{ID: "c", Username: "charlie"}, {ID: "d", Username: "delta"}},
	}
}

func startTracker(t *testing.T, svc *TrackerService) {
	t.Helper()
	require.NoError(t, svc.Start(context.Background(), StartParams{
		Key:            testKey,
		QueueStartTime: time.Now().Add(-5 * time.Minute),
		Teams:          testTeams(),
		TeamNames:      []string{"Eagle", "Cobra"},
	}))
}

func TestStartPersistsActiveAndArmsOneTick(t *testing.T) {
	svc, deps := newTestService()

	startTracker(t, svc)

	tracker, ok := deps.repo.Trackers[testKey]
	require.True(t, ok)
	assert.Equal(t, trackerdb.StatusActive, tracker.Status)
	assert.Equal(t, 0, tracker.CheckCount)
	assert.NotEmpty(t, tracker.LiveMessageID)

	assert.Len(t, deps.scheduler.Scheduled, 1)
	assert.True(t, deps.scheduler.Scheduled[0].After(time.Now()))
}

func TestStartRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService()
	startTracker(t, svc)

	err := svc.Start(context.Background(), StartParams{Key: testKey, Teams: testTeams()})
	require.Error(t, err)

	uf, ok := errs.AsUserFacing(err)
	require.True(t, ok)
	assert.Equal(t, errs.SeverityWarning, uf.Severity)
}

func TestPauseSuppressesTickWithoutCancelling(t *testing.T) {
	svc, deps := newTestService()
	startTracker(t, svc)
	armedAtStart := len(deps.scheduler.Scheduled)

	require.NoError(t, svc.Pause(context.Background(), testKey))
	assert.Equal(t, trackerdb.StatusPaused, deps.repo.Trackers[testKey].Status)
	// Pause never cancels the in-flight schedule.
	assert.Equal(t, 0, deps.scheduler.Cancels)

	// The already-armed tick fires, observes paused, and does not re-arm.
	require.NoError(t, svc.Tick(context.Background(), testKey))
	assert.Equal(t, 0, deps.repo.Trackers[testKey].CheckCount)
	assert.Len(t, deps.scheduler.Scheduled, armedAtStart)
	assert.Equal(t, 0, deps.assembler.Calls)
}

func TestResumeReArms(t *testing.T) {
	svc, deps := newTestService()
	startTracker(t, svc)
	require.NoError(t, svc.Pause(context.Background(), testKey))
	armed := len(deps.scheduler.Scheduled)

	require.NoError(t, svc.Resume(context.Background(), testKey))

	assert.Equal(t, trackerdb.StatusActive, deps.repo.Trackers[testKey].Status)
	assert.Len(t, deps.scheduler.Scheduled, armed+1)
}

func TestResumeRequiresPaused(t *testing.T) {
	svc, _ := newTestService()
	startTracker(t, svc)

	err := svc.Resume(context.Background(), testKey)
	require.Error(t, err)

	_, ok := errs.AsUserFacing(err)
	assert.True(t, ok)
}

func TestStopCancelsAndPurges(t *testing.T) {
	svc, deps := newTestService()
	startTracker(t, svc)

	found, err := svc.Stop(context.Background(), testKey)
	require.NoError(t, err)

	assert.True(t, found)
	assert.Equal(t, 1, deps.scheduler.Cancels)
	assert.NotContains(t, deps.repo.Trackers, testKey)
}

func TestStopMissingTrackerIsNotAnError(t *testing.T) {
	svc, deps := newTestService()

	found, err := svc.Stop(context.Background(), testKey)
	require.NoError(t, err)

	assert.False(t, found)
	assert.Equal(t, 0, deps.scheduler.Cancels)
}

func TestRecordSubstitutionOnlyAffectsState(t *testing.T) {
	svc, deps := newTestService()
	startTracker(t, svc)
	armed := len(deps.scheduler.Scheduled)

	sub := sharedtypes.Substitution{
		PlayerOut:  sharedtypes.MatchPlayer{ID: "b", Username: "bravo"},
		PlayerIn:   sharedtypes.MatchPlayer{ID: "e", Username: "echo"},
		TeamIndex:  0,
		OccurredAt: time.Now(),
	}
	require.NoError(t, svc.RecordSubstitution(context.Background(), testKey, sub))

	tracker := deps.repo.Trackers[testKey]
	require.Len(t, tracker.Substitutions, 1)
	// Scheduling is untouched.
	assert.Len(t, deps.scheduler.Scheduled, armed)

	// The swap shows up in the roster the next tick assembles with.
	teams := tracker.CurrentTeams()
	assert.Equal(t, sharedtypes.UserID("e"), teams[0][1].ID)
}

func TestRecordSubstitutionMissingTracker(t *testing.T) {
	svc, _ := newTestService()

	err := svc.RecordSubstitution(context.Background(), testKey, sharedtypes.Substitution{})
	require.Error(t, err)

	_, ok := errs.AsUserFacing(err)
	assert.True(t, ok)
}
