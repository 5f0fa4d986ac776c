package timelineevents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

var testRef = QueueRef{
	GuildID:         "guild-1",
	ChannelID:       "channel-1",
	SourceChannelID: "source-1",
	QueueNumber:     42,
}

func TestTimelineEventRoundTripsEveryAction(t *testing.T) {
	winner := 0
	events := []TimelineEvent{
		{Timestamp: time.Date(2025, 8, 12, 20, 0, 0, 0, time.UTC), Payload: JoinQueue{QueueRef: testRef, Player: sharedtypes.MatchPlayer{ID: "u1", Username: "alpha"}}},
		{Timestamp: time.Date(2025, 8, 12, 20, 1, 0, 0, time.UTC), Payload: LeaveQueue{QueueRef: testRef, Player: sharedtypes.MatchPlayer{ID: "u1", Username: "alpha"}}},
		{Timestamp: time.Date(2025, 8, 12, 20, 2, 0, 0, time.UTC), Payload: MatchCancelled{QueueRef: testRef}},
		{Timestamp: time.Date(2025, 8, 12, 20, 3, 0, 0, time.UTC), Payload: MatchStarted{QueueRef: testRef, Teams: [][]sharedtypes.MatchPlayer{{{ID: "u1", Username: "alpha"}}}}},
		{Timestamp: time.Date(2025, 8, 12, 20, 4, 0, 0, time.UTC), Payload: TeamsCreated{QueueRef: testRef, Teams: [][]sharedtypes.MatchPlayer{{{ID: "u1", Username: "alpha"}}}, TeamNames: []string{"Eagle"}}},
		{Timestamp: time.Date(2025, 8, 12, 20, 5, 0, 0, time.UTC), Payload: Substitution{QueueRef: testRef, PlayerOut: sharedtypes.MatchPlayer{ID: "u1", Username: "alpha"}, PlayerIn: sharedtypes.MatchPlayer{ID: "u2", Username: "bravo"}, TeamIndex: 0}},
		{Timestamp: time.Date(2025, 8, 12, 20, 6, 0, 0, time.UTC), Payload: MatchCompleted{QueueRef: testRef, WinningTeamIndex: &winner}},
	}

	for _, ev := range events {
		t.Run(string(ev.Payload.Action()), func(t *testing.T) {
			data, err := json.Marshal(ev)
			require.NoError(t, err)

			var decoded TimelineEvent
			require.NoError(t, json.Unmarshal(data, &decoded))

			assert.Equal(t, ev.Timestamp, decoded.Timestamp)
			assert.Equal(t, ev.Payload, decoded.Payload)
			assert.Equal(t, testRef, decoded.Payload.Ref())
		})
	}
}

func TestTeamsCreatedRoundTripsFullRosters(t *testing.T) {
	faker := gofakeit.New(7)

	teams := make([][]sharedtypes.MatchPlayer, 2)
	for i := range teams {
		for range 4 {
			teams[i] = append(teams[i], sharedtypes.MatchPlayer{
				ID:            sharedtypes.UserID(faker.UUID()),
				Username:      faker.Gamertag(),
				GuildNickname: faker.Gamertag(),
			})
		}
	}
	original := TimelineEvent{
		Timestamp: time.Date(2025, 8, 12, 21, 0, 0, 0, time.UTC),
		Payload:   TeamsCreated{QueueRef: testRef, Teams: teams, TeamNames: []string{"Eagle", "Cobra"}},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded TimelineEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePayloadRejectsUnknownAction(t *testing.T) {
	_, err := DecodePayload("MATCH_EXPLODED", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MATCH_EXPLODED")
}

func TestMatchCompletedNoWinnerOmitsIndex(t *testing.T) {
	data, err := json.Marshal(TimelineEvent{
		Timestamp: time.Now().UTC(),
		Payload:   MatchCompleted{QueueRef: testRef},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "winning_team_index")

	var decoded TimelineEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	completed, ok := decoded.Payload.(MatchCompleted)
	require.True(t, ok)
	assert.Nil(t, completed.WinningTeamIndex)
}

func TestTerminalEvents(t *testing.T) {
	assert.True(t, TimelineEvent{Payload: MatchCancelled{QueueRef: testRef}}.Terminal())
	assert.True(t, TimelineEvent{Payload: MatchCompleted{QueueRef: testRef}}.Terminal())
	assert.False(t, TimelineEvent{Payload: JoinQueue{QueueRef: testRef}}.Terminal())
	assert.False(t, TimelineEvent{Payload: Substitution{QueueRef: testRef}}.Terminal())
}
