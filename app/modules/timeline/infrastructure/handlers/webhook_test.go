package timelinehandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelineservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/application"
	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

const (
	testGuild   = sharedtypes.GuildID("guild-1")
	testChannel = sharedtypes.ChannelID("channel-1")
	testSecret  = "hunter2"
)

type fakeTimelineService struct {
	Trace []string

	AppendFunc func(ctx context.Context, event timelineevents.TimelineEvent) error
	ReplayFunc func(ctx context.Context, key timelinedb.TimelineKey) (*timelineservice.ReplayResult, error)
	RetryFunc  func(ctx context.Context, token string) (*timelineservice.ReplayResult, error)
}

func (f *fakeTimelineService) Append(ctx context.Context, event timelineevents.TimelineEvent) error {
	f.Trace = append(f.Trace, "Append:"+string(event.Payload.Action()))
	if f.AppendFunc != nil {
		return f.AppendFunc(ctx, event)
	}
	return nil
}

func (f *fakeTimelineService) Replay(ctx context.Context, key timelinedb.TimelineKey) (*timelineservice.ReplayResult, error) {
	f.Trace = append(f.Trace, "Replay")
	if f.ReplayFunc != nil {
		return f.ReplayFunc(ctx, key)
	}
	return &timelineservice.ReplayResult{Key: key}, nil
}

func (f *fakeTimelineService) Retry(ctx context.Context, token string) (*timelineservice.ReplayResult, error) {
	f.Trace = append(f.Trace, "Retry")
	if f.RetryFunc != nil {
		return f.RetryFunc(ctx, token)
	}
	return &timelineservice.ReplayResult{}, nil
}

type fakeSecretRepository struct {
	Hashes map[sharedtypes.ChannelID]string
}

func (f *fakeSecretRepository) GetSecretHash(_ context.Context, _ sharedtypes.GuildID, channelID sharedtypes.ChannelID) (string, error) {
	hash, ok := f.Hashes[channelID]
	if !ok {
		return "", errs.ErrNotFound
	}
	return hash, nil
}

func (f *fakeSecretRepository) StoreSecretHash(_ context.Context, _ sharedtypes.GuildID, channelID sharedtypes.ChannelID, hash string) error {
	f.Hashes[channelID] = hash
	return nil
}

type fakePublisher struct {
	Published map[string][]*message.Message
}

func (f *fakePublisher) Publish(topic string, messages ...*message.Message) error {
	if f.Published == nil {
		f.Published = make(map[string][]*message.Message)
	}
	f.Published[topic] = append(f.Published[topic], messages...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func newTestHandlers(svc *fakeTimelineService) (*WebhookHandlers, *fakePublisher) {
	secrets := &fakeSecretRepository{Hashes: map[sharedtypes.ChannelID]string{
		testChannel: timelinedb.HashSecret(testGuild, testSecret),
	}}
	publisher := &fakePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWebhookHandlers(svc, secrets, publisher, logger), publisher
}

func postEvent(t *testing.T, h *WebhookHandlers, secret string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/queue", bytes.NewReader(data))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.HandleQueueEvent(rec, req)
	return rec
}

func joinBody() map[string]any {
	return map[string]any{
		"action":       "JOIN_QUEUE",
		"guild_id":     string(testGuild),
		"channel_id":   string(testChannel),
		"queue_number": 7,
		"player":       map[string]any{"id": "u1", "username": "alpha"},
	}
}

func TestHandleQueueEventAppendsNonTerminal(t *testing.T) {
	svc := &fakeTimelineService{}
	h, _ := newTestHandlers(svc)

	rec := postEvent(t, h, testSecret, joinBody())

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"Append:JOIN_QUEUE"}, svc.Trace)
}

func TestHandleQueueEventRejectsMissingSecret(t *testing.T) {
	svc := &fakeTimelineService{}
	h, _ := newTestHandlers(svc)

	rec := postEvent(t, h, "", joinBody())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.Trace)
}

func TestHandleQueueEventRejectsWrongSecret(t *testing.T) {
	svc := &fakeTimelineService{}
	h, _ := newTestHandlers(svc)

	rec := postEvent(t, h, "not-the-secret", joinBody())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.Trace)
}

func TestHandleQueueEventRejectsUnknownAction(t *testing.T) {
	svc := &fakeTimelineService{}
	h, _ := newTestHandlers(svc)

	body := joinBody()
	body["action"] = "MATCH_EXPLODED"
	rec := postEvent(t, h, testSecret, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.Trace)
}

func TestHandleQueueEventTerminalTriggersReplayAndPublish(t *testing.T) {
	svc := &fakeTimelineService{
		ReplayFunc: func(_ context.Context, key timelinedb.TimelineKey) (*timelineservice.ReplayResult, error) {
			return &timelineservice.ReplayResult{
				Key:     key,
				Matches: []sharedtypes.MatchDetail{{MatchID: "m1"}},
			}, nil
		},
	}
	h, publisher := newTestHandlers(svc)

	body := joinBody()
	body["action"] = "MATCH_COMPLETED"
	body["winning_team_index"] = 0
	delete(body, "player")
	rec := postEvent(t, h, testSecret, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Append:MATCH_COMPLETED", "Replay"}, svc.Trace)
	require.Len(t, publisher.Published[timelineevents.TopicSeriesReconstructed], 1)

	var result timelineservice.ReplayResult
	require.NoError(t, json.Unmarshal(publisher.Published[timelineevents.TopicSeriesReconstructed][0].Payload, &result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, sharedtypes.MatchID("m1"), result.Matches[0].MatchID)
}

func TestHandleQueueEventCancelledPublishesNothing(t *testing.T) {
	svc := &fakeTimelineService{
		ReplayFunc: func(_ context.Context, key timelinedb.TimelineKey) (*timelineservice.ReplayResult, error) {
			return &timelineservice.ReplayResult{Key: key, Cancelled: true}, nil
		},
	}
	h, publisher := newTestHandlers(svc)

	body := joinBody()
	body["action"] = "MATCH_CANCELLED"
	delete(body, "player")
	rec := postEvent(t, h, testSecret, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.Published[timelineevents.TopicSeriesReconstructed])
}

func TestHandleQueueEventReplayFailureRendersStructuredError(t *testing.T) {
	svc := &fakeTimelineService{
		ReplayFunc: func(context.Context, timelinedb.TimelineKey) (*timelineservice.ReplayResult, error) {
			return nil, errs.Errorf(nil, "failed to reconstruct the series", errs.ActionRetry).
				WithData("resumption_token", "tok-123")
		},
	}
	h, _ := newTestHandlers(svc)

	body := joinBody()
	body["action"] = "MATCH_COMPLETED"
	body["winning_team_index"] = 0
	delete(body, "player")
	rec := postEvent(t, h, testSecret, body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Message string         `json:"message"`
			Data    map[string]any `json:"data"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "tok-123", resp.Error.Data["resumption_token"])
}

func TestHandleRetry(t *testing.T) {
	var gotToken string
	svc := &fakeTimelineService{
		RetryFunc: func(_ context.Context, token string) (*timelineservice.ReplayResult, error) {
			gotToken = token
			return &timelineservice.ReplayResult{Matches: []sharedtypes.MatchDetail{{MatchID: "m1"}}}, nil
		},
	}
	h, publisher := newTestHandlers(svc)

	data, err := json.Marshal(map[string]string{"token": "tok-123"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/queue/retry", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.HandleRetry(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-123", gotToken)
	assert.Len(t, publisher.Published[timelineevents.TopicSeriesReconstructed], 1)
}
