package timelinehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	timelineservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/application"
	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
)

// SecretHeader carries the per-channel shared webhook secret.
const SecretHeader = "X-Webhook-Secret"

// WebhookHandlers accepts queue events over HTTP, appends them to the
// timeline, and kicks off replay on terminal events.
type WebhookHandlers struct {
	timeline  timelineservice.Service
	secrets   timelinedb.SecretRepository
	publisher message.Publisher
	logger    *slog.Logger
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(
	timeline timelineservice.Service,
	secrets timelinedb.SecretRepository,
	publisher message.Publisher,
	logger *slog.Logger,
) *WebhookHandlers {
	return &WebhookHandlers{
		timeline:  timeline,
		secrets:   secrets,
		publisher: publisher,
		logger:    logger,
	}
}

// Routes mounts the webhook endpoints.
func (h *WebhookHandlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(correlationID)
	r.Post("/queue", h.HandleQueueEvent)
	r.Post("/queue/retry", h.HandleRetry)
	return r
}

// correlationID tags each request so webhook logs and published messages
// can be tied back together.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := attr.WithCorrelationID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// webhookBody is the flat inbound shape: the action discriminant plus the
// action's own fields at top level.
type webhookBody struct {
	Action    timelineevents.Action `json:"action"`
	Timestamp time.Time             `json:"timestamp"`
	timelineevents.QueueRef
}

// HandleQueueEvent authenticates, appends, and on a terminal event replays
// the timeline and publishes the reconstructed series.
func (h *WebhookHandlers) HandleQueueEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	var head webhookBody
	if err := json.Unmarshal(body, &head); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if head.GuildID == "" || head.ChannelID == "" {
		http.Error(w, "Missing guild or channel id", http.StatusBadRequest)
		return
	}

	if !h.authenticate(w, r, head) {
		return
	}

	payload, err := timelineevents.DecodePayload(head.Action, body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid event: %v", err), http.StatusBadRequest)
		return
	}

	timestamp := head.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	event := timelineevents.TimelineEvent{Timestamp: timestamp, Payload: payload}

	if err := h.timeline.Append(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "Failed to append webhook event",
			attr.String("action", string(head.Action)),
			attr.Error(err),
		)
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
		return
	}

	h.publish(ctx, timelineevents.TopicQueueEventReceived, body)

	if !event.Terminal() {
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "recorded"})
		return
	}

	result, err := h.timeline.Replay(ctx, timelinedb.KeyFor(payload.Ref()))
	if err != nil {
		h.respondReplayError(ctx, w, err)
		return
	}
	if result.Cancelled {
		writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
		return
	}

	h.publishResult(ctx, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reconstructed",
		"match_count": len(result.Matches),
	})
}

// HandleRetry re-runs a failed reconstruction from a resumption token.
func (h *WebhookHandlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "Missing retry token", http.StatusBadRequest)
		return
	}

	result, err := h.timeline.Retry(ctx, req.Token)
	if err != nil {
		h.respondReplayError(ctx, w, err)
		return
	}

	h.publishResult(ctx, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reconstructed",
		"match_count": len(result.Matches),
	})
}

func (h *WebhookHandlers) authenticate(w http.ResponseWriter, r *http.Request, head webhookBody) bool {
	presented := r.Header.Get(SecretHeader)
	if presented == "" {
		http.Error(w, "Missing webhook secret", http.StatusUnauthorized)
		return false
	}

	storedHash, err := h.secrets.GetSecretHash(r.Context(), head.GuildID, head.ChannelID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			http.Error(w, "No webhook secret configured for this channel", http.StatusUnauthorized)
			return false
		}
		h.logger.ErrorContext(r.Context(), "Failed to load webhook secret", attr.Error(err))
		http.Error(w, "Failed to verify webhook secret", http.StatusInternalServerError)
		return false
	}

	if !timelinedb.VerifySecret(head.GuildID, presented, storedHash) {
		http.Error(w, "Invalid webhook secret", http.StatusUnauthorized)
		return false
	}
	return true
}

// respondReplayError maps the error taxonomy onto HTTP. Expected errors
// render as a structured payload; everything else is a 500.
func (h *WebhookHandlers) respondReplayError(ctx context.Context, w http.ResponseWriter, err error) {
	if uf, ok := errs.AsUserFacing(err); ok {
		status := http.StatusOK
		if uf.Severity == errs.SeverityError {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]any{
			"status": "failed",
			"error": map[string]any{
				"message":  uf.Message,
				"severity": uf.Severity,
				"actions":  uf.Actions,
				"data":     uf.Data,
			},
		})
		return
	}

	h.logger.ErrorContext(ctx, "Replay failed unexpectedly", attr.Error(err))
	http.Error(w, "Unexpected error, logged", http.StatusInternalServerError)
}

func (h *WebhookHandlers) publishResult(ctx context.Context, result *timelineservice.ReplayResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to marshal replay result", attr.Error(err))
		return
	}
	h.publish(ctx, timelineevents.TopicSeriesReconstructed, payload)
}

func (h *WebhookHandlers) publish(ctx context.Context, topic string, payload []byte) {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("correlation_id", attr.CorrelationIDFromContext(ctx))
	if err := h.publisher.Publish(topic, msg); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish message",
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
