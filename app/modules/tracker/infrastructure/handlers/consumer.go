package trackerhandlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	trackerservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/application"
	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// QueueEventConsumer feeds accepted webhook events into running trackers:
// substitutions patch rosters, terminal events tear trackers down.
type QueueEventConsumer struct {
	service  trackerservice.Service
	trackers trackerdb.Repository
	logger   *slog.Logger
}

// NewQueueEventConsumer creates a new QueueEventConsumer.
func NewQueueEventConsumer(
	service trackerservice.Service,
	trackers trackerdb.Repository,
	logger *slog.Logger,
) *QueueEventConsumer {
	return &QueueEventConsumer{service: service, trackers: trackers, logger: logger}
}

// Run consumes the queue event topic until the channel closes.
func (c *QueueEventConsumer) Run(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		if err := c.Handle(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "Failed to handle queue event",
				attr.String("message_id", msg.UUID),
				attr.Error(err),
			)
			msg.Nack()
			continue
		}
		msg.Ack()
	}
}

// Handle processes one webhook-mirrored queue event.
func (c *QueueEventConsumer) Handle(ctx context.Context, msg *message.Message) error {
	var head struct {
		Action timelineevents.Action `json:"action"`
	}
	if err := json.Unmarshal(msg.Payload, &head); err != nil {
		// Malformed payloads are dropped, not retried.
		c.logger.WarnContext(ctx, "Dropping malformed queue event", attr.Error(err))
		return nil
	}

	switch head.Action {
	case timelineevents.ActionSubstitution:
		return c.handleSubstitution(ctx, msg.Payload)
	case timelineevents.ActionMatchCompleted, timelineevents.ActionMatchCancelled:
		return c.handleTerminal(ctx, head.Action, msg.Payload)
	default:
		return nil
	}
}

func (c *QueueEventConsumer) handleSubstitution(ctx context.Context, payload []byte) error {
	decoded, err := timelineevents.DecodePayload(timelineevents.ActionSubstitution, payload)
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed substitution event", attr.Error(err))
		return nil
	}
	sub := decoded.(timelineevents.Substitution)

	trackers, err := c.trackers.ListByQueue(ctx, sub.GuildID, sub.ChannelID, sub.QueueNumber)
	if err != nil {
		return err
	}

	for _, tracker := range trackers {
		err := c.service.RecordSubstitution(ctx, tracker.Key(), sharedtypes.Substitution{
			PlayerOut: sub.PlayerOut,
			PlayerIn:  sub.PlayerIn,
			TeamIndex: sub.TeamIndex,
			TeamName:  sub.TeamName,
		})
		if err != nil {
			c.logger.WarnContext(ctx, "Failed to record substitution on tracker",
				attr.String("tracker", tracker.Key().String()),
				attr.Error(err),
			)
		}
	}
	return nil
}

func (c *QueueEventConsumer) handleTerminal(ctx context.Context, action timelineevents.Action, payload []byte) error {
	decoded, err := timelineevents.DecodePayload(action, payload)
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed terminal event", attr.Error(err))
		return nil
	}
	ref := decoded.Ref()

	trackers, err := c.trackers.ListByQueue(ctx, ref.GuildID, ref.ChannelID, ref.QueueNumber)
	if err != nil {
		return err
	}

	for _, tracker := range trackers {
		if _, err := c.service.Stop(ctx, tracker.Key()); err != nil {
			c.logger.WarnContext(ctx, "Failed to stop tracker for finished queue",
				attr.String("tracker", tracker.Key().String()),
				attr.Error(err),
			)
		}
	}
	return nil
}
