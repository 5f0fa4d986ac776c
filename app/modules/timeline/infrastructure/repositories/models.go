package timelinedb

import (
	"time"

	"github.com/uptrace/bun"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// DefaultTTL is how long an open timeline survives without terminal
// completion before it is eligible for purge.
const DefaultTTL = 24 * time.Hour

// TimelineKey identifies one queue's event log.
type TimelineKey struct {
	GuildID         sharedtypes.GuildID
	ChannelID       sharedtypes.ChannelID
	SourceChannelID sharedtypes.ChannelID
}

// KeyFor derives the storage key from an event's queue reference.
func KeyFor(ref timelineevents.QueueRef) TimelineKey {
	return TimelineKey{
		GuildID:         ref.GuildID,
		ChannelID:       ref.ChannelID,
		SourceChannelID: ref.SourceChannelID,
	}
}

// Timeline is the persisted append-only event log for one queue.
type Timeline struct {
	bun.BaseModel `bun:"table:queue_timelines,alias:qt"`

	GuildID         sharedtypes.GuildID            `bun:"guild_id,pk,notnull"`
	ChannelID       sharedtypes.ChannelID          `bun:"channel_id,pk,notnull"`
	SourceChannelID sharedtypes.ChannelID          `bun:"source_channel_id,pk,notnull"`
	Events          []timelineevents.TimelineEvent `bun:"events,type:jsonb,notnull"`
	CreatedAt       time.Time                      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time                      `bun:"updated_at,notnull,default:current_timestamp"`
	ExpiresAt       time.Time                      `bun:"expires_at,notnull"`
}

// WebhookSecret stores the HMAC hash of a channel's shared webhook secret.
// The plaintext secret is never persisted.
type WebhookSecret struct {
	bun.BaseModel `bun:"table:webhook_secrets,alias:ws"`

	GuildID    sharedtypes.GuildID   `bun:"guild_id,pk,notnull"`
	ChannelID  sharedtypes.ChannelID `bun:"channel_id,pk,notnull"`
	SecretHash string                `bun:"secret_hash,notnull"`
	CreatedAt  time.Time             `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time             `bun:"updated_at,notnull,default:current_timestamp"`
}
