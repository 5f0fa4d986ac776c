package timelinedb

import (
	"context"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Repository is the timeline event log store. Get returns errs.ErrNotFound
// for missing or expired timelines. Append is read-modify-write against the
// latest persisted value; concurrent appends for the same key can race,
// which is accepted because webhooks are serialized per queue upstream.
type Repository interface {
	Get(ctx context.Context, key TimelineKey) ([]timelineevents.TimelineEvent, error)
	Append(ctx context.Context, key TimelineKey, event timelineevents.TimelineEvent) error
	Clear(ctx context.Context, key TimelineKey) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// SecretRepository stores per-channel webhook secret hashes.
type SecretRepository interface {
	GetSecretHash(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID) (string, error)
	StoreSecretHash(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID, hash string) error
}
