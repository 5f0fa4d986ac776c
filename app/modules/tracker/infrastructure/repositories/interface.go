package trackerdb

import (
	"context"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Repository is the tracker state store. Get returns errs.ErrNotFound for
// missing trackers; a tick that lands after a stop relies on that to abort
// instead of resurrecting state. ListByQueue finds every tracker watching
// one queue regardless of owning user, which is how webhook-driven
// substitutions fan out.
type Repository interface {
	Get(ctx context.Context, key TrackerKey) (*Tracker, error)
	ListByQueue(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID, queueNumber sharedtypes.QueueNumber) ([]*Tracker, error)
	Save(ctx context.Context, tracker *Tracker) error
	Delete(ctx context.Context, key TrackerKey) error
}
