package trackerservice

import (
	"context"
	"time"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// SeriesAssembler is the slice of the series module a tick needs.
type SeriesAssembler interface {
	AssembleForTeams(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error)
}

// Messenger is the outbound chat surface. Failures wrap errs.ErrRetryLater
// for rate limits and errs.ErrTargetGone for permanently missing targets.
type Messenger interface {
	CreateMessage(ctx context.Context, channelID sharedtypes.ChannelID, content string) (sharedtypes.MessageID, error)
	EditMessage(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, content string) error
	DeleteMessage(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) error
}

// TickScheduler arms and cancels future tracker ticks.
type TickScheduler interface {
	ScheduleTick(ctx context.Context, key trackerdb.TrackerKey, at time.Time) error
	CancelTicks(ctx context.Context, key trackerdb.TrackerKey) error
}
