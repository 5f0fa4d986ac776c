package timelineservice

import (
	"context"
	"time"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Service is the timeline event store and replay contract. Replay walks
// the stored event log and reconstructs the queue's full match series;
// Retry re-derives an equivalent result from a resumption token after the
// timeline itself may already be gone.
type Service interface {
	Append(ctx context.Context, event timelineevents.TimelineEvent) error
	Replay(ctx context.Context, key timelinedb.TimelineKey) (*ReplayResult, error)
	Retry(ctx context.Context, token string) (*ReplayResult, error)
}

// ReplayResult is the reconstructed series for one completed queue.
type ReplayResult struct {
	Key         timelinedb.TimelineKey
	QueueNumber sharedtypes.QueueNumber

	Matches       []sharedtypes.MatchDetail
	Teams         [][]sharedtypes.MatchPlayer
	TeamNames     []string
	Substitutions []sharedtypes.Substitution

	StartedAt   time.Time
	CompletedAt time.Time

	// WinningTeamIndex is nil when the queue ended without a winner.
	WinningTeamIndex *int

	// Cancelled marks a terminal event that produced no series. The
	// timeline is cleared but there is nothing to post.
	Cancelled bool
}
