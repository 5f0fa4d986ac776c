package trackerservice

import (
	"context"
	"time"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Service is the live tracker contract. Each tracker is keyed by
// (guild, channel, user, queue) and the host guarantees at most one
// invocation per key runs at a time, so every operation is a plain
// read-mutate-write.
type Service interface {
	Start(ctx context.Context, params StartParams) error
	Pause(ctx context.Context, key trackerdb.TrackerKey) error
	Resume(ctx context.Context, key trackerdb.TrackerKey) error
	// Stop reports found=false when no tracker exists; that is not an error.
	Stop(ctx context.Context, key trackerdb.TrackerKey) (found bool, err error)
	RecordSubstitution(ctx context.Context, key trackerdb.TrackerKey, sub sharedtypes.Substitution) error
	// Tick is invoked by the scheduler and re-arms its own next wake-up.
	Tick(ctx context.Context, key trackerdb.TrackerKey) error
}

// StartParams describes a new tracker.
type StartParams struct {
	Key            trackerdb.TrackerKey
	QueueStartTime time.Time
	Teams          [][]sharedtypes.MatchPlayer
	TeamNames      []string
}
