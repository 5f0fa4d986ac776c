package seriesservice

import (
	"context"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// StatsClient is the slice of the game-stats API the assembler needs:
// newest-first paginated history per account and batched detail fetches.
type StatsClient interface {
	ListMatches(ctx context.Context, id sharedtypes.XboxUserID, start, count int) ([]sharedtypes.MatchSummary, error)
	GetMatchDetails(ctx context.Context, ids []sharedtypes.MatchID) ([]sharedtypes.MatchDetail, error)
}
