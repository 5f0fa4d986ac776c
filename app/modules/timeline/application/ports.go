package timelineservice

import (
	"context"
	"time"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// SeriesAssembler is the slice of the series module replay needs: one
// resolve-and-assemble call per substitution-bounded window.
type SeriesAssembler interface {
	AssembleForTeams(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error)
}
