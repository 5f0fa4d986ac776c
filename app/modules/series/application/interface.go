package seriesservice

import (
	"context"
	"time"

	identityservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/application"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Service is the series assembler contract. Assemble finds the common match
// history of already-resolved accounts inside the open interval (start,
// end); AssembleForTeams resolves the roster first and then assembles.
//
// isSubSeries marks a substitution-bounded slice of a larger timeline
// replay. It changes only error severity and propagation, never the
// algorithm.
type Service interface {
	Assemble(ctx context.Context, resolution *identityservice.Resolution, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error)
	AssembleForTeams(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error)
}
