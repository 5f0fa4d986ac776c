package identityservice

import (
	"context"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// AccountFinder looks accounts up by display name. A missing account is
// (nil, nil), not an error.
type AccountFinder interface {
	FindByGamertag(ctx context.Context, gamertag string) (*halo.Account, error)
}

// HistoryProbe reports whether an account's match history is fetchable.
type HistoryProbe interface {
	HasRetrievableHistory(ctx context.Context, id sharedtypes.XboxUserID) (bool, error)
}
