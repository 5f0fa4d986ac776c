package identitydb

import (
	"context"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Repository is the association store contract. Concurrent readers are
// expected; writes are last-write-wins (the store is an advisory cache, not
// a source of truth).
type Repository interface {
	// GetByDiscordUserIDs returns the stored associations for the given
	// users. Missing users are simply absent from the result.
	GetByDiscordUserIDs(ctx context.Context, ids []sharedtypes.UserID) (map[sharedtypes.UserID]Association, error)

	// UpsertBulk persists every association in one round trip, inserting or
	// overwriting by Discord user id.
	UpsertBulk(ctx context.Context, associations []Association) error
}
