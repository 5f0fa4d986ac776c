package identitydb

import (
	"time"

	"github.com/uptrace/bun"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// AssociationReason records how a Discord user was mapped to an Xbox account.
type AssociationReason string

const (
	ReasonConnected         AssociationReason = "connected"
	ReasonManual            AssociationReason = "manual"
	ReasonUsernameSearch    AssociationReason = "username_search"
	ReasonDisplayNameSearch AssociationReason = "display_name_search"
	ReasonGameSimilarity    AssociationReason = "game_similarity"
	ReasonUnknown           AssociationReason = "unknown"
)

// GamesRetrievable is the trust signal for whether the account's match
// history can actually be fetched.
type GamesRetrievable string

const (
	GamesRetrievableYes     GamesRetrievable = "yes"
	GamesRetrievableNo      GamesRetrievable = "no"
	GamesRetrievableUnknown GamesRetrievable = "unknown"
)

// Association is one stored Discord-user to Xbox-account mapping. At most
// one row exists per Discord user; every resolution attempt updates it,
// including failed attempts.
type Association struct {
	bun.BaseModel `bun:"table:platform_associations,alias:pa"`

	DiscordUserID sharedtypes.UserID `bun:"discord_user_id,pk,type:varchar(20)"`
	// XboxUserID is empty while the user is unresolved.
	XboxUserID          sharedtypes.XboxUserID `bun:"xbox_user_id,nullzero,type:varchar(32)"`
	Reason              AssociationReason      `bun:"reason,notnull,default:'unknown',type:varchar(24)"`
	GamesRetrievable    GamesRetrievable       `bun:"games_retrievable,notnull,default:'unknown',type:varchar(8)"`
	DisplayNameSearched string                 `bun:"display_name_searched,nullzero,type:varchar(64)"`
	AssociatedAt        time.Time              `bun:"associated_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time              `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Resolved reports whether the association carries an Xbox account.
func (a *Association) Resolved() bool {
	return a != nil && a.XboxUserID != ""
}

// Usable reports whether the association can feed series assembly directly:
// resolved and confirmed retrievable.
func (a *Association) Usable() bool {
	return a.Resolved() && a.GamesRetrievable == GamesRetrievableYes
}
