package identityservice

import (
	"context"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	identitydb "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/infrastructure/repositories"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Service is the identity resolver contract. Resolve never fails a whole
// run on partial failure; it records an association (possibly unresolved)
// for every participant. FuzzyResolve runs the team-scoped similarity pass
// against ground-truth accounts (usually a fetched match roster) and
// persists whatever it assigns.
type Service interface {
	Resolve(ctx context.Context, teams [][]sharedtypes.MatchPlayer, window sharedtypes.TimeWindow) (*Resolution, error)
	FuzzyResolve(ctx context.Context, resolution *Resolution, teamAccounts [][]halo.Account) (int, error)
}

// Entry is the resolution outcome for one participant.
type Entry struct {
	Player      sharedtypes.MatchPlayer
	TeamIndex   int
	Account     *halo.Account
	Reason      identitydb.AssociationReason
	Confidence  float64
	Retrievable bool
}

// Resolved reports whether the entry carries an account.
func (e *Entry) Resolved() bool { return e.Account != nil }

// Resolution is the outcome of one resolver run over a full roster.
type Resolution struct {
	Entries []*Entry
}

// ResolvedAccount pairs a participant with its usable game account.
type ResolvedAccount struct {
	Player     sharedtypes.MatchPlayer
	TeamIndex  int
	XboxUserID sharedtypes.XboxUserID
	Gamertag   string
}

// RetrievableAccounts returns the participants whose accounts can feed
// series assembly.
func (r *Resolution) RetrievableAccounts() []ResolvedAccount {
	var out []ResolvedAccount
	for _, e := range r.Entries {
		if e.Resolved() && e.Retrievable {
			out = append(out, ResolvedAccount{
				Player:     e.Player,
				TeamIndex:  e.TeamIndex,
				XboxUserID: e.Account.ID,
				Gamertag:   e.Account.Gamertag,
			})
		}
	}
	return out
}

// UnresolvedOnTeam returns the entries on one team still lacking an account.
func (r *Resolution) UnresolvedOnTeam(teamIndex int) []*Entry {
	var out []*Entry
	for _, e := range r.Entries {
		if e.TeamIndex == teamIndex && !e.Resolved() {
			out = append(out, e)
		}
	}
	return out
}

// TeamCount returns the number of distinct teams in the resolution.
func (r *Resolution) TeamCount() int {
	max := -1
	for _, e := range r.Entries {
		if e.TeamIndex > max {
			max = e.TeamIndex
		}
	}
	return max + 1
}
