package identityservice

import (
	"context"
	"fmt"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	identitydb "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Resolve maps every participant to a game account where it can.
// Resolution order per participant:
//  1. an existing stored, retrievable association
//  2. re-query of a previous fuzzy match that was never confirmed retrievable
//  3. lookup by username, then by display name when it differs
//
// The team-scoped fuzzy pass is separate (FuzzyResolve) because it needs
// ground-truth accounts from a fetched match roster.
//
// Every attempt, success or failure, updates the association store.
func (s *IdentityService) Resolve(ctx context.Context, teams [][]sharedtypes.MatchPlayer, window sharedtypes.TimeWindow) (*Resolution, error) {
	resolution := &Resolution{}
	err := s.withTelemetry(ctx, "Resolve", func(ctx context.Context) error {
		return s.resolve(ctx, teams, resolution)
	})
	if err != nil {
		return resolution, err
	}

	if len(resolution.RetrievableAccounts()) == 0 {
		return resolution, ErrNoAccountsMatched()
	}
	return resolution, nil
}

func (s *IdentityService) resolve(ctx context.Context, teams [][]sharedtypes.MatchPlayer, resolution *Resolution) error {
	var ids []sharedtypes.UserID
	for teamIndex, team := range teams {
		for _, player := range team {
			resolution.Entries = append(resolution.Entries, &Entry{
				Player:    player,
				TeamIndex: teamIndex,
				Reason:    identitydb.ReasonUnknown,
			})
			ids = append(ids, player.ID)
		}
	}

	stored, err := s.repo.GetByDiscordUserIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load stored associations: %w", err)
	}

	for _, entry := range resolution.Entries {
		s.resolveEntry(ctx, entry, stored[entry.Player.ID])
	}

	s.persist(ctx, resolution.Entries)
	return nil
}

// resolveEntry walks one participant through the resolution order. Lookup
// failures leave the entry unresolved rather than failing the run.
func (s *IdentityService) resolveEntry(ctx context.Context, entry *Entry, assoc identitydb.Association) {
	// Step 1: stored, retrievable association.
	if assoc.Usable() {
		entry.Account = &halo.Account{ID: assoc.XboxUserID, Gamertag: assoc.DisplayNameSearched}
		entry.Reason = assoc.Reason
		entry.Confidence = 1.0
		entry.Retrievable = true
		return
	}

	// Step 2: previously fuzzy-matched but never confirmed retrievable.
	// Re-query using the display name matched back then.
	if assoc.Reason == identitydb.ReasonGameSimilarity && assoc.DisplayNameSearched != "" {
		if s.tryLookup(ctx, entry, assoc.DisplayNameSearched, identitydb.ReasonGameSimilarity) {
			return
		}
	}

	// Step 3: lookup by username, then display name when it differs.
	if s.tryLookup(ctx, entry, entry.Player.Username, identitydb.ReasonUsernameSearch) {
		return
	}
	if display := entry.Player.DisplayName(); display != entry.Player.Username {
		if s.tryLookup(ctx, entry, display, identitydb.ReasonDisplayNameSearch) {
			return
		}
	}
}

// tryLookup searches one name and, on a hit, probes retrievability and
// fills the entry. Returns true when the entry was resolved.
func (s *IdentityService) tryLookup(ctx context.Context, entry *Entry, name string, reason identitydb.AssociationReason) bool {
	if name == "" {
		return false
	}

	account, err := s.finder.FindByGamertag(ctx, name)
	if err != nil {
		s.logger.WarnContext(ctx, "Account lookup failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("discord_user_id", string(entry.Player.ID)),
			attr.String("searched_name", name),
			attr.Error(err),
		)
		return false
	}
	if account == nil {
		return false
	}

	retrievable, err := s.probe.HasRetrievableHistory(ctx, account.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "History probe failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("xbox_user_id", string(account.ID)),
			attr.Error(err),
		)
		retrievable = false
	}

	entry.Account = account
	entry.Reason = reason
	entry.Confidence = 1.0
	entry.Retrievable = retrievable
	return true
}

// FuzzyResolve runs the team-scoped similarity pass for participants still
// unassociated, using teamAccounts (a fetched match roster grouped by team)
// as ground truth. Assigned pairs are persisted with game_similarity
// provenance and unknown retrievability; the next resolver run confirms
// them via the step-2 re-query. Returns the number of assignments made.
func (s *IdentityService) FuzzyResolve(ctx context.Context, resolution *Resolution, teamAccounts [][]halo.Account) (int, error) {
	assigned := 0
	err := s.withTelemetry(ctx, "FuzzyResolve", func(ctx context.Context) error {
		var touched []*Entry
		for teamIndex := 0; teamIndex < resolution.TeamCount() && teamIndex < len(teamAccounts); teamIndex++ {
			unresolved := resolution.UnresolvedOnTeam(teamIndex)
			candidates := unclaimedAccounts(resolution, teamAccounts[teamIndex])

			for _, a := range assignTeamFuzzy(unresolved, candidates) {
				account := a.account
				a.entry.Account = &account
				a.entry.Reason = identitydb.ReasonGameSimilarity
				a.entry.Confidence = a.score
				a.entry.Retrievable = false
				touched = append(touched, a.entry)
				assigned++
			}
		}

		if len(touched) > 0 {
			s.persist(ctx, touched)
		}
		return nil
	})
	return assigned, err
}

// unclaimedAccounts filters out accounts already held by a resolved entry.
func unclaimedAccounts(resolution *Resolution, accounts []halo.Account) []halo.Account {
	claimed := make(map[sharedtypes.XboxUserID]bool)
	for _, e := range resolution.Entries {
		if e.Resolved() {
			claimed[e.Account.ID] = true
		}
	}

	var out []halo.Account
	for _, a := range accounts {
		if !claimed[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// persist writes association rows for the given entries. A store failure is
// logged and swallowed: the association store is an advisory cache and a
// failed write must not fail the resolution run.
func (s *IdentityService) persist(ctx context.Context, entries []*Entry) {
	rows := make([]identitydb.Association, 0, len(entries))
	for _, e := range entries {
		row := identitydb.Association{
			DiscordUserID:    e.Player.ID,
			Reason:           e.Reason,
			GamesRetrievable: identitydb.GamesRetrievableUnknown,
		}
		if e.Resolved() {
			row.XboxUserID = e.Account.ID
			row.DisplayNameSearched = e.Account.Gamertag
			if e.Retrievable {
				row.GamesRetrievable = identitydb.GamesRetrievableYes
			}
		}
		rows = append(rows, row)
	}

	if err := s.repo.UpsertBulk(ctx, rows); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist associations",
			attr.ExtractCorrelationID(ctx),
			attr.Int("count", len(rows)),
			attr.Error(err),
		)
	}
}
