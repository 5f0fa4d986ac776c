package seriesservice

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	identityservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/application"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// minMatchDuration is the cutoff below which a match counts as abandoned.
const minMatchDuration = 2 * time.Minute

// AssembleForTeams resolves the roster, then assembles the series over the
// resolved accounts. This is the entry point replay and the live tracker
// use.
func (s *SeriesService) AssembleForTeams(ctx context.Context, teams [][]sharedtypes.MatchPlayer, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error) {
	resolution, err := s.resolver.Resolve(ctx, teams, sharedtypes.TimeWindow{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return s.Assemble(ctx, resolution, start, end, isSubSeries)
}

// Assemble finds every match common to all resolved accounts inside the
// open interval (start, end), filters out abandoned and stray matches, and
// returns the survivors in ascending start order.
func (s *SeriesService) Assemble(ctx context.Context, resolution *identityservice.Resolution, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error) {
	var out []sharedtypes.MatchDetail
	err := s.withTelemetry(ctx, "Assemble", func(ctx context.Context) error {
		matches, err := s.assemble(ctx, resolution, start, end, isSubSeries)
		if err != nil {
			return err
		}
		out = matches
		return nil
	})
	return out, err
}

func (s *SeriesService) assemble(ctx context.Context, resolution *identityservice.Resolution, start, end time.Time, isSubSeries bool) ([]sharedtypes.MatchDetail, error) {
	accounts := resolution.RetrievableAccounts()
	if len(accounts) == 0 {
		return nil, s.classify(ctx, identityservice.ErrNoAccountsMatched(), isSubSeries)
	}

	// Step 1-2: page each account's history back past the window start,
	// then keep matches strictly inside the open interval.
	cache := newHistoryCache(s.client)
	inWindow := make(map[sharedtypes.XboxUserID]map[sharedtypes.MatchID]bool, len(accounts))
	anyMatches := false
	for _, account := range accounts {
		history, err := cache.historyBack(ctx, account.XboxUserID, start)
		if err != nil {
			return nil, err
		}

		ids := make(map[sharedtypes.MatchID]bool)
		for _, summary := range history {
			if summary.StartTime.After(start) && summary.StartTime.Before(end) {
				ids[summary.MatchID] = true
			}
		}
		if len(ids) > 0 {
			anyMatches = true
		}
		inWindow[account.XboxUserID] = ids
	}

	// Step 3: a genuine series match appears for every participant.
	common := intersect(inWindow, accounts)

	// Step 4: distinguish "nobody played together" from "nobody played".
	if len(common) == 0 {
		if anyMatches {
			return nil, s.classify(ctx, ErrNoSeriesMatches(), isSubSeries)
		}
		return nil, s.classify(ctx, identityservice.ErrNoAccountsMatched(), isSubSeries)
	}

	// Step 5: fetch details and drop likely-abandoned matches.
	details, err := s.client.GetMatchDetails(ctx, common)
	if err != nil {
		return nil, err
	}
	kept := details[:0]
	for _, d := range details {
		if d.Duration < minMatchDuration {
			s.logger.DebugContext(ctx, "Dropping likely-abandoned match",
				attr.String("match_id", string(d.MatchID)),
				attr.Duration("duration", d.Duration),
			)
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		return nil, s.classify(ctx, ErrNoSeriesMatches(), isSubSeries)
	}

	// Step 8 ordering first so the roster filter can anchor on the
	// chronologically last surviving match.
	sort.Slice(kept, func(i, j int) bool { return kept[i].StartTime.Before(kept[j].StartTime) })

	// Step 6: stray matches sharing the window have a different beginning
	// roster than the final match of the series.
	final := kept[len(kept)-1]
	finalRoster := final.BeginningRoster()
	matches := kept[:0]
	for _, d := range kept {
		if sameRoster(d.BeginningRoster(), finalRoster) {
			matches = append(matches, d)
		}
	}

	// Step 7: late fuzzy resolution for still-unassociated participants,
	// with the final match's roster as ground truth. Best effort only.
	if assigned, err := s.resolver.FuzzyResolve(ctx, resolution, rosterByTeam(final)); err != nil {
		s.logger.WarnContext(ctx, "Late fuzzy resolution failed",
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
	} else if assigned > 0 {
		s.logger.InfoContext(ctx, "Late fuzzy resolution assigned participants",
			attr.Int("assigned", assigned),
		)
	}

	return matches, nil
}

// classify adjusts logging for sub-series failures: a failed slice of a
// timeline replay is routine, a failed top-level assembly is not.
func (s *SeriesService) classify(ctx context.Context, uf *errs.UserFacing, isSubSeries bool) error {
	level := slog.LevelWarn
	if isSubSeries {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, "Series assembly produced no result",
		attr.ExtractCorrelationID(ctx),
		attr.String("reason", uf.Message),
		attr.Bool("is_sub_series", isSubSeries),
	)
	return uf
}

// intersect returns the ids present for every account, sorted for
// deterministic fetch order.
func intersect(inWindow map[sharedtypes.XboxUserID]map[sharedtypes.MatchID]bool, accounts []identityservice.ResolvedAccount) []sharedtypes.MatchID {
	if len(accounts) == 0 {
		return nil
	}

	var common []sharedtypes.MatchID
	for id := range inWindow[accounts[0].XboxUserID] {
		everywhere := true
		for _, account := range accounts[1:] {
			if !inWindow[account.XboxUserID][id] {
				everywhere = false
				break
			}
		}
		if everywhere {
			common = append(common, id)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })
	return common
}

func sameRoster(a, b map[sharedtypes.XboxUserID]int) bool {
	if len(a) != len(b) {
		return false
	}
	for id, team := range a {
		if other, ok := b[id]; !ok || other != team {
			return false
		}
	}
	return true
}

// rosterByTeam groups a match's beginning roster into per-team account
// lists, ordered by ascending team id so they line up with roster team
// indexes.
func rosterByTeam(d sharedtypes.MatchDetail) [][]halo.Account {
	byTeam := make(map[int][]halo.Account)
	teamIDs := make([]int, 0, 2)
	for _, entry := range d.Roster {
		if !entry.PresentAtBeginning {
			continue
		}
		if _, seen := byTeam[entry.TeamID]; !seen {
			teamIDs = append(teamIDs, entry.TeamID)
		}
		byTeam[entry.TeamID] = append(byTeam[entry.TeamID], halo.Account{
			ID:       entry.XboxUserID,
			Gamertag: entry.Gamertag,
		})
	}
	sort.Ints(teamIDs)

	out := make([][]halo.Account, 0, len(teamIDs))
	for _, id := range teamIDs {
		out = append(out, byTeam[id])
	}
	return out
}
