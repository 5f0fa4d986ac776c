package identityservice

import (
	"sort"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// fuzzyThreshold is the minimum similarity score a participant/account pair
// needs to be considered for greedy assignment.
const fuzzyThreshold = 0.3

// fuzzyAssignment is one participant-to-account pairing produced by the
// team-scoped similarity pass.
type fuzzyAssignment struct {
	entry   *Entry
	account halo.Account
	score   float64
}

// similarityScore scores one candidate name against one gamertag.
// An exact normalized match short-circuits to 1.0; otherwise the score is
// 0.4*substring-overlap + 0.4*(1 - normalized Levenshtein) + 0.2*token-overlap.
func similarityScore(name, gamertag string) float64 {
	normName := normalizeName(name)
	normTag := normalizeName(gamertag)
	if normName == "" || normTag == "" {
		return 0
	}
	if normName == normTag {
		return 1.0
	}

	substr := substringOverlapRatio(normName, normTag)
	lev := 1.0 - normalizedLevenshtein(normName, normTag)
	tokens := tokenOverlapRatio(tokenizeName(name), tokenizeName(gamertag))

	return 0.4*substr + 0.4*lev + 0.2*tokens
}

// bestNameScore scores a participant's full candidate name set against a
// gamertag, keeping the best single name.
func bestNameScore(player sharedtypes.MatchPlayer, gamertag string) float64 {
	best := 0.0
	for _, name := range player.CandidateNames() {
		if s := similarityScore(name, gamertag); s > best {
			best = s
		}
	}
	return best
}

// substringOverlapRatio is the longest common substring length over the
// shorter string's length, so full containment scores 1.0.
func substringOverlapRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	longest := longestCommonSubstring(a, b)
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	return float64(longest) / float64(shorter)
}

func longestCommonSubstring(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	best := 0
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}

// normalizedLevenshtein is edit distance divided by the longer length.
func normalizedLevenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 0
	}
	return float64(levenshtein(ra, rb)) / float64(longer)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// tokenOverlapRatio is the Jaccard overlap of the two token sets.
func tokenOverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// assignTeamFuzzy runs the team-scoped matching for one team: singleton
// direct assignment, then greedy descending assignment over pairs at or
// above the threshold, then the one-left-over fallback. This is a cheap
// deterministic greedy pass, not a maximum-weight matching.
func assignTeamFuzzy(unresolved []*Entry, accounts []halo.Account) []fuzzyAssignment {
	if len(unresolved) == 0 || len(accounts) == 0 {
		return nil
	}

	if len(unresolved) == 1 && len(accounts) == 1 {
		return []fuzzyAssignment{{
			entry:   unresolved[0],
			account: accounts[0],
			score:   bestNameScore(unresolved[0].Player, accounts[0].Gamertag),
		}}
	}

	var pairs []fuzzyAssignment
	for _, entry := range unresolved {
		for _, account := range accounts {
			score := bestNameScore(entry.Player, account.Gamertag)
			if score >= fuzzyThreshold {
				pairs = append(pairs, fuzzyAssignment{entry: entry, account: account, score: score})
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if pairs[i].entry.Player.ID != pairs[j].entry.Player.ID {
			return pairs[i].entry.Player.ID < pairs[j].entry.Player.ID
		}
		return pairs[i].account.Gamertag < pairs[j].account.Gamertag
	})

	usedEntry := make(map[sharedtypes.UserID]bool, len(unresolved))
	usedAccount := make(map[sharedtypes.XboxUserID]bool, len(accounts))
	var out []fuzzyAssignment
	for _, p := range pairs {
		if usedEntry[p.entry.Player.ID] || usedAccount[p.account.ID] {
			continue
		}
		usedEntry[p.entry.Player.ID] = true
		usedAccount[p.account.ID] = true
		out = append(out, p)
	}

	// One participant and one account left over after the greedy pass:
	// force-assign them to each other regardless of score.
	var leftEntries []*Entry
	for _, e := range unresolved {
		if !usedEntry[e.Player.ID] {
			leftEntries = append(leftEntries, e)
		}
	}
	var leftAccounts []halo.Account
	for _, a := range accounts {
		if !usedAccount[a.ID] {
			leftAccounts = append(leftAccounts, a)
		}
	}
	if len(leftEntries) == 1 && len(leftAccounts) == 1 {
		out = append(out, fuzzyAssignment{
			entry:   leftEntries[0],
			account: leftAccounts[0],
			score:   bestNameScore(leftEntries[0].Player, leftAccounts[0].Gamertag),
		})
	}

	return out
}
