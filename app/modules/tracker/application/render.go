package trackerservice

import (
	"fmt"
	"sort"
	"strings"
	"time"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
)

// renderStatus builds the live status message body from tracker state.
func renderStatus(t *trackerdb.Tracker, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Live Series Tracker** - Queue %s\n", t.QueueNumber)
	fmt.Fprintf(&b, "%s vs %s\n", teamLabel(t, 0), teamLabel(t, 1))

	summaries := sortedSummaries(t)
	wins := seriesWins(t, summaries)
	fmt.Fprintf(&b, "Series score: %d - %d\n", wins[0], wins[1])

	if len(summaries) > 0 {
		b.WriteString("\nMatches:\n")
		for i, m := range summaries {
			fmt.Fprintf(&b, "%d. %s\n", i+1, matchLine(m))
		}
	} else {
		b.WriteString("\nNo matches found yet.\n")
	}

	if len(t.Substitutions) > 0 {
		b.WriteString("\nSubstitutions:\n")
		for _, sub := range t.Substitutions {
			fmt.Fprintf(&b, "- %s\n", sub.Describe())
		}
	}

	fmt.Fprintf(&b, "\nLast checked: %s (check #%d)\n", now.UTC().Format("15:04:05 MST"), t.CheckCount)
	return b.String()
}

func teamLabel(t *trackerdb.Tracker, index int) string {
	if index < len(t.TeamNames) && t.TeamNames[index] != "" {
		return t.TeamNames[index]
	}
	return fmt.Sprintf("Team %d", index+1)
}

func sortedSummaries(t *trackerdb.Tracker) []trackerdb.MatchDisplaySummary {
	out := make([]trackerdb.MatchDisplaySummary, 0, len(t.DiscoveredMatches))
	for _, m := range t.DiscoveredMatches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// seriesWins counts match wins per team slot from each match's team scores.
// Ties count for nobody.
func seriesWins(t *trackerdb.Tracker, summaries []trackerdb.MatchDisplaySummary) [2]int {
	var wins [2]int
	for _, m := range summaries {
		bestTeam, bestScore, tied := -1, -1, false
		for teamID, score := range m.Scores {
			switch {
			case score > bestScore:
				bestTeam, bestScore, tied = teamID, score, false
			case score == bestScore:
				tied = true
			}
		}
		if !tied && bestTeam >= 0 && bestTeam < len(wins) {
			wins[bestTeam]++
		}
	}
	return wins
}

func matchLine(m trackerdb.MatchDisplaySummary) string {
	label := m.GameMode
	if m.MapName != "" {
		if label != "" {
			label += " on " + m.MapName
		} else {
			label = m.MapName
		}
	}
	if label == "" {
		label = string(m.MatchID)
	}

	if len(m.Scores) == 0 {
		return label
	}

	teamIDs := make([]int, 0, len(m.Scores))
	for id := range m.Scores {
		teamIDs = append(teamIDs, id)
	}
	sort.Ints(teamIDs)
	parts := make([]string, 0, len(teamIDs))
	for _, id := range teamIDs {
		parts = append(parts, fmt.Sprintf("%d", m.Scores[id]))
	}
	return fmt.Sprintf("%s (%s)", label, strings.Join(parts, " - "))
}
