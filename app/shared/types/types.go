package sharedtypes

import (
	"fmt"
	"time"
)

// GuildID is a Discord guild (server) identifier.
type GuildID string

// ChannelID is a Discord channel identifier.
type ChannelID string

// UserID is a Discord user identifier.
type UserID string

// MessageID is a Discord message identifier.
type MessageID string

// QueueNumber identifies a matchmaking queue within a channel.
type QueueNumber int

// MatchID identifies a single match on the game platform.
type MatchID string

// XboxUserID identifies a game-platform account.
type XboxUserID string

func (g GuildID) String() string   { return string(g) }
func (c ChannelID) String() string { return string(c) }
func (u UserID) String() string    { return string(u) }
func (m MatchID) String() string   { return string(m) }
func (x XboxUserID) String() string {
	return string(x)
}

func (q QueueNumber) String() string { return fmt.Sprintf("%d", int(q)) }

// MatchPlayer is a lightweight roster entry for one queue participant.
type MatchPlayer struct {
	ID            UserID `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	GuildNickname string `json:"guild_nickname,omitempty"`
}

// DisplayName returns the most specific name the guild would show for the player.
func (p MatchPlayer) DisplayName() string {
	if p.GuildNickname != "" {
		return p.GuildNickname
	}
	if p.GlobalName != "" {
		return p.GlobalName
	}
	return p.Username
}

// CandidateNames returns the de-duplicated name set used for account matching.
func (p MatchPlayer) CandidateNames() []string {
	names := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, n := range []string{p.Username, p.GlobalName, p.GuildNickname} {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	return names
}

// TimeWindow is a half-open time range used for match history queries.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SeriesWindow bounds one roster-stable stretch of a queue's lifetime.
type SeriesWindow struct {
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Teams [][]MatchPlayer `json:"teams"`
}

// Substitution records a mid-series roster swap. Both players are carried
// in full so a replay or retry can re-run account resolution for the
// incoming player without re-reading the timeline.
type Substitution struct {
	PlayerOut  MatchPlayer `json:"player_out"`
	PlayerIn   MatchPlayer `json:"player_in"`
	TeamIndex  int         `json:"team_index"`
	TeamName   string      `json:"team_name,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Describe renders the substitution the way the status message shows it.
func (s Substitution) Describe() string {
	team := s.TeamName
	if team == "" {
		team = fmt.Sprintf("team %d", s.TeamIndex+1)
	}
	return fmt.Sprintf("%s subbed in for %s on %s", s.PlayerIn.DisplayName(), s.PlayerOut.DisplayName(), team)
}

// Apply swaps the outgoing player for the incoming one on a copy of teams.
// The original slices are left untouched.
func (s Substitution) Apply(teams [][]MatchPlayer) [][]MatchPlayer {
	out := make([][]MatchPlayer, len(teams))
	for i, team := range teams {
		out[i] = append([]MatchPlayer(nil), team...)
	}
	if s.TeamIndex < 0 || s.TeamIndex >= len(out) {
		return out
	}
	for i, p := range out[s.TeamIndex] {
		if p.ID == s.PlayerOut.ID {
			out[s.TeamIndex][i] = s.PlayerIn
			break
		}
	}
	return out
}

// MatchRosterEntry is one participant of a fetched match, with team placement.
type MatchRosterEntry struct {
	XboxUserID XboxUserID `json:"xbox_user_id"`
	Gamertag   string     `json:"gamertag"`
	TeamID     int        `json:"team_id"`
	// PresentAtBeginning is true when the player was in the lobby at match start.
	PresentAtBeginning bool `json:"present_at_beginning"`
}

// MatchSummary is the newest-first history listing entry for one account.
type MatchSummary struct {
	MatchID   MatchID   `json:"match_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// MatchDetail is the full detail record for one match.
type MatchDetail struct {
	MatchID   MatchID            `json:"match_id"`
	StartTime time.Time          `json:"start_time"`
	Duration  time.Duration      `json:"duration"`
	GameMode  string             `json:"game_mode,omitempty"`
	MapName   string             `json:"map_name,omitempty"`
	Roster    []MatchRosterEntry `json:"roster"`
	// Scores is indexed by team id.
	Scores map[int]int `json:"scores,omitempty"`
}

// BeginningRoster returns the (xbox id, team id) pairs present at match start.
func (d MatchDetail) BeginningRoster() map[XboxUserID]int {
	out := make(map[XboxUserID]int, len(d.Roster))
	for _, e := range d.Roster {
		if e.PresentAtBeginning {
			out[e.XboxUserID] = e.TeamID
		}
	}
	return out
}
