package trackerdb

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Status is the tracker lifecycle state. Stopped trackers are purged, so a
// stored row is always active or paused.
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// TrackerKey is the composite identity of one live tracker instance.
type TrackerKey struct {
	GuildID     sharedtypes.GuildID     `json:"guild_id"`
	ChannelID   sharedtypes.ChannelID   `json:"channel_id"`
	UserID      sharedtypes.UserID      `json:"user_id"`
	QueueNumber sharedtypes.QueueNumber `json:"queue_number"`
}

func (k TrackerKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.GuildID, k.ChannelID, k.UserID, k.QueueNumber)
}

// MatchDisplaySummary is the rendered per-match line kept across ticks.
// Entries are merge-only: once discovered, a match stays even if a later
// fetch omits it.
type MatchDisplaySummary struct {
	MatchID   sharedtypes.MatchID `json:"match_id"`
	GameMode  string              `json:"game_mode,omitempty"`
	MapName   string              `json:"map_name,omitempty"`
	Scores    map[int]int         `json:"scores,omitempty"`
	StartTime time.Time           `json:"start_time"`
}

// ErrorState tracks the tracker's consecutive-failure backoff.
type ErrorState struct {
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastErrorMessage  string    `json:"last_error_message,omitempty"`
	BackoffMinutes    int       `json:"backoff_minutes"`
	LastSuccessTime   time.Time `json:"last_success_time"`
}

// Metrics accumulates per-tracker counters for the periodic perf log.
type Metrics struct {
	TotalChecks   int           `json:"total_checks"`
	TotalMatches  int           `json:"total_matches"`
	TotalErrors   int           `json:"total_errors"`
	TotalDuration time.Duration `json:"total_duration"`
}

// LastMessageState is the message-shape snapshot driving the edit-vs-replace
// decision.
type LastMessageState struct {
	MatchCount        int `json:"match_count"`
	SubstitutionCount int `json:"substitution_count"`
}

// Tracker is the persisted state of one live tracker actor.
type Tracker struct {
	bun.BaseModel `bun:"table:live_trackers,alias:lt"`

	GuildID     sharedtypes.GuildID     `bun:"guild_id,pk,notnull"`
	ChannelID   sharedtypes.ChannelID   `bun:"channel_id,pk,notnull"`
	UserID      sharedtypes.UserID      `bun:"user_id,pk,notnull"`
	QueueNumber sharedtypes.QueueNumber `bun:"queue_number,pk,notnull"`

	Status         Status                `bun:"status,notnull"`
	CheckCount     int                   `bun:"check_count,notnull,default:0"`
	StartTime      time.Time             `bun:"start_time,notnull"`
	LastUpdateTime time.Time             `bun:"last_update_time,notnull"`
	QueueStartTime time.Time             `bun:"queue_start_time,notnull"`
	LiveMessageID  sharedtypes.MessageID `bun:"live_message_id"`

	Teams         [][]sharedtypes.MatchPlayer `bun:"teams,type:jsonb"`
	TeamNames     []string                    `bun:"team_names,type:jsonb"`
	Substitutions []sharedtypes.Substitution  `bun:"substitutions,type:jsonb"`

	DiscoveredMatches map[sharedtypes.MatchID]MatchDisplaySummary `bun:"discovered_matches,type:jsonb"`
	RawMatches        map[sharedtypes.MatchID]sharedtypes.MatchDetail `bun:"raw_matches,type:jsonb"`

	ErrorState       ErrorState       `bun:"error_state,type:jsonb"`
	Metrics          Metrics          `bun:"metrics,type:jsonb"`
	LastMessageState LastMessageState `bun:"last_message_state,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Key returns the tracker's composite key.
func (t *Tracker) Key() TrackerKey {
	return TrackerKey{
		GuildID:     t.GuildID,
		ChannelID:   t.ChannelID,
		UserID:      t.UserID,
		QueueNumber: t.QueueNumber,
	}
}

// CurrentTeams returns the starting rosters with every recorded
// substitution applied in order.
func (t *Tracker) CurrentTeams() [][]sharedtypes.MatchPlayer {
	teams := t.Teams
	for _, sub := range t.Substitutions {
		teams = sub.Apply(teams)
	}
	return teams
}

// MergeMatches folds newly fetched matches into the merge-only maps and
// returns how many were new. Existing entries are never removed so a tick
// that hits an upstream pagination gap cannot shrink the series.
func (t *Tracker) MergeMatches(details []sharedtypes.MatchDetail) int {
	if t.DiscoveredMatches == nil {
		t.DiscoveredMatches = make(map[sharedtypes.MatchID]MatchDisplaySummary)
	}
	if t.RawMatches == nil {
		t.RawMatches = make(map[sharedtypes.MatchID]sharedtypes.MatchDetail)
	}

	added := 0
	for _, d := range details {
		if _, seen := t.DiscoveredMatches[d.MatchID]; !seen {
			added++
		}
		t.DiscoveredMatches[d.MatchID] = MatchDisplaySummary{
			MatchID:   d.MatchID,
			GameMode:  d.GameMode,
			MapName:   d.MapName,
			Scores:    d.Scores,
			StartTime: d.StartTime,
		}
		t.RawMatches[d.MatchID] = d
	}
	return added
}
