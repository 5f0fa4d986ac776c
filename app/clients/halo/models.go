package halo

import (
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Account is one game-platform account as returned by user lookup.
type Account struct {
	ID       sharedtypes.XboxUserID `json:"xuid"`
	Gamertag string                 `json:"gamertag"`
}

// userResponse is the wire shape of the user lookup endpoint.
type userResponse struct {
	XUID     string `json:"xuid"`
	Gamertag string `json:"gamertag"`
}

// matchListResponse is the wire shape of the paginated match history listing.
type matchListResponse struct {
	Start       int                `json:"start"`
	Count       int                `json:"count"`
	ResultCount int                `json:"result_count"`
	Results     []matchListEntry   `json:"results"`
}

type matchListEntry struct {
	MatchID   string `json:"match_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// matchStatsResponse is the wire shape of the batched match detail endpoint.
type matchStatsResponse struct {
	Matches []matchStats `json:"matches"`
}

type matchStats struct {
	MatchID   string        `json:"match_id"`
	StartTime string        `json:"start_time"`
	Duration  string        `json:"duration"`
	GameMode  string        `json:"game_mode"`
	MapName   string        `json:"map_name"`
	Players   []matchPlayer `json:"players"`
	Teams     []teamStats   `json:"teams"`
}

type matchPlayer struct {
	XUID               string `json:"xuid"`
	Gamertag           string `json:"gamertag"`
	TeamID             int    `json:"team_id"`
	PresentAtBeginning bool   `json:"present_at_beginning"`
}

type teamStats struct {
	TeamID int `json:"team_id"`
	Score  int `json:"score"`
}
