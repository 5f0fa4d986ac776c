package timelineevents

import (
	"encoding/json"
	"fmt"
	"time"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Action is the wire discriminant for queue timeline events.
type Action string

const (
	ActionJoinQueue      Action = "JOIN_QUEUE"
	ActionLeaveQueue     Action = "LEAVE_QUEUE"
	ActionMatchCancelled Action = "MATCH_CANCELLED"
	ActionMatchStarted   Action = "MATCH_STARTED"
	ActionTeamsCreated   Action = "TEAMS_CREATED"
	ActionSubstitution   Action = "SUBSTITUTION"
	ActionMatchCompleted Action = "MATCH_COMPLETED"
)

// QueueRef identifies the queue an event belongs to. SourceChannelID is the
// channel the webhook originated from, which can differ from the channel
// the queue itself lives in.
type QueueRef struct {
	GuildID         sharedtypes.GuildID     `json:"guild_id"`
	ChannelID       sharedtypes.ChannelID   `json:"channel_id"`
	SourceChannelID sharedtypes.ChannelID   `json:"source_channel_id,omitempty"`
	QueueNumber     sharedtypes.QueueNumber `json:"queue_number"`
}

// Payload is the closed set of queue event variants. The unexported method
// keeps the set sealed so decoding and replay can switch exhaustively.
type Payload interface {
	Action() Action
	Ref() QueueRef
	isPayload()
}

// JoinQueue records a player entering the queue lobby.
type JoinQueue struct {
	QueueRef
	Player sharedtypes.MatchPlayer `json:"player"`
}

// LeaveQueue records a player leaving the queue lobby.
type LeaveQueue struct {
	QueueRef
	Player sharedtypes.MatchPlayer `json:"player"`
}

// MatchCancelled terminates the queue without producing a series.
type MatchCancelled struct {
	QueueRef
}

// MatchStarted snapshots the rosters at the moment play begins.
type MatchStarted struct {
	QueueRef
	Teams [][]sharedtypes.MatchPlayer `json:"teams"`
}

// TeamsCreated snapshots the rosters when teams are drafted, possibly
// before play begins.
type TeamsCreated struct {
	QueueRef
	Teams     [][]sharedtypes.MatchPlayer `json:"teams"`
	TeamNames []string                    `json:"team_names,omitempty"`
}

// Substitution records a mid-series roster swap.
type Substitution struct {
	QueueRef
	PlayerOut sharedtypes.MatchPlayer `json:"player_out"`
	PlayerIn  sharedtypes.MatchPlayer `json:"player_in"`
	TeamIndex int                     `json:"team_index"`
	TeamName  string                  `json:"team_name,omitempty"`
}

// MatchCompleted ends the queue. A nil WinningTeamIndex means the queue
// finished with no winner and the series is discarded.
type MatchCompleted struct {
	QueueRef
	WinningTeamIndex *int `json:"winning_team_index,omitempty"`
}

func (JoinQueue) Action() Action      { return ActionJoinQueue }
func (LeaveQueue) Action() Action     { return ActionLeaveQueue }
func (MatchCancelled) Action() Action { return ActionMatchCancelled }
func (MatchStarted) Action() Action   { return ActionMatchStarted }
func (TeamsCreated) Action() Action   { return ActionTeamsCreated }
func (Substitution) Action() Action   { return ActionSubstitution }
func (MatchCompleted) Action() Action { return ActionMatchCompleted }

func (r QueueRef) Ref() QueueRef { return r }

func (JoinQueue) isPayload()      {}
func (LeaveQueue) isPayload()     {}
func (MatchCancelled) isPayload() {}
func (MatchStarted) isPayload()   {}
func (TeamsCreated) isPayload()   {}
func (Substitution) isPayload()   {}
func (MatchCompleted) isPayload() {}

// TimelineEvent is one appended timeline entry.
type TimelineEvent struct {
	Timestamp time.Time
	Payload   Payload
}

type envelope struct {
	Action    Action          `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (e TimelineEvent) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("timeline event has no payload")
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Payload.Action(), err)
	}
	return json.Marshal(envelope{
		Action:    e.Payload.Action(),
		Timestamp: e.Timestamp,
		Payload:   raw,
	})
}

func (e *TimelineEvent) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal timeline event envelope: %w", err)
	}
	payload, err := DecodePayload(env.Action, env.Payload)
	if err != nil {
		return err
	}
	e.Timestamp = env.Timestamp
	e.Payload = payload
	return nil
}

// DecodePayload decodes one action-discriminated payload. Webhook decoding
// and stored-timeline decoding both go through here so the two can never
// drift.
func DecodePayload(action Action, data []byte) (Payload, error) {
	unmarshal := func(p Payload) (Payload, error) {
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", action, err)
		}
		return p, nil
	}

	switch action {
	case ActionJoinQueue:
		p, err := unmarshal(&JoinQueue{})
		if err != nil {
			return nil, err
		}
		return *p.(*JoinQueue), nil
	case ActionLeaveQueue:
		p, err := unmarshal(&LeaveQueue{})
		if err != nil {
			return nil, err
		}
		return *p.(*LeaveQueue), nil
	case ActionMatchCancelled:
		p, err := unmarshal(&MatchCancelled{})
		if err != nil {
			return nil, err
		}
		return *p.(*MatchCancelled), nil
	case ActionMatchStarted:
		p, err := unmarshal(&MatchStarted{})
		if err != nil {
			return nil, err
		}
		return *p.(*MatchStarted), nil
	case ActionTeamsCreated:
		p, err := unmarshal(&TeamsCreated{})
		if err != nil {
			return nil, err
		}
		return *p.(*TeamsCreated), nil
	case ActionSubstitution:
		p, err := unmarshal(&Substitution{})
		if err != nil {
			return nil, err
		}
		return *p.(*Substitution), nil
	case ActionMatchCompleted:
		p, err := unmarshal(&MatchCompleted{})
		if err != nil {
			return nil, err
		}
		return *p.(*MatchCompleted), nil
	default:
		return nil, fmt.Errorf("unknown timeline action %q", action)
	}
}

// Terminal reports whether the event ends the queue's timeline.
func (e TimelineEvent) Terminal() bool {
	switch e.Payload.(type) {
	case MatchCancelled, MatchCompleted:
		return true
	default:
		return false
	}
}
