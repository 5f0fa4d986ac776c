package timelineservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Append records one event on the queue's timeline.
func (s *TimelineService) Append(ctx context.Context, event timelineevents.TimelineEvent) error {
	return s.withTelemetry(ctx, "Append", func(ctx context.Context) error {
		key := timelinedb.KeyFor(event.Payload.Ref())
		if err := s.timelines.Append(ctx, key, event); err != nil {
			return fmt.Errorf("failed to append %s event: %w", event.Payload.Action(), err)
		}
		s.logger.DebugContext(ctx, "Timeline event appended",
			attr.String("action", string(event.Payload.Action())),
			attr.String("guild_id", key.GuildID.String()),
			attr.String("channel_id", key.ChannelID.String()),
		)
		return nil
	})
}

// Replay reconstructs the full match series for one completed queue from
// its stored timeline. On success or terminal cancellation the timeline is
// cleared; on all-windows failure it is left for its TTL and the returned
// error carries a resumption token instead.
func (s *TimelineService) Replay(ctx context.Context, key timelinedb.TimelineKey) (*ReplayResult, error) {
	var out *ReplayResult
	err := s.withTelemetry(ctx, "Replay", func(ctx context.Context) error {
		result, err := s.replay(ctx, key)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

func (s *TimelineService) replay(ctx context.Context, key timelinedb.TimelineKey) (*ReplayResult, error) {
	events, err := s.timelines.Get(ctx, key)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrTimelineNotFound()
		}
		return nil, err
	}

	walk, err := walkTimeline(events)
	if err != nil {
		return nil, err
	}

	if walk.cancelled {
		if clearErr := s.timelines.Clear(ctx, key); clearErr != nil {
			s.logger.WarnContext(ctx, "Failed to clear cancelled timeline", attr.Error(clearErr))
		}
		return &ReplayResult{
			Key:         key,
			QueueNumber: walk.queueNumber,
			Cancelled:   true,
		}, nil
	}
	if walk.completedAt.IsZero() {
		return nil, ErrQueueStillOpen()
	}
	if len(walk.teams) == 0 {
		if clearErr := s.timelines.Clear(ctx, key); clearErr != nil {
			s.logger.WarnContext(ctx, "Failed to clear rosterless timeline", attr.Error(clearErr))
		}
		return nil, ErrQueueNeverStarted()
	}

	claims := errs.ResumptionClaims{
		GuildID:       key.GuildID,
		ChannelID:     key.ChannelID,
		QueueNumber:   walk.queueNumber,
		StartedAt:     walk.startedAt,
		CompletedAt:   walk.completedAt,
		Teams:         walk.teams,
		Substitutions: walk.substitutions,
	}

	matches, err := s.assembleWindows(ctx, claims)
	if err != nil {
		return nil, s.wrapReconstructionFailure(ctx, err, claims)
	}

	if clearErr := s.timelines.Clear(ctx, key); clearErr != nil {
		s.logger.WarnContext(ctx, "Failed to clear replayed timeline", attr.Error(clearErr))
	}

	return &ReplayResult{
		Key:              key,
		QueueNumber:      walk.queueNumber,
		Matches:          matches,
		Teams:            walk.teams,
		TeamNames:        walk.teamNames,
		Substitutions:    walk.substitutions,
		StartedAt:        walk.startedAt,
		CompletedAt:      walk.completedAt,
		WinningTeamIndex: walk.winningTeamIndex,
	}, nil
}

// Retry re-derives a replay-equivalent result from a resumption token,
// without touching the (possibly already-cleared) timeline.
func (s *TimelineService) Retry(ctx context.Context, token string) (*ReplayResult, error) {
	var out *ReplayResult
	err := s.withTelemetry(ctx, "Retry", func(ctx context.Context) error {
		claims, err := errs.ParseResumptionToken(token, s.tokenSecret)
		if err != nil {
			return errs.Errorf(err, "retry token is invalid or expired")
		}

		matches, err := s.assembleWindows(ctx, *claims)
		if err != nil {
			return s.wrapReconstructionFailure(ctx, err, *claims)
		}

		out = &ReplayResult{
			Key: timelinedb.TimelineKey{
				GuildID:   claims.GuildID,
				ChannelID: claims.ChannelID,
			},
			QueueNumber:   claims.QueueNumber,
			Matches:       matches,
			Teams:         claims.Teams,
			Substitutions: claims.Substitutions,
			StartedAt:     claims.StartedAt,
			CompletedAt:   claims.CompletedAt,
		}
		return nil
	})
	return out, err
}

// timelineWalk is the reduction of an event log to replay inputs.
type timelineWalk struct {
	queueNumber      sharedtypes.QueueNumber
	teams            [][]sharedtypes.MatchPlayer
	teamNames        []string
	substitutions    []sharedtypes.Substitution
	startedAt        time.Time
	completedAt      time.Time
	winningTeamIndex *int
	cancelled        bool
}

// walkTimeline scans events in append order. Roster snapshots come from
// MatchStarted and TeamsCreated; joins and leaves before the snapshot have
// no roster effect of their own.
func walkTimeline(events []timelineevents.TimelineEvent) (*timelineWalk, error) {
	walk := &timelineWalk{}
	for _, ev := range events {
		walk.queueNumber = ev.Payload.Ref().QueueNumber

		switch p := ev.Payload.(type) {
		case timelineevents.JoinQueue, timelineevents.LeaveQueue:
			// Lobby churn, captured for audit only.
		case timelineevents.MatchCancelled:
			walk.cancelled = true
			return walk, nil
		case timelineevents.MatchStarted:
			walk.teams = p.Teams
			walk.startedAt = ev.Timestamp
		case timelineevents.TeamsCreated:
			walk.teams = p.Teams
			walk.teamNames = p.TeamNames
			walk.startedAt = ev.Timestamp
		case timelineevents.Substitution:
			walk.substitutions = append(walk.substitutions, sharedtypes.Substitution{
				PlayerOut:  p.PlayerOut,
				PlayerIn:   p.PlayerIn,
				TeamIndex:  p.TeamIndex,
				TeamName:   p.TeamName,
				OccurredAt: ev.Timestamp,
			})
		case timelineevents.MatchCompleted:
			walk.completedAt = ev.Timestamp
			walk.winningTeamIndex = p.WinningTeamIndex
			if p.WinningTeamIndex == nil {
				walk.cancelled = true
			}
			return walk, nil
		default:
			return nil, fmt.Errorf("unhandled timeline action %q", ev.Payload.Action())
		}
	}
	return walk, nil
}

// assembleWindows runs one assembler call per substitution-bounded window
// and concatenates the results in window order. A single failed window is
// skipped; the whole reconstruction fails only when every window fails.
// Replay and retry share this routine so the two stay algorithmically
// equivalent given equivalent inputs.
func (s *TimelineService) assembleWindows(ctx context.Context, claims errs.ResumptionClaims) ([]sharedtypes.MatchDetail, error) {
	var (
		matches  []sharedtypes.MatchDetail
		total    int
		failed   int
		firstErr error
	)

	run := func(teams [][]sharedtypes.MatchPlayer, start, end time.Time) {
		total++
		got, err := s.assembler.AssembleForTeams(ctx, teams, start, end, true)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.metrics.RecordSubSeries(ctx, "failure")
			s.logger.WarnContext(ctx, "Sub-series window failed, skipping",
				attr.ExtractCorrelationID(ctx),
				attr.Time("window_start", start),
				attr.Time("window_end", end),
				attr.Error(err),
			)
			return
		}
		s.metrics.RecordSubSeries(ctx, "success")
		matches = append(matches, got...)
	}

	cursor := claims.StartedAt
	teams := claims.Teams
	for _, sub := range claims.Substitutions {
		run(teams, cursor, sub.OccurredAt)
		teams = sub.Apply(teams)
		cursor = sub.OccurredAt
	}
	run(teams, cursor, claims.CompletedAt)

	if total > 0 && failed == total {
		return nil, fmt.Errorf("all %d sub-series windows failed: %w", total, firstErr)
	}
	return matches, nil
}

func (s *TimelineService) wrapReconstructionFailure(ctx context.Context, cause error, claims errs.ResumptionClaims) error {
	token, signErr := errs.SignResumptionToken(claims, s.tokenSecret, s.tokenTTL)
	if signErr != nil {
		s.logger.ErrorContext(ctx, "Failed to sign resumption token", attr.Error(signErr))
	}
	s.logger.ErrorContext(ctx, "Series reconstruction failed",
		attr.ExtractCorrelationID(ctx),
		attr.String("channel_id", claims.ChannelID.String()),
		attr.String("queue_number", claims.QueueNumber.String()),
		attr.Error(cause),
	)
	return errReconstructionFailed(cause, token, claims)
}
