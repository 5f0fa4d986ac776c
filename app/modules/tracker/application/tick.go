package trackerservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Tick runs one scheduled tracker update: assemble the series so far,
// merge discoveries, refresh the status message, and re-arm. A tick that
// fires after a stop finds no state and aborts.
func (s *TrackerService) Tick(ctx context.Context, key trackerdb.TrackerKey) error {
	return s.withTelemetry(ctx, "Tick", func(ctx context.Context) error {
		tracker, err := s.trackers.Get(ctx, key)
		if errors.Is(err, errs.ErrNotFound) {
			s.logger.DebugContext(ctx, "Tick for missing tracker, aborting",
				attr.String("tracker", key.String()),
			)
			return nil
		}
		if err != nil {
			return err
		}

		if tracker.Status != trackerdb.StatusActive {
			s.logger.DebugContext(ctx, "Tick while not active, going dormant",
				attr.String("tracker", key.String()),
				attr.String("status", string(tracker.Status)),
			)
			return nil
		}

		now := time.Now()
		tickStart := now
		tracker.CheckCount++
		tracker.Metrics.TotalChecks++

		matches, fetchErr := s.fetchSeries(ctx, tracker, now)
		if fetchErr != nil {
			return s.handleTickFailure(ctx, tracker, fetchErr, now)
		}

		added := tracker.MergeMatches(matches)
		if added > 0 {
			s.metrics.RecordMatchesDiscovered(ctx, added)
			tracker.Metrics.TotalMatches += added
		}
		tracker.ErrorState = trackerdb.ErrorState{LastSuccessTime: now}

		if err := s.refreshMessage(ctx, tracker, now); err != nil {
			if errs.IsTerminal(err) {
				s.logger.WarnContext(ctx, "Tracker target permanently gone, stopping",
					attr.String("tracker", key.String()),
					attr.Error(err),
				)
				return s.purge(ctx, key, "target_gone")
			}
			// Any other write failure is recorded but does not block
			// re-arming.
			tracker.ErrorState.ConsecutiveErrors++
			tracker.ErrorState.LastErrorMessage = err.Error()
			tracker.Metrics.TotalErrors++
			s.logger.WarnContext(ctx, "Failed to refresh tracker message",
				attr.String("tracker", key.String()),
				attr.Error(err),
			)
		}

		tracker.LastUpdateTime = now
		tracker.Metrics.TotalDuration += time.Since(tickStart)

		if tracker.CheckCount%perfLogEvery == 0 {
			s.logger.InfoContext(ctx, "Tracker performance",
				attr.String("tracker", key.String()),
				attr.Int("total_checks", tracker.Metrics.TotalChecks),
				attr.Int("total_matches", tracker.Metrics.TotalMatches),
				attr.Int("total_errors", tracker.Metrics.TotalErrors),
				attr.Duration("total_duration", tracker.Metrics.TotalDuration),
			)
		}

		if err := s.trackers.Save(ctx, tracker); err != nil {
			return fmt.Errorf("failed to persist tick: %w", err)
		}
		if err := s.scheduler.ScheduleTick(ctx, key, now.Add(s.tickInterval)); err != nil {
			return fmt.Errorf("failed to re-arm tick: %w", err)
		}

		s.metrics.RecordTick(ctx, "success")
		return nil
	})
}

// fetchSeries assembles the window [queueStartTime, now). An empty series
// early in a queue's life renders as a handled warning, which a tick
// treats as zero matches rather than a failure.
func (s *TrackerService) fetchSeries(ctx context.Context, tracker *trackerdb.Tracker, now time.Time) ([]sharedtypes.MatchDetail, error) {
	matches, err := s.assembler.AssembleForTeams(ctx, tracker.CurrentTeams(), tracker.QueueStartTime, now, false)
	if err != nil {
		if uf, ok := errs.AsUserFacing(err); ok && uf.Severity == errs.SeverityWarning {
			return nil, nil
		}
		return nil, err
	}
	return matches, nil
}

// handleTickFailure applies the backoff policy and, at the persistent
// outage threshold, stops and purges.
func (s *TrackerService) handleTickFailure(ctx context.Context, tracker *trackerdb.Tracker, cause error, now time.Time) error {
	tracker.ErrorState.ConsecutiveErrors++
	tracker.ErrorState.LastErrorMessage = cause.Error()
	tracker.Metrics.TotalErrors++
	s.metrics.RecordTick(ctx, "failure")

	key := tracker.Key()
	s.logger.WarnContext(ctx, "Tracker tick failed",
		attr.String("tracker", key.String()),
		attr.Int("consecutive_errors", tracker.ErrorState.ConsecutiveErrors),
		attr.Error(cause),
	)

	if tracker.ErrorState.ConsecutiveErrors >= maxConsecutiveErrors {
		return s.purge(ctx, key, "persistent_errors")
	}

	tracker.ErrorState.BackoffMinutes = s.nextBackoffMinutes(tracker.ErrorState.BackoffMinutes)
	tracker.LastUpdateTime = now

	if err := s.trackers.Save(ctx, tracker); err != nil {
		return fmt.Errorf("failed to persist tick failure: %w", err)
	}

	delay := s.tickInterval + time.Duration(tracker.ErrorState.BackoffMinutes)*time.Minute
	if err := s.scheduler.ScheduleTick(ctx, key, now.Add(delay)); err != nil {
		return fmt.Errorf("failed to re-arm tick after failure: %w", err)
	}
	return nil
}

func (s *TrackerService) nextBackoffMinutes(current int) int {
	next := current * 2
	if next == 0 {
		next = 1
	}
	if max := int(s.maxBackoff / time.Minute); next > max {
		next = max
	}
	return next
}

// refreshMessage recomputes the status body and decides edit-vs-replace:
// when the discovered-match or substitution count grew, the old message is
// deleted and a fresh one posted so the update resurfaces in the channel;
// otherwise the existing message is edited in place.
func (s *TrackerService) refreshMessage(ctx context.Context, tracker *trackerdb.Tracker, now time.Time) error {
	content := renderStatus(tracker, now)

	matchCount := len(tracker.DiscoveredMatches)
	subCount := len(tracker.Substitutions)
	grew := matchCount > tracker.LastMessageState.MatchCount ||
		subCount > tracker.LastMessageState.SubstitutionCount

	switch {
	case tracker.LiveMessageID == "":
		messageID, err := s.messenger.CreateMessage(ctx, tracker.ChannelID, content)
		if err != nil {
			return err
		}
		tracker.LiveMessageID = messageID

	case grew:
		if err := s.messenger.DeleteMessage(ctx, tracker.ChannelID, tracker.LiveMessageID); err != nil {
			if errs.IsTerminal(err) {
				return err
			}
			s.logger.WarnContext(ctx, "Failed to delete prior tracker message", attr.Error(err))
		}
		messageID, err := s.messenger.CreateMessage(ctx, tracker.ChannelID, content)
		if err != nil {
			return err
		}
		tracker.LiveMessageID = messageID

	default:
		if err := s.messenger.EditMessage(ctx, tracker.ChannelID, tracker.LiveMessageID, content); err != nil {
			return err
		}
	}

	tracker.LastMessageState = trackerdb.LastMessageState{
		MatchCount:        matchCount,
		SubstitutionCount: subCount,
	}
	return nil
}
