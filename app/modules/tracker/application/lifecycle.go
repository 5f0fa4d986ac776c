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

// Start creates the tracker, posts the initial status message, and arms
// the first tick.
func (s *TrackerService) Start(ctx context.Context, params StartParams) error {
	return s.withTelemetry(ctx, "Start", func(ctx context.Context) error {
		if _, err := s.trackers.Get(ctx, params.Key); err == nil {
			return ErrTrackerExists()
		} else if !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		now := time.Now()
		queueStart := params.QueueStartTime
		if queueStart.IsZero() {
			queueStart = now
		}

		tracker := &trackerdb.Tracker{
			GuildID:        params.Key.GuildID,
			ChannelID:      params.Key.ChannelID,
			UserID:         params.Key.UserID,
			QueueNumber:    params.Key.QueueNumber,
			Status:         trackerdb.StatusActive,
			CheckCount:     0,
			StartTime:      now,
			LastUpdateTime: now,
			QueueStartTime: queueStart,
			Teams:          params.Teams,
			TeamNames:      params.TeamNames,
		}

		messageID, err := s.messenger.CreateMessage(ctx, tracker.ChannelID, renderStatus(tracker, now))
		if err != nil {
			if errs.IsTerminal(err) {
				return errs.Errorf(err, "cannot post to the tracking channel")
			}
			// A failed first post is not fatal; the first tick will post.
			s.logger.WarnContext(ctx, "Failed to post initial tracker message", attr.Error(err))
		} else {
			tracker.LiveMessageID = messageID
		}

		if err := s.trackers.Save(ctx, tracker); err != nil {
			return fmt.Errorf("failed to persist tracker: %w", err)
		}

		if err := s.scheduler.ScheduleTick(ctx, params.Key, now.Add(s.tickInterval)); err != nil {
			return fmt.Errorf("failed to arm first tick: %w", err)
		}

		s.logger.InfoContext(ctx, "Live tracker started",
			attr.String("tracker", params.Key.String()),
			attr.Time("queue_start", queueStart),
		)
		return nil
	})
}

// Pause suppresses future re-arming. An in-flight tick is left alone; it
// will observe the paused status and go dormant.
func (s *TrackerService) Pause(ctx context.Context, key trackerdb.TrackerKey) error {
	return s.withTelemetry(ctx, "Pause", func(ctx context.Context) error {
		tracker, err := s.get(ctx, key)
		if err != nil {
			return err
		}
		if tracker.Status != trackerdb.StatusActive {
			return ErrTrackerNotFound()
		}

		tracker.Status = trackerdb.StatusPaused
		if err := s.trackers.Save(ctx, tracker); err != nil {
			return fmt.Errorf("failed to persist pause: %w", err)
		}

		s.logger.InfoContext(ctx, "Live tracker paused", attr.String("tracker", key.String()))
		return nil
	})
}

// Resume re-activates a paused tracker and re-arms the schedule.
func (s *TrackerService) Resume(ctx context.Context, key trackerdb.TrackerKey) error {
	return s.withTelemetry(ctx, "Resume", func(ctx context.Context) error {
		tracker, err := s.get(ctx, key)
		if err != nil {
			return err
		}
		if tracker.Status != trackerdb.StatusPaused {
			return ErrTrackerNotPaused()
		}

		tracker.Status = trackerdb.StatusActive
		if err := s.trackers.Save(ctx, tracker); err != nil {
			return fmt.Errorf("failed to persist resume: %w", err)
		}
		if err := s.scheduler.ScheduleTick(ctx, key, time.Now().Add(s.tickInterval)); err != nil {
			return fmt.Errorf("failed to re-arm tick: %w", err)
		}

		s.logger.InfoContext(ctx, "Live tracker resumed", attr.String("tracker", key.String()))
		return nil
	})
}

// Stop cancels the schedule and purges all tracker state. Stopping a
// missing tracker is reported, not failed.
func (s *TrackerService) Stop(ctx context.Context, key trackerdb.TrackerKey) (bool, error) {
	found := false
	err := s.withTelemetry(ctx, "Stop", func(ctx context.Context) error {
		if _, err := s.trackers.Get(ctx, key); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				s.logger.InfoContext(ctx, "Stop requested for missing tracker",
					attr.String("tracker", key.String()),
				)
				return nil
			}
			return err
		}

		found = true
		if err := s.purge(ctx, key, "stopped"); err != nil {
			return err
		}
		return nil
	})
	return found, err
}

// RecordSubstitution patches the roster history. It only changes what the
// next tick renders and assembles, never the schedule.
func (s *TrackerService) RecordSubstitution(ctx context.Context, key trackerdb.TrackerKey, sub sharedtypes.Substitution) error {
	return s.withTelemetry(ctx, "RecordSubstitution", func(ctx context.Context) error {
		tracker, err := s.get(ctx, key)
		if err != nil {
			return err
		}

		if sub.OccurredAt.IsZero() {
			sub.OccurredAt = time.Now()
		}
		tracker.Substitutions = append(tracker.Substitutions, sub)

		if err := s.trackers.Save(ctx, tracker); err != nil {
			return fmt.Errorf("failed to persist substitution: %w", err)
		}

		s.logger.InfoContext(ctx, "Substitution recorded",
			attr.String("tracker", key.String()),
			attr.String("substitution", sub.Describe()),
		)
		return nil
	})
}

func (s *TrackerService) get(ctx context.Context, key trackerdb.TrackerKey) (*trackerdb.Tracker, error) {
	tracker, err := s.trackers.Get(ctx, key)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, ErrTrackerNotFound()
	}
	if err != nil {
		return nil, err
	}
	return tracker, nil
}

// purge is the single teardown path: cancel the schedule, delete state,
// record why.
func (s *TrackerService) purge(ctx context.Context, key trackerdb.TrackerKey, reason string) error {
	if err := s.scheduler.CancelTicks(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "Failed to cancel scheduled ticks", attr.Error(err))
	}
	if err := s.trackers.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to purge tracker state: %w", err)
	}
	s.metrics.RecordTrackerStopped(ctx, reason)
	s.logger.InfoContext(ctx, "Live tracker stopped",
		attr.String("tracker", key.String()),
		attr.String("reason", reason),
	)
	return nil
}
