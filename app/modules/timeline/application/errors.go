package timelineservice

import (
	"time"

	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
)

// ErrTimelineNotFound is surfaced when no live timeline exists for the
// channel, either because none was ever recorded or because it expired.
func ErrTimelineNotFound() *errs.UserFacing {
	return errs.Warning("no queue timeline found for this channel")
}

// ErrQueueNeverStarted is surfaced when a queue completed without any
// recorded roster, so there is no series to reconstruct.
func ErrQueueNeverStarted() *errs.UserFacing {
	return errs.Warning("queue completed without team rosters, nothing to reconstruct")
}

// ErrQueueStillOpen is surfaced when replay is requested before a terminal
// event arrived.
func ErrQueueStillOpen() *errs.UserFacing {
	return errs.Warning("queue is still in progress", errs.ActionRetry)
}

// errReconstructionFailed wraps an all-windows-failed replay with the
// resumption token and the accumulated context a human retry needs.
func errReconstructionFailed(cause error, token string, claims errs.ResumptionClaims) *errs.UserFacing {
	described := make([]string, 0, len(claims.Substitutions))
	for _, sub := range claims.Substitutions {
		described = append(described, sub.Describe())
	}
	return errs.Errorf(cause, "failed to reconstruct the series", errs.ActionRetry).
		WithData("resumption_token", token).
		WithData("channel_id", claims.ChannelID).
		WithData("queue_number", claims.QueueNumber).
		WithData("started_at", claims.StartedAt.Format(time.RFC3339)).
		WithData("completed_at", claims.CompletedAt.Format(time.RFC3339)).
		WithData("substitutions", described)
}
