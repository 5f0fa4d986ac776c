package trackerservice

import (
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
)

// ErrTrackerExists is surfaced when a start collides with a running tracker.
func ErrTrackerExists() *errs.UserFacing {
	return errs.Warning("a live tracker is already running for this queue")
}

// ErrTrackerNotFound is surfaced by pause/resume/substitution against a
// missing tracker. Stop handles the missing case itself because it must
// stay idempotent.
func ErrTrackerNotFound() *errs.UserFacing {
	return errs.Warning("no live tracker found for this queue")
}

// ErrTrackerNotPaused is surfaced by resume when the tracker is not paused.
func ErrTrackerNotPaused() *errs.UserFacing {
	return errs.Warning("the live tracker is not paused")
}
