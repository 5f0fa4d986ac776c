package trackerqueue

import (
	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
)

// TrackerTickJob wakes one tracker instance. Args-uniqueness means a key
// can have at most one pending tick, which is what keeps the actor
// single-threaded per key.
type TrackerTickJob struct {
	Key trackerdb.TrackerKey `json:"key"`
}

// Kind returns the job type identifier for River.
func (TrackerTickJob) Kind() string { return "tracker_tick" }

// JobInfo describes one scheduled job for debugging and monitoring.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
