package timelineevents

// Message bus topics the timeline module publishes on.
const (
	// TopicSeriesReconstructed carries a finished ReplayResult for the
	// posting pipeline.
	TopicSeriesReconstructed = "timeline.series.reconstructed"

	// TopicQueueEventReceived mirrors every accepted webhook event for
	// interested consumers (the live tracker's substitution feed).
	TopicQueueEventReceived = "timeline.queue.event.received"
)
