package observability

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// NoOpMetrics satisfies every metrics interface without recording anything.
// Used in tests.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string)                {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOpMetrics) RecordTick(context.Context, string)                                    {}
func (NoOpMetrics) RecordMatchesDiscovered(context.Context, int)                          {}
func (NoOpMetrics) RecordTrackerStopped(context.Context, string)                          {}
func (NoOpMetrics) RecordSubSeries(context.Context, string)                               {}

// NoOpLogger discards all log output.
var NoOpLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
