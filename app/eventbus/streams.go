package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
)

// initializeStreams creates the JetStream streams the application relies
// on at startup.
func initializeStreams(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	streamConfigs := []jetstream.StreamConfig{
		{
			Name:     "timeline",
			Subjects: []string{"timeline.>"},
		},
		{
			Name:     "tracker",
			Subjects: []string{"tracker.>"},
		},
	}

	for _, streamConfig := range streamConfigs {
		_, err := js.Stream(ctx, streamConfig.Name)
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			if _, err := js.CreateStream(ctx, streamConfig); err != nil {
				return fmt.Errorf("failed to create stream %s: %w", streamConfig.Name, err)
			}
			logger.Info("Created JetStream stream", attr.String("stream", streamConfig.Name))
		} else if err != nil {
			return fmt.Errorf("failed to check stream %s: %w", streamConfig.Name, err)
		}
	}
	return nil
}
