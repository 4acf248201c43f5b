package events

import (
	"context"
	"log/slog"
)

// LogPublisher records events in the application log. It stands in for the
// broker when RABBITMQ_URL is not configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event", "id", event.ID, "type", event.Type, "data", event.Data)
	return nil
}

func (p *LogPublisher) Close() {}
