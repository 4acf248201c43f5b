package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"creatorpay/internal/events"
	"creatorpay/internal/store"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// publish never fails the caller; a lost event is logged and dropped.
func publish(ctx context.Context, publisher EventPublisher, logger *slog.Logger, eventType string, data any) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.New(eventType, data)); err != nil {
		logger.Warn("event publish failed", "event", eventType, "error", err)
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upstreamError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}
