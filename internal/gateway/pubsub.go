package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"energy-dashboard/internal/events"
)

// Subscriber delivers events from a shared bus. events.RedisBus implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(events.Event)) error
}

// Relay forwards bus events to the hub's clients until ctx is cancelled,
// resubscribing after bus failures.
func (h *Hub) Relay(ctx context.Context, sub Subscriber) error {
	const backoff = 2 * time.Second
	for {
		err := sub.Subscribe(ctx, h.Broadcaster.Broadcast)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("event relay interrupted", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}
