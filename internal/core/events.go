package core

import (
	"context"
	"log/slog"

	"schedbot/internal/agent"
	"schedbot/internal/eventbus"
	"schedbot/internal/notify"
	"schedbot/internal/schedule"
)

// runEventLog drains the bus and gives operators one structured stream of
// agent/schedule/notify activity, whichever component produced it. The
// producing services keep their own component-level logs; this stream is
// the cross-cutting audit trail.
func runEventLog(ctx context.Context, log *slog.Logger, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, e)
		}
	}
}

func logEvent(log *slog.Logger, e eventbus.Event) {
	attrs := []any{slog.String("type", e.Type)}
	level := slog.LevelDebug

	switch d := e.Data.(type) {
	case schedule.Schedule:
		attrs = append(attrs, slog.String("id", d.ID), slog.String("kind", string(d.Kind)))
	case agent.ConfirmationEvent:
		attrs = append(attrs, slog.String("actor", d.ActorID), slog.String("id", d.ID), slog.String("kind", d.Kind))
		if d.Approved != nil {
			attrs = append(attrs, slog.Bool("approved", *d.Approved))
		}
	case notify.DeliveryEvent:
		attrs = append(attrs, slog.Int64("chat", d.ChatID), slog.String("key", d.Key))
		if d.Error != "" {
			attrs = append(attrs, slog.String("err", d.Error))
		}
	}

	switch e.Type {
	case notify.EventFailed, notify.EventDropped:
		level = slog.LevelWarn
	case eventbus.EventScheduleFired, notify.EventSent:
		level = slog.LevelInfo
	}

	log.Log(context.Background(), level, "event", attrs...)
}
