package notify

import (
	"context"

	"schedbot/internal/schedule"
	"schedbot/internal/transport"
	logx "schedbot/pkg/logx"
)

// FireHandler returns a schedule fire hook that delivers the schedule's
// payload to the configured default chat.
func (d *Deliverer) FireHandler() schedule.FireHandler {
	return func(ctx context.Context, sc schedule.Schedule) {
		d.mu.Lock()
		target := transport.ChatTarget{ChatID: d.cfg.ChatID, ThreadID: d.cfg.ThreadID}
		d.mu.Unlock()
		if target.ChatID == 0 {
			d.log.Debug("no default chat configured, reminder not delivered", logx.String("id", sc.ID))
			return
		}
		err := d.Notify(ctx, transport.Notification{
			Channel: "telegram",
			Target:  target,
			Text:    "⏰ " + sc.Payload,
		})
		if err != nil {
			d.log.Warn("reminder delivery rejected", logx.String("id", sc.ID), logx.Any("err", err))
		}
	}
}
