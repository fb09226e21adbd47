package agent

import (
	"context"
	"fmt"
	"log/slog"

	"schedbot/internal/eventbus"
	"schedbot/internal/schedule"
)

// Resolve approves or rejects a staged action.
//
// The staged entry is removed exactly once - here - whatever the outcome:
// rejection, successful commit, or a store-level failure. A failed commit
// therefore cannot be retried by resubmitting the same confirmation id,
// which keeps a retry from duplicating side effects.
func (a *Agent) Resolve(ctx context.Context, confirmationID string, approved bool) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	act, found := a.state.Find(confirmationID)
	if !found {
		return NotFound{Reason: msgNoMatchingConfirmation}, nil
	}

	if !approved {
		a.unstage(ctx, confirmationID)
		a.announceResolved(act, false)
		a.log.Info("confirmation rejected", slog.String("actor", a.id), slog.String("id", confirmationID))
		return Rejected{Reason: msgUserRejected}, nil
	}

	var (
		res Result
		err error
	)
	switch act.Kind {
	case ActionAdd:
		var sc schedule.Schedule
		sc, err = a.store.Create(ctx, commitTrigger(act.Add.Trigger), "notify", act.Add.Payload)
		if err == nil {
			res = ScheduleCreated{Schedule: sc}
		}
	case ActionCancel:
		err = a.store.Cancel(ctx, act.Cancel.ID)
		if err == nil {
			res = ScheduleCancelled{Schedule: *act.Cancel}
		}
	default:
		err = fmt.Errorf("corrupt pending action %s: kind %q", act.ID, act.Kind)
	}

	// Removal is unconditional once a resolution attempt has run.
	a.unstage(ctx, confirmationID)
	a.announceResolved(act, true)

	if err != nil {
		a.log.Warn("confirmation commit failed",
			slog.String("actor", a.id), slog.String("id", confirmationID),
			slog.String("kind", string(act.Kind)), slog.Any("err", err))
		return nil, err
	}
	a.log.Info("confirmation committed",
		slog.String("actor", a.id), slog.String("id", confirmationID), slog.String("kind", string(act.Kind)))
	return res, nil
}

// commitTrigger maps a staged trigger spec onto the schedule store's
// trigger union. The mapping is total over the closed spec set; a nil spec
// maps to nil and is rejected by the store.
func commitTrigger(spec TriggerSpec) schedule.Trigger {
	switch t := spec.(type) {
	case ScheduledSpec:
		return schedule.TriggerAt{Date: t.Date}
	case DelayedSpec:
		return schedule.TriggerAfter{Seconds: t.Seconds}
	case CronSpec:
		return schedule.TriggerCron{Expr: t.Expr}
	default:
		return nil
	}
}

func (a *Agent) announceResolved(act PendingAction, approved bool) {
	if a.bus == nil {
		return
	}
	ok := approved
	a.bus.Publish(eventbus.Event{
		Type: eventbus.EventConfirmationResolved,
		Data: ConfirmationEvent{ActorID: a.id, ID: act.ID, Kind: string(act.Kind), Approved: &ok},
	})
}
