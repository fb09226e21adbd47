package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"schedbot/internal/extract"
	"schedbot/internal/schedule"
)

// HandleQuery runs the intent pipeline for one free-text request.
//
// The classifier always runs first and gates everything: list/none return
// immediately with no staging and no further extraction calls. State is only
// mutated after every required extraction has answered, so a failed call
// leaves the pending list untouched.
func (a *Agent) HandleQuery(ctx context.Context, query string) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return InfoMessage{Message: msgNoActionTaken}, nil
	}

	schedules, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	cls, err := a.ext.ClassifyAction(ctx, query, schedules)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	a.log.Debug("query classified", slog.String("actor", a.id), slog.String("action", string(cls.Action)))

	switch cls.Action {
	case extract.ActionList:
		return ScheduleList{Schedules: schedules}, nil

	case extract.ActionNone:
		msg := strings.TrimSpace(cls.Message)
		if msg == "" {
			msg = msgNoActionTaken
		}
		return InfoMessage{Message: msg}, nil

	case extract.ActionAdd:
		return a.handleAdd(ctx, query)

	case extract.ActionCancel:
		return a.handleCancel(ctx, query, schedules)

	default:
		return InfoMessage{Message: msgNoActionTaken}, nil
	}
}

// handleAdd stages an add action. The message and type extractions are
// independent, so they fan out concurrently and join before anything else
// happens.
func (a *Agent) handleAdd(ctx context.Context, query string) (Outcome, error) {
	var (
		wg        sync.WaitGroup
		payload   string
		alarmType extract.AlarmType
		msgErr    error
		typeErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		payload, msgErr = a.ext.AlarmMessage(ctx, query)
	}()
	go func() {
		defer wg.Done()
		alarmType, typeErr = a.ext.AlarmType(ctx, query)
	}()
	wg.Wait()
	if msgErr != nil {
		return nil, fmt.Errorf("extract alarm message: %w", msgErr)
	}
	if typeErr != nil {
		return nil, fmt.Errorf("extract alarm type: %w", typeErr)
	}

	var trigger TriggerSpec
	switch alarmType {
	case extract.AlarmScheduled, extract.AlarmDelayed:
		// Both shapes reduce to a point in time; the date extractor resolves
		// it relative to now.
		date, err := a.ext.ScheduledDate(ctx, query, time.Now())
		if err != nil {
			return nil, fmt.Errorf("extract date: %w", err)
		}
		trigger = ScheduledSpec{Date: date}
	case extract.AlarmCron:
		expr, err := a.ext.CronSchedule(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("extract cron: %w", err)
		}
		trigger = CronSpec{Expr: expr}
	default:
		return InfoMessage{Message: msgUnknownAlarmType}, nil
	}

	act := PendingAction{
		ID:        uuid.NewString(),
		Kind:      ActionAdd,
		Add:       &AddSpec{Payload: payload, Trigger: trigger},
		CreatedAt: time.Now(),
	}
	a.stage(ctx, act)
	return PendingCreated{Action: act}, nil
}

// handleCancel stages a cancel action referencing a snapshot of the target
// schedule, or reports why nothing could be staged.
func (a *Agent) handleCancel(ctx context.Context, query string, schedules []schedule.Schedule) (Outcome, error) {
	id, err := a.ext.ScheduleID(ctx, query, schedules)
	if err != nil {
		return nil, fmt.Errorf("extract schedule id: %w", err)
	}
	if strings.TrimSpace(id) == "" {
		return InfoMessage{Message: msgNoMatchingTask}, nil
	}

	target, ok, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	if !ok {
		return InfoMessage{Message: msgNoMatchingTask}, nil
	}

	snapshot := target
	act := PendingAction{
		ID:        uuid.NewString(),
		Kind:      ActionCancel,
		Cancel:    &snapshot,
		CreatedAt: time.Now(),
	}
	a.stage(ctx, act)
	return PendingCreated{Action: act}, nil
}
