package extract

import (
	"context"
	"time"

	"schedbot/internal/schedule"
)

// Action is the top-level intent of a user query.
type Action string

const (
	ActionAdd    Action = "add"
	ActionCancel Action = "cancel"
	ActionList   Action = "list"
	ActionNone   Action = "none"
)

// AlarmType is the trigger shape implied by an add-intent query.
// Empty means the extractor could not tell.
type AlarmType string

const (
	AlarmScheduled AlarmType = "scheduled"
	AlarmDelayed   AlarmType = "delayed"
	AlarmCron      AlarmType = "cron"
)

// Classification is the action classifier's answer. Message is only set for
// ActionNone and explains why nothing will be done.
type Classification struct {
	Action  Action
	Message string
}

// Extractor answers one narrow semantic question per call. Implementations
// are stateless per call and are trusted to return best-effort guesses; an
// empty string means "could not extract". Callers never pre-validate the
// answers - the schedule store does that when a trigger is actually created.
type Extractor interface {
	// ClassifyAction decides what the query asks for, given the current
	// schedules as context.
	ClassifyAction(ctx context.Context, query string, schedules []schedule.Schedule) (Classification, error)

	// AlarmMessage extracts the free-text payload to deliver when the alarm
	// fires ("Turn off the oven").
	AlarmMessage(ctx context.Context, query string) (string, error)

	// AlarmType classifies the trigger shape of an add-intent query.
	AlarmType(ctx context.Context, query string) (AlarmType, error)

	// ScheduledDate resolves the query's point in time to an ISO-8601 string,
	// relative to now.
	ScheduledDate(ctx context.Context, query string, now time.Time) (string, error)

	// CronSchedule extracts a cron expression for a recurring alarm.
	CronSchedule(ctx context.Context, query string) (string, error)

	// ScheduleID picks the existing schedule the query refers to, or "".
	ScheduleID(ctx context.Context, query string, schedules []schedule.Schedule) (string, error)
}
