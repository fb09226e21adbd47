package schedule

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("schedule not found")
	ErrInvalidTrigger = errors.New("invalid trigger")
)

// Kind discriminates how a schedule fires.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindDelayed   Kind = "delayed"
	KindCron      Kind = "cron"
)

// Trigger is the closed set of ways a schedule can be asked to fire.
// Exactly one variant is passed to Create.
type Trigger interface{ isTrigger() }

// TriggerAt fires once at an absolute ISO-8601 time.
// The raw string is carried so that Create remains the single place where
// date parseability is enforced.
type TriggerAt struct{ Date string }

// TriggerAfter fires once, Seconds from the moment of creation.
type TriggerAfter struct{ Seconds int64 }

// TriggerCron fires on a cron expression until cancelled.
type TriggerCron struct{ Expr string }

func (TriggerAt) isTrigger()    {}
func (TriggerAfter) isTrigger() {}
func (TriggerCron) isTrigger()  {}

// Schedule is one stored alarm. The JSON shape doubles as the persistence
// snapshot and the API representation.
type Schedule struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"type"`
	Label        string    `json:"label"`
	Payload      string    `json:"payload"`
	Time         time.Time `json:"time"`                    // next (or only) fire time
	Cron         string    `json:"cron,omitempty"`          // kind=cron only
	DelaySeconds int64     `json:"delay_seconds,omitempty"` // kind=delayed only
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the schedule-holder contract the agent core depends on.
type Store interface {
	Create(ctx context.Context, tr Trigger, label, payload string) (Schedule, error)
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Schedule, bool, error)
	List(ctx context.Context) ([]Schedule, error)
}

// FireHandler receives a schedule's payload when it becomes due.
type FireHandler func(ctx context.Context, s Schedule)

// Config controls the schedule service.
type Config struct {
	Timezone string // IANA TZ for cron evaluation, e.g. "Asia/Jakarta"
}
