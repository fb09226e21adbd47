package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"schedbot/internal/schedule"
)

// ActionKind discriminates a staged mutation.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionCancel ActionKind = "cancel"
)

// TriggerSpec is the closed set of trigger shapes an add action can stage.
// Values are carried as extracted - unvalidated - until the schedule store
// commits them.
type TriggerSpec interface{ isTriggerSpec() }

// ScheduledSpec stages an absolute ISO-8601 date-time.
type ScheduledSpec struct{ Date string }

// DelayedSpec stages a delay in seconds, measured from confirmation time.
type DelayedSpec struct{ Seconds int64 }

// CronSpec stages a cron expression.
type CronSpec struct{ Expr string }

func (ScheduledSpec) isTriggerSpec() {}
func (DelayedSpec) isTriggerSpec()   {}
func (CronSpec) isTriggerSpec()      {}

// AddSpec is the staged payload of an add action.
type AddSpec struct {
	Payload string
	Trigger TriggerSpec
}

// PendingAction is a staged, not-yet-applied mutation awaiting confirmation.
// Exactly one of Add/Cancel is set, matching Kind.
type PendingAction struct {
	ID        string
	Kind      ActionKind
	Add       *AddSpec
	Cancel    *schedule.Schedule // snapshot taken at staging time
	CreatedAt time.Time
}

// Outcome is what HandleQuery produces.
type Outcome interface{ isOutcome() }

// ScheduleList answers a list intent with the store's current schedules.
type ScheduleList struct {
	Schedules []schedule.Schedule `json:"schedules"`
}

// InfoMessage reports that nothing was staged, and why.
type InfoMessage struct {
	Message string `json:"message"`
}

// PendingCreated reports a freshly staged action for the caller to confirm.
type PendingCreated struct {
	Action PendingAction `json:"confirmation"`
}

func (ScheduleList) isOutcome()   {}
func (InfoMessage) isOutcome()    {}
func (PendingCreated) isOutcome() {}

// Result is what Resolve produces.
type Result interface{ isResult() }

// ScheduleCreated confirms an approved add.
type ScheduleCreated struct {
	Schedule schedule.Schedule `json:"schedule"`
}

// ScheduleCancelled confirms an approved cancel, echoing the snapshot that
// was removed.
type ScheduleCancelled struct {
	Schedule schedule.Schedule `json:"schedule"`
}

// Rejected reports a declined action. The schedule store was not touched.
type Rejected struct {
	Reason string `json:"reason"`
}

// NotFound reports an unknown (or already resolved) confirmation id.
type NotFound struct {
	Reason string `json:"reason"`
}

func (ScheduleCreated) isResult()   {}
func (ScheduleCancelled) isResult() {}
func (Rejected) isResult()          {}
func (NotFound) isResult()          {}

// Caller-facing texts.
const (
	msgNoMatchingTask         = "No matching task found to cancel."
	msgNoMatchingConfirmation = "No matching confirmation found."
	msgUserRejected           = "User chose not to proceed with this action."
	msgUnknownAlarmType       = "I couldn't work out what kind of alarm to create."
	msgNoActionTaken          = "No action was taken."
)

// ---- JSON (persistence + API) ----

// pendingJSON is the flat wire/persistence shape of PendingAction; the
// trigger sum is encoded as a tag plus the matching field.
type pendingJSON struct {
	ID           string             `json:"id"`
	Kind         ActionKind         `json:"kind"`
	Payload      string             `json:"payload,omitempty"`
	Trigger      string             `json:"trigger,omitempty"`
	Date         string             `json:"date,omitempty"`
	DelaySeconds int64              `json:"delay_seconds,omitempty"`
	Cron         string             `json:"cron,omitempty"`
	Cancel       *schedule.Schedule `json:"cancel,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func (a PendingAction) MarshalJSON() ([]byte, error) {
	out := pendingJSON{ID: a.ID, Kind: a.Kind, Cancel: a.Cancel, CreatedAt: a.CreatedAt}
	if a.Add != nil {
		out.Payload = a.Add.Payload
		switch t := a.Add.Trigger.(type) {
		case ScheduledSpec:
			out.Trigger = string(schedule.KindScheduled)
			out.Date = t.Date
		case DelayedSpec:
			out.Trigger = string(schedule.KindDelayed)
			out.DelaySeconds = t.Seconds
		case CronSpec:
			out.Trigger = string(schedule.KindCron)
			out.Cron = t.Expr
		case nil:
		default:
			return nil, fmt.Errorf("unknown trigger spec %T", a.Add.Trigger)
		}
	}
	return json.Marshal(out)
}

func (a *PendingAction) UnmarshalJSON(b []byte) error {
	var in pendingJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*a = PendingAction{ID: in.ID, Kind: in.Kind, Cancel: in.Cancel, CreatedAt: in.CreatedAt}
	if in.Kind != ActionAdd {
		return nil
	}
	add := &AddSpec{Payload: in.Payload}
	switch in.Trigger {
	case string(schedule.KindScheduled):
		add.Trigger = ScheduledSpec{Date: in.Date}
	case string(schedule.KindDelayed):
		add.Trigger = DelayedSpec{Seconds: in.DelaySeconds}
	case string(schedule.KindCron):
		add.Trigger = CronSpec{Expr: in.Cron}
	case "":
	default:
		return fmt.Errorf("unknown trigger tag %q", in.Trigger)
	}
	a.Add = add
	return nil
}
