package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"schedbot/internal/extract"
	"schedbot/internal/schedule"
)

// fakeExtractor returns scripted answers and counts calls per question.
type fakeExtractor struct {
	mu    sync.Mutex
	calls map[string]int

	cls    extract.Classification
	clsErr error

	message string
	msgErr  error

	alarmType extract.AlarmType
	typeErr   error

	date    string
	dateErr error

	cron    string
	cronErr error

	scheduleID string
	idErr      error
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{calls: map[string]int{}}
}

func (f *fakeExtractor) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeExtractor) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeExtractor) ClassifyAction(_ context.Context, _ string, _ []schedule.Schedule) (extract.Classification, error) {
	f.count("classify")
	return f.cls, f.clsErr
}

func (f *fakeExtractor) AlarmMessage(_ context.Context, _ string) (string, error) {
	f.count("message")
	return f.message, f.msgErr
}

func (f *fakeExtractor) AlarmType(_ context.Context, _ string) (extract.AlarmType, error) {
	f.count("type")
	return f.alarmType, f.typeErr
}

func (f *fakeExtractor) ScheduledDate(_ context.Context, _ string, _ time.Time) (string, error) {
	f.count("date")
	return f.date, f.dateErr
}

func (f *fakeExtractor) CronSchedule(_ context.Context, _ string) (string, error) {
	f.count("cron")
	return f.cron, f.cronErr
}

func (f *fakeExtractor) ScheduleID(_ context.Context, _ string, _ []schedule.Schedule) (string, error) {
	f.count("schedule_id")
	return f.scheduleID, f.idErr
}

// fakeScheduleStore is an in-memory schedule.Store with failure injection.
type fakeScheduleStore struct {
	mu     sync.Mutex
	seq    int
	scheds []schedule.Schedule

	createErr error
	cancelErr error

	createCalls int
	cancelCalls int
	lastTrigger schedule.Trigger
	lastPayload string
	lastCancel  string
}

func (f *fakeScheduleStore) Create(_ context.Context, tr schedule.Trigger, label, payload string) (schedule.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastTrigger = tr
	f.lastPayload = payload
	if f.createErr != nil {
		return schedule.Schedule{}, f.createErr
	}
	f.seq++
	sc := schedule.Schedule{
		ID:        fmt.Sprintf("sched-%d", f.seq),
		Label:     label,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	switch t := tr.(type) {
	case schedule.TriggerAt:
		sc.Kind = schedule.KindScheduled
		sc.Time, _ = time.Parse(time.RFC3339, t.Date)
	case schedule.TriggerAfter:
		sc.Kind = schedule.KindDelayed
		sc.DelaySeconds = t.Seconds
		sc.Time = time.Now().Add(time.Duration(t.Seconds) * time.Second)
	case schedule.TriggerCron:
		sc.Kind = schedule.KindCron
		sc.Cron = t.Expr
	}
	f.scheds = append(f.scheds, sc)
	return sc, nil
}

func (f *fakeScheduleStore) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	f.lastCancel = id
	if f.cancelErr != nil {
		return f.cancelErr
	}
	for i, sc := range f.scheds {
		if sc.ID == id {
			f.scheds = append(f.scheds[:i], f.scheds[i+1:]...)
			return nil
		}
	}
	return schedule.ErrNotFound
}

func (f *fakeScheduleStore) Get(_ context.Context, id string) (schedule.Schedule, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.scheds {
		if sc.ID == id {
			return sc, true, nil
		}
	}
	return schedule.Schedule{}, false, nil
}

func (f *fakeScheduleStore) List(_ context.Context) ([]schedule.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schedule.Schedule, len(f.scheds))
	copy(out, f.scheds)
	return out, nil
}
