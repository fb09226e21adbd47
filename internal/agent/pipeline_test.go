package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"schedbot/internal/extract"
	"schedbot/internal/schedule"
)

func newTestManager(ext *fakeExtractor, store *fakeScheduleStore) *Manager {
	return NewManager(ext, store, nil, slog.New(slog.DiscardHandler), nil)
}

func TestHandleQueryEmpty(t *testing.T) {
	t.Parallel()
	ext := newFakeExtractor()
	m := newTestManager(ext, &fakeScheduleStore{})

	out, err := m.HandleQuery(context.Background(), "u1", "   ")
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	info, ok := out.(InfoMessage)
	if !ok {
		t.Fatalf("got %T, want InfoMessage", out)
	}
	if info.Message == "" {
		t.Fatal("empty info message")
	}
	if ext.callCount("classify") != 0 {
		t.Fatal("classifier ran for blank input")
	}
}

func TestHandleQueryList(t *testing.T) {
	t.Parallel()
	store := &fakeScheduleStore{}
	if _, err := store.Create(context.Background(), schedule.TriggerCron{Expr: "* * * * *"}, "notify", "tick"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ext := newFakeExtractor()
	ext.cls = extract.Classification{Action: extract.ActionList}
	m := newTestManager(ext, store)

	out, err := m.HandleQuery(context.Background(), "u1", "what do I have scheduled")
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	list, ok := out.(ScheduleList)
	if !ok {
		t.Fatalf("got %T, want ScheduleList", out)
	}
	if len(list.Schedules) != 1 || list.Schedules[0].Payload != "tick" {
		t.Fatalf("unexpected list: %+v", list.Schedules)
	}
	pending, _ := m.Pending(context.Background(), "u1")
	if len(pending) != 0 {
		t.Fatalf("list staged %d actions", len(pending))
	}
	for _, name := range []string{"message", "type", "date", "cron", "schedule_id"} {
		if n := ext.callCount(name); n != 0 {
			t.Errorf("extractor %q ran %d times on a list query", name, n)
		}
	}
}

func TestHandleQueryNone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		clsMsg  string
		wantMsg string
	}{
		{"with explanation", "That is not something I schedule.", "That is not something I schedule."},
		{"without explanation", "", msgNoActionTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ext := newFakeExtractor()
			ext.cls = extract.Classification{Action: extract.ActionNone, Message: tc.clsMsg}
			m := newTestManager(ext, &fakeScheduleStore{})

			out, err := m.HandleQuery(context.Background(), "u1", "hello there")
			if err != nil {
				t.Fatalf("HandleQuery: %v", err)
			}
			info, ok := out.(InfoMessage)
			if !ok {
				t.Fatalf("got %T, want InfoMessage", out)
			}
			if info.Message != tc.wantMsg {
				t.Fatalf("message = %q, want %q", info.Message, tc.wantMsg)
			}
			pending, _ := m.Pending(context.Background(), "u1")
			if len(pending) != 0 {
				t.Fatalf("none staged %d actions", len(pending))
			}
		})
	}
}

func TestHandleQueryAddStagesPending(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		alarmType extract.AlarmType
		date      string
		cron      string
		check     func(t *testing.T, spec TriggerSpec)
	}{
		{
			name:      "scheduled",
			alarmType: extract.AlarmScheduled,
			date:      "2026-09-02T08:00:00Z",
			check: func(t *testing.T, spec TriggerSpec) {
				s, ok := spec.(ScheduledSpec)
				if !ok {
					t.Fatalf("got %T, want ScheduledSpec", spec)
				}
				if s.Date != "2026-09-02T08:00:00Z" {
					t.Fatalf("date = %q", s.Date)
				}
			},
		},
		{
			name:      "delayed staged as a point in time",
			alarmType: extract.AlarmDelayed,
			date:      "2026-09-01T12:30:00Z",
			check: func(t *testing.T, spec TriggerSpec) {
				s, ok := spec.(ScheduledSpec)
				if !ok {
					t.Fatalf("got %T, want ScheduledSpec", spec)
				}
				if s.Date != "2026-09-01T12:30:00Z" {
					t.Fatalf("date = %q", s.Date)
				}
			},
		},
		{
			name:      "cron",
			alarmType: extract.AlarmCron,
			cron:      "0 9 * * 1-5",
			check: func(t *testing.T, spec TriggerSpec) {
				c, ok := spec.(CronSpec)
				if !ok {
					t.Fatalf("got %T, want CronSpec", spec)
				}
				if c.Expr != "0 9 * * 1-5" {
					t.Fatalf("expr = %q", c.Expr)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ext := newFakeExtractor()
			ext.cls = extract.Classification{Action: extract.ActionAdd}
			ext.message = "take a break"
			ext.alarmType = tc.alarmType
			ext.date = tc.date
			ext.cron = tc.cron
			store := &fakeScheduleStore{}
			m := newTestManager(ext, store)

			out, err := m.HandleQuery(context.Background(), "u1", "remind me to take a break")
			if err != nil {
				t.Fatalf("HandleQuery: %v", err)
			}
			pc, ok := out.(PendingCreated)
			if !ok {
				t.Fatalf("got %T, want PendingCreated", out)
			}
			if pc.Action.ID == "" {
				t.Fatal("pending action has no id")
			}
			if pc.Action.Kind != ActionAdd {
				t.Fatalf("kind = %q", pc.Action.Kind)
			}
			if pc.Action.Add == nil || pc.Action.Add.Payload != "take a break" {
				t.Fatalf("add spec = %+v", pc.Action.Add)
			}
			tc.check(t, pc.Action.Add.Trigger)

			if store.createCalls != 0 {
				t.Fatal("staging touched the schedule store")
			}
			pending, _ := m.Pending(context.Background(), "u1")
			if len(pending) != 1 || pending[0].ID != pc.Action.ID {
				t.Fatalf("pending = %+v", pending)
			}
			if ext.callCount("message") != 1 || ext.callCount("type") != 1 {
				t.Fatal("message/type extraction did not run exactly once")
			}
		})
	}
}

func TestHandleQueryAddUniqueIDs(t *testing.T) {
	t.Parallel()
	ext := newFakeExtractor()
	ext.cls = extract.Classification{Action: extract.ActionAdd}
	ext.message = "stand up"
	ext.alarmType = extract.AlarmCron
	ext.cron = "0 * * * *"
	m := newTestManager(ext, &fakeScheduleStore{})

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		out, err := m.HandleQuery(context.Background(), "u1", "hourly stand up reminder")
		if err != nil {
			t.Fatalf("HandleQuery: %v", err)
		}
		id := out.(PendingCreated).Action.ID
		if seen[id] {
			t.Fatalf("duplicate confirmation id %q", id)
		}
		seen[id] = true
	}
	pending, _ := m.Pending(context.Background(), "u1")
	if len(pending) != 5 {
		t.Fatalf("pending = %d, want 5", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].CreatedAt.Before(pending[i-1].CreatedAt) {
			t.Fatal("pending actions out of insertion order")
		}
	}
}

func TestHandleQueryAddUnknownType(t *testing.T) {
	t.Parallel()
	ext := newFakeExtractor()
	ext.cls = extract.Classification{Action: extract.ActionAdd}
	ext.message = "water the plants"
	ext.alarmType = ""
	m := newTestManager(ext, &fakeScheduleStore{})

	out, err := m.HandleQuery(context.Background(), "u1", "do the thing sometime")
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	if _, ok := out.(InfoMessage); !ok {
		t.Fatalf("got %T, want InfoMessage", out)
	}
	pending, _ := m.Pending(context.Background(), "u1")
	if len(pending) != 0 {
		t.Fatal("unknown alarm type staged an action")
	}
	if ext.callCount("date") != 0 || ext.callCount("cron") != 0 {
		t.Fatal("trigger extraction ran for an unknown alarm type")
	}
}

func TestHandleQueryAddExtractionFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("model unavailable")
	tests := []struct {
		name string
		prep func(*fakeExtractor)
	}{
		{"message fails", func(f *fakeExtractor) { f.msgErr = boom }},
		{"type fails", func(f *fakeExtractor) { f.typeErr = boom }},
		{"date fails", func(f *fakeExtractor) { f.dateErr = boom }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ext := newFakeExtractor()
			ext.cls = extract.Classification{Action: extract.ActionAdd}
			ext.message = "x"
			ext.alarmType = extract.AlarmScheduled
			ext.date = "2026-09-02T08:00:00Z"
			tc.prep(ext)
			m := newTestManager(ext, &fakeScheduleStore{})

			if _, err := m.HandleQuery(context.Background(), "u1", "remind me tomorrow"); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want %v", err, boom)
			}
			pending, _ := m.Pending(context.Background(), "u1")
			if len(pending) != 0 {
				t.Fatal("failed extraction staged an action")
			}
		})
	}
}

func TestHandleQueryCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &fakeScheduleStore{}
	target, err := store.Create(ctx, schedule.TriggerAt{Date: time.Now().Add(time.Hour).Format(time.RFC3339)}, "notify", "dentist")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	t.Run("resolvable target", func(t *testing.T) {
		ext := newFakeExtractor()
		ext.cls = extract.Classification{Action: extract.ActionCancel}
		ext.scheduleID = target.ID
		m := newTestManager(ext, store)

		out, err := m.HandleQuery(ctx, "u1", "cancel the dentist reminder")
		if err != nil {
			t.Fatalf("HandleQuery: %v", err)
		}
		pc, ok := out.(PendingCreated)
		if !ok {
			t.Fatalf("got %T, want PendingCreated", out)
		}
		if pc.Action.Kind != ActionCancel {
			t.Fatalf("kind = %q", pc.Action.Kind)
		}
		if pc.Action.Cancel == nil || pc.Action.Cancel.ID != target.ID || pc.Action.Cancel.Payload != "dentist" {
			t.Fatalf("snapshot = %+v", pc.Action.Cancel)
		}
		if store.cancelCalls != 0 {
			t.Fatal("staging cancelled the schedule")
		}
	})

	t.Run("unresolvable target", func(t *testing.T) {
		for _, id := range []string{"", "no-such-id"} {
			ext := newFakeExtractor()
			ext.cls = extract.Classification{Action: extract.ActionCancel}
			ext.scheduleID = id
			m := newTestManager(ext, store)

			out, err := m.HandleQuery(ctx, "u2", "cancel something")
			if err != nil {
				t.Fatalf("HandleQuery: %v", err)
			}
			info, ok := out.(InfoMessage)
			if !ok {
				t.Fatalf("got %T, want InfoMessage", out)
			}
			if info.Message != msgNoMatchingTask {
				t.Fatalf("message = %q", info.Message)
			}
			pending, _ := m.Pending(ctx, "u2")
			if len(pending) != 0 {
				t.Fatal("unresolvable cancel staged an action")
			}
		}
	})
}

func TestHandleQueryActorsIsolated(t *testing.T) {
	t.Parallel()
	ext := newFakeExtractor()
	ext.cls = extract.Classification{Action: extract.ActionAdd}
	ext.message = "ping"
	ext.alarmType = extract.AlarmCron
	ext.cron = "* * * * *"
	m := newTestManager(ext, &fakeScheduleStore{})

	if _, err := m.HandleQuery(context.Background(), "alice", "ping every minute"); err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	got, _ := m.Pending(context.Background(), "bob")
	if len(got) != 0 {
		t.Fatalf("bob sees alice's pending actions: %+v", got)
	}
}

func TestHandleQueryActorRequired(t *testing.T) {
	t.Parallel()
	m := newTestManager(newFakeExtractor(), &fakeScheduleStore{})
	if _, err := m.HandleQuery(context.Background(), "  ", "anything"); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("err = %v, want ErrActorRequired", err)
	}
}
