package storage

import (
	"context"
	"path/filepath"
	"testing"

	logx "schedbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatal("disabled storage should return a nil store")
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.PutSchedule(ctx, ScheduleRecord{ID: "s1", Data: []byte(`{"id":"s1"}`)}); err != nil {
		t.Fatalf("PutSchedule: %v", err)
	}
	if err := st.PutSchedule(ctx, ScheduleRecord{ID: "s2", Data: []byte(`{"id":"s2"}`)}); err != nil {
		t.Fatalf("PutSchedule: %v", err)
	}

	got, err := st.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	if err := st.DeleteSchedule(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	got, err = st.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("unexpected schedules after delete: %+v", got)
	}
}

func TestConfirmationOrderPerActor(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c3", "c1", "c2"} {
		err := st.PutConfirmation(ctx, ConfirmationRecord{ActorID: "alice", ID: id, Data: []byte("{}")})
		if err != nil {
			t.Fatalf("PutConfirmation(%s): %v", id, err)
		}
	}
	if err := st.PutConfirmation(ctx, ConfirmationRecord{ActorID: "bob", ID: "x", Data: []byte("{}")}); err != nil {
		t.Fatalf("PutConfirmation: %v", err)
	}

	got, err := st.ListConfirmations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConfirmations: %v", err)
	}
	want := []string{"c3", "c1", "c2"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s (insertion order must be preserved)", i, got[i].ID, want[i])
		}
	}

	if err := st.DeleteConfirmation(ctx, "alice", "c1"); err != nil {
		t.Fatalf("DeleteConfirmation: %v", err)
	}
	got, err = st.ListConfirmations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConfirmations: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c3" || got[1].ID != "c2" {
		t.Fatalf("unexpected confirmations after delete: %+v", got)
	}
}
